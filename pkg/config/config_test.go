package config_test

import (
	"testing"
	"time"

	"github.com/Abraxas-365/multistore/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"localhost", "127.0.0.1"}, cfg.Server.CentralDomains)
	assert.Equal(t, "data/tenants", cfg.Database.TenantDir)
	assert.Equal(t, 30*time.Second, cfg.Tenancy.ResolverCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Tenancy.DrainTimeout)
	assert.Equal(t, 720*time.Hour, cfg.Jobs.CartMaxAge)
	assert.Equal(t, "0 3 * * *", cfg.Jobs.CartPruneSchedule)
	assert.False(t, cfg.Assets.Enabled())
	assert.Equal(t, 15*time.Minute, cfg.Auth.JWT.AccessTokenTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SERVER_CENTRAL_DOMAINS", "admin.example,localhost")
	t.Setenv("TENANCY_DRAIN_TIMEOUT", "5s")
	t.Setenv("ASSETS_S3_BUCKET", "store-assets")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("AUTH_JWT_SECRET", "another-secret-key-with-32-characters!")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.GetDSN(), "host=db.internal")
	assert.Equal(t, "cache:6379", cfg.Redis.GetAddr())
	assert.Equal(t, 5*time.Second, cfg.Tenancy.DrainTimeout)
	assert.True(t, cfg.Assets.Enabled())
	assert.True(t, cfg.Server.IsCentralDomain("ADMIN.example"))
	assert.False(t, cfg.Server.IsCentralDomain("acme.example"))
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":     {"DB_DRIVER": "mysql"},
		"weak jwt secret":    {"DB_DRIVER": "sqlite", "AUTH_JWT_SECRET": "short"},
		"negative cache ttl": {"DB_DRIVER": "sqlite", "TENANCY_RESOLVER_CACHE_TTL": "-1s"},
		"bad duration":       {"DB_DRIVER": "sqlite", "TENANCY_DRAIN_TIMEOUT": "soon"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
