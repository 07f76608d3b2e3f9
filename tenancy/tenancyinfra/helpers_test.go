package tenancyinfra_test

import (
	"context"
	"testing"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/Abraxas-365/multistore/tenancy/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scopeFixture struct {
	pool     *storage.Pool
	switcher *scope.Switcher
}

func newScopeFixture(t *testing.T, ids ...kernel.TenantID) *scopeFixture {
	t.Helper()
	driver, err := storage.NewSQLiteDriver(t.TempDir(), "", 2)
	require.NoError(t, err)
	for _, id := range ids {
		require.NoError(t, driver.CreateHandle(context.Background(), id))
	}
	pool := storage.NewPool(driver, zap.NewNop())
	t.Cleanup(func() { pool.Close() })
	return &scopeFixture{
		pool:     pool,
		switcher: scope.NewSwitcher(pool, nil, zap.NewNop(), nil),
	}
}
