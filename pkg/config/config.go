package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/multistore/iam/auth"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config configuración principal de la aplicación
type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Tenancy  TenancyConfig  `envPrefix:"TENANCY_"`
	Assets   AssetsConfig   `envPrefix:"ASSETS_"`
	Jobs     JobsConfig     `envPrefix:"JOBS_"`
	Log      LogConfig      `envPrefix:"LOG_"`
	Auth     auth.Config    `envPrefix:"AUTH_"`
}

// ServerConfig configuración del servidor HTTP
type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	CentralDomains  []string      `env:"CENTRAL_DOMAINS" envDefault:"localhost,127.0.0.1"`
	CorsOrigins     string        `env:"CORS_ALLOWED_ORIGINS"`
}

// IsCentralDomain indica si el host pertenece al área central
func (s ServerConfig) IsCentralDomain(host string) bool {
	for _, d := range s.CentralDomains {
		if strings.EqualFold(strings.TrimSpace(d), host) {
			return true
		}
	}
	return false
}

// DatabaseConfig configuración de la base central y del almacenamiento por tienda
type DatabaseConfig struct {
	Driver          string        `env:"DRIVER" envDefault:"sqlite"`
	Host            string        `env:"HOST" envDefault:"localhost"`
	Port            string        `env:"PORT" envDefault:"5432"`
	User            string        `env:"USER" envDefault:"postgres"`
	Password        string        `env:"PASSWORD" envDefault:"postgres"`
	DBName          string        `env:"NAME" envDefault:"multistore"`
	SSLMode         string        `env:"SSLMODE" envDefault:"disable"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"data/central.db"`
	TenantDir       string        `env:"TENANT_DIR" envDefault:"data/tenants"`
	TenantPrefix    string        `env:"TENANT_PREFIX" envDefault:"tenant_"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
	TenantMaxConns  int           `env:"TENANT_MAX_OPEN_CONNS" envDefault:"4"`
}

// RedisConfig configuración de Redis
type RedisConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"false"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Channel  string `env:"CHANNEL" envDefault:"multistore:tenancy:changes"`
}

// TenancyConfig parámetros del motor de tenencia
type TenancyConfig struct {
	ResolverCacheTTL time.Duration `env:"RESOLVER_CACHE_TTL" envDefault:"30s"`
	DrainTimeout     time.Duration `env:"DRAIN_TIMEOUT" envDefault:"30s"`
	SeedOnCreate     bool          `env:"SEED_ON_CREATE" envDefault:"true"`
}

// AssetsConfig configuración del bucket S3 de archivos por tienda
type AssetsConfig struct {
	Bucket    string `env:"S3_BUCKET"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"S3_ENDPOINT"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
}

// Enabled indica si el hook de archivos está configurado
func (a AssetsConfig) Enabled() bool {
	return a.Bucket != ""
}

// JobsConfig configuración de tareas programadas
type JobsConfig struct {
	Enabled           bool          `env:"ENABLED" envDefault:"true"`
	CartPruneSchedule string        `env:"CART_PRUNE_SCHEDULE" envDefault:"0 3 * * *"`
	CartMaxAge        time.Duration `env:"CART_MAX_AGE" envDefault:"720h"`
}

// LogConfig configuración del logger
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load carga la configuración desde variables de entorno
func Load() (*Config, error) {
	// Cargar .env si existe
	_ = godotenv.Load()

	cfg := &Config{Auth: auth.DefaultConfig()}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate valida la configuración
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("DB_SQLITE_PATH is required")
		}
		if c.Database.TenantDir == "" {
			return fmt.Errorf("DB_TENANT_DIR is required")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Tenancy.ResolverCacheTTL < 0 {
		return fmt.Errorf("TENANCY_RESOLVER_CACHE_TTL must not be negative")
	}

	// Validar configuración de Auth
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}

	return nil
}

// GetDSN retorna el DSN de PostgreSQL
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr retorna la dirección de Redis
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}
