package auth

import (
	"time"
)

// Config configuración del módulo de autenticación
type Config struct {
	JWT JWTConfig `envPrefix:"JWT_"`
}

// JWTConfig configuración para JWT
type JWTConfig struct {
	SecretKey      string        `env:"SECRET" envDefault:"change-me-in-production-please-32chars"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	Issuer         string        `env:"ISSUER" envDefault:"multistore"`
}

// DefaultConfig retorna configuración por defecto
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTokenTTL: 15 * time.Minute,
			Issuer:         "multistore",
		},
	}
}

// Validate valida la configuración
func (c *Config) Validate() error {
	if c.JWT.SecretKey == "" {
		return ErrMissingJWTSecret()
	}

	if len(c.JWT.SecretKey) < 32 {
		return ErrWeakJWTSecret()
	}

	if c.JWT.AccessTokenTTL <= 0 {
		return ErrInvalidTokenTTL().WithDetail("token_type", "access")
	}

	return nil
}
