package auth

import (
	"github.com/Abraxas-365/multistore/pkg/kernel"
)

// TokenService define el contrato para emisión y validación de tokens
type TokenService interface {
	GenerateAccessToken(userID kernel.UserID, tenantID kernel.TenantID, claims map[string]any) (string, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
}

// PasswordService define el contrato para el hash de contraseñas
type PasswordService interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hashedPassword, password string) bool
}
