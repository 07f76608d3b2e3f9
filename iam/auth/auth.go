package auth

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/pkg/kernel"
)

// ============================================================================
// Token Claims
// ============================================================================

// TokenClaims información extraída de un token de acceso válido
type TokenClaims struct {
	UserID    kernel.UserID   `json:"user_id"`
	TenantID  kernel.TenantID `json:"tenant_id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	IsAdmin   bool            `json:"is_admin"`
	IssuedAt  time.Time       `json:"iat"`
	ExpiresAt time.Time       `json:"exp"`
}

// IsExpired verifica si el token ya expiró
func (c *TokenClaims) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// ToAuthContext convierte los claims al contexto de autenticación del request
func (c *TokenClaims) ToAuthContext() *kernel.AuthContext {
	return &kernel.AuthContext{
		UserID:   c.UserID,
		TenantID: c.TenantID,
		IsAdmin:  c.IsAdmin,
		Email:    c.Email,
		Name:     c.Name,
	}
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("AUTH")

// Códigos de error
var (
	CodeTokenGenerationFailed = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Error al generar token")
	CodeTokenValidationFailed = ErrRegistry.Register("TOKEN_VALIDATION_FAILED", errx.TypeAuthorization, http.StatusUnauthorized, "Error al validar token")
	CodeMissingJWTSecret      = ErrRegistry.Register("MISSING_JWT_SECRET", errx.TypeValidation, http.StatusBadRequest, "JWT secret key is required")
	CodeWeakJWTSecret         = ErrRegistry.Register("WEAK_JWT_SECRET", errx.TypeValidation, http.StatusBadRequest, "JWT secret key must be at least 32 characters")
	CodeInvalidTokenTTL       = ErrRegistry.Register("INVALID_TOKEN_TTL", errx.TypeValidation, http.StatusBadRequest, "Invalid token TTL")
)

// Helper functions para crear errores
func ErrTokenGenerationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenGenerationFailed)
}

func ErrTokenValidationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenValidationFailed)
}

func ErrMissingJWTSecret() *errx.Error {
	return ErrRegistry.New(CodeMissingJWTSecret)
}

func ErrWeakJWTSecret() *errx.Error {
	return ErrRegistry.New(CodeWeakJWTSecret)
}

func ErrInvalidTokenTTL() *errx.Error {
	return ErrRegistry.New(CodeInvalidTokenTTL)
}
