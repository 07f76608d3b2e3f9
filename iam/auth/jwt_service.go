package auth

import (
	"fmt"
	"time"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

const audience = "multistore-api"

// JWTService implementación del TokenService usando JWT
type JWTService struct {
	secretKey      []byte
	accessTokenTTL time.Duration
	issuer         string
}

// NewJWTService crea una nueva instancia del servicio JWT
func NewJWTService(cfg JWTConfig) *JWTService {
	ttl := cfg.AccessTokenTTL
	if ttl == 0 {
		ttl = 15 * time.Minute // Por defecto 15 minutos
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "multistore"
	}

	return &JWTService{
		secretKey:      []byte(cfg.SecretKey),
		accessTokenTTL: ttl,
		issuer:         issuer,
	}
}

// JWTClaims claims personalizados; TenantID vacío indica un usuario central
type JWTClaims struct {
	UserID   kernel.UserID   `json:"user_id"`
	TenantID kernel.TenantID `json:"tenant_id,omitempty"`
	Email    string          `json:"email"`
	Name     string          `json:"name"`
	IsAdmin  bool            `json:"is_admin"`
	jwt.RegisteredClaims
}

// GenerateAccessToken genera un token de acceso JWT
func (j *JWTService) GenerateAccessToken(userID kernel.UserID, tenantID kernel.TenantID, claims map[string]any) (string, error) {
	now := time.Now()

	// Extraer claims adicionales
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	isAdmin, _ := claims["is_admin"].(bool)

	jwtClaims := JWTClaims{
		UserID:   userID,
		TenantID: tenantID,
		Email:    email,
		Name:     name,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   userID.String(),
			Audience:  []string{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims)

	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", ErrTokenGenerationFailed().WithDetail("error", err.Error())
	}

	return tokenString, nil
}

// ValidateAccessToken valida y decodifica un token de acceso
func (j *JWTService) ValidateAccessToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		// Verificar el método de firma
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithAudience(audience))

	if err != nil {
		return nil, ErrTokenValidationFailed().WithDetail("error", err.Error())
	}

	if !token.Valid {
		return nil, ErrTokenValidationFailed().WithDetail("error", "token is invalid")
	}

	jwtClaims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, ErrTokenValidationFailed().WithDetail("error", "invalid claims type")
	}

	return &TokenClaims{
		UserID:    jwtClaims.UserID,
		TenantID:  jwtClaims.TenantID,
		Email:     jwtClaims.Email,
		Name:      jwtClaims.Name,
		IsAdmin:   jwtClaims.IsAdmin,
		IssuedAt:  jwtClaims.IssuedAt.Time,
		ExpiresAt: jwtClaims.ExpiresAt.Time,
	}, nil
}
