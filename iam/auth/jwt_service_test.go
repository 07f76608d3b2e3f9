package auth_test

import (
	"testing"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/iam/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-with-at-least-32-characters"

func TestJWTRoundTrip(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{SecretKey: testSecret})

	token, err := svc.GenerateAccessToken("user-1", "acme", map[string]any{
		"email":    "ana@acme.com",
		"name":     "Ana",
		"is_admin": true,
	})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID.String())
	assert.Equal(t, "acme", claims.TenantID.String())
	assert.Equal(t, "ana@acme.com", claims.Email)
	assert.Equal(t, "Ana", claims.Name)
	assert.True(t, claims.IsAdmin)
	assert.False(t, claims.IsExpired())
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt, 5*time.Second)

	ac := claims.ToAuthContext()
	assert.True(t, ac.IsValid())
	assert.True(t, ac.BelongsTo("acme"))
	assert.False(t, ac.IsPlatformAdmin(), "a store admin is not a platform admin")
}

func TestJWTPlatformAdmin(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{SecretKey: testSecret})

	token, err := svc.GenerateAccessToken("root", "", map[string]any{"is_admin": true})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.True(t, claims.TenantID.IsEmpty())
	assert.True(t, claims.ToAuthContext().IsPlatformAdmin())
}

func TestJWTRejectsBadTokens(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{SecretKey: testSecret})
	valid, err := svc.GenerateAccessToken("user-1", "acme", nil)
	require.NoError(t, err)

	otherSecret, err := auth.NewJWTService(auth.JWTConfig{SecretKey: testSecret + "-other"}).
		GenerateAccessToken("user-1", "acme", nil)
	require.NoError(t, err)

	otherIssuer, err := auth.NewJWTService(auth.JWTConfig{SecretKey: testSecret, Issuer: "someone-else"}).
		GenerateAccessToken("user-1", "acme", nil)
	require.NoError(t, err)

	expired, err := auth.NewJWTService(auth.JWTConfig{SecretKey: testSecret, AccessTokenTTL: -time.Minute}).
		GenerateAccessToken("user-1", "acme", nil)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, auth.JWTClaims{UserID: "user-1", TenantID: "acme"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":      "not-a-jwt",
		"tampered":     valid + "x",
		"other secret": otherSecret,
		"other issuer": otherIssuer,
		"expired":      expired,
		"alg none":     unsigned,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(token)
			require.Error(t, err)
			assert.True(t, errx.IsType(err, errx.TypeAuthorization))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := auth.DefaultConfig()
	assert.Error(t, cfg.Validate(), "secret is required")

	cfg.JWT.SecretKey = "short"
	assert.True(t, errx.IsType(cfg.Validate(), errx.TypeValidation))

	cfg.JWT.SecretKey = testSecret
	assert.NoError(t, cfg.Validate())

	cfg.JWT.AccessTokenTTL = 0
	assert.Error(t, cfg.Validate())
}
