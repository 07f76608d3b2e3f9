package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abraxas-365/multistore/iam/auth"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthApp(t *testing.T) (*fiber.App, *auth.JWTService) {
	t.Helper()
	tokens := auth.NewJWTService(auth.JWTConfig{SecretKey: testSecret})
	am := auth.NewAuthMiddleware(tokens)

	whoami := func(c *fiber.Ctx) error {
		ac, ok := auth.GetAuthContext(c)
		if !ok {
			return c.SendString("guest")
		}
		return c.SendString(ac.UserID.String())
	}

	app := fiber.New()
	app.Get("/private", am.Authenticate(), whoami)
	app.Get("/optional", am.Optional(), whoami)
	app.Get("/admin", am.Authenticate(), am.RequireAdmin(), whoami)
	app.Get("/platform", am.Authenticate(), am.RequirePlatformAdmin(), whoami)
	return app, tokens
}

func token(t *testing.T, tokens *auth.JWTService, user kernel.UserID, tenant kernel.TenantID, admin bool) string {
	t.Helper()
	tok, err := tokens.GenerateAccessToken(user, tenant, map[string]any{"is_admin": admin})
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	app, tokens := newAuthApp(t)

	member := token(t, tokens, "ana", "acme", false)
	storeAdmin := token(t, tokens, "bob", "acme", true)
	platformAdmin := token(t, tokens, "root", "", true)

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"private without token", "/private", "", http.StatusUnauthorized},
		{"private with bad token", "/private", "junk", http.StatusUnauthorized},
		{"private with token", "/private", member, http.StatusOK},
		{"optional as guest", "/optional", "", http.StatusOK},
		{"optional with bad token", "/optional", "junk", http.StatusUnauthorized},
		{"admin as member", "/admin", member, http.StatusForbidden},
		{"admin as store admin", "/admin", storeAdmin, http.StatusOK},
		{"platform as store admin", "/platform", storeAdmin, http.StatusForbidden},
		{"platform as platform admin", "/platform", platformAdmin, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestAuthMiddlewareReadsCookie(t *testing.T) {
	app, tokens := newAuthApp(t)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token(t, tokens, "ana", "acme", false)})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
