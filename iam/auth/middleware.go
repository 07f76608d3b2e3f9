package auth

import (
	"strings"

	"github.com/Abraxas-365/multistore/iam"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware middleware para autenticación JWT con Fiber
type AuthMiddleware struct {
	tokenService TokenService
}

// NewAuthMiddleware crea un nuevo middleware de autenticación
func NewAuthMiddleware(tokenService TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate middleware que exige un token JWT válido
func (am *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": iam.ErrUnauthorized().Error(),
			})
		}

		claims, err := am.tokenService.ValidateAccessToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Locals(string(kernel.AuthContextKey), claims.ToAuthContext())
		return c.Next()
	}
}

// Optional valida el token si viene; sin token el request sigue como invitado
func (am *AuthMiddleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return c.Next()
		}

		claims, err := am.tokenService.ValidateAccessToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": iam.ErrInvalidToken().Error(),
			})
		}

		c.Locals(string(kernel.AuthContextKey), claims.ToAuthContext())
		return c.Next()
	}
}

// RequireAdmin middleware que requiere permisos de administrador
func (am *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authContext, ok := GetAuthContext(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": iam.ErrUnauthorized().Error(),
			})
		}

		if !authContext.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": iam.ErrAccessDenied().Error(),
			})
		}

		return c.Next()
	}
}

// RequirePlatformAdmin exige un administrador central (sin tienda asociada)
func (am *AuthMiddleware) RequirePlatformAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authContext, ok := GetAuthContext(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": iam.ErrUnauthorized().Error(),
			})
		}

		if !authContext.IsPlatformAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": iam.ErrAccessDenied().Error(),
			})
		}

		return c.Next()
	}
}

// GetAuthContext helper para extraer el contexto de autenticación de Fiber
func GetAuthContext(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	authContext, ok := c.Locals(string(kernel.AuthContextKey)).(*kernel.AuthContext)
	return authContext, ok && authContext != nil && authContext.IsValid()
}

// extractToken busca el token en el header Authorization y luego en la cookie
func extractToken(c *fiber.Ctx) string {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1]
		}
	}
	return c.Cookies("access_token")
}
