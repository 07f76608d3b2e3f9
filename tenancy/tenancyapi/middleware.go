package tenancyapi

import (
	"context"

	"github.com/Abraxas-365/multistore/iam"
	"github.com/Abraxas-365/multistore/iam/auth"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TenantResolver maps a request host to its tenant
type TenantResolver interface {
	Resolve(ctx context.Context, host string) (*tenancy.Tenant, error)
}

// ContextSwitcher binds and unbinds a tenant for one unit of work
type ContextSwitcher interface {
	Activate(ctx context.Context, t *tenancy.Tenant) error
	Deactivate(ctx context.Context) error
}

// Middleware agrupa los middleware de identificación de tienda
type Middleware struct {
	resolver  TenantResolver
	switcher  ContextSwitcher
	isCentral func(host string) bool
	logger    *zap.Logger
}

// NewMiddleware crea los middleware; isCentral reconoce los dominios centrales
func NewMiddleware(resolver TenantResolver, switcher ContextSwitcher, isCentral func(host string) bool, logger *zap.Logger) *Middleware {
	return &Middleware{
		resolver:  resolver,
		switcher:  switcher,
		isCentral: isCentral,
		logger:    logger,
	}
}

// InitializeByDomain abre una unidad de trabajo por request, resuelve la
// tienda por Host y la deja activa hasta que responde el resto de la cadena.
// La desactivación corre siempre, también si un handler entra en pánico.
func (m *Middleware) InitializeByDomain() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := scope.Begin(c.UserContext())
		c.SetUserContext(ctx)

		t, err := m.resolver.Resolve(ctx, c.Hostname())
		if err != nil {
			return err
		}

		if err := m.switcher.Activate(ctx, t); err != nil {
			return err
		}
		defer func() {
			if err := m.switcher.Deactivate(ctx); err != nil {
				m.logger.Error("failed to deactivate tenant",
					zap.String("tenant_id", t.ID.String()), zap.Error(err))
			}
		}()

		c.Locals(TenantLocalsKey, t)
		return c.Next()
	}
}

// PreventCentralDomains bloquea las rutas de tienda en los dominios centrales
func (m *Middleware) PreventCentralDomains() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.isCentral(c.Hostname()) {
			return fiber.ErrNotFound
		}
		return c.Next()
	}
}

// CentralOnly bloquea las rutas centrales en los dominios de tienda
func (m *Middleware) CentralOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.isCentral(c.Hostname()) {
			return fiber.ErrNotFound
		}
		return c.Next()
	}
}

// RequireMembership rechaza a un usuario autenticado que no pertenece a la
// tienda activa. Los invitados y los administradores de plataforma pasan.
func (m *Middleware) RequireMembership() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authCtx, ok := auth.GetAuthContext(c)
		if !ok || authCtx.IsPlatformAdmin() {
			return c.Next()
		}

		id, err := scope.CurrentID(c.UserContext())
		if err != nil {
			return err
		}
		if !authCtx.BelongsTo(id) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": iam.ErrNotAMember().Error(),
			})
		}
		return c.Next()
	}
}

// TenantLocalsKey guarda la tienda resuelta en fiber.Locals
const TenantLocalsKey = "tenant"

// CurrentTenant retorna la tienda resuelta para el request
func CurrentTenant(c *fiber.Ctx) (*tenancy.Tenant, bool) {
	t, ok := c.Locals(TenantLocalsKey).(*tenancy.Tenant)
	return t, ok
}
