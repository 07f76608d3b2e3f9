package tenancyapi

import (
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/tenancysrv"
	"github.com/gofiber/fiber/v2"
)

// TenantHandlers expone la administración del registro de tiendas
type TenantHandlers struct {
	registry *tenancysrv.Registry
}

// NewTenantHandlers crea los handlers de administración
func NewTenantHandlers(registry *tenancysrv.Registry) *TenantHandlers {
	return &TenantHandlers{registry: registry}
}

// RegisterRoutes registra las rutas bajo el router recibido (ya protegido)
func (h *TenantHandlers) RegisterRoutes(router fiber.Router) {
	tenants := router.Group("/tenants")
	tenants.Get("/", h.List)
	tenants.Post("/", h.Create)
	tenants.Get("/:id", h.Get)
	tenants.Patch("/:id", h.Update)
	tenants.Delete("/:id", h.Delete)
	tenants.Post("/:id/deactivate", h.Deactivate)
	tenants.Post("/:id/activate", h.Activate)
	tenants.Get("/:id/domains", h.ListDomains)
	tenants.Post("/:id/domains", h.AddDomain)

	domains := router.Group("/domains")
	domains.Put("/:domain", h.ReassignDomain)
	domains.Delete("/:domain", h.RemoveDomain)
}

func (h *TenantHandlers) List(c *fiber.Ctx) error {
	tenants, err := h.registry.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(tenancy.TenantListResponse{Tenants: tenants, Total: len(tenants)})
}

func (h *TenantHandlers) Create(c *fiber.Ctx) error {
	var req tenancy.CreateTenantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	t, err := h.registry.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *TenantHandlers) Get(c *fiber.Ctx) error {
	t, err := h.registry.Find(c.UserContext(), kernel.NewTenantID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *TenantHandlers) Update(c *fiber.Ctx) error {
	var req tenancy.UpdateTenantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	t, err := h.registry.Update(c.UserContext(), kernel.NewTenantID(c.Params("id")), req)
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *TenantHandlers) Delete(c *fiber.Ctx) error {
	if err := h.registry.Delete(c.UserContext(), kernel.NewTenantID(c.Params("id"))); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *TenantHandlers) Deactivate(c *fiber.Ctx) error {
	t, err := h.registry.Deactivate(c.UserContext(), kernel.NewTenantID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *TenantHandlers) Activate(c *fiber.Ctx) error {
	t, err := h.registry.Reactivate(c.UserContext(), kernel.NewTenantID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *TenantHandlers) ListDomains(c *fiber.Ctx) error {
	domains, err := h.registry.Domains(c.UserContext(), kernel.NewTenantID(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"domains": domains})
}

func (h *TenantHandlers) AddDomain(c *fiber.Ctx) error {
	var req tenancy.AddDomainRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	d, err := h.registry.AddDomain(c.UserContext(), kernel.NewTenantID(c.Params("id")), req.Domain)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

func (h *TenantHandlers) ReassignDomain(c *fiber.Ctx) error {
	var req tenancy.ReassignDomainRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	d, err := h.registry.ReassignDomain(c.UserContext(), c.Params("domain"), req.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(d)
}

func (h *TenantHandlers) RemoveDomain(c *fiber.Ctx) error {
	if err := h.registry.RemoveDomain(c.UserContext(), c.Params("domain")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
