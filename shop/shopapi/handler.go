package shopapi

import (
	"strings"
	"time"

	"github.com/Abraxas-365/multistore/iam/auth"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/Abraxas-365/multistore/shop/shopsrv"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const sessionCookieTTL = 30 * 24 * time.Hour

// ShopHandlers exposes the storefront of the tenant bound to the request.
// Routes must be mounted behind tenancyapi.Middleware.InitializeByDomain.
type ShopHandlers struct {
	catalog *shopsrv.CatalogService
	carts   *shopsrv.CartService
	orders  *shopsrv.OrderService
	stats   *shopsrv.StatsService
}

func NewShopHandlers(
	catalog *shopsrv.CatalogService,
	carts *shopsrv.CartService,
	orders *shopsrv.OrderService,
	stats *shopsrv.StatsService,
) *ShopHandlers {
	return &ShopHandlers{
		catalog: catalog,
		carts:   carts,
		orders:  orders,
		stats:   stats,
	}
}

// RegisterRoutes mounts the storefront on a tenant router.
func (h *ShopHandlers) RegisterRoutes(router fiber.Router, am *auth.AuthMiddleware) {
	router.Get("/home", h.Home)
	router.Get("/products", h.Products)
	router.Get("/products/:slug", h.Product)

	cart := router.Group("/cart")
	cart.Get("/", h.GetCart)
	cart.Delete("/", h.ClearCart)
	cart.Post("/items", h.AddItem)
	cart.Put("/items/:id", h.UpdateItem)
	cart.Delete("/items/:id", h.RemoveItem)
	cart.Post("/claim", am.Authenticate(), h.ClaimCart)

	orders := router.Group("/orders")
	orders.Post("/", h.Checkout)
	orders.Get("/", am.Authenticate(), h.MyOrders)
	orders.Get("/:number", h.GetOrder)

	manage := router.Group("/manage", am.Authenticate(), am.RequireAdmin())
	manage.Get("/stats", h.Stats)
	manage.Post("/products", h.CreateProduct)
	manage.Get("/orders", h.ListOrders)
	manage.Put("/orders/:number/status", h.UpdateOrderStatus)
}

// owner picks the customer when logged in, the guest session otherwise,
// issuing a session cookie on first use.
func (h *ShopHandlers) owner(c *fiber.Ctx) shopsrv.CartOwner {
	if authCtx, ok := auth.GetAuthContext(c); ok {
		return shopsrv.CartOwner{Customer: authCtx.UserID}
	}
	return shopsrv.CartOwner{Session: h.session(c)}
}

func (h *ShopHandlers) session(c *fiber.Ctx) kernel.SessionID {
	name := string(kernel.CartSessionKey)
	if v := c.Cookies(name); v != "" {
		return kernel.NewSessionID(v)
	}
	if v, ok := c.Locals(name).(kernel.SessionID); ok {
		return v
	}

	id := kernel.NewSessionID(uuid.NewString())
	c.Locals(name, id)
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    id.String(),
		Path:     "/",
		Expires:  time.Now().Add(sessionCookieTTL),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return id
}

func (h *ShopHandlers) Home(c *fiber.Ctx) error {
	page, err := h.catalog.Home(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *ShopHandlers) Products(c *fiber.Ctx) error {
	products, err := h.catalog.Products(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"products": products, "total": len(products)})
}

func (h *ShopHandlers) Product(c *fiber.Ctx) error {
	p, err := h.catalog.Product(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (h *ShopHandlers) GetCart(c *fiber.Ctx) error {
	cart, err := h.carts.Get(c.UserContext(), h.owner(c))
	if err != nil {
		return err
	}
	return c.JSON(cartResponse(cart))
}

func (h *ShopHandlers) AddItem(c *fiber.Ctx) error {
	var req shop.AddCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart, err := h.carts.AddItem(c.UserContext(), h.owner(c), req)
	if err != nil {
		return err
	}
	return c.JSON(cartResponse(cart))
}

func (h *ShopHandlers) UpdateItem(c *fiber.Ctx) error {
	var req shop.UpdateCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	cart, err := h.carts.UpdateItem(c.UserContext(), h.owner(c), c.Params("id"), req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(cartResponse(cart))
}

func (h *ShopHandlers) RemoveItem(c *fiber.Ctx) error {
	cart, err := h.carts.RemoveItem(c.UserContext(), h.owner(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(cartResponse(cart))
}

func (h *ShopHandlers) ClearCart(c *fiber.Ctx) error {
	cart, err := h.carts.Clear(c.UserContext(), h.owner(c))
	if err != nil {
		return err
	}
	return c.JSON(cartResponse(cart))
}

// ClaimCart moves the guest cart of this browser to the logged-in customer.
func (h *ShopHandlers) ClaimCart(c *fiber.Ctx) error {
	authCtx, _ := auth.GetAuthContext(c)

	session := c.Cookies(string(kernel.CartSessionKey))
	if session == "" {
		cart, err := h.carts.Get(c.UserContext(), shopsrv.CartOwner{Customer: authCtx.UserID})
		if err != nil {
			return err
		}
		return c.JSON(cartResponse(cart))
	}

	cart, err := h.carts.Claim(c.UserContext(), kernel.NewSessionID(session), authCtx.UserID)
	if err != nil {
		return err
	}
	c.ClearCookie(string(kernel.CartSessionKey))
	return c.JSON(cartResponse(cart))
}

func (h *ShopHandlers) Checkout(c *fiber.Ctx) error {
	var req shop.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	order, err := h.orders.Checkout(c.UserContext(), h.owner(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *ShopHandlers) MyOrders(c *fiber.Ctx) error {
	authCtx, _ := auth.GetAuthContext(c)
	orders, err := h.orders.ListForCustomer(c.UserContext(), authCtx.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"orders": orders, "total": len(orders)})
}

// GetOrder shows an order to its customer, to a store admin, or to a guest
// who knows the order's email.
func (h *ShopHandlers) GetOrder(c *fiber.Ctx) error {
	number := c.Params("number")

	if authCtx, ok := auth.GetAuthContext(c); ok {
		if authCtx.IsAdmin {
			order, err := h.orders.Find(c.UserContext(), number)
			if err != nil {
				return err
			}
			return c.JSON(order)
		}
		order, err := h.orders.FindForCustomer(c.UserContext(), number, authCtx.UserID)
		if err != nil {
			return err
		}
		return c.JSON(order)
	}

	order, err := h.orders.Find(c.UserContext(), number)
	if err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(c.Query("email")))
	if email == "" || email != order.CustomerEmail {
		return shop.ErrOrderNotFound().WithDetail("number", number)
	}
	return c.JSON(order)
}

func (h *ShopHandlers) Stats(c *fiber.Ctx) error {
	stats, err := h.stats.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (h *ShopHandlers) CreateProduct(c *fiber.Ctx) error {
	var req shop.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	p, err := h.catalog.CreateProduct(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ShopHandlers) ListOrders(c *fiber.Ctx) error {
	orders, err := h.orders.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"orders": orders, "total": len(orders)})
}

func (h *ShopHandlers) UpdateOrderStatus(c *fiber.Ctx) error {
	var req struct {
		Status shop.OrderStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	order, err := h.orders.UpdateStatus(c.UserContext(), c.Params("number"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

type cartView struct {
	*shop.Cart
	Count      int   `json:"count"`
	TotalCents int64 `json:"total_cents"`
}

func cartResponse(c *shop.Cart) cartView {
	if c.Items == nil {
		c.Items = []shop.CartItem{}
	}
	return cartView{Cart: c, Count: c.Count(), TotalCents: c.TotalCents()}
}
