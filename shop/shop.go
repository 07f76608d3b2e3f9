// Package shop holds the store data that lives inside each tenant: catalog,
// customers, carts and orders. Nothing here knows which tenant it serves;
// repositories reach storage through the active tenant context only.
package shop

import (
	"net/http"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/pkg/kernel"
)

// LowStockThreshold is the stock level under which an active product is
// reported as running low.
const LowStockThreshold = 5

// ============================================================================
// Entities
// ============================================================================

type Customer struct {
	ID           kernel.UserID `db:"id" json:"id"`
	Name         string        `db:"name" json:"name"`
	Email        string        `db:"email" json:"email"`
	PasswordHash string        `db:"password_hash" json:"-"`
	IsAdmin      bool          `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

type Category struct {
	ID          kernel.CategoryID `db:"id" json:"id"`
	Name        string            `db:"name" json:"name"`
	Slug        string            `db:"slug" json:"slug"`
	Description string            `db:"description" json:"description"`
	IsActive    bool              `db:"is_active" json:"is_active"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

type Product struct {
	ID          kernel.ProductID   `db:"id" json:"id"`
	CategoryID  *kernel.CategoryID `db:"category_id" json:"category_id,omitempty"`
	Name        string             `db:"name" json:"name"`
	Slug        string             `db:"slug" json:"slug"`
	Description string             `db:"description" json:"description"`
	PriceCents  int64              `db:"price_cents" json:"price_cents"`
	Stock       int                `db:"stock" json:"stock"`
	IsActive    bool               `db:"is_active" json:"is_active"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

func (p *Product) CanSupply(quantity int) bool {
	return p.IsActive && quantity > 0 && p.Stock >= quantity
}

func (p *Product) IsLowStock() bool {
	return p.IsActive && p.Stock > 0 && p.Stock < LowStockThreshold
}

func (p *Product) IsOutOfStock() bool {
	return p.Stock <= 0
}

// Cart belongs either to a guest session or to a customer, never both.
type Cart struct {
	ID         kernel.CartID     `db:"id" json:"id"`
	SessionID  *kernel.SessionID `db:"session_id" json:"session_id,omitempty"`
	CustomerID *kernel.UserID    `db:"customer_id" json:"customer_id,omitempty"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`

	Items []CartItem `db:"-" json:"items"`
}

func (c *Cart) TotalCents() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.SubtotalCents()
	}
	return total
}

func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) IsGuest() bool { return c.CustomerID == nil }

type CartItem struct {
	ID        string           `db:"id" json:"id"`
	CartID    kernel.CartID    `db:"cart_id" json:"cart_id"`
	ProductID kernel.ProductID `db:"product_id" json:"product_id"`
	Quantity  int              `db:"quantity" json:"quantity"`

	// Joined from products when the cart is loaded.
	ProductName string `db:"product_name" json:"product_name"`
	PriceCents  int64  `db:"price_cents" json:"price_cents"`
	Stock       int    `db:"stock" json:"stock"`
}

func (i CartItem) SubtotalCents() int64 {
	return i.PriceCents * int64(i.Quantity)
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

type Order struct {
	ID              kernel.OrderID `db:"id" json:"id"`
	Number          string         `db:"number" json:"number"`
	CustomerID      *kernel.UserID `db:"customer_id" json:"customer_id,omitempty"`
	Status          OrderStatus    `db:"status" json:"status"`
	CustomerName    string         `db:"customer_name" json:"customer_name"`
	CustomerEmail   string         `db:"customer_email" json:"customer_email"`
	ShippingAddress string         `db:"shipping_address" json:"shipping_address"`
	TotalCents      int64          `db:"total_cents" json:"total_cents"`
	Notes           string         `db:"notes" json:"notes"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`

	Items []OrderItem `db:"-" json:"items"`
}

type OrderItem struct {
	ID             string            `db:"id" json:"id"`
	OrderID        kernel.OrderID    `db:"order_id" json:"order_id"`
	ProductID      *kernel.ProductID `db:"product_id" json:"product_id,omitempty"`
	ProductName    string            `db:"product_name" json:"product_name"`
	UnitPriceCents int64             `db:"unit_price_cents" json:"unit_price_cents"`
	Quantity       int               `db:"quantity" json:"quantity"`
}

// StoreStats summarizes the active tenant's store for its managers.
type StoreStats struct {
	TotalProducts      int         `db:"total_products" json:"total_products"`
	ActiveProducts     int         `db:"active_products" json:"active_products"`
	LowStockProducts   int         `db:"low_stock_products" json:"low_stock_products"`
	OutOfStockProducts int         `db:"out_of_stock_products" json:"out_of_stock_products"`
	TotalCategories    int         `db:"total_categories" json:"total_categories"`
	EmptyCategories    int         `db:"empty_categories" json:"empty_categories"`
	TotalCustomers     int         `db:"total_customers" json:"total_customers"`
	NewCustomers       int         `db:"new_customers" json:"new_customers"`
	TotalOrders        int         `db:"total_orders" json:"total_orders"`
	TopSelling         []TopSeller `db:"-" json:"top_selling"`
}

type TopSeller struct {
	ProductName   string `db:"product_name" json:"product_name"`
	TotalQuantity int    `db:"total_quantity" json:"total_quantity"`
}

// ============================================================================
// Requests
// ============================================================================

type AddCartItemRequest struct {
	ProductID kernel.ProductID `json:"product_id"`
	Quantity  int              `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type CheckoutRequest struct {
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	ShippingAddress string `json:"shipping_address"`
	Notes           string `json:"notes"`
}

func (r CheckoutRequest) Validate() error {
	if strings.TrimSpace(r.CustomerName) == "" {
		return ErrInvalidRequest().WithDetail("field", "customer_name")
	}
	if !strings.Contains(r.CustomerEmail, "@") {
		return ErrInvalidRequest().WithDetail("field", "customer_email")
	}
	if strings.TrimSpace(r.ShippingAddress) == "" {
		return ErrInvalidRequest().WithDetail("field", "shipping_address")
	}
	return nil
}

type CreateProductRequest struct {
	CategoryID  *kernel.CategoryID `json:"category_id,omitempty"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Description string             `json:"description"`
	PriceCents  int64              `json:"price_cents"`
	Stock       int                `json:"stock"`
}

func (r CreateProductRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidRequest().WithDetail("field", "name")
	}
	if r.PriceCents < 0 {
		return ErrInvalidRequest().WithDetail("field", "price_cents")
	}
	if r.Stock < 0 {
		return ErrInvalidRequest().WithDetail("field", "stock")
	}
	return nil
}

// Slugify turns a display name into a URL slug.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("SHOP")

var (
	CodeProductNotFound   = ErrRegistry.Register("PRODUCT_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Product not found")
	CodeCategoryNotFound  = ErrRegistry.Register("CATEGORY_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Category not found")
	CodeCustomerNotFound  = ErrRegistry.Register("CUSTOMER_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Customer not found")
	CodeCartItemNotFound  = ErrRegistry.Register("CART_ITEM_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Cart item not found")
	CodeOrderNotFound     = ErrRegistry.Register("ORDER_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Order not found")
	CodeCustomerExists    = ErrRegistry.Register("CUSTOMER_EXISTS", errx.TypeConflict, http.StatusConflict, "Customer email already registered")
	CodeSlugTaken         = ErrRegistry.Register("SLUG_TAKEN", errx.TypeConflict, http.StatusConflict, "Slug already in use")
	CodeInsufficientStock = ErrRegistry.Register("INSUFFICIENT_STOCK", errx.TypeBusiness, http.StatusUnprocessableEntity, "Not enough items in stock")
	CodeEmptyCart         = ErrRegistry.Register("EMPTY_CART", errx.TypeBusiness, http.StatusUnprocessableEntity, "Cart is empty")
	CodeInvalidRequest    = ErrRegistry.Register("INVALID_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Invalid request")
)

func ErrProductNotFound() *errx.Error {
	return ErrRegistry.New(CodeProductNotFound)
}

func ErrCategoryNotFound() *errx.Error {
	return ErrRegistry.New(CodeCategoryNotFound)
}

func ErrCustomerNotFound() *errx.Error {
	return ErrRegistry.New(CodeCustomerNotFound)
}

func ErrCartItemNotFound() *errx.Error {
	return ErrRegistry.New(CodeCartItemNotFound)
}

func ErrOrderNotFound() *errx.Error {
	return ErrRegistry.New(CodeOrderNotFound)
}

func ErrCustomerExists() *errx.Error {
	return ErrRegistry.New(CodeCustomerExists)
}

func ErrSlugTaken() *errx.Error {
	return ErrRegistry.New(CodeSlugTaken)
}

func ErrInsufficientStock() *errx.Error {
	return ErrRegistry.New(CodeInsufficientStock)
}

func ErrEmptyCart() *errx.Error {
	return ErrRegistry.New(CodeEmptyCart)
}

func ErrInvalidRequest() *errx.Error {
	return ErrRegistry.New(CodeInvalidRequest)
}
