package shop

import (
	"context"
	"time"

	"github.com/Abraxas-365/multistore/pkg/kernel"
)

// Every repository operates on the tenant bound to ctx and fails with
// tenancy.NoActiveContext when there is none.

type CatalogRepository interface {
	CreateCategory(ctx context.Context, c Category) error
	FindCategoryBySlug(ctx context.Context, slug string) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateProduct(ctx context.Context, p Product) error
	FindProduct(ctx context.Context, id kernel.ProductID) (*Product, error)
	FindProductBySlug(ctx context.Context, slug string) (*Product, error)
	ListProducts(ctx context.Context, onlyActive bool) ([]Product, error)
	CountProducts(ctx context.Context) (int, error)
	// DecrementStock fails with ErrInsufficientStock when the stock is short.
	DecrementStock(ctx context.Context, id kernel.ProductID, quantity int) error
}

type CustomerRepository interface {
	Create(ctx context.Context, c Customer) error
	FindByID(ctx context.Context, id kernel.UserID) (*Customer, error)
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	List(ctx context.Context) ([]Customer, error)
}

type CartRepository interface {
	FindBySession(ctx context.Context, session kernel.SessionID) (*Cart, error)
	FindByCustomer(ctx context.Context, customer kernel.UserID) (*Cart, error)
	Create(ctx context.Context, c Cart) error
	AssignCustomer(ctx context.Context, id kernel.CartID, customer kernel.UserID) error
	Delete(ctx context.Context, id kernel.CartID) error
	Items(ctx context.Context, id kernel.CartID) ([]CartItem, error)
	FindItem(ctx context.Context, id kernel.CartID, product kernel.ProductID) (*CartItem, error)
	FindItemByID(ctx context.Context, itemID string) (*CartItem, error)
	AddItem(ctx context.Context, item CartItem) error
	SetQuantity(ctx context.Context, itemID string, quantity int) error
	RemoveItem(ctx context.Context, itemID string) error
	Clear(ctx context.Context, id kernel.CartID) error
	// DeleteGuestCartsBefore removes session carts untouched since cutoff.
	DeleteGuestCartsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OrderRepository interface {
	Create(ctx context.Context, o Order) error
	FindByNumber(ctx context.Context, number string) (*Order, error)
	ListByCustomer(ctx context.Context, customer kernel.UserID) ([]Order, error)
	List(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id kernel.OrderID, status OrderStatus) error
}

type StatsRepository interface {
	Stats(ctx context.Context, since time.Time) (*StoreStats, error)
}

// Transactor runs fn in a transaction on the active tenant's storage.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
