package shopsrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartOwner identifies whose cart to use. A customer wins over a session.
type CartOwner struct {
	Session  kernel.SessionID
	Customer kernel.UserID
}

func (o CartOwner) IsZero() bool {
	return o.Session.IsEmpty() && o.Customer.IsEmpty()
}

// CartService manages carts in the active tenant.
type CartService struct {
	carts   shop.CartRepository
	catalog shop.CatalogRepository
	tx      shop.Transactor
	logger  *zap.Logger
}

func NewCartService(carts shop.CartRepository, catalog shop.CatalogRepository, tx shop.Transactor, logger *zap.Logger) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		tx:      tx,
		logger:  logger,
	}
}

// Get returns the owner's cart with its items, creating an empty one if needed.
func (s *CartService) Get(ctx context.Context, owner CartOwner) (*shop.Cart, error) {
	cart, err := s.getOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cart)
}

func (s *CartService) find(ctx context.Context, owner CartOwner) (*shop.Cart, error) {
	if !owner.Customer.IsEmpty() {
		return s.carts.FindByCustomer(ctx, owner.Customer)
	}
	return s.carts.FindBySession(ctx, owner.Session)
}

func (s *CartService) getOrCreate(ctx context.Context, owner CartOwner) (*shop.Cart, error) {
	if owner.IsZero() {
		return nil, shop.ErrInvalidRequest().WithDetail("reason", "cart owner required")
	}

	cart, err := s.find(ctx, owner)
	if err != nil || cart != nil {
		return cart, err
	}

	now := time.Now().UTC()
	c := shop.Cart{
		ID:        kernel.NewCartID(uuid.NewString()),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !owner.Customer.IsEmpty() {
		customer := owner.Customer
		c.CustomerID = &customer
	} else {
		session := owner.Session
		c.SessionID = &session
	}

	if err := s.carts.Create(ctx, c); err != nil {
		// A concurrent request created it first
		if errx.IsType(err, errx.TypeConflict) {
			return s.find(ctx, owner)
		}
		return nil, err
	}
	return &c, nil
}

func (s *CartService) load(ctx context.Context, cart *shop.Cart) (*shop.Cart, error) {
	items, err := s.carts.Items(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return cart, nil
}

// AddItem adds quantity units of a product, merging with an existing line.
func (s *CartService) AddItem(ctx context.Context, owner CartOwner, req shop.AddCartItemRequest) (*shop.Cart, error) {
	if req.Quantity <= 0 {
		return nil, shop.ErrInvalidRequest().WithDetail("field", "quantity")
	}

	var cart *shop.Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		cart, err = s.getOrCreate(ctx, owner)
		if err != nil {
			return err
		}
		return s.addToCart(ctx, cart.ID, req.ProductID, req.Quantity)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cart)
}

func (s *CartService) addToCart(ctx context.Context, cartID kernel.CartID, productID kernel.ProductID, quantity int) error {
	product, err := s.catalog.FindProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !product.IsActive {
		return shop.ErrProductNotFound().WithDetail("product_id", productID.String())
	}

	existing, err := s.carts.FindItem(ctx, cartID, productID)
	if err != nil {
		return err
	}

	total := quantity
	if existing != nil {
		total += existing.Quantity
	}
	if !product.CanSupply(total) {
		return shop.ErrInsufficientStock().
			WithDetail("product_id", productID.String()).
			WithDetail("available", product.Stock)
	}

	if existing != nil {
		return s.carts.SetQuantity(ctx, existing.ID, total)
	}
	return s.carts.AddItem(ctx, shop.CartItem{
		ID:        uuid.NewString(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
	})
}

// UpdateItem sets a line's quantity; zero removes it.
func (s *CartService) UpdateItem(ctx context.Context, owner CartOwner, itemID string, quantity int) (*shop.Cart, error) {
	if quantity < 0 {
		return nil, shop.ErrInvalidRequest().WithDetail("field", "quantity")
	}

	cart, item, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return nil, err
	}

	if quantity == 0 {
		err = s.carts.RemoveItem(ctx, item.ID)
	} else {
		if quantity > item.Stock {
			return nil, shop.ErrInsufficientStock().
				WithDetail("product_id", item.ProductID.String()).
				WithDetail("available", item.Stock)
		}
		err = s.carts.SetQuantity(ctx, item.ID, quantity)
	}
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, owner CartOwner, itemID string) (*shop.Cart, error) {
	return s.UpdateItem(ctx, owner, itemID, 0)
}

// ownedItem resolves an item only if it belongs to the owner's cart.
func (s *CartService) ownedItem(ctx context.Context, owner CartOwner, itemID string) (*shop.Cart, *shop.CartItem, error) {
	cart, err := s.getOrCreate(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	item, err := s.carts.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil || item.CartID != cart.ID {
		return nil, nil, shop.ErrCartItemNotFound().WithDetail("item_id", itemID)
	}
	return cart, item, nil
}

func (s *CartService) Clear(ctx context.Context, owner CartOwner) (*shop.Cart, error) {
	cart, err := s.getOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.carts.Clear(ctx, cart.ID); err != nil {
		return nil, err
	}
	cart.Items = []shop.CartItem{}
	return cart, nil
}

// Claim moves a guest cart to a customer after login. If the customer
// already has a cart the guest lines are merged into it, capped by stock.
func (s *CartService) Claim(ctx context.Context, session kernel.SessionID, customer kernel.UserID) (*shop.Cart, error) {
	if session.IsEmpty() || customer.IsEmpty() {
		return nil, shop.ErrInvalidRequest().WithDetail("reason", "session and customer required")
	}

	var target *shop.Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		guest, err := s.carts.FindBySession(ctx, session)
		if err != nil {
			return err
		}
		owned, err := s.carts.FindByCustomer(ctx, customer)
		if err != nil {
			return err
		}

		switch {
		case guest == nil:
			target, err = s.getOrCreate(ctx, CartOwner{Customer: customer})
			return err
		case owned == nil:
			if err := s.carts.AssignCustomer(ctx, guest.ID, customer); err != nil {
				return err
			}
			guest.SessionID = nil
			guest.CustomerID = &customer
			target = guest
			return nil
		}

		items, err := s.carts.Items(ctx, guest.ID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := s.mergeItem(ctx, owned.ID, it); err != nil {
				return err
			}
		}
		target = owned
		return s.carts.Delete(ctx, guest.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("guest cart claimed",
		zap.String("session", session.String()),
		zap.String("customer_id", customer.String()),
		zap.String("cart_id", target.ID.String()))
	return s.load(ctx, target)
}

func (s *CartService) mergeItem(ctx context.Context, cartID kernel.CartID, it shop.CartItem) error {
	existing, err := s.carts.FindItem(ctx, cartID, it.ProductID)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.carts.AddItem(ctx, shop.CartItem{
			ID:        uuid.NewString(),
			CartID:    cartID,
			ProductID: it.ProductID,
			Quantity:  min(it.Quantity, max(it.Stock, 1)),
		})
	}
	return s.carts.SetQuantity(ctx, existing.ID, min(existing.Quantity+it.Quantity, max(it.Stock, existing.Quantity)))
}

// PruneGuestCarts removes guest carts idle for longer than maxAge.
func (s *CartService) PruneGuestCarts(ctx context.Context, maxAge time.Duration) (int64, error) {
	return s.carts.DeleteGuestCartsBefore(ctx, time.Now().UTC().Add(-maxAge))
}
