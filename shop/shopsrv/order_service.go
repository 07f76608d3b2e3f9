package shopsrv

import (
	"context"
	"strings"
	"time"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService turns carts into orders in the active tenant.
type OrderService struct {
	orders  shop.OrderRepository
	carts   *CartService
	catalog shop.CatalogRepository
	tx      shop.Transactor
	logger  *zap.Logger
	now     func() time.Time
}

func NewOrderService(orders shop.OrderRepository, carts *CartService, catalog shop.CatalogRepository, tx shop.Transactor, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:  orders,
		carts:   carts,
		catalog: catalog,
		tx:      tx,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// OrderNumber formats an invoice number such as INV-20240131-9F86D081.
func OrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "INV-" + at.Format("20060102") + "-" + suffix
}

// Checkout writes the order, decrements stock and empties the cart in one
// transaction. Nothing is written when any line is short of stock.
func (s *OrderService) Checkout(ctx context.Context, owner CartOwner, req shop.CheckoutRequest) (*shop.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var order shop.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cart, err := s.carts.Get(ctx, owner)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return shop.ErrEmptyCart()
		}

		now := s.now()
		order = shop.Order{
			ID:              kernel.NewOrderID(uuid.NewString()),
			Number:          OrderNumber(now),
			Status:          shop.OrderPending,
			CustomerName:    strings.TrimSpace(req.CustomerName),
			CustomerEmail:   strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
			ShippingAddress: strings.TrimSpace(req.ShippingAddress),
			Notes:           req.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if !owner.Customer.IsEmpty() {
			customer := owner.Customer
			order.CustomerID = &customer
		}

		for _, it := range cart.Items {
			if err := s.catalog.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
			productID := it.ProductID
			order.Items = append(order.Items, shop.OrderItem{
				ID:             uuid.NewString(),
				OrderID:        order.ID,
				ProductID:      &productID,
				ProductName:    it.ProductName,
				UnitPriceCents: it.PriceCents,
				Quantity:       it.Quantity,
			})
			order.TotalCents += it.SubtotalCents()
		}

		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}
		_, err = s.carts.Clear(ctx, owner)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("number", order.Number),
		zap.Int64("total_cents", order.TotalCents),
		zap.Int("items", len(order.Items)))
	return &order, nil
}

func (s *OrderService) Find(ctx context.Context, number string) (*shop.Order, error) {
	return s.orders.FindByNumber(ctx, number)
}

// FindForCustomer hides orders that belong to someone else.
func (s *OrderService) FindForCustomer(ctx context.Context, number string, customer kernel.UserID) (*shop.Order, error) {
	o, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if o.CustomerID == nil || *o.CustomerID != customer {
		return nil, shop.ErrOrderNotFound().WithDetail("number", number)
	}
	return o, nil
}

func (s *OrderService) ListForCustomer(ctx context.Context, customer kernel.UserID) ([]shop.Order, error) {
	return s.orders.ListByCustomer(ctx, customer)
}

func (s *OrderService) List(ctx context.Context) ([]shop.Order, error) {
	return s.orders.List(ctx)
}

func (s *OrderService) UpdateStatus(ctx context.Context, number string, status shop.OrderStatus) (*shop.Order, error) {
	if !status.IsValid() {
		return nil, shop.ErrInvalidRequest().WithDetail("field", "status")
	}
	o, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, o.ID, status); err != nil {
		return nil, err
	}
	o.Status = status
	return o, nil
}
