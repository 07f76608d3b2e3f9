package shopsrv

import (
	"context"
	"strings"
	"time"

	"github.com/Abraxas-365/multistore/iam/auth"
	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/google/uuid"
)

// CustomerService manages the customers of the active tenant.
type CustomerService struct {
	customers shop.CustomerRepository
	passwords auth.PasswordService
}

func NewCustomerService(customers shop.CustomerRepository, passwords auth.PasswordService) *CustomerService {
	return &CustomerService{customers: customers, passwords: passwords}
}

type RegisterCustomerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

func (s *CustomerService) Register(ctx context.Context, req RegisterCustomerRequest) (*shop.Customer, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, shop.ErrInvalidRequest().WithDetail("field", "name")
	}
	if !strings.Contains(req.Email, "@") {
		return nil, shop.ErrInvalidRequest().WithDetail("field", "email")
	}
	if len(req.Password) < 8 {
		return nil, shop.ErrInvalidRequest().WithDetail("field", "password")
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := shop.Customer{
		ID:           kernel.NewUserID(uuid.NewString()),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		IsAdmin:      req.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CustomerService) FindByEmail(ctx context.Context, email string) (*shop.Customer, error) {
	return s.customers.FindByEmail(ctx, email)
}

func (s *CustomerService) List(ctx context.Context) ([]shop.Customer, error) {
	return s.customers.List(ctx)
}
