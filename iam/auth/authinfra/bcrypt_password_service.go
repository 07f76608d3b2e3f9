package authinfra

import (
	"github.com/Abraxas-365/multistore/iam/auth"
	"golang.org/x/crypto/bcrypt"
)

// BcryptPasswordService implementación del servicio de contraseñas usando bcrypt
type BcryptPasswordService struct {
	cost int
}

// NewBcryptPasswordService crea una nueva instancia del servicio de contraseñas
func NewBcryptPasswordService() auth.PasswordService {
	return &BcryptPasswordService{
		cost: bcrypt.DefaultCost,
	}
}

// NewBcryptPasswordServiceWithCost permite un costo menor (seeders y tests)
func NewBcryptPasswordServiceWithCost(cost int) auth.PasswordService {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return &BcryptPasswordService{cost: cost}
}

// HashPassword hashea una contraseña
func (s *BcryptPasswordService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// VerifyPassword verifica una contraseña contra su hash
func (s *BcryptPasswordService) VerifyPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}
