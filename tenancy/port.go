package tenancy

import (
	"context"
	"time"

	"github.com/Abraxas-365/multistore/pkg/kernel"
)

// TenantRepository define el contrato para la persistencia central de tiendas
type TenantRepository interface {
	FindByID(ctx context.Context, id kernel.TenantID) (*Tenant, error)
	FindAll(ctx context.Context) ([]*Tenant, error)
	FindActive(ctx context.Context) ([]*Tenant, error)
	Create(ctx context.Context, t *Tenant) error
	Update(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, id kernel.TenantID) error
}

// DomainRepository define el contrato para la tabla de dominios
type DomainRepository interface {
	FindTenantByDomain(ctx context.Context, host string) (*Tenant, error)
	FindByDomain(ctx context.Context, host string) (*Domain, error)
	FindByTenant(ctx context.Context, id kernel.TenantID) ([]Domain, error)
	Create(ctx context.Context, d Domain) error
	Reassign(ctx context.Context, host string, id kernel.TenantID) error
	Delete(ctx context.Context, host string) error
	DeleteByTenant(ctx context.Context, id kernel.TenantID) error
}

// Transactor ejecuta fn dentro de una transacción de la base central.
// Los repositorios que reciben el ctx de fn participan de la misma transacción.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Hook es un paso de aprovisionamiento ejecutado al crear y al borrar una tienda.
// Si NeedsContext es true, Provision corre dentro del contexto recién activado
// de la tienda. Deprovision corre siempre en el contexto central: al borrar, el
// almacenamiento ya está retirado y no se puede activar.
type Hook interface {
	Name() string
	NeedsContext() bool
	Provision(ctx context.Context, t *Tenant) error
	Deprovision(ctx context.Context, t *Tenant) error
}

// ChangeOp identifica la mutación del registro
type ChangeOp string

const (
	ChangeCreated     ChangeOp = "created"
	ChangeUpdated     ChangeOp = "updated"
	ChangeDeleted     ChangeOp = "deleted"
	ChangeDomainAdded ChangeOp = "domain_added"
	ChangeDomainMoved ChangeOp = "domain_moved"
	ChangeDomainGone  ChangeOp = "domain_removed"
)

// Change describe una mutación confirmada del registro
type Change struct {
	Op       ChangeOp        `json:"op"`
	TenantID kernel.TenantID `json:"tenant_id"`
	Domain   string          `json:"domain,omitempty"`
	Origin   string          `json:"origin"`
	At       time.Time       `json:"at"`
}

// ChangeNotifier difunde mutaciones del registro a otras réplicas
type ChangeNotifier interface {
	Publish(ctx context.Context, change Change) error
}
