package tenancy

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Abraxas-365/multistore/pkg/kernel"
)

// ============================================================================
// Tenant Entity
// ============================================================================

// Tenant es una tienda registrada en la plataforma
type Tenant struct {
	ID        kernel.TenantID `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Email     string          `db:"email" json:"email"`
	Logo      *string         `db:"logo" json:"logo,omitempty"`
	IsActive  bool            `db:"is_active" json:"is_active"`
	Data      Metadata        `db:"data" json:"data"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`

	// Domains se carga bajo demanda, no es una columna
	Domains []string `db:"-" json:"domains,omitempty"`
}

// ============================================================================
// Domain Methods
// ============================================================================

// Clone retorna una copia independiente; el contexto activo guarda una copia
// para que mutaciones posteriores del llamador no lo alteren
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	if t.Logo != nil {
		logo := *t.Logo
		c.Logo = &logo
	}
	c.Data = t.Data.Clone()
	if t.Domains != nil {
		c.Domains = append([]string(nil), t.Domains...)
	}
	return &c
}

// Deactivate marca la tienda como inactiva sin borrar sus datos
func (t *Tenant) Deactivate() {
	t.IsActive = false
	t.UpdatedAt = time.Now()
}

// Reactivate vuelve a habilitar la tienda
func (t *Tenant) Reactivate() {
	t.IsActive = true
	t.UpdatedAt = time.Now()
}

// StoreType retorna el tipo de tienda guardado en la metadata
func (t *Tenant) StoreType() string {
	return t.Data.String("store_type")
}

// ApplyUpdate aplica los campos presentes en la petición
func (t *Tenant) ApplyUpdate(req UpdateTenantRequest) error {
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return ErrInvalidTenant().WithDetail("field", "name")
		}
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		t.Email = strings.TrimSpace(*req.Email)
	}
	if req.Logo != nil {
		logo := strings.TrimSpace(*req.Logo)
		if logo == "" {
			t.Logo = nil
		} else {
			t.Logo = &logo
		}
	}
	for k, v := range req.Data {
		if t.Data == nil {
			t.Data = Metadata{}
		}
		if v == nil {
			delete(t.Data, k)
			continue
		}
		t.Data[k] = v
	}
	t.UpdatedAt = time.Now()
	return nil
}

// ============================================================================
// Tenant Key
// ============================================================================

// La clave nombra archivos o schemas de almacenamiento, por eso es restrictiva
var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]{0,47}$`)

// ValidateKey verifica que la clave sea usable como nombre de almacenamiento
func ValidateKey(id kernel.TenantID) error {
	if !keyPattern.MatchString(id.String()) {
		return ErrInvalidTenantKey().WithDetail("tenant_id", id.String())
	}
	return nil
}

// ============================================================================
// Metadata
// ============================================================================

// Metadata es el mapa abierto de atributos de la tienda, guardado como JSON
type Metadata map[string]any

// Value implementa driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implementa sql.Scanner
func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("tenancy: cannot scan %T into Metadata", src)
	}
	if len(raw) == 0 {
		*m = Metadata{}
		return nil
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// String retorna el valor como texto o "" si no existe
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Clone copia el primer nivel del mapa
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ============================================================================
// Domain Entity
// ============================================================================

// Domain es un hostname que resuelve a exactamente una tienda
type Domain struct {
	Domain    string          `db:"domain" json:"domain"`
	TenantID  kernel.TenantID `db:"tenant_id" json:"tenant_id"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

var hostLabel = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// NormalizeHost deja el host en su forma canónica: sin espacios, en minúsculas,
// sin puerto y sin punto final. No valida.
func NormalizeHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if strings.HasPrefix(h, "[") {
		// IPv6 literal, con o sin puerto
		if i := strings.Index(h, "]"); i >= 0 {
			return h[:i+1]
		}
		return h
	}
	if i := strings.LastIndex(h, ":"); i >= 0 && strings.Count(h, ":") == 1 {
		h = h[:i]
	}
	return strings.TrimSuffix(h, ".")
}

// ParseDomain normaliza y valida un hostname para registrarlo
func ParseDomain(host string) (string, error) {
	h := NormalizeHost(host)
	if h == "" || len(h) > 253 {
		return "", ErrInvalidDomain().WithDetail("domain", host)
	}
	for _, label := range strings.Split(h, ".") {
		if !hostLabel.MatchString(label) {
			return "", ErrInvalidDomain().WithDetail("domain", host)
		}
	}
	return h, nil
}

// ============================================================================
// Service DTOs
// ============================================================================

// CreateTenantRequest representa la petición para crear una tienda
type CreateTenantRequest struct {
	ID      kernel.TenantID `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Logo    *string         `json:"logo,omitempty"`
	Data    Metadata        `json:"data,omitempty"`
	Domains []string        `json:"domains,omitempty"`
	// Inactive crea la tienda deshabilitada
	Inactive bool `json:"inactive,omitempty"`
}

// Validate valida la petición y normaliza los dominios
func (r *CreateTenantRequest) Validate() error {
	r.ID = kernel.TenantID(strings.TrimSpace(r.ID.String()))
	if err := ValidateKey(r.ID); err != nil {
		return err
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidTenant().WithDetail("field", "name")
	}
	seen := make(map[string]bool, len(r.Domains))
	domains := make([]string, 0, len(r.Domains))
	for _, d := range r.Domains {
		host, err := ParseDomain(d)
		if err != nil {
			return err
		}
		if seen[host] {
			continue
		}
		seen[host] = true
		domains = append(domains, host)
	}
	r.Domains = domains
	return nil
}

// NewTenant construye la entidad a partir de la petición validada
func (r CreateTenantRequest) NewTenant(now time.Time) *Tenant {
	data := r.Data.Clone()
	if data == nil {
		data = Metadata{}
	}
	return &Tenant{
		ID:        r.ID,
		Name:      strings.TrimSpace(r.Name),
		Email:     strings.TrimSpace(r.Email),
		Logo:      r.Logo,
		IsActive:  !r.Inactive,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateTenantRequest representa la petición para actualizar una tienda
type UpdateTenantRequest struct {
	Name  *string  `json:"name,omitempty"`
	Email *string  `json:"email,omitempty"`
	Logo  *string  `json:"logo,omitempty"`
	Data  Metadata `json:"data,omitempty"`
}

// AddDomainRequest para asociar un dominio
type AddDomainRequest struct {
	Domain string `json:"domain"`
}

// ReassignDomainRequest para mover un dominio a otra tienda
type ReassignDomainRequest struct {
	TenantID kernel.TenantID `json:"tenant_id"`
}

// TenantListResponse para listas de tiendas
type TenantListResponse struct {
	Tenants []*Tenant `json:"tenants"`
	Total   int       `json:"total"`
}
