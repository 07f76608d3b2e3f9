package kernel

// ============================================================================
// Context Types - Tipos para context.Context
// ============================================================================

// AuthContext es el contexto de autenticación que se inyecta en cada request
type AuthContext struct {
	UserID   UserID   `json:"user_id"`
	TenantID TenantID `json:"tenant_id"`
	IsAdmin  bool     `json:"is_admin"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
}

// IsValid verifica si el AuthContext es válido
func (a *AuthContext) IsValid() bool {
	return !a.UserID.IsEmpty()
}

// IsPlatformAdmin indica un administrador central, sin tienda asociada
func (a *AuthContext) IsPlatformAdmin() bool {
	return a.IsAdmin && a.TenantID.IsEmpty()
}

// BelongsTo verifica si el usuario pertenece a la tienda indicada
func (a *AuthContext) BelongsTo(tenantID TenantID) bool {
	return a.TenantID == tenantID
}

// ============================================================================
// Context Keys - Claves para context.Context
// ============================================================================

type ContextKey string

const (
	// AuthContextKey es la clave para almacenar AuthContext en fiber.Locals
	AuthContextKey ContextKey = "auth"

	// CartSessionKey es la clave de la sesión de carrito de invitados
	CartSessionKey ContextKey = "cart_session"

	// RequestIDKey es la clave para almacenar el ID de la petición
	RequestIDKey ContextKey = "request_id"
)
