package tenancy

import (
	"errors"
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

// ============================================================================
// Error Kinds
// ============================================================================

// Kind clasifica los fallos del motor de tenencia. Se compara con errors.Is:
//
//	if errors.Is(err, tenancy.NotFound) { ... }
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	NotFound            Kind = "tenancy: not found"
	DuplicateKey        Kind = "tenancy: duplicate key"
	AlreadyActive       Kind = "tenancy: tenant context already active"
	NoActiveContext     Kind = "tenancy: no active tenant context"
	TenantInactive      Kind = "tenancy: tenant inactive"
	ProvisioningFailure Kind = "tenancy: provisioning failure"
	WrongContext        Kind = "tenancy: central scope unreachable from tenant context"
	InvalidInput        Kind = "tenancy: invalid input"
)

// Error une un error del registro errx (código y status HTTP) con su Kind
type Error struct {
	kind  Kind
	err   *errx.Error
	cause error
}

func newError(kind Kind, err *errx.Error) *Error {
	return &Error{kind: kind, err: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.err.Error() + ": " + e.cause.Error()
	}
	return e.err.Error()
}

// Kind retorna la clasificación del error
func (e *Error) Kind() Kind { return e.kind }

// Is permite errors.Is(err, tenancy.NotFound)
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.kind
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.err, e.cause}
	}
	return []error{e.err}
}

// Registry retorna el error errx subyacente (código y status HTTP)
func (e *Error) Registry() *errx.Error { return e.err }

// WithDetail agrega un detalle al error errx subyacente
func (e *Error) WithDetail(key string, value any) *Error {
	e.err = e.err.WithDetail(key, value)
	return e
}

// WithCause guarda el error original
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	if cause != nil {
		e.err = e.err.WithDetail("cause", cause.Error())
	}
	return e
}

// KindOf retorna el Kind del primer tenancy.Error en la cadena, o "" si no hay
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.kind
	}
	return ""
}

// ============================================================================
// Error Registry - Errores específicos de tenencia
// ============================================================================

var ErrRegistry = errx.NewRegistry("TENANCY")

// Códigos de error
var (
	CodeTenantNotFound      = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Tienda no encontrada")
	CodeDomainNotFound      = ErrRegistry.Register("DOMAIN_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Dominio no registrado")
	CodeTenantAlreadyExists = ErrRegistry.Register("ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "La tienda ya existe")
	CodeDomainTaken         = ErrRegistry.Register("DOMAIN_TAKEN", errx.TypeConflict, http.StatusConflict, "El dominio ya está asignado")
	CodeAlreadyActive       = ErrRegistry.Register("ALREADY_ACTIVE", errx.TypeBusiness, http.StatusInternalServerError, "Ya hay una tienda activa en esta unidad de trabajo")
	CodeNoActiveContext     = ErrRegistry.Register("NO_ACTIVE_CONTEXT", errx.TypeBusiness, http.StatusInternalServerError, "No hay una tienda activa")
	CodeNoUnitOfWork        = ErrRegistry.Register("NO_UNIT_OF_WORK", errx.TypeInternal, http.StatusInternalServerError, "El contexto no tiene unidad de trabajo")
	CodeTenantInactive      = ErrRegistry.Register("INACTIVE", errx.TypeAuthorization, http.StatusForbidden, "Tienda deshabilitada")
	CodeProvisioningFailed  = ErrRegistry.Register("PROVISIONING_FAILED", errx.TypeExternal, http.StatusInternalServerError, "Falló el aprovisionamiento de la tienda")
	CodeCentralOnly         = ErrRegistry.Register("CENTRAL_ONLY", errx.TypeAuthorization, http.StatusForbidden, "Recurso central inaccesible desde una tienda")
	CodeInvalidTenantKey    = ErrRegistry.Register("INVALID_KEY", errx.TypeValidation, http.StatusBadRequest, "Clave de tienda inválida")
	CodeInvalidTenant       = ErrRegistry.Register("INVALID_TENANT", errx.TypeValidation, http.StatusBadRequest, "Datos de tienda inválidos")
	CodeInvalidDomain       = ErrRegistry.Register("INVALID_DOMAIN", errx.TypeValidation, http.StatusBadRequest, "Dominio inválido")
)

// Helper functions para crear errores
func ErrTenantNotFound() *Error {
	return newError(NotFound, ErrRegistry.New(CodeTenantNotFound))
}

func ErrDomainNotFound() *Error {
	return newError(NotFound, ErrRegistry.New(CodeDomainNotFound))
}

func ErrTenantAlreadyExists() *Error {
	return newError(DuplicateKey, ErrRegistry.New(CodeTenantAlreadyExists))
}

func ErrDomainTaken() *Error {
	return newError(DuplicateKey, ErrRegistry.New(CodeDomainTaken))
}

func ErrAlreadyActive() *Error {
	return newError(AlreadyActive, ErrRegistry.New(CodeAlreadyActive))
}

func ErrNoActiveContext() *Error {
	return newError(NoActiveContext, ErrRegistry.New(CodeNoActiveContext))
}

func ErrNoUnitOfWork() *Error {
	return newError(NoActiveContext, ErrRegistry.New(CodeNoUnitOfWork))
}

func ErrTenantInactive() *Error {
	return newError(TenantInactive, ErrRegistry.New(CodeTenantInactive))
}

func ErrProvisioningFailed(cause error) *Error {
	return newError(ProvisioningFailure, ErrRegistry.New(CodeProvisioningFailed)).WithCause(cause)
}

func ErrCentralOnly() *Error {
	return newError(WrongContext, ErrRegistry.New(CodeCentralOnly))
}

func ErrInvalidTenantKey() *Error {
	return newError(InvalidInput, ErrRegistry.New(CodeInvalidTenantKey))
}

func ErrInvalidTenant() *Error {
	return newError(InvalidInput, ErrRegistry.New(CodeInvalidTenant))
}

func ErrInvalidDomain() *Error {
	return newError(InvalidInput, ErrRegistry.New(CodeInvalidDomain))
}
