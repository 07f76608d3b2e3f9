package iam

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

// ============================================================================
// Error Registry - Registro de errores del módulo IAM
// ============================================================================

var ErrRegistry = errx.NewRegistry("IAM")

// Códigos de error del módulo IAM
var (
	// Errores comunes
	CodeUnauthorized = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "No autorizado")
	CodeInvalidToken = ErrRegistry.Register("INVALID_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Token inválido o expirado")
	CodeAccessDenied = ErrRegistry.Register("ACCESS_DENIED", errx.TypeAuthorization, http.StatusForbidden, "Acceso denegado")
	CodeNotAMember   = ErrRegistry.Register("NOT_A_MEMBER", errx.TypeAuthorization, http.StatusForbidden, "El usuario no pertenece a esta tienda")
)

// Helper functions para crear errores comunes
func ErrUnauthorized() *errx.Error {
	return ErrRegistry.New(CodeUnauthorized)
}

func ErrInvalidToken() *errx.Error {
	return ErrRegistry.New(CodeInvalidToken)
}

func ErrAccessDenied() *errx.Error {
	return ErrRegistry.New(CodeAccessDenied)
}

func ErrNotAMember() *errx.Error {
	return ErrRegistry.New(CodeNotAMember)
}
