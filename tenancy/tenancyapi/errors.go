package tenancyapi

import (
	"errors"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/errx/errxfiber"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/gofiber/fiber/v2"
)

var kindStatus = map[tenancy.Kind]int{
	tenancy.NotFound:            fiber.StatusNotFound,
	tenancy.DuplicateKey:        fiber.StatusConflict,
	tenancy.InvalidInput:        fiber.StatusBadRequest,
	tenancy.TenantInactive:      fiber.StatusForbidden,
	tenancy.WrongContext:        fiber.StatusForbidden,
	tenancy.AlreadyActive:       fiber.StatusInternalServerError,
	tenancy.NoActiveContext:     fiber.StatusInternalServerError,
	tenancy.ProvisioningFailure: fiber.StatusInternalServerError,
}

// errxStatus mapea el tipo de un error de errx a su código HTTP
func errxStatus(err error) (int, bool) {
	switch {
	case errx.IsType(err, errx.TypeNotFound):
		return fiber.StatusNotFound, true
	case errx.IsType(err, errx.TypeConflict):
		return fiber.StatusConflict, true
	case errx.IsType(err, errx.TypeValidation):
		return fiber.StatusBadRequest, true
	case errx.IsType(err, errx.TypeAuthorization):
		return fiber.StatusForbidden, true
	case errx.IsType(err, errx.TypeBusiness):
		return fiber.StatusUnprocessableEntity, true
	}
	return 0, false
}

// ErrorHandler traduce los errores de tenancy y los tipos de errx a códigos
// HTTP; el resto lo resuelve errxfiber
func ErrorHandler() fiber.ErrorHandler {
	fallback := errxfiber.FiberErrorHandler()

	return func(c *fiber.Ctx, err error) error {
		var te *tenancy.Error
		if errors.As(err, &te) {
			status, ok := kindStatus[te.Kind()]
			if !ok {
				status = fiber.StatusInternalServerError
			}
			return c.Status(status).JSON(fiber.Map{
				"error": fiber.Map{
					"kind":    string(te.Kind()),
					"message": te.Error(),
				},
			})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error": fiber.Map{"message": fe.Message},
			})
		}

		if status, ok := errxStatus(err); ok {
			return c.Status(status).JSON(fiber.Map{
				"error": fiber.Map{"message": err.Error()},
			})
		}

		return fallback(c, err)
	}
}
