package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"manyame-permits/internal/core/domain"
)

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Machine-readable error codes
const (
	CodeAuthenticationRequired = "authentication_required"
	CodePermissionDenied       = "permission_denied"
	CodeInvalidTransition      = "invalid_state_transition"
	CodeMissingDocuments       = "missing_required_document"
	CodeValidation             = "validation_error"
	CodeNotFound               = "not_found"
	CodeStorageUnavailable     = "storage_unavailable"
	CodeInternal               = "internal_error"
)

// Success sends a success response
func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Created sends a 201 created response
func Created(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends an error response
func Error(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(Response{
		Success: false,
		Error:   message,
	})
}

// BadRequest sends a 400 bad request response
func BadRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(Response{
		Success: false,
		Error:   message,
		Code:    CodeValidation,
	})
}

// Unauthorized sends a 401 unauthorized response
func Unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(Response{
		Success: false,
		Error:   message,
		Code:    CodeAuthenticationRequired,
	})
}

// Forbidden sends a 403 forbidden response
func Forbidden(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(Response{
		Success: false,
		Error:   message,
		Code:    CodePermissionDenied,
	})
}

// NotFound sends a 404 not found response
func NotFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(Response{
		Success: false,
		Error:   message,
		Code:    CodeNotFound,
	})
}

// InternalServerError sends a 500 internal server error response
func InternalServerError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(Response{
		Success: false,
		Error:   message,
		Code:    CodeInternal,
	})
}

// Status maps an error to its HTTP status and code
func Status(err error) (int, string) {
	var fe *fiber.Error
	var missing *domain.MissingDocumentsError

	switch {
	case errors.As(err, &fe):
		return fe.Code, ""
	case errors.Is(err, domain.ErrAuthenticationRequired):
		return fiber.StatusUnauthorized, CodeAuthenticationRequired
	case errors.Is(err, domain.ErrPermissionDenied):
		return fiber.StatusForbidden, CodePermissionDenied
	case errors.As(err, &missing):
		return fiber.StatusUnprocessableEntity, CodeMissingDocuments
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return fiber.StatusConflict, CodeInvalidTransition
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest, CodeValidation
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrStorageFailure):
		return fiber.StatusServiceUnavailable, CodeStorageUnavailable
	}
	return fiber.StatusInternalServerError, CodeInternal
}

// FromError writes the error response for err. Infrastructure failures are
// reported without their cause.
func FromError(c *fiber.Ctx, err error) error {
	status, code := Status(err)
	body := Response{Success: false, Error: err.Error(), Code: code}

	var missing *domain.MissingDocumentsError
	var invalid *domain.ValidationError
	switch {
	case errors.As(err, &missing):
		names := make([]string, len(missing.Missing))
		for i, m := range missing.Missing {
			names[i] = string(m)
		}
		body.Details = fiber.Map{"missing": names}
	case errors.As(err, &invalid):
		if invalid.Field != "" {
			body.Details = fiber.Map{"field": invalid.Field}
		}
	case code == CodeStorageUnavailable:
		body.Error = "Storage is temporarily unavailable"
	case code == CodeInternal:
		body.Error = "Internal Server Error"
	}

	return c.Status(status).JSON(body)
}
