// Package common holds the response envelopes and error mapping shared by
// every HTTP handler.
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/fund"
	"github.com/coletivobank/coletivo/pkg/money"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`         // HTTP status code
	Message string `json:"message"`        // Human-readable explanation
	Data    any    `json:"data,omitempty"` // Response data
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`     // A URI reference that identifies the problem type
	Title    string `json:"title"`              // Short, human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Human-readable explanation
	Instance string `json:"instance,omitempty"` // URI reference that identifies the specific occurrence
	Errors   any    `json:"errors,omitempty"`   // Optional: additional error details
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// SuccessResponseJSON writes the success envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{
		Status:  status,
		Message: message,
		Data:    data,
	})
}

// ProblemDetailsJSON writes an RFC 9457 problem. The status comes from
// ErrorToStatusCode unless an int is passed in args; a string in args
// replaces the detail taken from err.
//
//	return common.ProblemDetailsJSON(c, "Invalid fund ID", err, "fund ID must be a UUID", fiber.StatusBadRequest)
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, args ...any) error {
	status := ErrorToStatusCode(err)
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Instance: c.OriginalURL(),
	}
	if err != nil {
		pd.Detail = err.Error()
	}
	for _, arg := range args {
		switch v := arg.(type) {
		case int:
			status = v
		case string:
			pd.Detail = v
		}
	}

	var capacity *domain.InsufficientCapacityError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &capacity):
		pd.Errors = fiber.Map{
			"requested": capacity.Requested,
			"available": capacity.Available,
		}
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = fe.Tag()
		}
		pd.Errors = fields
		pd.Detail = "one or more fields are invalid"
	}

	pd.Status = status
	return c.Status(status).JSON(pd, "application/problem+json")
}

// ErrorToStatusCode maps domain errors to appropriate HTTP status codes.
func ErrorToStatusCode(err error) int {
	var verrs validator.ValidationErrors
	var fe *fiber.Error
	switch {
	case err == nil:
		return fiber.StatusInternalServerError
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &verrs),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrMismatchedCurrencies):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientCapacity),
		errors.Is(err, domain.ErrConcurrencyConflict),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrConfiguration):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// BindAndValidate parses the request body and validates it using go-playground/validator.
// On failure the problem response is already written and the returned
// pointer is nil; handlers return the error as is.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", err, fiber.StatusBadRequest)
	}
	if err := validate.Struct(input); err != nil {
		return nil, ProblemDetailsJSON(c, "Validation failed", err)
	}
	return &input, nil
}

// TokenParser resolves the caller from the token the JWT middleware stored.
type TokenParser interface {
	GetCurrentUserID(token *jwt.Token) (uuid.UUID, error)
}

// CurrentUserID returns the authenticated caller.
func CurrentUserID(c *fiber.Ctx, auth TokenParser) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing user context", domain.ErrUnauthorized)
	}
	return auth.GetCurrentUserID(token)
}

// ParamUUID reads a UUID path parameter.
func ParamUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, domain.Validationf("%s must be a valid UUID", name)
	}
	return id, nil
}

// FundCurrency resolves the currency amounts of a fund are written in.
type FundCurrency interface {
	Get(ctx context.Context, actor, fundID uuid.UUID) (*fund.Fund, error)
}

// ParseFundAmount reads a decimal amount such as "125.50" in the fund's
// currency. It also checks that the caller can see the fund.
func ParseFundAmount(c *fiber.Ctx, funds FundCurrency, actor, fundID uuid.UUID, amount string) (money.Money, error) {
	f, err := funds.Get(c.Context(), actor, fundID)
	if err != nil {
		return money.Money{}, err
	}
	m, err := money.Parse(amount, f.Currency())
	if err != nil {
		return money.Money{}, fmt.Errorf("%w: amount %q: %w", domain.ErrValidation, amount, err)
	}
	return m, nil
}
