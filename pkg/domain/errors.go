package domain

import (
	"errors"
	"fmt"

	"github.com/coletivobank/coletivo/pkg/money"
)

// Common domain errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized is returned when a user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a user is not allowed to perform an action
	ErrForbidden = errors.New("forbidden")
	// ErrInsufficientCapacity is returned when a request exceeds the member's eligibility
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	// ErrConcurrencyConflict is returned when a transaction kept conflicting after all retries
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrConfiguration is returned when fund settings cannot serve the operation
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidTransition is returned when a lifecycle transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Configurationf wraps ErrConfiguration with a formatted message.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// InsufficientCapacityError reports how much was asked and how much could be granted.
type InsufficientCapacityError struct {
	Requested money.Money
	Available money.Money
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf(
		"insufficient capacity: requested %s, available %s",
		e.Requested, e.Available,
	)
}

// Is makes errors.Is(err, ErrInsufficientCapacity) match.
func (e *InsufficientCapacityError) Is(target error) bool {
	return target == ErrInsufficientCapacity
}
