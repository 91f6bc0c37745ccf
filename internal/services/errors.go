// Package services holds the business logic of the ordering and stock
// engine. This file centralizes the service-level error values so they can be
// returned consistently by service methods and checked by callers with
// errors.Is / errors.As.
//
// Translation into user-facing messages or HTTP status codes happens in the
// handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input (duplicate recipe ingredient,
	// non-positive amount, negative quantity...). Detail is wrapped in with
	// fmt.Errorf("%w: ...").
	ErrValidation = errors.New("validation failed")

	// ErrIngredientNotFound indicates an unknown ingredient ID.
	ErrIngredientNotFound = errors.New("ingredient not found")

	// ErrIngredientExists is returned when creating an ingredient whose ID is taken.
	ErrIngredientExists = errors.New("ingredient already exists")

	// ErrMenuItemNotFound indicates that an item is missing from the catalog.
	ErrMenuItemNotFound = errors.New("menu item not found")

	// ErrSessionNotFound indicates that the table has no active session.
	ErrSessionNotFound = errors.New("no active session for table")

	// ErrEmptyCart is returned internally when a send finds nothing to submit.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrLineNotFound indicates an unknown cart line or sent item.
	ErrLineNotFound = errors.New("line not found")

	// ErrInvalidTransition is returned for kitchen status changes outside
	// sent → preparing → ready → completed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrOrderNotFound indicates an unknown order ID.
	ErrOrderNotFound = errors.New("order not found")
)

// PersistenceError wraps a failed durable write. The operation left no
// partial state behind and may be retried by the caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: persistence failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may resubmit the same request.
func (e *PersistenceError) Retryable() bool { return true }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
