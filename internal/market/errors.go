package market

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyOrder        = errors.New("order has no items")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateReview   = errors.New("reviewer already reviewed this fabric")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrValidation        = errors.New("validation failed")
)

// Transient reports whether err falls outside the declared kinds and is
// therefore a storage/downstream hiccup that is safe to retry.
func Transient(err error) bool {
	for _, kind := range []error{
		ErrNotFound, ErrInsufficientStock, ErrEmptyOrder, ErrInvalidTransition,
		ErrDuplicateReview, ErrUnauthorized, ErrValidation,
	} {
		if errors.Is(err, kind) {
			return false
		}
	}
	return true
}
