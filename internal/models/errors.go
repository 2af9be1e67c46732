package models

import "errors"

// Domain error taxonomy. Services wrap these with fmt.Errorf("%w: ...")
// so callers can branch with errors.Is while the api layer maps them to
// HTTP statuses.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrBookNotFound      = errors.New("book not found")
	ErrOutOfStock        = errors.New("requested quantity not available")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrCartEmpty         = errors.New("cart is empty")
	ErrCouponInvalid     = errors.New("coupon invalid")
	ErrPaymentDeclined   = errors.New("payment declined")
	ErrStateConflict     = errors.New("operation invalid for current status")
	ErrMissingAddress    = errors.New("delivery address is required")
)
