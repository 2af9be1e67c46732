package service

import (
	"math/rand"
	"time"

	"bookstore-service/internal/models"
)

// CouponDecision is the outcome of validating a coupon against a purchase.
type CouponDecision struct {
	Valid bool
	// Reason is set when Valid is false
	Reason string
	// Discount is the amount actually subtracted from the purchase total
	Discount int64
	// Residual is what remains to be paid after the discount
	Residual int64
	// Excess is the coupon value beyond the purchase total; it must be
	// returned to the customer as a new exchange coupon at settlement.
	Excess int64
}

// Validation failure reasons
const (
	CouponReasonNotOwned       = "coupon does not belong to this customer"
	CouponReasonAlreadyUsed    = "coupon already used"
	CouponReasonExpired        = "coupon expired"
	CouponReasonInactive       = "coupon is not active"
	CouponReasonBelowMinimum   = "minimum purchase value not reached"
	CouponReasonResidualTooLow = "residual after coupon must be at least 10.00 when any card payment remains"
)

// ValidateCoupon applies the redemption rules in order, short-circuiting
// on the first failure. It never mutates the coupon; MarkUsed happens
// separately after settlement succeeds.
func ValidateCoupon(coupon *models.Coupon, customerID int64, purchaseTotal int64, now time.Time) CouponDecision {
	if coupon.CustomerID != nil && *coupon.CustomerID != customerID {
		return CouponDecision{Reason: CouponReasonNotOwned}
	}
	// Exchange coupons are non-transferable and always customer-bound
	if coupon.Kind == models.CouponKindExchange && coupon.CustomerID == nil {
		return CouponDecision{Reason: CouponReasonNotOwned}
	}

	if coupon.Used {
		return CouponDecision{Reason: CouponReasonAlreadyUsed}
	}

	if !coupon.Active {
		return CouponDecision{Reason: CouponReasonInactive}
	}

	if coupon.ValidUntil.Before(now) {
		return CouponDecision{Reason: CouponReasonExpired}
	}

	if coupon.MinPurchase != nil && purchaseTotal < *coupon.MinPurchase {
		return CouponDecision{Reason: CouponReasonBelowMinimum}
	}

	// Coupon worth more than the purchase: valid, total floors at zero and
	// the difference comes back as an exchange coupon.
	if coupon.Value > purchaseTotal {
		return CouponDecision{
			Valid:    true,
			Discount: purchaseTotal,
			Residual: 0,
			Excess:   coupon.Value - purchaseTotal,
		}
	}

	residual := purchaseTotal - coupon.Value
	if residual > 0 && residual < models.MinCardPaymentCents {
		return CouponDecision{Reason: CouponReasonResidualTooLow}
	}

	return CouponDecision{
		Valid:    true,
		Discount: coupon.Value,
		Residual: residual,
	}
}

const couponCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateExchangeCouponCode builds a TROCA-prefixed 8-char code
func GenerateExchangeCouponCode() string {
	return "TROCA-" + randomCode(8)
}

func randomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = couponCodeChars[rand.Intn(len(couponCodeChars))]
	}
	return string(b)
}
