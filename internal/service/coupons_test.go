package service

import (
	"strings"
	"testing"
	"time"

	"bookstore-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func promoCoupon(value int64) *models.Coupon {
	return &models.Coupon{
		ID:         1,
		Code:       "PROMO10",
		Value:      value,
		Kind:       models.CouponKindPromotional,
		ValidUntil: time.Now().Add(24 * time.Hour),
		Active:     true,
	}
}

func TestValidateCouponHappyPath(t *testing.T) {
	decision := ValidateCoupon(promoCoupon(2000), 42, 5000, time.Now())

	assert.True(t, decision.Valid)
	assert.Equal(t, int64(2000), decision.Discount)
	assert.Equal(t, int64(3000), decision.Residual)
	assert.Zero(t, decision.Excess)
}

func TestValidateCouponOwnership(t *testing.T) {
	owner := int64(7)
	coupon := promoCoupon(1000)
	coupon.CustomerID = &owner

	decision := ValidateCoupon(coupon, 8, 5000, time.Now())
	assert.False(t, decision.Valid)
	assert.Equal(t, CouponReasonNotOwned, decision.Reason)

	decision = ValidateCoupon(coupon, 7, 5000, time.Now())
	assert.True(t, decision.Valid)
}

func TestValidateCouponExchangeRequiresOwner(t *testing.T) {
	coupon := promoCoupon(1000)
	coupon.Kind = models.CouponKindExchange
	coupon.CustomerID = nil

	decision := ValidateCoupon(coupon, 42, 5000, time.Now())
	assert.False(t, decision.Valid)
	assert.Equal(t, CouponReasonNotOwned, decision.Reason)
}

func TestValidateCouponAlreadyUsed(t *testing.T) {
	coupon := promoCoupon(1000)
	coupon.Used = true

	decision := ValidateCoupon(coupon, 42, 5000, time.Now())
	assert.False(t, decision.Valid)
	assert.Equal(t, CouponReasonAlreadyUsed, decision.Reason)
}

func TestValidateCouponInactive(t *testing.T) {
	coupon := promoCoupon(1000)
	coupon.Active = false

	decision := ValidateCoupon(coupon, 42, 5000, time.Now())
	assert.False(t, decision.Valid)
	assert.Equal(t, CouponReasonInactive, decision.Reason)
}

func TestValidateCouponExpired(t *testing.T) {
	coupon := promoCoupon(1000)
	coupon.ValidUntil = time.Now().Add(-time.Minute)

	decision := ValidateCoupon(coupon, 42, 5000, time.Now())
	assert.False(t, decision.Valid)
	assert.Equal(t, CouponReasonExpired, decision.Reason)
}

func TestValidateCouponMinPurchase(t *testing.T) {
	min := int64(8000)
	coupon := promoCoupon(1000)
	coupon.MinPurchase = &min

	decision := ValidateCoupon(coupon, 42, 5000, time.Now())
	assert.False(t, decision.Valid)
	assert.Equal(t, CouponReasonBelowMinimum, decision.Reason)

	decision = ValidateCoupon(coupon, 42, 8000, time.Now())
	assert.True(t, decision.Valid)
}

func TestValidateCouponRuleOrder(t *testing.T) {
	// A used AND expired coupon fails on used first
	coupon := promoCoupon(1000)
	coupon.Used = true
	coupon.ValidUntil = time.Now().Add(-time.Hour)

	decision := ValidateCoupon(coupon, 42, 5000, time.Now())
	assert.Equal(t, CouponReasonAlreadyUsed, decision.Reason)
}

func TestValidateCouponExceedsTotal(t *testing.T) {
	// Coupon worth more than the purchase: valid, discount floors at the
	// total, excess comes back as a new exchange coupon
	decision := ValidateCoupon(promoCoupon(5000), 42, 3000, time.Now())

	assert.True(t, decision.Valid)
	assert.Equal(t, int64(3000), decision.Discount)
	assert.Zero(t, decision.Residual)
	assert.Equal(t, int64(2000), decision.Excess)
}

func TestValidateCouponResidualBelowCardMinimum(t *testing.T) {
	// 500 left after discount, below the card floor
	decision := ValidateCoupon(promoCoupon(4500), 42, 5000, time.Now())
	assert.False(t, decision.Valid)
	assert.Equal(t, CouponReasonResidualTooLow, decision.Reason)
}

func TestValidateCouponResidualAtCardMinimum(t *testing.T) {
	decision := ValidateCoupon(promoCoupon(4000), 42, 5000, time.Now())
	assert.True(t, decision.Valid)
	assert.Equal(t, models.MinCardPaymentCents, decision.Residual)
}

func TestValidateCouponExactTotal(t *testing.T) {
	decision := ValidateCoupon(promoCoupon(5000), 42, 5000, time.Now())
	assert.True(t, decision.Valid)
	assert.Equal(t, int64(5000), decision.Discount)
	assert.Zero(t, decision.Residual)
	assert.Zero(t, decision.Excess)
}

func TestGenerateExchangeCouponCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateExchangeCouponCode()

		assert.True(t, strings.HasPrefix(code, "TROCA-"))
		assert.Len(t, code, len("TROCA-")+8)
		for _, r := range strings.TrimPrefix(code, "TROCA-") {
			assert.Contains(t, couponCodeChars, string(r))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 90)
}
