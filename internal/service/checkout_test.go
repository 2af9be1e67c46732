package service

import (
	"strings"
	"testing"

	"bookstore-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatePaymentsCardOnly(t *testing.T) {
	plans, err := AllocatePayments(models.PaymentMethodCard, 5000, 0, "tok_visa")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, PaymentPlan{Kind: models.PaymentKindCard, Amount: 5000}, plans[0])
}

func TestAllocatePaymentsCardRequiresRef(t *testing.T) {
	_, err := AllocatePayments(models.PaymentMethodCard, 5000, 0, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAllocatePaymentsCardBelowMinimum(t *testing.T) {
	_, err := AllocatePayments(models.PaymentMethodCard, 999, 0, "tok_visa")
	assert.ErrorIs(t, err, models.ErrValidation)

	plans, err := AllocatePayments(models.PaymentMethodCard, 1000, 0, "tok_visa")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), plans[0].Amount)
}

func TestAllocatePaymentsCouponOnly(t *testing.T) {
	plans, err := AllocatePayments(models.PaymentMethodCoupon, 3000, 3000, "")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, PaymentPlan{Kind: models.PaymentKindCoupon, Amount: 3000}, plans[0])
}

func TestAllocatePaymentsCouponMethodWithoutCoupon(t *testing.T) {
	_, err := AllocatePayments(models.PaymentMethodCoupon, 3000, 0, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAllocatePaymentsCouponMethodWithResidual(t *testing.T) {
	_, err := AllocatePayments(models.PaymentMethodCoupon, 5000, 3000, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAllocatePaymentsMixed(t *testing.T) {
	plans, err := AllocatePayments(models.PaymentMethodMixed, 5000, 2000, "tok_visa")
	require.NoError(t, err)
	require.Len(t, plans, 2)

	// Coupon leg first, card covers the residual
	assert.Equal(t, PaymentPlan{Kind: models.PaymentKindCoupon, Amount: 2000}, plans[0])
	assert.Equal(t, PaymentPlan{Kind: models.PaymentKindCard, Amount: 3000}, plans[1])
}

func TestAllocatePaymentsMixedResidualBelowMinimum(t *testing.T) {
	_, err := AllocatePayments(models.PaymentMethodMixed, 5000, 4500, "tok_visa")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAllocatePaymentsCardZeroedByCoupon(t *testing.T) {
	// Coupon covered the full total: no card leg, no card minimum, no ref
	plans, err := AllocatePayments(models.PaymentMethodCard, 3000, 3000, "")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, models.PaymentKindCoupon, plans[0].Kind)
}

func TestAllocatePaymentsUnknownMethod(t *testing.T) {
	_, err := AllocatePayments("PIX", 5000, 0, "tok_visa")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func payment(kind, status string) models.Payment {
	return models.Payment{Kind: kind, Status: status}
}

func TestDeriveSaleStatusAllApproved(t *testing.T) {
	payments := []models.Payment{
		payment(models.PaymentKindCoupon, models.PaymentStatusApproved),
		payment(models.PaymentKindCard, models.PaymentStatusApproved),
	}
	assert.Equal(t, models.SaleStatusApproved, DeriveSaleStatus(payments))
}

func TestDeriveSaleStatusAnyDeclined(t *testing.T) {
	payments := []models.Payment{
		payment(models.PaymentKindCoupon, models.PaymentStatusApproved),
		payment(models.PaymentKindCard, models.PaymentStatusDeclined),
	}
	assert.Equal(t, models.SaleStatusDeclined, DeriveSaleStatus(payments))
}

func TestDeriveSaleStatusDeclinedWinsOverPending(t *testing.T) {
	payments := []models.Payment{
		payment(models.PaymentKindCard, models.PaymentStatusPending),
		payment(models.PaymentKindCard, models.PaymentStatusDeclined),
	}
	assert.Equal(t, models.SaleStatusDeclined, DeriveSaleStatus(payments))
}

func TestDeriveSaleStatusPendingLeg(t *testing.T) {
	payments := []models.Payment{
		payment(models.PaymentKindCoupon, models.PaymentStatusApproved),
		payment(models.PaymentKindCard, models.PaymentStatusPending),
	}
	assert.Equal(t, models.SaleStatusProcessing, DeriveSaleStatus(payments))
}

func TestDeriveSaleStatusNoPayments(t *testing.T) {
	assert.Equal(t, models.SaleStatusProcessing, DeriveSaleStatus(nil))
}

func TestGenerateTrackingCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateTrackingCode()

		require.Len(t, code, 12)
		assert.True(t, strings.HasPrefix(code, "TRK"))
		for _, r := range code[3:] {
			assert.Contains(t, trackingCodeChars, string(r))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 90)
}
