package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxCostRepricing(t *testing.T) {
	policy := MaxCostRepricing{}

	// 20% margin over the highest lot cost
	assert.Equal(t, int64(6000), policy.SalePrice(5000, 2000))
	assert.Equal(t, int64(5000), policy.SalePrice(5000, 0))
	// Truncating division, never rounds the price up
	assert.Equal(t, int64(119), policy.SalePrice(99, 2000))
}

func TestMarginOrDefault(t *testing.T) {
	// Books without a pricing-group margin reprice with the configured
	// default
	assert.Equal(t, int64(1500), marginOrDefault(1500, 2000))
	assert.Equal(t, int64(2000), marginOrDefault(0, 2000))
	assert.Equal(t, int64(2000), marginOrDefault(-100, 2000))
}

func TestMockGatewayAlwaysApproves(t *testing.T) {
	gw := NewMockGateway(1.0)

	result, err := gw.Charge(context.Background(), ChargeRequest{PaymentID: 1, Amount: 5000, CardRef: "tok"})
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.NotEmpty(t, result.TransactionRef)
}

func TestMockGatewayAlwaysDeclines(t *testing.T) {
	gw := NewMockGateway(0.0)

	result, err := gw.Charge(context.Background(), ChargeRequest{PaymentID: 1, Amount: 5000, CardRef: "tok"})
	require.NoError(t, err)
	assert.False(t, result.Approved)
}

func TestMockGatewayHonorsContext(t *testing.T) {
	gw := NewMockGateway(1.0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, err := gw.Charge(ctx, ChargeRequest{PaymentID: 1, Amount: 5000, CardRef: "tok"})
	assert.Error(t, err)
}
