package service

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"bookstore-service/internal/util"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// ChargeRequest asks the gateway to capture one card payment leg
type ChargeRequest struct {
	PaymentID int64  `json:"payment_id"`
	Amount    int64  `json:"amount"`
	CardRef   string `json:"card_ref"`
}

// ChargeResult is the gateway's verdict on a charge
type ChargeResult struct {
	Approved       bool   `json:"approved"`
	Message        string `json:"message"`
	TransactionRef string `json:"transaction_ref"`
}

// PaymentGateway is the external card processor collaborator. Charge must
// be idempotent per payment ID so a retried call cannot double-capture.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// HTTPGateway talks to a real gateway endpoint over HTTP
type HTTPGateway struct {
	client *resty.Client
	url    string
}

// NewHTTPGateway creates a gateway client with a per-call timeout. Callers
// treat a timeout as a decline, never as a payment left pending.
func NewHTTPGateway(url string, timeout time.Duration) *HTTPGateway {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)

	return &HTTPGateway{client: client, url: url}
}

// Charge sends the capture request, keyed by payment ID for idempotency
func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	start := time.Now()
	defer func() {
		util.GatewayLatency.Observe(time.Since(start).Seconds())
	}()

	var result ChargeResult
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", strconv.FormatInt(req.PaymentID, 10)).
		SetBody(req).
		SetResult(&result).
		Post(g.url)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("gateway call failed: %w", err)
	}
	if resp.IsError() {
		return ChargeResult{}, fmt.Errorf("gateway returned status %d", resp.StatusCode())
	}

	return result, nil
}

// MockGateway simulates a processor for development and tests
type MockGateway struct {
	successRate float64
}

// NewMockGateway creates a mock gateway approving successRate of charges
func NewMockGateway(successRate float64) *MockGateway {
	return &MockGateway{successRate: successRate}
}

// Charge approves or declines at random, mimicking processor latency
func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	select {
	case <-ctx.Done():
		return ChargeResult{}, ctx.Err()
	case <-time.After(time.Duration(50+rand.Intn(200)) * time.Millisecond):
	}

	if rand.Float64() < g.successRate {
		return ChargeResult{
			Approved:       true,
			Message:        "approved",
			TransactionRef: "TXN-" + uuid.New().String()[:8],
		}, nil
	}

	return ChargeResult{
		Approved: false,
		Message:  "declined by issuer",
	}, nil
}
