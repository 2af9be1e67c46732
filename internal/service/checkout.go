package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"bookstore-service/internal/broker"
	"bookstore-service/internal/models"
	"bookstore-service/internal/store"
	"bookstore-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutService converts an active cart into a sale, allocates payment
// across coupon and card legs, drives the sale state machine, and deducts
// inventory on success.
type CheckoutService struct {
	store          *store.Store
	ledger         *InventoryLedger
	gateway        PaymentGateway
	eventPublisher *broker.EventPublisher
	gatewayTimeout time.Duration
	logger         *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	store *store.Store,
	ledger *InventoryLedger,
	gateway PaymentGateway,
	eventPublisher *broker.EventPublisher,
	gatewayTimeout time.Duration,
) *CheckoutService {
	return &CheckoutService{
		store:          store,
		ledger:         ledger,
		gateway:        gateway,
		eventPublisher: eventPublisher,
		gatewayTimeout: gatewayTimeout,
		logger:         util.GetLogger(),
	}
}

// CheckoutRequest represents a checkout attempt for a customer's cart
type CheckoutRequest struct {
	CustomerID    int64  `json:"customer_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
	CardRef       string `json:"card_ref,omitempty"`
}

// CheckoutResponse is returned after a settled checkout
type CheckoutResponse struct {
	SaleID             int64  `json:"sale_id"`
	Status             string `json:"status"`
	Total              int64  `json:"total"`
	Discount           int64  `json:"discount"`
	TrackingCode       string `json:"tracking_code,omitempty"`
	ExchangeCouponCode string `json:"exchange_coupon_code,omitempty"`
}

// PaymentPlan is one planned settlement leg
type PaymentPlan struct {
	Kind   string
	Amount int64
}

// Checkout settles the customer's active cart. Once the sale row commits
// the cart leaves PENDING, so a concurrent re-invocation for the same cart
// is rejected with a state conflict.
func (cos *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	cart, err := cos.store.GetActiveCart(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("%w: no active cart", models.ErrStateConflict)
	}

	items, err := cos.store.GetCartItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		util.CheckoutsTotal.WithLabelValues("empty_cart").Inc()
		return nil, models.ErrCartEmpty
	}

	// Stock may have drifted since the items were added; re-check before
	// committing. Still advisory: Consume below has the final word.
	for _, item := range items {
		ok, err := cos.ledger.CanReserve(ctx, item.BookID, item.Quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			util.CheckoutsTotal.WithLabelValues("out_of_stock").Inc()
			return nil, fmt.Errorf("%w: book %d", models.ErrInsufficientStock, item.BookID)
		}
	}

	address, err := cos.store.GetDefaultAddress(ctx, req.CustomerID)
	if err != nil {
		util.CheckoutsTotal.WithLabelValues("missing_address").Inc()
		return nil, err
	}

	bookIDs := make([]int64, len(items))
	for i, item := range items {
		bookIDs[i] = item.BookID
	}
	books, err := cos.store.GetBooksByIDs(ctx, bookIDs)
	if err != nil {
		return nil, err
	}
	prices := make(map[int64]int64, len(books))
	for _, book := range books {
		prices[book.ID] = book.SalePrice
	}
	total := CartTotal(items, prices)

	var coupon *models.Coupon
	var decision CouponDecision
	if cart.CouponCode != nil {
		coupon, err = cos.store.GetCouponByCode(ctx, *cart.CouponCode)
		if err != nil {
			return nil, err
		}
		decision = ValidateCoupon(coupon, req.CustomerID, total, time.Now())
		if !decision.Valid {
			util.CheckoutsTotal.WithLabelValues("coupon_invalid").Inc()
			return nil, fmt.Errorf("%w: %s", models.ErrCouponInvalid, decision.Reason)
		}
	}

	plans, err := AllocatePayments(req.PaymentMethod, total, decision.Discount, req.CardRef)
	if err != nil {
		util.CheckoutsTotal.WithLabelValues("invalid_payment").Inc()
		return nil, err
	}

	sale := &models.Sale{
		CustomerID:      req.CustomerID,
		AddressID:       address.ID,
		Status:          models.SaleStatusProcessing,
		Total:           total - decision.Discount,
		DiscountApplied: decision.Discount,
		CouponCode:      cart.CouponCode,
	}
	if err := cos.store.CreateSale(ctx, sale); err != nil {
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}

	for _, item := range items {
		saleItem := &models.SaleItem{
			SaleID:    sale.ID,
			BookID:    item.BookID,
			Quantity:  item.Quantity,
			UnitPrice: prices[item.BookID],
		}
		if err := cos.store.CreateSaleItem(ctx, saleItem); err != nil {
			return nil, fmt.Errorf("failed to snapshot sale item: %w", err)
		}
	}

	// Take the cart out of PENDING now; whichever concurrent checkout or
	// sweep loses this transition stops here.
	won, err := cos.store.TransitionCartStatus(ctx, cart.ID, models.CartStatusFinalized)
	if err != nil {
		return nil, err
	}
	if !won {
		_ = cos.store.UpdateSaleStatus(ctx, sale.ID, models.SaleStatusCancelled)
		return nil, fmt.Errorf("%w: cart already finalized or expired", models.ErrStateConflict)
	}

	resp, err := cos.settle(ctx, sale, items, coupon, decision, plans, req.CardRef)
	if err != nil {
		// Any settlement failure leaves the sale terminally declined
		// before the error is surfaced.
		if uerr := cos.store.UpdateSaleStatus(ctx, sale.ID, models.SaleStatusDeclined); uerr != nil {
			cos.logger.Error("Failed to mark sale declined", zap.Int64("sale_id", sale.ID), zap.Error(uerr))
		}
		cos.publishDeclined(ctx, sale, err.Error())
		util.CheckoutsTotal.WithLabelValues("declined").Inc()
		return nil, err
	}

	util.CheckoutsTotal.WithLabelValues("approved").Inc()
	return resp, nil
}

func (cos *CheckoutService) settle(
	ctx context.Context,
	sale *models.Sale,
	items []models.CartItem,
	coupon *models.Coupon,
	decision CouponDecision,
	plans []PaymentPlan,
	cardRef string,
) (*CheckoutResponse, error) {
	for _, plan := range plans {
		util.PaymentAttemptsTotal.WithLabelValues(plan.Kind).Inc()

		switch plan.Kind {
		case models.PaymentKindCoupon:
			// Coupons are pre-validated and non-reversible once applied
			payment := &models.Payment{
				SaleID:     sale.ID,
				Kind:       models.PaymentKindCoupon,
				Amount:     plan.Amount,
				CouponCode: &coupon.Code,
				Status:     models.PaymentStatusApproved,
			}
			if err := cos.store.CreatePayment(ctx, payment); err != nil {
				return nil, fmt.Errorf("failed to create coupon payment: %w", err)
			}

		case models.PaymentKindCard:
			payment := &models.Payment{
				SaleID:  sale.ID,
				Kind:    models.PaymentKindCard,
				Amount:  plan.Amount,
				CardRef: &cardRef,
				Status:  models.PaymentStatusPending,
			}
			if err := cos.store.CreatePayment(ctx, payment); err != nil {
				return nil, fmt.Errorf("failed to create card payment: %w", err)
			}

			chargeCtx, cancel := context.WithTimeout(ctx, cos.gatewayTimeout)
			result, err := cos.gateway.Charge(chargeCtx, ChargeRequest{
				PaymentID: payment.ID,
				Amount:    plan.Amount,
				CardRef:   cardRef,
			})
			cancel()
			if err != nil {
				// Timeout or transport failure is a decline, never a
				// payment stranded in PENDING.
				cos.logger.Warn("Gateway call failed, declining payment",
					zap.Int64("payment_id", payment.ID),
					zap.Error(err))
				result = ChargeResult{Approved: false, Message: err.Error()}
			}

			status := models.PaymentStatusApproved
			if !result.Approved {
				status = models.PaymentStatusDeclined
				util.PaymentDeclinedTotal.Inc()
			}
			var gatewayRef *string
			if result.TransactionRef != "" {
				gatewayRef = &result.TransactionRef
			}
			if err := cos.store.UpdatePaymentStatus(ctx, payment.ID, status, gatewayRef); err != nil {
				return nil, fmt.Errorf("failed to update payment status: %w", err)
			}
		}
	}

	payments, err := cos.store.GetPaymentsBySale(ctx, sale.ID)
	if err != nil {
		return nil, err
	}

	status := DeriveSaleStatus(payments)
	if err := cos.store.UpdateSaleStatus(ctx, sale.ID, status); err != nil {
		return nil, fmt.Errorf("failed to update sale status: %w", err)
	}

	if status != models.SaleStatusApproved {
		// A consumed coupon leg is not compensated here; see DESIGN.md.
		if coupon != nil {
			cos.logger.Warn("Sale declined with approved coupon leg",
				zap.Int64("sale_id", sale.ID),
				zap.String("coupon", coupon.Code))
		}
		return nil, fmt.Errorf("%w: sale %d", models.ErrPaymentDeclined, sale.ID)
	}

	return cos.finalizeApproved(ctx, sale, items, coupon, decision)
}

func (cos *CheckoutService) finalizeApproved(
	ctx context.Context,
	sale *models.Sale,
	items []models.CartItem,
	coupon *models.Coupon,
	decision CouponDecision,
) (*CheckoutResponse, error) {
	eventItems := make([]models.SaleItemData, 0, len(items))

	for _, item := range items {
		consumed, err := cos.ledger.Consume(ctx, item.BookID, item.Quantity)
		if err != nil {
			// Stock vanished between the pre-check and now. Payment may
			// already be captured; known reconciliation gap.
			cos.logger.Error("Stock consumption failed after payment approval",
				zap.Int64("sale_id", sale.ID),
				zap.Int64("book_id", item.BookID),
				zap.Error(err))
			return nil, err
		}
		for _, c := range consumed {
			cos.logger.Debug("Lot consumed",
				zap.Int64("lot_id", c.LotID),
				zap.Int("quantity", c.Quantity),
				zap.Int64("unit_cost", c.UnitCost))
		}
		eventItems = append(eventItems, models.SaleItemData{
			BookID:   item.BookID,
			Quantity: item.Quantity,
		})
	}

	var exchangeCouponCode string
	if coupon != nil {
		redeemed, err := cos.store.MarkCouponUsed(ctx, coupon.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to redeem coupon: %w", err)
		}
		if !redeemed {
			// A concurrent settlement redeemed the coupon first; this
			// sale must not keep the discount.
			return nil, fmt.Errorf("%w: coupon %s already redeemed", models.ErrCouponInvalid, coupon.Code)
		}

		// A coupon worth more than the purchase returns the difference to
		// the buyer as a fresh exchange coupon.
		if decision.Excess > 0 {
			excessCoupon, err := cos.issueExchangeCoupon(ctx, sale.CustomerID, decision.Excess)
			if err != nil {
				return nil, err
			}
			exchangeCouponCode = excessCoupon.Code
		}
	}

	trackingCode := GenerateTrackingCode()
	if err := cos.store.SetTrackingCode(ctx, sale.ID, trackingCode); err != nil {
		return nil, fmt.Errorf("failed to set tracking code: %w", err)
	}

	event := &models.SaleApprovedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSaleApproved,
			Timestamp: time.Now(),
		},
		SaleID:       sale.ID,
		CustomerID:   sale.CustomerID,
		Total:        sale.Total,
		TrackingCode: trackingCode,
		Items:        eventItems,
	}
	if err := cos.eventPublisher.PublishSaleApproved(ctx, event); err != nil {
		cos.logger.Error("Failed to publish SaleApproved event", zap.Error(err))
	}

	cos.logger.Info("Sale approved",
		zap.Int64("sale_id", sale.ID),
		zap.Int64("total", sale.Total),
		zap.String("tracking_code", trackingCode))

	return &CheckoutResponse{
		SaleID:             sale.ID,
		Status:             models.SaleStatusApproved,
		Total:              sale.Total,
		Discount:           sale.DiscountApplied,
		TrackingCode:       trackingCode,
		ExchangeCouponCode: exchangeCouponCode,
	}, nil
}

func (cos *CheckoutService) issueExchangeCoupon(ctx context.Context, customerID, value int64) (*models.Coupon, error) {
	coupon := &models.Coupon{
		Code:       GenerateExchangeCouponCode(),
		Value:      value,
		Kind:       models.CouponKindExchange,
		ValidUntil: time.Now().AddDate(0, 0, 30),
		Active:     true,
		CustomerID: &customerID,
	}
	if err := cos.store.InsertCoupon(ctx, coupon); err != nil {
		return nil, fmt.Errorf("failed to issue exchange coupon: %w", err)
	}

	event := &models.CouponIssuedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCouponIssued,
			Timestamp: time.Now(),
		},
		CouponCode: coupon.Code,
		CustomerID: customerID,
		Value:      value,
		Kind:       models.CouponKindExchange,
	}
	if err := cos.eventPublisher.PublishCouponIssued(ctx, event); err != nil {
		cos.logger.Error("Failed to publish CouponIssued event", zap.Error(err))
	}

	return coupon, nil
}

func (cos *CheckoutService) publishDeclined(ctx context.Context, sale *models.Sale, reason string) {
	event := &models.SaleDeclinedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSaleDeclined,
			Timestamp: time.Now(),
		},
		SaleID:     sale.ID,
		CustomerID: sale.CustomerID,
		Reason:     reason,
	}
	if err := cos.eventPublisher.PublishSaleDeclined(ctx, event); err != nil {
		cos.logger.Error("Failed to publish SaleDeclined event", zap.Error(err))
	}
}

// MarkInTransit moves an approved sale into transit
func (cos *CheckoutService) MarkInTransit(ctx context.Context, saleID int64) error {
	return cos.transition(ctx, saleID, models.SaleStatusApproved, models.SaleStatusInTransit)
}

// MarkDelivered completes delivery of an in-transit sale
func (cos *CheckoutService) MarkDelivered(ctx context.Context, saleID int64) error {
	return cos.transition(ctx, saleID, models.SaleStatusInTransit, models.SaleStatusDelivered)
}

func (cos *CheckoutService) transition(ctx context.Context, saleID int64, from, to string) error {
	sale, err := cos.store.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	if sale.Status != from {
		return fmt.Errorf("%w: sale %d is %s, expected %s", models.ErrStateConflict, saleID, sale.Status, from)
	}
	return cos.store.UpdateSaleStatus(ctx, saleID, to)
}

// AllocatePayments plans the settlement legs for a payment method.
// A coupon leg covers the discount; a card leg covers the residual and is
// subject to the minimum card amount unless the balance is already zero.
func AllocatePayments(method string, total, discount int64, cardRef string) ([]PaymentPlan, error) {
	residual := total - discount
	if residual < 0 {
		residual = 0
	}

	var plans []PaymentPlan
	if discount > 0 {
		plans = append(plans, PaymentPlan{Kind: models.PaymentKindCoupon, Amount: discount})
	}

	switch method {
	case models.PaymentMethodCoupon:
		if discount == 0 {
			return nil, fmt.Errorf("%w: no coupon applied to cart", models.ErrValidation)
		}
		if residual > 0 {
			return nil, fmt.Errorf("%w: coupon does not cover the total, use mixed payment", models.ErrValidation)
		}

	case models.PaymentMethodCard, models.PaymentMethodMixed:
		if residual == 0 {
			break
		}
		if cardRef == "" {
			return nil, fmt.Errorf("%w: card reference is required", models.ErrValidation)
		}
		if residual < models.MinCardPaymentCents {
			return nil, fmt.Errorf("%w: card payment below minimum of %d cents", models.ErrValidation, models.MinCardPaymentCents)
		}
		plans = append(plans, PaymentPlan{Kind: models.PaymentKindCard, Amount: residual})

	default:
		return nil, fmt.Errorf("%w: unknown payment method %q", models.ErrValidation, method)
	}

	return plans, nil
}

// DeriveSaleStatus computes a sale's status from its payment legs:
// any declined leg declines the sale, all approved approves it, anything
// else keeps it processing.
func DeriveSaleStatus(payments []models.Payment) string {
	if len(payments) == 0 {
		return models.SaleStatusProcessing
	}

	allApproved := true
	for _, p := range payments {
		if p.Status == models.PaymentStatusDeclined {
			return models.SaleStatusDeclined
		}
		if p.Status != models.PaymentStatusApproved {
			allApproved = false
		}
	}
	if allApproved {
		return models.SaleStatusApproved
	}
	return models.SaleStatusProcessing
}

const trackingCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateTrackingCode builds a TRK-prefixed shipment code
func GenerateTrackingCode() string {
	var sb strings.Builder
	sb.WriteString("TRK")
	for i := 0; i < 9; i++ {
		sb.WriteByte(trackingCodeChars[rand.Intn(len(trackingCodeChars))])
	}
	return sb.String()
}
