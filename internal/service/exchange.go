package service

import (
	"context"
	"fmt"
	"time"

	"bookstore-service/internal/broker"
	"bookstore-service/internal/models"
	"bookstore-service/internal/store"
	"bookstore-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExchangeService handles post-delivery returns: authorizing an exchange,
// issuing the compensating coupon, and re-entering received stock.
type ExchangeService struct {
	store          *store.Store
	ledger         *InventoryLedger
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewExchangeService creates a new exchange service
func NewExchangeService(
	store *store.Store,
	ledger *InventoryLedger,
	eventPublisher *broker.EventPublisher,
) *ExchangeService {
	return &ExchangeService{
		store:          store,
		ledger:         ledger,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// ExchangeLine is one returned line in an exchange request
type ExchangeLine struct {
	SaleItemID int64 `json:"sale_item_id" binding:"required"`
	Quantity   int   `json:"quantity" binding:"required"`
}

// ExchangeRequest asks to return items from a delivered sale
type ExchangeRequest struct {
	SaleID int64          `json:"sale_id" binding:"required"`
	Reason string         `json:"reason"`
	Items  []ExchangeLine `json:"items" binding:"required"`
}

// ExchangeResult is returned after an exchange is authorized
type ExchangeResult struct {
	ExchangeID int64  `json:"exchange_id"`
	Status     string `json:"status"`
	CouponCode string `json:"coupon_code"`
	Value      int64  `json:"value"`
}

// RequestExchange authorizes a return against a delivered sale and issues
// an exchange coupon worth the returned items at their sold unit prices.
// Stock does not move until the items physically arrive back.
func (es *ExchangeService) RequestExchange(ctx context.Context, req *ExchangeRequest) (*ExchangeResult, error) {
	ctx, span := util.StartSpan(ctx, "ExchangeService.RequestExchange")
	defer span.End()

	sale, err := es.store.GetSale(ctx, req.SaleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != models.SaleStatusDelivered {
		return nil, fmt.Errorf("%w: sale %d is %s, exchanges require %s",
			models.ErrStateConflict, sale.ID, sale.Status, models.SaleStatusDelivered)
	}

	saleItems, err := es.store.GetSaleItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}

	value, err := ExchangeValue(req.Items, saleItems)
	if err != nil {
		return nil, err
	}

	coupon := &models.Coupon{
		Code:       GenerateExchangeCouponCode(),
		Value:      value,
		Kind:       models.CouponKindExchange,
		ValidUntil: time.Now().AddDate(0, 0, 30),
		Active:     true,
		CustomerID: &sale.CustomerID,
	}
	if err := es.store.InsertCoupon(ctx, coupon); err != nil {
		return nil, fmt.Errorf("failed to issue exchange coupon: %w", err)
	}

	exchange := &models.Exchange{
		SaleID:     sale.ID,
		Status:     models.ExchangeStatusAuthorized,
		Reason:     req.Reason,
		CouponCode: &coupon.Code,
	}
	if err := es.store.CreateExchange(ctx, exchange); err != nil {
		return nil, fmt.Errorf("failed to create exchange: %w", err)
	}

	for _, line := range req.Items {
		item := &models.ExchangeItem{
			ExchangeID: exchange.ID,
			SaleItemID: line.SaleItemID,
			Quantity:   line.Quantity,
		}
		if err := es.store.CreateExchangeItem(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to create exchange item: %w", err)
		}
	}

	if err := es.store.UpdateSaleStatus(ctx, sale.ID, models.SaleStatusExchangeAuthorized); err != nil {
		return nil, err
	}

	util.ExchangesTotal.WithLabelValues("authorized").Inc()

	event := &models.CouponIssuedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCouponIssued,
			Timestamp: time.Now(),
		},
		CouponCode: coupon.Code,
		CustomerID: sale.CustomerID,
		Value:      value,
		Kind:       models.CouponKindExchange,
	}
	if err := es.eventPublisher.PublishCouponIssued(ctx, event); err != nil {
		es.logger.Error("Failed to publish CouponIssued event", zap.Error(err))
	}

	es.logger.Info("Exchange authorized",
		zap.Int64("sale_id", sale.ID),
		zap.Int64("exchange_id", exchange.ID),
		zap.String("coupon", coupon.Code),
		zap.Int64("value", value))

	return &ExchangeResult{
		ExchangeID: exchange.ID,
		Status:     exchange.Status,
		CouponCode: coupon.Code,
		Value:      value,
	}, nil
}

// ConfirmReceipt records the physical arrival of returned items. Each
// returned line re-enters inventory as a fresh lot costed at the book's
// highest current unit cost, and the sale becomes exchange-completed.
func (es *ExchangeService) ConfirmReceipt(ctx context.Context, saleID int64) error {
	ctx, span := util.StartSpan(ctx, "ExchangeService.ConfirmReceipt")
	defer span.End()

	sale, err := es.store.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	if sale.Status != models.SaleStatusExchangeAuthorized {
		return fmt.Errorf("%w: sale %d is %s, receipt requires %s",
			models.ErrStateConflict, sale.ID, sale.Status, models.SaleStatusExchangeAuthorized)
	}

	exchange, err := es.store.GetExchangeBySale(ctx, saleID)
	if err != nil {
		return err
	}

	exchangeItems, err := es.store.GetExchangeItems(ctx, exchange.ID)
	if err != nil {
		return err
	}

	saleItems, err := es.store.GetSaleItems(ctx, saleID)
	if err != nil {
		return err
	}
	byID := make(map[int64]models.SaleItem, len(saleItems))
	for _, si := range saleItems {
		byID[si.ID] = si
	}

	for _, item := range exchangeItems {
		si, ok := byID[item.SaleItemID]
		if !ok {
			return fmt.Errorf("%w: sale item %d", models.ErrNotFound, item.SaleItemID)
		}
		if _, err := es.ledger.Reenter(ctx, si.BookID, item.Quantity); err != nil {
			return fmt.Errorf("failed to re-enter stock for book %d: %w", si.BookID, err)
		}
	}

	if err := es.store.UpdateExchangeStatus(ctx, exchange.ID, models.ExchangeStatusCompleted); err != nil {
		return err
	}
	if err := es.store.UpdateSaleStatus(ctx, saleID, models.SaleStatusExchangeCompleted); err != nil {
		return err
	}

	util.ExchangesTotal.WithLabelValues("completed").Inc()

	es.logger.Info("Exchange completed",
		zap.Int64("sale_id", saleID),
		zap.Int64("exchange_id", exchange.ID))

	return nil
}

// ExchangeValue prices the requested return lines against the sale's
// snapshot items: each line is worth its sold unit price times the
// returned quantity. Lines must reference items of the sale and cannot
// return more than was sold, counting repeats of the same item.
func ExchangeValue(lines []ExchangeLine, saleItems []models.SaleItem) (int64, error) {
	if len(lines) == 0 {
		return 0, fmt.Errorf("%w: no items to exchange", models.ErrValidation)
	}

	byID := make(map[int64]models.SaleItem, len(saleItems))
	for _, si := range saleItems {
		byID[si.ID] = si
	}

	returned := make(map[int64]int, len(lines))
	var value int64
	for _, line := range lines {
		si, ok := byID[line.SaleItemID]
		if !ok {
			return 0, fmt.Errorf("%w: sale item %d", models.ErrNotFound, line.SaleItemID)
		}
		if line.Quantity <= 0 {
			return 0, fmt.Errorf("%w: %d", models.ErrInvalidQuantity, line.Quantity)
		}
		returned[line.SaleItemID] += line.Quantity
		if returned[line.SaleItemID] > si.Quantity {
			return 0, fmt.Errorf("%w: cannot return %d of sale item %d, only %d sold",
				models.ErrValidation, returned[line.SaleItemID], line.SaleItemID, si.Quantity)
		}
		value += si.UnitPrice * int64(line.Quantity)
	}

	return value, nil
}
