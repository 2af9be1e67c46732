package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookstore-service/internal/broker"
	"bookstore-service/internal/models"
	"bookstore-service/internal/redisclient"
	"bookstore-service/internal/store"
	"bookstore-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RepricingPolicy computes a book's sale price after a stock entry.
// Isolated so the max-cost rule can be swapped for weighted-average FIFO
// costing without touching the ledger.
type RepricingPolicy interface {
	SalePrice(highestUnitCost, marginBps int64) int64
}

// MaxCostRepricing prices from the highest lot cost plus the pricing-group
// margin: sale = cost * (1 + margin).
type MaxCostRepricing struct{}

func (MaxCostRepricing) SalePrice(highestUnitCost, marginBps int64) int64 {
	return highestUnitCost + highestUnitCost*marginBps/10000
}

// InventoryLedger owns the append-only lot ledger: availability queries,
// advisory reservations, authoritative FIFO consumption, and replenishment.
type InventoryLedger struct {
	store            *store.Store
	redis            *redisclient.Client
	eventPublisher   *broker.EventPublisher
	repricing        RepricingPolicy
	defaultMarginBps int64
	logger           *zap.Logger
}

// NewInventoryLedger creates a new inventory ledger. defaultMarginBps is
// used for repricing books that carry no pricing-group margin.
func NewInventoryLedger(
	store *store.Store,
	redis *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	repricing RepricingPolicy,
	defaultMarginBps int64,
) *InventoryLedger {
	return &InventoryLedger{
		store:            store,
		redis:            redis,
		eventPublisher:   eventPublisher,
		repricing:        repricing,
		defaultMarginBps: defaultMarginBps,
		logger:           util.GetLogger(),
	}
}

// AvailableQuantity returns the remaining quantity across all lots
func (il *InventoryLedger) AvailableQuantity(ctx context.Context, bookID int64) (int, error) {
	return il.store.AvailableQuantity(ctx, bookID)
}

// CanReserve reports whether availability covers qty. Advisory only: stock
// may drift before Consume, which performs the authoritative check.
func (il *InventoryLedger) CanReserve(ctx context.Context, bookID int64, qty int) (bool, error) {
	available, err := il.store.AvailableQuantity(ctx, bookID)
	if err != nil {
		return false, err
	}
	return available >= qty, nil
}

// Reserve takes an advisory reservation via the redis fast path, falling
// back to a plain availability check when redis is unavailable. An
// unseeded book is decided by the database and its counters seeded on the
// way, so missing cache state never reads as zero stock.
func (il *InventoryLedger) Reserve(ctx context.Context, bookID int64, qty int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Reserve")
	defer span.End()

	ok, err := il.redis.ReserveStock(ctx, bookID, qty)
	if err != nil {
		if errors.Is(err, redisclient.ErrStockUnseeded) {
			return il.reserveUnseeded(ctx, bookID, qty)
		}
		il.logger.Warn("Redis reservation failed, falling back to DB check",
			zap.Int64("book_id", bookID),
			zap.Error(err))
		return il.CanReserve(ctx, bookID, qty)
	}
	return ok, nil
}

func (il *InventoryLedger) reserveUnseeded(ctx context.Context, bookID int64, qty int) (bool, error) {
	available, err := il.store.AvailableQuantity(ctx, bookID)
	if err != nil {
		return false, err
	}

	ok := available >= qty
	reserved := 0
	if ok {
		reserved = qty
	}
	if err := il.redis.InitStock(ctx, bookID, available, reserved); err != nil {
		il.logger.Warn("Failed to seed stock cache",
			zap.Int64("book_id", bookID),
			zap.Error(err))
	}
	return ok, nil
}

// Release drops an advisory reservation. Idempotent: releasing an
// already-released quantity changes nothing and returns no error.
func (il *InventoryLedger) Release(ctx context.Context, bookID int64, qty int) error {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Release")
	defer span.End()

	if err := il.redis.ReleaseStock(ctx, bookID, qty); err != nil {
		il.logger.Error("Failed to release reservation in Redis",
			zap.Int64("book_id", bookID),
			zap.Error(err))
	}
	return nil
}

// Consume deducts qty from the book's lots oldest-first inside a locked
// transaction and mirrors the result into the redis cache. Returns the
// consumed (lot, qty, unitCost) triples for costing.
func (il *InventoryLedger) Consume(ctx context.Context, bookID int64, qty int) ([]store.LotConsumption, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Consume")
	defer span.End()

	start := time.Now()
	defer func() {
		util.StockConsumeLatency.Observe(time.Since(start).Seconds())
	}()

	consumed, err := il.store.ConsumeLots(ctx, bookID, qty)
	if err != nil {
		util.StockConsumeFailedTotal.WithLabelValues("insufficient_stock").Inc()
		return nil, err
	}

	if err := il.redis.CommitStock(ctx, bookID, qty); err != nil {
		il.logger.Error("Failed to commit stock in Redis",
			zap.Int64("book_id", bookID),
			zap.Error(err))
	}

	return consumed, nil
}

// Replenish appends a new lot from a supplier entry and reprices the book
// when the computed sale price differs from the current one.
func (il *InventoryLedger) Replenish(
	ctx context.Context,
	bookID, supplierID int64,
	qty int,
	unitCost int64,
	entryDate time.Time,
	invoiceRef *string,
) (*models.InventoryLot, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Replenish")
	defer span.End()

	if qty <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidQuantity, qty)
	}
	if unitCost <= 0 {
		return nil, fmt.Errorf("%w: unit cost must be positive", models.ErrValidation)
	}

	book, err := il.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	lot := &models.InventoryLot{
		BookID:            bookID,
		SupplierID:        supplierID,
		QuantityRemaining: qty,
		UnitCost:          unitCost,
		EntryDate:         entryDate,
		InvoiceRef:        invoiceRef,
	}
	if err := il.store.InsertLot(ctx, lot); err != nil {
		return nil, fmt.Errorf("failed to insert lot: %w", err)
	}

	util.StockEntriesTotal.WithLabelValues("supplier").Inc()

	if err := il.reprice(ctx, book); err != nil {
		il.logger.Error("Failed to reprice book after replenish",
			zap.Int64("book_id", bookID),
			zap.Error(err))
	}

	if err := il.redis.AddStock(ctx, bookID, qty); err != nil {
		il.logger.Warn("Failed to update stock cache",
			zap.Int64("book_id", bookID),
			zap.Error(err))
	}

	event := &models.StockEntryEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockEntry,
			Timestamp: time.Now(),
		},
		BookID:   bookID,
		LotID:    lot.ID,
		Quantity: qty,
		UnitCost: unitCost,
	}
	if err := il.eventPublisher.PublishStockEntry(ctx, event); err != nil {
		il.logger.Error("Failed to publish StockEntry event", zap.Error(err))
	}

	return lot, nil
}

// Reenter appends a lot for returned exchange items, costed at the
// current highest unit cost among the book's lots.
func (il *InventoryLedger) Reenter(ctx context.Context, bookID int64, qty int) (*models.InventoryLot, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Reenter")
	defer span.End()

	if qty <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidQuantity, qty)
	}

	unitCost, err := il.store.HighestUnitCost(ctx, bookID)
	if err != nil {
		return nil, err
	}

	ref := "exchange re-entry"
	lot := &models.InventoryLot{
		BookID:            bookID,
		QuantityRemaining: qty,
		UnitCost:          unitCost,
		EntryDate:         time.Now(),
		InvoiceRef:        &ref,
	}
	if err := il.store.InsertLot(ctx, lot); err != nil {
		return nil, fmt.Errorf("failed to insert re-entry lot: %w", err)
	}

	util.StockEntriesTotal.WithLabelValues("exchange").Inc()

	if err := il.redis.AddStock(ctx, bookID, qty); err != nil {
		il.logger.Warn("Failed to update stock cache",
			zap.Int64("book_id", bookID),
			zap.Error(err))
	}

	return lot, nil
}

// HighestUnitCost returns the maximum unit cost among the book's lots
func (il *InventoryLedger) HighestUnitCost(ctx context.Context, bookID int64) (int64, error) {
	return il.store.HighestUnitCost(ctx, bookID)
}

// MovementHistory returns lot entries for a book within a period
func (il *InventoryLedger) MovementHistory(ctx context.Context, bookID int64, from, to time.Time) ([]models.InventoryLot, error) {
	return il.store.MovementHistory(ctx, bookID, from, to)
}

func (il *InventoryLedger) reprice(ctx context.Context, book *models.Book) error {
	highest, err := il.store.HighestUnitCost(ctx, book.ID)
	if err != nil {
		return err
	}
	if highest <= 0 {
		return nil
	}

	computed := il.repricing.SalePrice(highest, marginOrDefault(book.MarginBps, il.defaultMarginBps))
	if computed == book.SalePrice {
		return nil
	}

	il.logger.Info("Repricing book from highest lot cost",
		zap.Int64("book_id", book.ID),
		zap.Int64("old_price", book.SalePrice),
		zap.Int64("new_price", computed))

	return il.store.UpdateSalePrice(ctx, book.ID, computed)
}

// marginOrDefault falls back to the configured default margin for books
// without a pricing-group margin of their own.
func marginOrDefault(marginBps, defaultBps int64) int64 {
	if marginBps > 0 {
		return marginBps
	}
	return defaultBps
}

// SyncStockToRedis seeds the redis counters from the database on startup
func (il *InventoryLedger) SyncStockToRedis(ctx context.Context, bookIDs []int64) error {
	for _, bookID := range bookIDs {
		available, err := il.store.AvailableQuantity(ctx, bookID)
		if err != nil {
			il.logger.Error("Failed to read availability",
				zap.Int64("book_id", bookID),
				zap.Error(err))
			continue
		}

		if err := il.redis.InitStock(ctx, bookID, available, 0); err != nil {
			il.logger.Error("Failed to seed stock cache",
				zap.Int64("book_id", bookID),
				zap.Error(err))
		}
	}
	return nil
}
