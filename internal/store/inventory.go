package store

import (
	"context"
	"fmt"
	"time"

	"bookstore-service/internal/models"
)

// LotConsumption records how much was taken from one lot during a FIFO
// deduction, for costing and audit.
type LotConsumption struct {
	LotID    int64
	Quantity int
	UnitCost int64
}

// AvailableQuantity sums quantity_remaining across all lots for a book
func (s *Store) AvailableQuantity(ctx context.Context, bookID int64) (int, error) {
	var total int
	err := s.db.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(quantity_remaining), 0) FROM inventory_lots WHERE book_id = $1",
		bookID)
	return total, err
}

// HighestUnitCost returns the maximum unit cost among a book's lots,
// zero if the book has no lots.
func (s *Store) HighestUnitCost(ctx context.Context, bookID int64) (int64, error) {
	var maxCost int64
	err := s.db.GetContext(ctx, &maxCost,
		"SELECT COALESCE(MAX(unit_cost), 0) FROM inventory_lots WHERE book_id = $1",
		bookID)
	return maxCost, err
}

// InsertLot appends a new inventory lot
func (s *Store) InsertLot(ctx context.Context, lot *models.InventoryLot) error {
	query := `
		INSERT INTO inventory_lots (book_id, supplier_id, quantity_remaining, unit_cost, entry_date, invoice_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return s.db.GetContext(ctx, &lot.ID, query,
		lot.BookID, lot.SupplierID, lot.QuantityRemaining, lot.UnitCost, lot.EntryDate, lot.InvoiceRef)
}

// ConsumeLots deducts qty from a book's lots oldest entry first, inside a
// single transaction with the rows locked. This is the authoritative stock
// check: the advisory CanReserve path may have passed for two carts racing
// over the same units, and only one of them commits here.
func (s *Store) ConsumeLots(ctx context.Context, bookID int64, qty int) ([]LotConsumption, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var lots []models.InventoryLot
	err = tx.SelectContext(ctx, &lots, `
		SELECT * FROM inventory_lots
		WHERE book_id = $1 AND quantity_remaining > 0
		ORDER BY entry_date ASC, id ASC
		FOR UPDATE`,
		bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock inventory lots: %w", err)
	}

	consumed, err := PlanConsumption(lots, qty)
	if err != nil {
		return nil, err
	}

	for _, c := range consumed {
		_, err = tx.ExecContext(ctx,
			"UPDATE inventory_lots SET quantity_remaining = quantity_remaining - $1 WHERE id = $2",
			c.Quantity, c.LotID)
		if err != nil {
			return nil, fmt.Errorf("failed to deduct lot %d: %w", c.LotID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return consumed, nil
}

// PlanConsumption computes the FIFO deduction plan over lots already
// ordered by ascending entry date. The last lot touched is split; earlier
// lots are drained completely.
func PlanConsumption(lots []models.InventoryLot, qty int) ([]LotConsumption, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidQuantity, qty)
	}

	available := 0
	for _, lot := range lots {
		available += lot.QuantityRemaining
	}
	if available < qty {
		return nil, fmt.Errorf("%w: available=%d, requested=%d", models.ErrInsufficientStock, available, qty)
	}

	var plan []LotConsumption
	remaining := qty
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		if lot.QuantityRemaining <= 0 {
			continue
		}

		take := lot.QuantityRemaining
		if take > remaining {
			take = remaining
		}
		plan = append(plan, LotConsumption{LotID: lot.ID, Quantity: take, UnitCost: lot.UnitCost})
		remaining -= take
	}

	return plan, nil
}

// MovementHistory returns a book's lot entries within a period, newest first
func (s *Store) MovementHistory(ctx context.Context, bookID int64, from, to time.Time) ([]models.InventoryLot, error) {
	var lots []models.InventoryLot
	err := s.db.SelectContext(ctx, &lots, `
		SELECT * FROM inventory_lots
		WHERE book_id = $1 AND entry_date BETWEEN $2 AND $3
		ORDER BY entry_date DESC`,
		bookID, from, to)
	return lots, err
}
