package store

import (
	"context"
	"database/sql"
	"fmt"

	"bookstore-service/internal/models"
)

// CreateSale creates a new sale
func (s *Store) CreateSale(ctx context.Context, sale *models.Sale) error {
	query := `
		INSERT INTO sales (customer_id, address_id, status, total, discount_applied, coupon_code, freight_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, sale, query,
		sale.CustomerID, sale.AddressID, sale.Status, sale.Total,
		sale.DiscountApplied, sale.CouponCode, sale.FreightValue)
}

// GetSale retrieves a sale by ID
func (s *Store) GetSale(ctx context.Context, id int64) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale, "SELECT * FROM sales WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: sale %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// UpdateSaleStatus updates sale status
func (s *Store) UpdateSaleStatus(ctx context.Context, saleID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sales SET status = $1, updated_at = NOW() WHERE id = $2",
		status, saleID)
	return err
}

// SetTrackingCode stores the generated tracking code on a sale
func (s *Store) SetTrackingCode(ctx context.Context, saleID int64, code string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sales SET tracking_code = $1, updated_at = NOW() WHERE id = $2",
		code, saleID)
	return err
}

// CreateSaleItem creates an immutable sale line item
func (s *Store) CreateSaleItem(ctx context.Context, item *models.SaleItem) error {
	query := `
		INSERT INTO sale_items (sale_id, book_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.SaleID, item.BookID, item.Quantity, item.UnitPrice)
}

// GetSaleItems retrieves all line items of a sale
func (s *Store) GetSaleItems(ctx context.Context, saleID int64) ([]models.SaleItem, error) {
	var items []models.SaleItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM sale_items WHERE sale_id = $1 ORDER BY id", saleID)
	return items, err
}

// CreatePayment creates a payment leg for a sale
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (sale_id, kind, amount, card_ref, coupon_code, status, gateway_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, payment, query,
		payment.SaleID, payment.Kind, payment.Amount, payment.CardRef,
		payment.CouponCode, payment.Status, payment.GatewayRef)
}

// UpdatePaymentStatus updates one payment leg. Status moves are monotonic:
// only a PENDING payment can be resolved.
func (s *Store) UpdatePaymentStatus(ctx context.Context, paymentID int64, status string, gatewayRef *string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payments SET status = $1, gateway_ref = $2, updated_at = NOW() WHERE id = $3 AND status = $4",
		status, gatewayRef, paymentID, models.PaymentStatusPending)
	return err
}

// GetPaymentsBySale retrieves all payment legs of a sale in creation order
func (s *Store) GetPaymentsBySale(ctx context.Context, saleID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE sale_id = $1 ORDER BY id", saleID)
	return payments, err
}

// CreateExchange creates an exchange request
func (s *Store) CreateExchange(ctx context.Context, exchange *models.Exchange) error {
	query := `
		INSERT INTO exchanges (sale_id, status, reason, coupon_code)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, exchange, query,
		exchange.SaleID, exchange.Status, exchange.Reason, exchange.CouponCode)
}

// GetExchangeBySale retrieves the latest exchange for a sale
func (s *Store) GetExchangeBySale(ctx context.Context, saleID int64) (*models.Exchange, error) {
	var exchange models.Exchange
	err := s.db.GetContext(ctx, &exchange,
		"SELECT * FROM exchanges WHERE sale_id = $1 ORDER BY created_at DESC LIMIT 1", saleID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: exchange for sale %d", models.ErrNotFound, saleID)
	}
	if err != nil {
		return nil, err
	}
	return &exchange, nil
}

// UpdateExchangeStatus updates exchange status
func (s *Store) UpdateExchangeStatus(ctx context.Context, exchangeID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE exchanges SET status = $1, updated_at = NOW() WHERE id = $2",
		status, exchangeID)
	return err
}

// CreateExchangeItem creates one returned line of an exchange
func (s *Store) CreateExchangeItem(ctx context.Context, item *models.ExchangeItem) error {
	query := `
		INSERT INTO exchange_items (exchange_id, sale_item_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.ExchangeID, item.SaleItemID, item.Quantity)
}

// GetExchangeItems retrieves the returned lines of an exchange
func (s *Store) GetExchangeItems(ctx context.Context, exchangeID int64) ([]models.ExchangeItem, error) {
	var items []models.ExchangeItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM exchange_items WHERE exchange_id = $1 ORDER BY id", exchangeID)
	return items, err
}
