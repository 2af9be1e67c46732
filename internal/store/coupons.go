package store

import (
	"context"
	"database/sql"
	"fmt"

	"bookstore-service/internal/models"
)

// GetCouponByCode retrieves a coupon by its unique code
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.GetContext(ctx, &coupon, "SELECT * FROM coupons WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: coupon %s", models.ErrNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// InsertCoupon creates a new coupon
func (s *Store) InsertCoupon(ctx context.Context, coupon *models.Coupon) error {
	query := `
		INSERT INTO coupons (code, value, kind, valid_until, used, active, min_purchase, customer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, coupon, query,
		coupon.Code, coupon.Value, coupon.Kind, coupon.ValidUntil,
		coupon.Used, coupon.Active, coupon.MinPurchase, coupon.CustomerID)
}

// MarkCouponUsed flips used to true. One-way: the WHERE clause refuses a
// coupon already redeemed, so double redemption surfaces as rows=0.
func (s *Store) MarkCouponUsed(ctx context.Context, couponID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE coupons SET used = true WHERE id = $1 AND used = false", couponID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows == 1, err
}

// ValidCouponsByCustomer lists a customer's unused, unexpired coupons
func (s *Store) ValidCouponsByCustomer(ctx context.Context, customerID int64) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := s.db.SelectContext(ctx, &coupons, `
		SELECT * FROM coupons
		WHERE customer_id = $1 AND used = false AND valid_until >= NOW()
		ORDER BY valid_until ASC`,
		customerID)
	return coupons, err
}
