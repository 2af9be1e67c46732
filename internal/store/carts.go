package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookstore-service/internal/models"

	"github.com/lib/pq"
)

// GetActiveCart retrieves the pending cart for a customer, nil if absent
func (s *Store) GetActiveCart(ctx context.Context, customerID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart,
		"SELECT * FROM carts WHERE customer_id = $1 AND status = $2",
		customerID, models.CartStatusPending)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// CreateCart inserts a pending cart for the customer. The at-most-one
// pending cart invariant is a partial unique index on
// (customer_id) WHERE status = 'PENDING'; under a concurrent duplicate
// create the loser re-reads the winner's cart instead of failing.
func (s *Store) CreateCart(ctx context.Context, customerID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, `
		INSERT INTO carts (customer_id, status)
		VALUES ($1, $2)
		RETURNING *`,
		customerID, models.CartStatusPending)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return s.GetActiveCart(ctx, customerID)
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return &cart, nil
}

// GetCartItems retrieves all items of a cart
func (s *Store) GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE cart_id = $1 ORDER BY id", cartID)
	return items, err
}

// FindCartItem retrieves the item row for a book in a cart, nil if absent
func (s *Store) FindCartItem(ctx context.Context, cartID, bookID int64) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item,
		"SELECT * FROM cart_items WHERE cart_id = $1 AND book_id = $2", cartID, bookID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetCartItem retrieves a cart item by ID within a cart
func (s *Store) GetCartItem(ctx context.Context, cartID, itemID int64) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item,
		"SELECT * FROM cart_items WHERE id = $1 AND cart_id = $2", itemID, cartID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: cart item %d", models.ErrNotFound, itemID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// InsertCartItem creates a new cart item
func (s *Store) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (cart_id, book_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query, item.CartID, item.BookID, item.Quantity)
}

// UpdateCartItemQuantity replaces an item's quantity
func (s *Store) UpdateCartItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2", quantity, itemID)
	return err
}

// DeleteCartItem removes one item from a cart
func (s *Store) DeleteCartItem(ctx context.Context, itemID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1", itemID)
	return err
}

// DeleteCartItems removes all items from a cart
func (s *Store) DeleteCartItems(ctx context.Context, cartID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID)
	return err
}

// SetCartCoupon stores the applied coupon and discount on the cart
func (s *Store) SetCartCoupon(ctx context.Context, cartID int64, code string, discount int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE carts SET coupon_code = $1, discount_applied = $2, updated_at = NOW() WHERE id = $3",
		code, discount, cartID)
	return err
}

// ClearCartCoupon removes any applied coupon from the cart
func (s *Store) ClearCartCoupon(ctx context.Context, cartID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE carts SET coupon_code = NULL, discount_applied = 0, updated_at = NOW() WHERE id = $1",
		cartID)
	return err
}

// TransitionCartStatus moves a cart out of PENDING. The WHERE clause makes
// the transition idempotent and safe against a concurrent checkout or sweep
// racing over the same cart: only one caller observes rows=1.
func (s *Store) TransitionCartStatus(ctx context.Context, cartID int64, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE carts SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, cartID, models.CartStatusPending)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows == 1, err
}

// SelectExpiredCarts returns pending carts created before the cutoff
func (s *Store) SelectExpiredCarts(ctx context.Context, cutoff time.Time) ([]models.Cart, error) {
	var carts []models.Cart
	err := s.db.SelectContext(ctx, &carts,
		"SELECT * FROM carts WHERE status = $1 AND created_at < $2 ORDER BY created_at",
		models.CartStatusPending, cutoff)
	return carts, err
}

// SelectNearExpiryCarts returns pending carts whose age falls in
// [from, to), the band just before the TTL
func (s *Store) SelectNearExpiryCarts(ctx context.Context, from, to time.Time) ([]models.Cart, error) {
	var carts []models.Cart
	err := s.db.SelectContext(ctx, &carts,
		"SELECT * FROM carts WHERE status = $1 AND created_at >= $2 AND created_at < $3",
		models.CartStatusPending, from, to)
	return carts, err
}
