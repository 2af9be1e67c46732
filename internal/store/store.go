package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookstore-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetBook retrieves a book by ID
func (s *Store) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	var book models.Book
	err := s.db.GetContext(ctx, &book, "SELECT * FROM books WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: book %d", models.ErrBookNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBooksByIDs retrieves multiple books by IDs
func (s *Store) GetBooksByIDs(ctx context.Context, ids []int64) ([]models.Book, error) {
	if len(ids) == 0 {
		return []models.Book{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM books WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var books []models.Book
	err = s.db.SelectContext(ctx, &books, query, args...)
	return books, err
}

// ActiveBookIDs lists the IDs of all active books, used to seed the
// availability cache at startup
func (s *Store) ActiveBookIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, "SELECT id FROM books WHERE active = true ORDER BY id")
	return ids, err
}

// UpdateSalePrice sets a new sale price for a book
func (s *Store) UpdateSalePrice(ctx context.Context, bookID, salePrice int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE books SET sale_price = $1 WHERE id = $2",
		salePrice, bookID)
	return err
}

// DeactivateStaleBooks marks active books with zero remaining stock and no
// approved sale in the last staleDays as inactive. Returns affected rows.
func (s *Store) DeactivateStaleBooks(ctx context.Context, staleDays int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET active = false, inactive_at = NOW()
		WHERE active = true
		  AND COALESCE((SELECT SUM(l.quantity_remaining) FROM inventory_lots l WHERE l.book_id = books.id), 0) = 0
		  AND NOT EXISTS (
			SELECT 1 FROM sale_items si
			JOIN sales sa ON sa.id = si.sale_id
			WHERE si.book_id = books.id
			  AND sa.status = $1
			  AND sa.created_at > NOW() - ($2 || ' days')::interval
		  )`,
		models.SaleStatusApproved, staleDays)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetCustomer retrieves a customer by ID
func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: customer %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetDefaultAddress retrieves the first delivery address for a customer
func (s *Store) GetDefaultAddress(ctx context.Context, customerID int64) (*models.Address, error) {
	var address models.Address
	err := s.db.GetContext(ctx, &address,
		"SELECT * FROM addresses WHERE customer_id = $1 ORDER BY id LIMIT 1", customerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: customer %d", models.ErrMissingAddress, customerID)
	}
	if err != nil {
		return nil, err
	}
	return &address, nil
}
