package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrStockUnseeded reports that the book's counters do not exist yet, so
// the advisory verdict must come from the database instead.
var ErrStockUnseeded = errors.New("stock counters not seeded")

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

//go:embed scripts/commit_stock.lua
var commitStockScript string

// Client wraps redis for the advisory reservation cache and process
// coordination locks. Reservation counts here are soft state: the
// database FIFO consume remains the source of truth for stock.
type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	commitScript  *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
		commitScript:  redis.NewScript(commitStockScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(bookID int64) string {
	return fmt.Sprintf("stock:%d", bookID)
}

// ReserveStock atomically takes an advisory reservation. Returns false
// when the unreserved availability cannot cover qty, and ErrStockUnseeded
// when the book has no counters yet.
func (c *Client) ReserveStock(ctx context.Context, bookID int64, qty int) (bool, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{stockKey(bookID)}, qty).Result()
	if err != nil {
		return false, fmt.Errorf("reserve stock script failed: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}
	return parseReserveResult(code)
}

// parseReserveResult maps the reserve script's return code: 1 granted,
// 0 rejected, -1 key unseeded.
func parseReserveResult(code int64) (bool, error) {
	switch code {
	case 1:
		return true, nil
	case 0:
		return false, nil
	case -1:
		return false, ErrStockUnseeded
	default:
		return false, fmt.Errorf("unexpected reserve script result %d", code)
	}
}

// ReleaseStock releases an advisory reservation. Idempotent: releasing an
// already-released quantity leaves counters unchanged.
func (c *Client) ReleaseStock(ctx context.Context, bookID int64, qty int) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{stockKey(bookID)}, qty).Result()
	if err != nil {
		return fmt.Errorf("release stock script failed: %w", err)
	}
	return nil
}

// CommitStock mirrors an authoritative database deduction into the cache
func (c *Client) CommitStock(ctx context.Context, bookID int64, qty int) error {
	_, err := c.commitScript.Run(ctx, c.rdb, []string{stockKey(bookID)}, qty).Result()
	if err != nil {
		return fmt.Errorf("commit stock script failed: %w", err)
	}
	return nil
}

// InitStock seeds the availability counters for a book
func (c *Client) InitStock(ctx context.Context, bookID int64, available, reserved int) error {
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, stockKey(bookID), "available", available)
	pipe.HSet(ctx, stockKey(bookID), "reserved", reserved)

	_, err := pipe.Exec(ctx)
	return err
}

// AddStock increments the cached availability after a replenish
func (c *Client) AddStock(ctx context.Context, bookID int64, qty int) error {
	return c.rdb.HIncrBy(ctx, stockKey(bookID), "available", int64(qty)).Err()
}

// GetStock retrieves the cached counters for a book
func (c *Client) GetStock(ctx context.Context, bookID int64) (available, reserved int, err error) {
	result, err := c.rdb.HGetAll(ctx, stockKey(bookID)).Result()
	if err != nil {
		return 0, 0, err
	}
	if len(result) == 0 {
		return 0, 0, fmt.Errorf("stock counters not found for book %d", bookID)
	}

	fmt.Sscanf(result["available"], "%d", &available)
	fmt.Sscanf(result["reserved"], "%d", &reserved)
	return available, reserved, nil
}

// AcquireLock acquires a distributed lock, used by the sweeper to stay a
// singleton across processes
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
