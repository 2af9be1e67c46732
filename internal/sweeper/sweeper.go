package sweeper

import (
	"context"
	"time"

	"bookstore-service/config"
	"bookstore-service/internal/broker"
	"bookstore-service/internal/models"
	"bookstore-service/internal/redisclient"
	"bookstore-service/internal/service"
	"bookstore-service/internal/store"
	"bookstore-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const leaderLockKey = "cart-sweeper"

// Sweeper periodically expires stale pending carts, releases their advisory
// reservations, notifies carts close to their TTL, and deactivates books
// with no stock and no recent sales. A redis lock keeps the sweep a
// singleton when multiple instances run.
type Sweeper struct {
	store          *store.Store
	ledger         *service.InventoryLedger
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	cfg            config.SweeperConfig
	logger         *zap.Logger
	stop           chan struct{}
	done           chan struct{}
}

// New creates a new sweeper
func New(
	store *store.Store,
	ledger *service.InventoryLedger,
	redis *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	cfg config.SweeperConfig,
) *Sweeper {
	return &Sweeper{
		store:          store,
		ledger:         ledger,
		redis:          redis,
		eventPublisher: eventPublisher,
		cfg:            cfg,
		logger:         util.GetLogger(),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called
func (sw *Sweeper) Start() {
	go sw.run()
	sw.logger.Info("Cart sweeper started",
		zap.Duration("interval", sw.cfg.Interval),
		zap.Duration("cart_ttl", sw.cfg.CartTTL))
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish
func (sw *Sweeper) Stop() {
	close(sw.stop)
	<-sw.done
	sw.logger.Info("Cart sweeper stopped")
}

func (sw *Sweeper) run() {
	defer close(sw.done)

	ticker := time.NewTicker(sw.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-sw.stop:
			return
		case <-ticker.C:
			sw.tick()
		}
	}
}

func (sw *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), sw.cfg.Interval)
	defer cancel()

	// Lock TTL slightly under the interval so a crashed holder cannot
	// block the next tick.
	acquired, err := sw.redis.AcquireLock(ctx, leaderLockKey, sw.cfg.Interval-time.Second)
	if err != nil {
		sw.logger.Warn("Failed to acquire sweeper lock", zap.Error(err))
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := sw.redis.ReleaseLock(ctx, leaderLockKey); err != nil {
			sw.logger.Warn("Failed to release sweeper lock", zap.Error(err))
		}
	}()

	now := time.Now()
	sw.notifyNearExpiry(ctx, now)
	sw.expireCarts(ctx, now)
	sw.deactivateStaleBooks(ctx)
}

// expireCarts expires every pending cart past its TTL. Failures on one
// cart never block the rest of the batch.
func (sw *Sweeper) expireCarts(ctx context.Context, now time.Time) {
	carts, err := sw.store.SelectExpiredCarts(ctx, now.Add(-sw.cfg.CartTTL))
	if err != nil {
		sw.logger.Error("Failed to select expired carts", zap.Error(err))
		return
	}

	for _, cart := range carts {
		if err := sw.expireCart(ctx, &cart); err != nil {
			sw.logger.Error("Failed to expire cart",
				zap.Int64("cart_id", cart.ID),
				zap.Error(err))
		}
	}
}

func (sw *Sweeper) expireCart(ctx context.Context, cart *models.Cart) error {
	items, err := sw.store.GetCartItems(ctx, cart.ID)
	if err != nil {
		return err
	}

	// Transition first: if a checkout finalized the cart between the
	// select and now, we must not release its reservations.
	won, err := sw.store.TransitionCartStatus(ctx, cart.ID, models.CartStatusExpired)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	for _, item := range items {
		if err := sw.ledger.Release(ctx, item.BookID, item.Quantity); err != nil {
			sw.logger.Error("Failed to release reservation for expired cart",
				zap.Int64("cart_id", cart.ID),
				zap.Int64("book_id", item.BookID),
				zap.Error(err))
		}
	}

	util.CartsExpiredTotal.Inc()
	sw.logger.Info("Cart expired",
		zap.Int64("cart_id", cart.ID),
		zap.Int64("customer_id", cart.CustomerID),
		zap.Int("item_count", len(items)))

	event := &models.CartExpiredEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCartExpired,
			Timestamp: time.Now(),
		},
		CartID:     cart.ID,
		CustomerID: cart.CustomerID,
		ItemCount:  len(items),
	}
	if err := sw.eventPublisher.PublishCartExpired(ctx, event); err != nil {
		sw.logger.Error("Failed to publish CartExpired event", zap.Error(err))
	}

	return nil
}

// notifyNearExpiry publishes a notification for carts inside the band just
// before the TTL. Best-effort and at-least-once: a cart sitting in the band
// across two ticks is notified twice.
func (sw *Sweeper) notifyNearExpiry(ctx context.Context, now time.Time) {
	from := now.Add(-sw.cfg.CartTTL)
	to := from.Add(sw.cfg.NearExpiryWindow)

	carts, err := sw.store.SelectNearExpiryCarts(ctx, from, to)
	if err != nil {
		sw.logger.Error("Failed to select near-expiry carts", zap.Error(err))
		return
	}

	for _, cart := range carts {
		event := &models.CartNearExpiryEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeCartNearExpiry,
				Timestamp: time.Now(),
			},
			CartID:     cart.ID,
			CustomerID: cart.CustomerID,
			ExpiresAt:  cart.CreatedAt.Add(sw.cfg.CartTTL),
		}
		if err := sw.eventPublisher.PublishCartNearExpiry(ctx, event); err != nil {
			sw.logger.Error("Failed to publish CartNearExpiry event",
				zap.Int64("cart_id", cart.ID),
				zap.Error(err))
			continue
		}
		util.CartNearExpiryNotificationsTotal.Inc()
	}
}

func (sw *Sweeper) deactivateStaleBooks(ctx context.Context) {
	count, err := sw.store.DeactivateStaleBooks(ctx, sw.cfg.StaleBookDays)
	if err != nil {
		sw.logger.Error("Failed to deactivate stale books", zap.Error(err))
		return
	}
	if count > 0 {
		util.BooksDeactivatedTotal.Add(float64(count))
		sw.logger.Info("Deactivated stale books", zap.Int64("count", count))
	}
}
