package worker

import (
	"context"

	"bookstore-service/internal/broker"
	"bookstore-service/internal/models"
	"bookstore-service/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker consumes cart lifecycle events and turns them into
// customer notifications. Delivery here is a log line; a real channel
// (email, push) plugs in behind notify without changing the consumer.
type NotificationWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a notification worker wired to the commerce events topic
func New(consumer *broker.Consumer) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		handler:  broker.NewEventHandler(),
		logger:   util.GetLogger(),
		done:     make(chan struct{}),
	}

	w.handler.OnCartNearExpiry(w.handleNearExpiry)
	w.handler.OnCartExpired(w.handleExpired)
	return w
}

// Start begins consuming in the background
func (w *NotificationWorker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	go func() {
		defer close(w.done)
		if err := w.consumer.StartConsuming(ctx, w.handler.HandleMessage); err != nil && ctx.Err() == nil {
			w.logger.Error("Notification consumer stopped", zap.Error(err))
		}
	}()

	w.logger.Info("Notification worker started")
}

// Stop cancels consumption and waits for the loop to exit
func (w *NotificationWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
	if err := w.consumer.Close(); err != nil {
		w.logger.Warn("Failed to close consumer", zap.Error(err))
	}
	w.logger.Info("Notification worker stopped")
}

func (w *NotificationWorker) handleNearExpiry(ctx context.Context, event *models.CartNearExpiryEvent) error {
	w.logger.Info("Notifying customer of cart about to expire",
		zap.Int64("customer_id", event.CustomerID),
		zap.Int64("cart_id", event.CartID),
		zap.Time("expires_at", event.ExpiresAt))
	return nil
}

func (w *NotificationWorker) handleExpired(ctx context.Context, event *models.CartExpiredEvent) error {
	w.logger.Info("Notifying customer of expired cart",
		zap.Int64("customer_id", event.CustomerID),
		zap.Int64("cart_id", event.CartID),
		zap.Int("item_count", event.ItemCount))
	return nil
}
