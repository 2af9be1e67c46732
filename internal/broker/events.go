package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"bookstore-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishCartExpired publishes CartExpired event
func (ep *EventPublisher) PublishCartExpired(ctx context.Context, event *models.CartExpiredEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCartNearExpiry publishes CartNearExpiry event
func (ep *EventPublisher) PublishCartNearExpiry(ctx context.Context, event *models.CartNearExpiryEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSaleApproved publishes SaleApproved event
func (ep *EventPublisher) PublishSaleApproved(ctx context.Context, event *models.SaleApprovedEvent) error {
	key := fmt.Sprintf("sale-%d", event.SaleID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSaleDeclined publishes SaleDeclined event
func (ep *EventPublisher) PublishSaleDeclined(ctx context.Context, event *models.SaleDeclinedEvent) error {
	key := fmt.Sprintf("sale-%d", event.SaleID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCouponIssued publishes CouponIssued event
func (ep *EventPublisher) PublishCouponIssued(ctx context.Context, event *models.CouponIssuedEvent) error {
	key := fmt.Sprintf("coupon-%s", event.CouponCode)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishStockEntry publishes StockEntry event
func (ep *EventPublisher) PublishStockEntry(ctx context.Context, event *models.StockEntryEvent) error {
	key := fmt.Sprintf("book-%d", event.BookID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed events to registered callbacks
type EventHandler struct {
	onCartNearExpiry func(context.Context, *models.CartNearExpiryEvent) error
	onCartExpired    func(context.Context, *models.CartExpiredEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnCartNearExpiry registers a handler for CartNearExpiry events
func (eh *EventHandler) OnCartNearExpiry(handler func(context.Context, *models.CartNearExpiryEvent) error) {
	eh.onCartNearExpiry = handler
}

// OnCartExpired registers a handler for CartExpired events
func (eh *EventHandler) OnCartExpired(handler func(context.Context, *models.CartExpiredEvent) error) {
	eh.onCartExpired = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeCartNearExpiry:
		if eh.onCartNearExpiry != nil {
			var event models.CartNearExpiryEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CartNearExpiry event: %w", err)
			}
			return eh.onCartNearExpiry(ctx, &event)
		}

	case models.EventTypeCartExpired:
		if eh.onCartExpired != nil {
			var event models.CartExpiredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CartExpired event: %w", err)
			}
			return eh.onCartExpired(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
