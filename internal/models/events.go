package models

import "time"

// Event types
const (
	EventTypeCartExpired    = "CART_EXPIRED"
	EventTypeCartNearExpiry = "CART_NEAR_EXPIRY"
	EventTypeSaleApproved   = "SALE_APPROVED"
	EventTypeSaleDeclined   = "SALE_DECLINED"
	EventTypeCouponIssued   = "COUPON_ISSUED"
	EventTypeStockEntry     = "STOCK_ENTRY"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CartExpiredEvent published when the sweeper expires a cart
type CartExpiredEvent struct {
	BaseEvent
	CartID     int64 `json:"cart_id"`
	CustomerID int64 `json:"customer_id"`
	ItemCount  int   `json:"item_count"`
}

// CartNearExpiryEvent published for carts inside the notification window.
// Best-effort: a cart may be notified more than once.
type CartNearExpiryEvent struct {
	BaseEvent
	CartID     int64     `json:"cart_id"`
	CustomerID int64     `json:"customer_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// SaleApprovedEvent published when a sale settles successfully
type SaleApprovedEvent struct {
	BaseEvent
	SaleID       int64          `json:"sale_id"`
	CustomerID   int64          `json:"customer_id"`
	Total        int64          `json:"total"`
	TrackingCode string         `json:"tracking_code"`
	Items        []SaleItemData `json:"items"`
}

// SaleDeclinedEvent published when settlement fails
type SaleDeclinedEvent struct {
	BaseEvent
	SaleID     int64  `json:"sale_id"`
	CustomerID int64  `json:"customer_id"`
	Reason     string `json:"reason"`
}

// CouponIssuedEvent published when an exchange coupon is generated
type CouponIssuedEvent struct {
	BaseEvent
	CouponCode string `json:"coupon_code"`
	CustomerID int64  `json:"customer_id"`
	Value      int64  `json:"value"`
	Kind       string `json:"kind"`
}

// StockEntryEvent published on supplier entry or exchange re-entry
type StockEntryEvent struct {
	BaseEvent
	BookID   int64 `json:"book_id"`
	LotID    int64 `json:"lot_id"`
	Quantity int   `json:"quantity"`
	UnitCost int64 `json:"unit_cost"`
}

// SaleItemData represents item data in events
type SaleItemData struct {
	BookID    int64 `json:"book_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}
