package models

import "time"

// Book represents a catalog entry. Prices are stored in cents.
type Book struct {
	ID         int64      `db:"id" json:"id"`
	ISBN       string     `db:"isbn" json:"isbn"`
	Title      string     `db:"title" json:"title"`
	SalePrice  int64      `db:"sale_price" json:"sale_price"`
	MarginBps  int64      `db:"margin_bps" json:"margin_bps"`
	Active     bool       `db:"active" json:"active"`
	InactiveAt *time.Time `db:"inactive_at" json:"inactive_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// InventoryLot is an append-only stock entry consumed FIFO by entry date.
// Lots are never deleted; a fully consumed lot stays at quantity_remaining=0.
type InventoryLot struct {
	ID                int64     `db:"id" json:"id"`
	BookID            int64     `db:"book_id" json:"book_id"`
	SupplierID        int64     `db:"supplier_id" json:"supplier_id"`
	QuantityRemaining int       `db:"quantity_remaining" json:"quantity_remaining"`
	UnitCost          int64     `db:"unit_cost" json:"unit_cost"`
	EntryDate         time.Time `db:"entry_date" json:"entry_date"`
	InvoiceRef        *string   `db:"invoice_ref" json:"invoice_ref,omitempty"`
}

// Cart represents a customer shopping cart
type Cart struct {
	ID              int64     `db:"id" json:"id"`
	CustomerID      int64     `db:"customer_id" json:"customer_id"`
	Status          string    `db:"status" json:"status"`
	CouponCode      *string   `db:"coupon_code" json:"coupon_code,omitempty"`
	DiscountApplied int64     `db:"discount_applied" json:"discount_applied"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CartItem holds one row per distinct book per cart; re-adding a book
// increments quantity instead of duplicating the row.
type CartItem struct {
	ID       int64 `db:"id" json:"id"`
	CartID   int64 `db:"cart_id" json:"cart_id"`
	BookID   int64 `db:"book_id" json:"book_id"`
	Quantity int   `db:"quantity" json:"quantity"`
}

// Coupon represents a discount coupon. Used flips true once at redemption
// and never flips back.
type Coupon struct {
	ID          int64     `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Value       int64     `db:"value" json:"value"`
	Kind        string    `db:"kind" json:"kind"`
	ValidUntil  time.Time `db:"valid_until" json:"valid_until"`
	Used        bool      `db:"used" json:"used"`
	Active      bool      `db:"active" json:"active"`
	MinPurchase *int64    `db:"min_purchase" json:"min_purchase,omitempty"`
	CustomerID  *int64    `db:"customer_id" json:"customer_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Sale represents a checked-out cart with its payment set
type Sale struct {
	ID              int64     `db:"id" json:"id"`
	CustomerID      int64     `db:"customer_id" json:"customer_id"`
	AddressID       int64     `db:"address_id" json:"address_id"`
	Status          string    `db:"status" json:"status"`
	Total           int64     `db:"total" json:"total"`
	DiscountApplied int64     `db:"discount_applied" json:"discount_applied"`
	CouponCode      *string   `db:"coupon_code" json:"coupon_code,omitempty"`
	FreightValue    *int64    `db:"freight_value" json:"freight_value,omitempty"`
	TrackingCode    *string   `db:"tracking_code" json:"tracking_code,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// SaleItem is an immutable snapshot of quantity and unit price taken at
// checkout time, so later catalog price changes cannot corrupt the sale.
type SaleItem struct {
	ID        int64 `db:"id" json:"id"`
	SaleID    int64 `db:"sale_id" json:"sale_id"`
	BookID    int64 `db:"book_id" json:"book_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
	UnitPrice int64 `db:"unit_price" json:"unit_price"`
}

// Payment is one leg of a sale settlement (card or coupon)
type Payment struct {
	ID         int64     `db:"id" json:"id"`
	SaleID     int64     `db:"sale_id" json:"sale_id"`
	Kind       string    `db:"kind" json:"kind"`
	Amount     int64     `db:"amount" json:"amount"`
	CardRef    *string   `db:"card_ref" json:"card_ref,omitempty"`
	CouponCode *string   `db:"coupon_code" json:"coupon_code,omitempty"`
	Status     string    `db:"status" json:"status"`
	GatewayRef *string   `db:"gateway_ref" json:"gateway_ref,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Exchange is a post-delivery return request against a sale
type Exchange struct {
	ID         int64     `db:"id" json:"id"`
	SaleID     int64     `db:"sale_id" json:"sale_id"`
	Status     string    `db:"status" json:"status"`
	Reason     string    `db:"reason" json:"reason"`
	CouponCode *string   `db:"coupon_code" json:"coupon_code,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ExchangeItem is one returned line of an exchange
type ExchangeItem struct {
	ID         int64 `db:"id" json:"id"`
	ExchangeID int64 `db:"exchange_id" json:"exchange_id"`
	SaleItemID int64 `db:"sale_item_id" json:"sale_item_id"`
	Quantity   int   `db:"quantity" json:"quantity"`
}

// Customer is the minimal projection the core needs
type Customer struct {
	ID    int64  `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// Address is a customer delivery address
type Address struct {
	ID         int64  `db:"id" json:"id"`
	CustomerID int64  `db:"customer_id" json:"customer_id"`
	Street     string `db:"street" json:"street"`
	City       string `db:"city" json:"city"`
	ZipCode    string `db:"zip_code" json:"zip_code"`
}

// Cart statuses
const (
	CartStatusPending   = "PENDING"
	CartStatusExpired   = "EXPIRED"
	CartStatusFinalized = "FINALIZED"
)

// Sale statuses
const (
	SaleStatusPending            = "PENDING"
	SaleStatusProcessing         = "PROCESSING"
	SaleStatusApproved           = "APPROVED"
	SaleStatusDeclined           = "DECLINED"
	SaleStatusCancelled          = "CANCELLED"
	SaleStatusInTransit          = "IN_TRANSIT"
	SaleStatusDelivered          = "DELIVERED"
	SaleStatusExchangeRequested  = "EXCHANGE_REQUESTED"
	SaleStatusExchangeAuthorized = "EXCHANGE_AUTHORIZED"
	SaleStatusExchangeCompleted  = "EXCHANGE_COMPLETED"
)

// Payment kinds and statuses
const (
	PaymentKindCard   = "CARD"
	PaymentKindCoupon = "COUPON"

	PaymentStatusPending  = "PENDING"
	PaymentStatusApproved = "APPROVED"
	PaymentStatusDeclined = "DECLINED"
)

// Payment methods accepted at checkout
const (
	PaymentMethodCard   = "CARD"
	PaymentMethodCoupon = "COUPON"
	PaymentMethodMixed  = "MIXED"
)

// Coupon kinds. Promotional coupons may be customer-agnostic; exchange
// coupons are always bound to the customer they were issued to.
const (
	CouponKindPromotional = "PROMOTIONAL"
	CouponKindExchange    = "EXCHANGE"
	CouponKindFreight     = "FREIGHT"
	CouponKindCashback    = "CASHBACK"
)

// Exchange statuses
const (
	ExchangeStatusRequested  = "REQUESTED"
	ExchangeStatusAuthorized = "AUTHORIZED"
	ExchangeStatusReceived   = "RECEIVED"
	ExchangeStatusCompleted  = "COMPLETED"
)

// MinCardPaymentCents is the floor for any card payment leg (R$ 10,00)
const MinCardPaymentCents int64 = 1000
