package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bookstore-service/internal/models"
	"bookstore-service/internal/service"
	"bookstore-service/internal/store"
	"bookstore-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler wires the HTTP surface to the domain services
type Handler struct {
	store     *store.Store
	carts     *service.CartService
	checkout  *service.CheckoutService
	exchanges *service.ExchangeService
	ledger    *service.InventoryLedger
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	store *store.Store,
	carts *service.CartService,
	checkout *service.CheckoutService,
	exchanges *service.ExchangeService,
	ledger *service.InventoryLedger,
) *Handler {
	return &Handler{
		store:     store,
		carts:     carts,
		checkout:  checkout,
		exchanges: exchanges,
		ledger:    ledger,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes registers all routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(metricsMiddleware())

	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		customers := v1.Group("/customers/:customerID")
		{
			customers.GET("/cart", h.GetCart)
			customers.DELETE("/cart", h.ClearCart)
			customers.POST("/cart/items", h.AddCartItem)
			customers.PUT("/cart/items/:itemID", h.UpdateCartItem)
			customers.DELETE("/cart/items/:itemID", h.RemoveCartItem)
			customers.POST("/cart/coupon", h.ApplyCoupon)
			customers.DELETE("/cart/coupon", h.RemoveCoupon)
			customers.POST("/checkout", h.Checkout)
			customers.GET("/coupons", h.ListCoupons)
		}

		sales := v1.Group("/sales/:saleID")
		{
			sales.GET("", h.GetSale)
			sales.POST("/transit", h.MarkInTransit)
			sales.POST("/delivered", h.MarkDelivered)
			sales.POST("/exchange", h.RequestExchange)
			sales.POST("/exchange/receipt", h.ConfirmExchangeReceipt)
		}

		stock := v1.Group("/stock")
		{
			stock.POST("/entries", h.RegisterStockEntry)
			stock.GET("/:bookID", h.GetAvailability)
			stock.GET("/:bookID/movements", h.GetMovementHistory)
		}
	}
}

// Health returns service health status
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "bookstore-service"})
}

// Ready checks database connectivity
func (h *Handler) Ready(c *gin.Context) {
	if err := h.store.GetDB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// GetCart returns the customer's active cart with totals
func (h *Handler) GetCart(c *gin.Context) {
	customerID, ok := pathID(c, "customerID")
	if !ok {
		return
	}

	view, err := h.carts.GetCart(c.Request.Context(), customerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AddCartItem adds a book to the cart
func (h *Handler) AddCartItem(c *gin.Context) {
	customerID, ok := pathID(c, "customerID")
	if !ok {
		return
	}

	var req struct {
		BookID   int64 `json:"book_id" binding:"required"`
		Quantity int   `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.carts.AddItem(c.Request.Context(), customerID, req.BookID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// UpdateCartItem replaces a cart item's quantity
func (h *Handler) UpdateCartItem(c *gin.Context) {
	customerID, ok := pathID(c, "customerID")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.carts.UpdateItemQuantity(c.Request.Context(), customerID, itemID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RemoveCartItem deletes one item from the cart
func (h *Handler) RemoveCartItem(c *gin.Context) {
	customerID, ok := pathID(c, "customerID")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}

	view, err := h.carts.RemoveItem(c.Request.Context(), customerID, itemID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ClearCart empties and finalizes the active cart
func (h *Handler) ClearCart(c *gin.Context) {
	customerID, ok := pathID(c, "customerID")
	if !ok {
		return
	}

	if err := h.carts.ClearCart(c.Request.Context(), customerID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// ApplyCoupon applies a coupon code to the active cart
func (h *Handler) ApplyCoupon(c *gin.Context) {
	customerID, ok := pathID(c, "customerID")
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.carts.ApplyCoupon(c.Request.Context(), customerID, req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RemoveCoupon removes the applied coupon from the active cart
func (h *Handler) RemoveCoupon(c *gin.Context) {
	customerID, ok := pathID(c, "customerID")
	if !ok {
		return
	}

	view, err := h.carts.RemoveCoupon(c.Request.Context(), customerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Checkout settles the customer's active cart
func (h *Handler) Checkout(c *gin.Context) {
	customerID, ok := pathID(c, "customerID")
	if !ok {
		return
	}

	var body struct {
		PaymentMethod string `json:"payment_method" binding:"required"`
		CardRef       string `json:"card_ref"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.checkout.Checkout(c.Request.Context(), &service.CheckoutRequest{
		CustomerID:    customerID,
		PaymentMethod: body.PaymentMethod,
		CardRef:       body.CardRef,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListCoupons lists the customer's valid coupons
func (h *Handler) ListCoupons(c *gin.Context) {
	customerID, ok := pathID(c, "customerID")
	if !ok {
		return
	}

	coupons, err := h.store.ValidCouponsByCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}

// GetSale returns a sale with its items and payments
func (h *Handler) GetSale(c *gin.Context) {
	saleID, ok := pathID(c, "saleID")
	if !ok {
		return
	}

	sale, err := h.store.GetSale(c.Request.Context(), saleID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items, err := h.store.GetSaleItems(c.Request.Context(), saleID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	payments, err := h.store.GetPaymentsBySale(c.Request.Context(), saleID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sale": sale, "items": items, "payments": payments})
}

// MarkInTransit moves an approved sale into transit
func (h *Handler) MarkInTransit(c *gin.Context) {
	saleID, ok := pathID(c, "saleID")
	if !ok {
		return
	}

	if err := h.checkout.MarkInTransit(c.Request.Context(), saleID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.SaleStatusInTransit})
}

// MarkDelivered completes delivery of an in-transit sale
func (h *Handler) MarkDelivered(c *gin.Context) {
	saleID, ok := pathID(c, "saleID")
	if !ok {
		return
	}

	if err := h.checkout.MarkDelivered(c.Request.Context(), saleID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.SaleStatusDelivered})
}

// RequestExchange authorizes a return against a delivered sale
func (h *Handler) RequestExchange(c *gin.Context) {
	saleID, ok := pathID(c, "saleID")
	if !ok {
		return
	}

	var body struct {
		Reason string                 `json:"reason"`
		Items  []service.ExchangeLine `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.exchanges.RequestExchange(c.Request.Context(), &service.ExchangeRequest{
		SaleID: saleID,
		Reason: body.Reason,
		Items:  body.Items,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ConfirmExchangeReceipt records arrival of returned items
func (h *Handler) ConfirmExchangeReceipt(c *gin.Context) {
	saleID, ok := pathID(c, "saleID")
	if !ok {
		return
	}

	if err := h.exchanges.ConfirmReceipt(c.Request.Context(), saleID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.SaleStatusExchangeCompleted})
}

// RegisterStockEntry appends a supplier lot and reprices the book
func (h *Handler) RegisterStockEntry(c *gin.Context) {
	var req struct {
		BookID     int64     `json:"book_id" binding:"required"`
		SupplierID int64     `json:"supplier_id" binding:"required"`
		Quantity   int       `json:"quantity" binding:"required"`
		UnitCost   int64     `json:"unit_cost" binding:"required"`
		EntryDate  time.Time `json:"entry_date"`
		InvoiceRef *string   `json:"invoice_ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.EntryDate.IsZero() {
		req.EntryDate = time.Now()
	}

	lot, err := h.ledger.Replenish(c.Request.Context(),
		req.BookID, req.SupplierID, req.Quantity, req.UnitCost, req.EntryDate, req.InvoiceRef)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lot)
}

// GetAvailability returns the remaining quantity for a book
func (h *Handler) GetAvailability(c *gin.Context) {
	bookID, ok := pathID(c, "bookID")
	if !ok {
		return
	}

	available, err := h.ledger.AvailableQuantity(c.Request.Context(), bookID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"book_id": bookID, "available": available})
}

// GetMovementHistory returns lot entries for a book within a period
func (h *Handler) GetMovementHistory(c *gin.Context) {
	bookID, ok := pathID(c, "bookID")
	if !ok {
		return
	}

	from := time.Now().AddDate(0, -1, 0)
	to := time.Now()
	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return
		}
		to = parsed
	}

	lots, err := h.ledger.MovementHistory(c.Request.Context(), bookID, from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"book_id": bookID, "movements": lots})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrCartEmpty),
		errors.Is(err, models.ErrMissingAddress):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrCouponInvalid):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrBookNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrOutOfStock),
		errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrStateConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrPaymentDeclined):
		status = http.StatusPaymentRequired
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
