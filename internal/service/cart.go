package service

import (
	"context"
	"fmt"
	"time"

	"bookstore-service/internal/models"
	"bookstore-service/internal/store"
	"bookstore-service/internal/util"

	"go.uber.org/zap"
)

// CartService owns the cart lifecycle: the single-pending-cart invariant,
// item mutations with advisory stock reservations, and coupon application.
type CartService struct {
	store  *store.Store
	ledger *InventoryLedger
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store *store.Store, ledger *InventoryLedger) *CartService {
	return &CartService{
		store:  store,
		ledger: ledger,
		logger: util.GetLogger(),
	}
}

// CartView is a cart with its items and computed totals
type CartView struct {
	Cart     *models.Cart      `json:"cart"`
	Items    []models.CartItem `json:"items"`
	Total    int64             `json:"total"`
	Discount int64             `json:"discount"`
	Payable  int64             `json:"payable"`
}

// GetOrCreateActiveCart returns the customer's pending cart, creating one
// lazily. Uniqueness is enforced by the store's partial index, not by this
// read-then-create sequence.
func (cs *CartService) GetOrCreateActiveCart(ctx context.Context, customerID int64) (*models.Cart, error) {
	cart, err := cs.store.GetActiveCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}

	cart, err = cs.store.CreateCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	util.CartsCreatedTotal.Inc()
	cs.logger.Info("Cart created",
		zap.Int64("cart_id", cart.ID),
		zap.Int64("customer_id", customerID))
	return cart, nil
}

// GetCart returns the active cart with items and totals
func (cs *CartService) GetCart(ctx context.Context, customerID int64) (*CartView, error) {
	cart, err := cs.GetOrCreateActiveCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return cs.buildView(ctx, cart)
}

// AddItem adds qty units of a book to the customer's active cart. Re-adding
// a book already in the cart increments its quantity; only the incremental
// amount is re-validated against stock.
func (cs *CartService) AddItem(ctx context.Context, customerID, bookID int64, qty int) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if qty <= 0 {
		util.CartItemRejectionsTotal.WithLabelValues("invalid_quantity").Inc()
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidQuantity, qty)
	}

	book, err := cs.store.GetBook(ctx, bookID)
	if err != nil {
		util.CartItemRejectionsTotal.WithLabelValues("book_not_found").Inc()
		return nil, err
	}
	if !book.Active {
		util.CartItemRejectionsTotal.WithLabelValues("book_inactive").Inc()
		return nil, fmt.Errorf("%w: book %d is inactive", models.ErrBookNotFound, bookID)
	}

	ok, err := cs.ledger.Reserve(ctx, bookID, qty)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}
	if !ok {
		util.CartItemRejectionsTotal.WithLabelValues("out_of_stock").Inc()
		return nil, fmt.Errorf("%w: book %d", models.ErrOutOfStock, bookID)
	}

	cart, err := cs.GetOrCreateActiveCart(ctx, customerID)
	if err != nil {
		cs.releaseQuietly(ctx, bookID, qty)
		return nil, err
	}

	item, err := cs.store.FindCartItem(ctx, cart.ID, bookID)
	if err != nil {
		cs.releaseQuietly(ctx, bookID, qty)
		return nil, err
	}

	if item != nil {
		err = cs.store.UpdateCartItemQuantity(ctx, item.ID, item.Quantity+qty)
	} else {
		item = &models.CartItem{CartID: cart.ID, BookID: bookID, Quantity: qty}
		err = cs.store.InsertCartItem(ctx, item)
	}
	if err != nil {
		cs.releaseQuietly(ctx, bookID, qty)
		return nil, fmt.Errorf("failed to persist cart item: %w", err)
	}

	cs.logger.Info("Item added to cart",
		zap.Int64("cart_id", cart.ID),
		zap.Int64("book_id", bookID),
		zap.Int("quantity", qty))

	return cs.buildView(ctx, cart)
}

// UpdateItemQuantity replaces an item's quantity, validating availability
// for the delta over what the cart already reserves.
func (cs *CartService) UpdateItemQuantity(ctx context.Context, customerID, itemID int64, newQty int) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItemQuantity")
	defer span.End()

	if newQty <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidQuantity, newQty)
	}

	cart, err := cs.GetOrCreateActiveCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	item, err := cs.store.GetCartItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, err
	}

	delta := newQty - item.Quantity
	if delta > 0 {
		ok, err := cs.ledger.Reserve(ctx, item.BookID, delta)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve stock: %w", err)
		}
		if !ok {
			util.CartItemRejectionsTotal.WithLabelValues("out_of_stock").Inc()
			return nil, fmt.Errorf("%w: book %d", models.ErrOutOfStock, item.BookID)
		}
	} else if delta < 0 {
		cs.releaseQuietly(ctx, item.BookID, -delta)
	}

	if err := cs.store.UpdateCartItemQuantity(ctx, item.ID, newQty); err != nil {
		if delta > 0 {
			cs.releaseQuietly(ctx, item.BookID, delta)
		}
		return nil, fmt.Errorf("failed to update item quantity: %w", err)
	}

	return cs.buildView(ctx, cart)
}

// RemoveItem deletes one item and releases its reservation
func (cs *CartService) RemoveItem(ctx context.Context, customerID, itemID int64) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	cart, err := cs.GetOrCreateActiveCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	item, err := cs.store.GetCartItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, err
	}

	cs.releaseQuietly(ctx, item.BookID, item.Quantity)

	if err := cs.store.DeleteCartItem(ctx, item.ID); err != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", err)
	}

	return cs.buildView(ctx, cart)
}

// ClearCart releases all reservations, deletes the items, and finalizes
// the cart row so the next add starts a fresh cart.
func (cs *CartService) ClearCart(ctx context.Context, customerID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.ClearCart")
	defer span.End()

	cart, err := cs.GetOrCreateActiveCart(ctx, customerID)
	if err != nil {
		return err
	}

	items, err := cs.store.GetCartItems(ctx, cart.ID)
	if err != nil {
		return err
	}

	for _, item := range items {
		cs.releaseQuietly(ctx, item.BookID, item.Quantity)
	}

	if err := cs.store.DeleteCartItems(ctx, cart.ID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	_, err = cs.store.TransitionCartStatus(ctx, cart.ID, models.CartStatusFinalized)
	return err
}

// ApplyCoupon validates a coupon against the cart's current total and
// stores it on the cart. Redemption only happens at checkout.
func (cs *CartService) ApplyCoupon(ctx context.Context, customerID int64, code string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ApplyCoupon")
	defer span.End()

	cart, err := cs.GetOrCreateActiveCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	items, err := cs.store.GetCartItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cannot apply coupon", models.ErrCartEmpty)
	}

	total, err := cs.computeTotal(ctx, items)
	if err != nil {
		return nil, err
	}

	coupon, err := cs.store.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	decision := ValidateCoupon(coupon, customerID, total, time.Now())
	if !decision.Valid {
		return nil, fmt.Errorf("%w: %s", models.ErrCouponInvalid, decision.Reason)
	}

	if err := cs.store.SetCartCoupon(ctx, cart.ID, coupon.Code, decision.Discount); err != nil {
		return nil, fmt.Errorf("failed to apply coupon: %w", err)
	}

	cs.logger.Info("Coupon applied to cart",
		zap.Int64("cart_id", cart.ID),
		zap.String("code", coupon.Code),
		zap.Int64("discount", decision.Discount))

	return cs.GetCart(ctx, customerID)
}

// RemoveCoupon clears any applied coupon unconditionally
func (cs *CartService) RemoveCoupon(ctx context.Context, customerID int64) (*CartView, error) {
	cart, err := cs.GetOrCreateActiveCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := cs.store.ClearCartCoupon(ctx, cart.ID); err != nil {
		return nil, fmt.Errorf("failed to remove coupon: %w", err)
	}

	return cs.GetCart(ctx, customerID)
}

func (cs *CartService) computeTotal(ctx context.Context, items []models.CartItem) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	bookIDs := make([]int64, len(items))
	for i, item := range items {
		bookIDs[i] = item.BookID
	}

	books, err := cs.store.GetBooksByIDs(ctx, bookIDs)
	if err != nil {
		return 0, err
	}

	prices := make(map[int64]int64, len(books))
	for _, book := range books {
		prices[book.ID] = book.SalePrice
	}

	return CartTotal(items, prices), nil
}

// CartTotal sums quantity times current price across items
func CartTotal(items []models.CartItem, prices map[int64]int64) int64 {
	var total int64
	for _, item := range items {
		total += prices[item.BookID] * int64(item.Quantity)
	}
	return total
}

func (cs *CartService) buildView(ctx context.Context, cart *models.Cart) (*CartView, error) {
	// Re-read: item mutations bump updated_at and coupon state
	fresh, err := cs.store.GetActiveCart(ctx, cart.CustomerID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		fresh = cart
	}

	items, err := cs.store.GetCartItems(ctx, fresh.ID)
	if err != nil {
		return nil, err
	}

	total, err := cs.computeTotal(ctx, items)
	if err != nil {
		return nil, err
	}

	discount := fresh.DiscountApplied
	if discount > total {
		discount = total
	}

	return &CartView{
		Cart:     fresh,
		Items:    items,
		Total:    total,
		Discount: discount,
		Payable:  total - discount,
	}, nil
}

func (cs *CartService) releaseQuietly(ctx context.Context, bookID int64, qty int) {
	if err := cs.ledger.Release(ctx, bookID, qty); err != nil {
		cs.logger.Error("Failed to release reservation",
			zap.Int64("book_id", bookID),
			zap.Int("quantity", qty),
			zap.Error(err))
	}
}
