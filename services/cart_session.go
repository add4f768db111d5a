// Package services hosts the Restate handlers of the cart engine: the
// CartSession virtual object (one per user) and the stateless CouponService.
// Handlers are thin glue over the pure transition functions in cart_logic.go;
// those carry the preconditions and are what the behavioral tests exercise.
package services

import (
	"fmt"
	"time"

	restate "github.com/restatedev/sdk-go"

	"github.com/pithomlabs/storefront/pricing"
)

// CartSession is the per-user cart, keyed by user id. Exclusive handlers
// mutate cart state; reads go through shared handlers. Mutations follow the
// optimistic order: local state first, then the server-side mirror write,
// then a re-sync against authoritative product data.
type CartSession struct {
	backend Backend
	zone    string
}

// NewCartSession builds the virtual object. zone selects the delivery-charge
// tier configuration.
func NewCartSession(backend Backend, zone string) CartSession {
	return CartSession{backend: backend, zone: zone}
}

const (
	stateKeyEntries = "entries"
	stateKeyCoupon  = "coupon"
	stateKeyStocks  = "stocks"
	stateKeyPromo   = "promoShown"
)

// AddItem puts a product in the cart, merging quantities when the line
// already exists. Known stock limits are enforced before the local write.
func (s CartSession) AddItem(ctx restate.ObjectContext, req AddItemRequest) (MutationResult, error) {
	userID := restate.Key(ctx)
	ctx.Log().Info("adding item", "userId", userID, "productId", req.ProductID, "quantity", req.Quantity)

	entries, err := restate.Get[[]CartEntry](ctx, stateKeyEntries)
	if err != nil {
		return MutationResult{}, err
	}
	stocks, err := restate.Get[map[string]int](ctx, stateKeyStocks)
	if err != nil {
		return MutationResult{}, err
	}

	entries, lineQty, err := addEntry(entries, stocks, req.ProductID, req.Quantity)
	if err != nil {
		return MutationResult{}, terminal(err)
	}
	restate.Set(ctx, stateKeyEntries, entries)

	mirrored := s.mirrorUpsert(ctx, userID, req.ProductID, lineQty)
	view, err := s.refreshView(ctx, entries)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Cart: view, Mirrored: mirrored}, nil
}

// UpdateQuantity changes one line's quantity. The stock precondition flags
// rather than clamps: a request beyond stock, or against a zero-stock line,
// is rejected and the prior quantity stands.
func (s CartSession) UpdateQuantity(ctx restate.ObjectContext, req UpdateQuantityRequest) (MutationResult, error) {
	userID := restate.Key(ctx)
	ctx.Log().Info("updating quantity", "userId", userID, "productId", req.ProductID, "quantity", req.Quantity)

	entries, err := restate.Get[[]CartEntry](ctx, stateKeyEntries)
	if err != nil {
		return MutationResult{}, err
	}
	stocks, err := restate.Get[map[string]int](ctx, stateKeyStocks)
	if err != nil {
		return MutationResult{}, err
	}

	entries, err = changeQuantity(entries, stocks, req.ProductID, req.Quantity)
	if err != nil {
		return MutationResult{}, terminal(err)
	}
	restate.Set(ctx, stateKeyEntries, entries)

	mirrored := s.mirrorUpsert(ctx, userID, req.ProductID, req.Quantity)
	view, err := s.refreshView(ctx, entries)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Cart: view, Mirrored: mirrored}, nil
}

// RemoveItem drops a line from the cart and its server-side mirror.
func (s CartSession) RemoveItem(ctx restate.ObjectContext, productID string) (MutationResult, error) {
	userID := restate.Key(ctx)
	ctx.Log().Info("removing item", "userId", userID, "productId", productID)

	entries, err := restate.Get[[]CartEntry](ctx, stateKeyEntries)
	if err != nil {
		return MutationResult{}, err
	}

	entries, err = removeEntry(entries, productID)
	if err != nil {
		return MutationResult{}, terminal(err)
	}
	restate.Set(ctx, stateKeyEntries, entries)

	mirrored := true
	if _, err := restate.Run(ctx, func(rc restate.RunContext) (restate.Void, error) {
		return restate.Void{}, s.backend.DeleteCartLine(rc, userID, productID)
	}); err != nil {
		ctx.Log().Warn("cart mirror delete failed", "userId", userID, "productId", productID, "error", err)
		mirrored = false
	}

	view, err := s.refreshView(ctx, entries)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Cart: view, Mirrored: mirrored}, nil
}

// ApplyCoupon selects a coupon for the session. Only one coupon is active at
// a time; an applicable coupon replaces the previous selection, an
// inapplicable one leaves it untouched.
func (s CartSession) ApplyCoupon(ctx restate.ObjectContext, code string) (CouponResult, error) {
	userID := restate.Key(ctx)
	ctx.Log().Info("applying coupon", "userId", userID, "code", code)

	entries, err := restate.Get[[]CartEntry](ctx, stateKeyEntries)
	if err != nil {
		return CouponResult{}, err
	}

	products := s.syncSnapshots(ctx, entries)
	subtotal := pricing.Subtotal(products)

	coupons, err := restate.Run(ctx, func(rc restate.RunContext) ([]pricing.Coupon, error) {
		return s.backend.FetchCoupons(rc)
	})
	if err != nil {
		return CouponResult{}, restate.TerminalError(fmt.Errorf("coupon lookup failed: %w", err), 503)
	}

	selected, reason, err := selectCoupon(coupons, code, subtotal)
	if err != nil {
		return CouponResult{}, terminal(err)
	}
	if selected == nil {
		view, err := s.refreshView(ctx, entries)
		if err != nil {
			return CouponResult{}, err
		}
		return CouponResult{Applied: false, Reason: reason, Cart: view}, nil
	}

	restate.Set(ctx, stateKeyCoupon, *selected)

	view, err := s.refreshView(ctx, entries)
	if err != nil {
		return CouponResult{}, err
	}
	return CouponResult{Applied: true, Cart: view}, nil
}

// RemoveCoupon clears the applied coupon; the summary returns to its
// pre-application value.
func (s CartSession) RemoveCoupon(ctx restate.ObjectContext, _ restate.Void) (CartView, error) {
	ctx.Log().Info("removing coupon", "userId", restate.Key(ctx))

	restate.Clear(ctx, stateKeyCoupon)

	entries, err := restate.Get[[]CartEntry](ctx, stateKeyEntries)
	if err != nil {
		return CartView{}, err
	}
	return s.refreshView(ctx, entries)
}

// GetCart renders the current cart without mutating anything.
func (s CartSession) GetCart(ctx restate.ObjectSharedContext, _ restate.Void) (CartView, error) {
	entries, err := restate.Get[[]CartEntry](ctx, stateKeyEntries)
	if err != nil {
		return CartView{}, err
	}

	userID := restate.Key(ctx)
	var products []pricing.ProductSnapshot
	if len(entries) > 0 {
		products, err = restate.Run(ctx, func(rc restate.RunContext) ([]pricing.ProductSnapshot, error) {
			return s.backend.FetchCartProducts(rc, userID, entryIDs(entries))
		})
		if err != nil {
			ctx.Log().Warn("cart sync failed, rendering empty cart", "userId", userID, "error", err)
			products = nil
		}
	}
	joinQuantities(products, entries)

	coupon, err := restate.Get[*pricing.Coupon](ctx, stateKeyCoupon)
	if err != nil {
		return CartView{}, err
	}
	promo, err := restate.Get[bool](ctx, stateKeyPromo)
	if err != nil {
		return CartView{}, err
	}

	return buildView(products, coupon, s.fetchTier(ctx), promo), nil
}

// Checkout validates the cart end to end and hands off a final summary.
// Delivery below the tier minimum blocks checkout instead of silently
// charging nothing, as do out-of-stock lines.
func (s CartSession) Checkout(ctx restate.ObjectContext, _ restate.Void) (CheckoutResult, error) {
	userID := restate.Key(ctx)
	ctx.Log().Info("processing checkout", "userId", userID)

	entries, err := restate.Get[[]CartEntry](ctx, stateKeyEntries)
	if err != nil {
		return CheckoutResult{}, err
	}
	if len(entries) == 0 {
		return CheckoutResult{}, terminal(ErrCartEmpty)
	}

	products, err := restate.Run(ctx, func(rc restate.RunContext) ([]pricing.ProductSnapshot, error) {
		return s.backend.FetchCartProducts(rc, userID, entryIDs(entries))
	})
	if err != nil {
		return CheckoutResult{}, restate.TerminalError(fmt.Errorf("product data unavailable: %w", err), 503)
	}
	joinQuantities(products, entries)

	stocks := stockIndex(products)
	restate.Set(ctx, stateKeyStocks, stocks)
	if err := validateCheckout(entries, stocks); err != nil {
		return CheckoutResult{}, terminal(err)
	}

	coupon, err := restate.Get[*pricing.Coupon](ctx, stateKeyCoupon)
	if err != nil {
		return CheckoutResult{}, err
	}

	summary, err := checkoutSummary(products, coupon, s.fetchTier(ctx))
	if err != nil {
		return CheckoutResult{}, terminal(err)
	}

	orderID := fmt.Sprintf("ORD_%s", restate.UUID(ctx).String()[:8])

	// Journaled so the timestamp survives a replay of the cleanup below.
	placedAt, err := restate.Run(ctx, func(rc restate.RunContext) (time.Time, error) {
		return time.Now(), nil
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	// The mirror is cleared line by line; a failed delete is logged and left
	// for the backend's own cleanup.
	for _, e := range entries {
		productID := e.ProductID
		if _, err := restate.Run(ctx, func(rc restate.RunContext) (restate.Void, error) {
			return restate.Void{}, s.backend.DeleteCartLine(rc, userID, productID)
		}); err != nil {
			ctx.Log().Warn("cart mirror cleanup failed", "userId", userID, "productId", productID, "error", err)
		}
	}

	restate.ClearAll(ctx)

	ctx.Log().Info("checkout completed", "userId", userID, "orderId", orderID, "grandTotal", summary.GrandTotal)

	return CheckoutResult{OrderID: orderID, Summary: summary, PlacedAt: placedAt}, nil
}

// MarkPromoShown records that the session's promotional popup was displayed.
// Explicit session state, reset on logout.
func (s CartSession) MarkPromoShown(ctx restate.ObjectContext, _ restate.Void) error {
	restate.Set(ctx, stateKeyPromo, true)
	return nil
}

// ResetSession clears the whole session at logout: cart, coupon, stock index
// and the promo flag. The server-side mirror is the backend's own copy and
// survives for the user's next login.
func (s CartSession) ResetSession(ctx restate.ObjectContext, _ restate.Void) error {
	ctx.Log().Info("resetting session", "userId", restate.Key(ctx))
	restate.ClearAll(ctx)
	return nil
}

// mirrorUpsert issues the optimistic server-side cart write. Failure is
// logged and reported, never rolled back.
func (s CartSession) mirrorUpsert(ctx restate.ObjectContext, userID, productID string, quantity int) bool {
	if _, err := restate.Run(ctx, func(rc restate.RunContext) (restate.Void, error) {
		return restate.Void{}, s.backend.UpsertCartLine(rc, userID, productID, quantity)
	}); err != nil {
		ctx.Log().Warn("cart mirror write failed", "userId", userID, "productId", productID, "error", err)
		return false
	}
	return true
}

// syncSnapshots fetches authoritative product data for the cart's ids and
// refreshes the stock index. Network or parse failure degrades to an empty
// snapshot list so the caller renders an empty-cart state instead of
// crashing; the previous stock index is kept in that case.
func (s CartSession) syncSnapshots(ctx restate.ObjectContext, entries []CartEntry) []pricing.ProductSnapshot {
	if len(entries) == 0 {
		restate.Set(ctx, stateKeyStocks, map[string]int{})
		return nil
	}

	userID := restate.Key(ctx)
	products, err := restate.Run(ctx, func(rc restate.RunContext) ([]pricing.ProductSnapshot, error) {
		return s.backend.FetchCartProducts(rc, userID, entryIDs(entries))
	})
	if err != nil {
		ctx.Log().Warn("cart sync failed, rendering empty cart", "userId", userID, "error", err)
		return nil
	}

	joinQuantities(products, entries)
	restate.Set(ctx, stateKeyStocks, stockIndex(products))
	return products
}

// refreshView re-syncs and assembles the cart view with the current coupon
// and promo flag.
func (s CartSession) refreshView(ctx restate.ObjectContext, entries []CartEntry) (CartView, error) {
	products := s.syncSnapshots(ctx, entries)

	coupon, err := restate.Get[*pricing.Coupon](ctx, stateKeyCoupon)
	if err != nil {
		return CartView{}, err
	}
	promo, err := restate.Get[bool](ctx, stateKeyPromo)
	if err != nil {
		return CartView{}, err
	}
	return buildView(products, coupon, s.fetchTier(ctx), promo), nil
}

// fetchTier loads the delivery tier for the configured zone. Absence or
// failure both yield nil, meaning no delivery charge is configured.
func (s CartSession) fetchTier(ctx restate.ObjectSharedContext) *pricing.DeliveryTier {
	tier, err := restate.Run(ctx, func(rc restate.RunContext) (*pricing.DeliveryTier, error) {
		return s.backend.FetchDeliveryTier(rc, s.zone)
	})
	if err != nil {
		ctx.Log().Warn("delivery tier fetch failed", "zone", s.zone, "error", err)
		return nil
	}
	return tier
}
