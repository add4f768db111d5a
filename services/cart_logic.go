package services

import (
	"errors"
	"fmt"

	restate "github.com/restatedev/sdk-go"

	"github.com/pithomlabs/storefront/pricing"
)

// Domain errors for cart mutations. Handlers map these onto terminal
// failures via terminal().
var (
	ErrProductIDRequired   = errors.New("product id is required")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrNotInCart           = errors.New("product is not in the cart")
	ErrOutOfStock          = errors.New("product is out of stock")
	ErrExceedsStock        = errors.New("quantity exceeds available stock")
	ErrCartEmpty           = errors.New("cart is empty")
	ErrCouponNotFound      = errors.New("coupon not found")
	ErrDeliveryUnavailable = errors.New("delivery unavailable below the minimum order value")
)

// terminal converts a domain error into a terminal failure with the matching
// HTTP code. Unrecognized errors fall through as 500s.
func terminal(err error) error {
	code := 500
	switch {
	case errors.Is(err, ErrProductIDRequired), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrCartEmpty):
		code = 400
	case errors.Is(err, ErrNotInCart), errors.Is(err, ErrCouponNotFound):
		code = 404
	case errors.Is(err, ErrOutOfStock), errors.Is(err, ErrExceedsStock):
		code = 409
	case errors.Is(err, ErrDeliveryUnavailable):
		code = 422
	}
	return restate.TerminalError(err, restate.Code(code))
}

// stockLimit enforces 1 <= quantity <= stock against the stock index from
// the last sync. Products the index has never seen pass; checkout re-checks
// every line against fresh data.
func stockLimit(stocks map[string]int, productID string, quantity int) error {
	stock, known := stocks[productID]
	if !known {
		return nil
	}
	if stock <= 0 {
		return fmt.Errorf("%w: %s", ErrOutOfStock, productID)
	}
	if quantity > stock {
		return fmt.Errorf("%w: %d requested, %d in stock for %s", ErrExceedsStock, quantity, stock, productID)
	}
	return nil
}

// addEntry returns a new entry list with the product added, merging the
// quantity into an existing line. The input slice is left untouched so a
// rejected request cannot disturb prior state. The returned int is the
// line's resulting quantity, which is what the mirror write persists.
func addEntry(entries []CartEntry, stocks map[string]int, productID string, quantity int) ([]CartEntry, int, error) {
	if productID == "" {
		return nil, 0, ErrProductIDRequired
	}
	if quantity < 1 {
		return nil, 0, ErrInvalidQuantity
	}

	next := quantity
	for _, e := range entries {
		if e.ProductID == productID {
			next = e.Quantity + quantity
			break
		}
	}
	if err := stockLimit(stocks, productID, next); err != nil {
		return nil, 0, err
	}

	out := make([]CartEntry, len(entries))
	copy(out, entries)
	for i := range out {
		if out[i].ProductID == productID {
			out[i].Quantity = next
			return out, next, nil
		}
	}
	return append(out, CartEntry{ProductID: productID, Quantity: quantity}), next, nil
}

// changeQuantity returns a new entry list with the line set to quantity.
// Rejections leave the input untouched: the prior quantity stands.
func changeQuantity(entries []CartEntry, stocks map[string]int, productID string, quantity int) ([]CartEntry, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	idx := -1
	for i, e := range entries {
		if e.ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotInCart, productID)
	}
	if err := stockLimit(stocks, productID, quantity); err != nil {
		return nil, err
	}

	out := make([]CartEntry, len(entries))
	copy(out, entries)
	out[idx].Quantity = quantity
	return out, nil
}

// removeEntry returns a new entry list without the product.
func removeEntry(entries []CartEntry, productID string) ([]CartEntry, error) {
	idx := -1
	for i, e := range entries {
		if e.ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotInCart, productID)
	}

	out := make([]CartEntry, 0, len(entries)-1)
	out = append(out, entries[:idx]...)
	return append(out, entries[idx+1:]...), nil
}

// selectCoupon resolves a code against the live coupon list. A live,
// applicable coupon is returned for selection; a live coupon below its
// minimum order value yields a nil selection with a reason (the apply is a
// no-op); a code with no live match is an error.
func selectCoupon(coupons []pricing.Coupon, code string, subtotal float64) (*pricing.Coupon, string, error) {
	for i := range coupons {
		if coupons[i].Code != code || !coupons[i].Active() {
			continue
		}
		if !pricing.IsApplicable(coupons[i], subtotal) {
			return nil, fmt.Sprintf("order value %.2f is below the coupon minimum %.2f", subtotal, coupons[i].MinOrderValue), nil
		}
		return &coupons[i], "", nil
	}
	return nil, "", fmt.Errorf("%w: %s", ErrCouponNotFound, code)
}

// validateCheckout enforces the stock preconditions over a fresh stock
// index. Lines the index does not know are treated as out of stock.
func validateCheckout(entries []CartEntry, stocks map[string]int) error {
	if len(entries) == 0 {
		return ErrCartEmpty
	}
	for _, e := range entries {
		stock, known := stocks[e.ProductID]
		if !known || stock <= 0 {
			return fmt.Errorf("%w: %s", ErrOutOfStock, e.ProductID)
		}
		if e.Quantity > stock {
			return fmt.Errorf("%w: %d requested, %d in stock for %s", ErrExceedsStock, e.Quantity, stock, e.ProductID)
		}
	}
	return nil
}

// checkoutSummary prices the cart for checkout. Delivery below the tier
// minimum blocks the checkout instead of contributing a silent zero.
func checkoutSummary(products []pricing.ProductSnapshot, coupon *pricing.Coupon, tier *pricing.DeliveryTier) (pricing.PriceSummary, error) {
	summary := pricing.Summarize(products, coupon, tier)
	if !summary.DeliveryAvailable {
		return pricing.PriceSummary{}, fmt.Errorf("%w: order value %.2f", ErrDeliveryUnavailable, summary.Subtotal)
	}
	return summary, nil
}

// buildView assembles the rendered cart from synced snapshots.
func buildView(products []pricing.ProductSnapshot, coupon *pricing.Coupon, tier *pricing.DeliveryTier, promoShown bool) CartView {
	lines := make([]CartLine, 0, len(products))
	anyOut := false
	for _, p := range products {
		pct, hasDiscount := pricing.LineDiscountPercent(p.RegularPrice, p.SellingPrice)
		out := p.Stock <= 0 || p.Quantity > p.Stock
		if out {
			anyOut = true
		}
		lines = append(lines, CartLine{
			ProductID:       p.ID,
			Name:            p.Name,
			Quantity:        p.Quantity,
			SellingPrice:    p.SellingPrice,
			RegularPrice:    p.RegularPrice,
			DiscountPercent: pct,
			HasDiscount:     hasDiscount,
			Stock:           p.Stock,
			Rating:          p.Rating,
			LineTotal:       pricing.Subtotal([]pricing.ProductSnapshot{p}),
			OutOfStock:      out,
		})
	}

	return CartView{
		Lines:      lines,
		Summary:    pricing.Summarize(products, coupon, tier),
		PromoShown: promoShown,
		OutOfStock: anyOut,
	}
}

func entryIDs(entries []CartEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ProductID)
	}
	return ids
}

// joinQuantities copies local quantities onto the fetched snapshots in place.
func joinQuantities(products []pricing.ProductSnapshot, entries []CartEntry) {
	byID := make(map[string]int, len(entries))
	for _, e := range entries {
		byID[e.ProductID] = e.Quantity
	}
	for i := range products {
		products[i].Quantity = byID[products[i].ID]
	}
}

func stockIndex(products []pricing.ProductSnapshot) map[string]int {
	stocks := make(map[string]int, len(products))
	for _, p := range products {
		stocks[p.ID] = p.Stock
	}
	return stocks
}
