// Package pricing holds the cart price math: subtotals, tiered delivery
// charges, coupon discounts and the final breakdown. Everything here is a
// pure function over server-fetched snapshots so every surface that shows a
// total computes it the same way.
package pricing

import "math"

// ProductSnapshot is the authoritative, server-fetched view of one cart line.
// Price and stock always come from the backend; Quantity is joined in from
// the local cart entry during sync.
type ProductSnapshot struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	SellingPrice float64 `json:"sellingPrice"`
	RegularPrice float64 `json:"regularPrice"`
	Stock        int     `json:"stock"`
	Rating       float64 `json:"rating"`
	Quantity     int     `json:"quantity"`
}

// DeliveryTier is the active delivery-charge configuration for a zone.
// Slab upper bounds are inclusive.
type DeliveryTier struct {
	MinOrder float64 `json:"minOrder"`
	Slab1    float64 `json:"slab1"`
	Charge1  float64 `json:"charge1"`
	Slab2    float64 `json:"slab2"`
	Charge2  float64 `json:"charge2"`
}

// Coupon as served by the backend. Status/Deleted carry the backend's raw
// flag encoding; Active folds them into one predicate.
type Coupon struct {
	Code          string  `json:"code"`
	MaxDiscount   float64 `json:"maxDiscount"`
	MinOrderValue float64 `json:"minOrderValue"`
	Status        int     `json:"status"`
	Deleted       int     `json:"deleted"`
}

// Active reports whether the coupon is live and not soft-deleted.
func (c Coupon) Active() bool {
	return c.Status == 1 && c.Deleted == 0
}

// Charge is a delivery-charge lookup result. Available is false when the
// order value sits below the tier minimum and delivery is not offered at all;
// callers must block checkout in that case rather than treat it as free.
type Charge struct {
	Amount    float64 `json:"amount"`
	Available bool    `json:"available"`
}

// PriceSummary is the derived breakdown handed to checkout. It is recomputed
// from scratch on every cart or coupon mutation and never persisted.
type PriceSummary struct {
	Subtotal          float64 `json:"subtotal"`
	QuantityTotal     int     `json:"quantityTotal"`
	DeliveryCharge    float64 `json:"deliveryCharge"`
	DeliveryAvailable bool    `json:"deliveryAvailable"`
	DiscountAmount    float64 `json:"discountAmount"`
	DiscountCode      string  `json:"discountCode,omitempty"`
	GrandTotal        float64 `json:"grandTotal"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LineDiscountPercent returns the integer percent label shown against a
// struck-through regular price. ok is false when either price is missing
// (non-positive after decode) or there is no actual discount.
func LineDiscountPercent(regular, selling float64) (int, bool) {
	if regular <= 0 || selling <= 0 || regular <= selling {
		return 0, false
	}
	return int(math.Round((regular - selling) / regular * 100)), true
}

// Subtotal sums sellingPrice*quantity over the snapshots, rounded to two
// decimals. Lines with a missing price or quantity contribute zero instead of
// poisoning the total.
func Subtotal(products []ProductSnapshot) float64 {
	var total float64
	for _, p := range products {
		if p.SellingPrice <= 0 || p.Quantity <= 0 {
			continue
		}
		total += p.SellingPrice * float64(p.Quantity)
	}
	return round2(total)
}

// QuantityTotal sums line quantities, counting invalid entries as zero.
func QuantityTotal(products []ProductSnapshot) int {
	var total int
	for _, p := range products {
		if p.Quantity > 0 {
			total += p.Quantity
		}
	}
	return total
}

// DeliveryCharge resolves the tiered charge for an order subtotal. A nil tier
// means no charge is configured. Above the top slab delivery is free. Below
// MinOrder delivery is unavailable, which is a blocking condition for
// checkout, not a zero charge.
func DeliveryCharge(subtotal float64, tier *DeliveryTier) Charge {
	if tier == nil {
		return Charge{Amount: 0, Available: true}
	}
	switch {
	case subtotal < tier.MinOrder:
		return Charge{Available: false}
	case subtotal <= tier.Slab1:
		return Charge{Amount: tier.Charge1, Available: true}
	case subtotal <= tier.Slab2:
		return Charge{Amount: tier.Charge2, Available: true}
	default:
		return Charge{Amount: 0, Available: true}
	}
}

// IsApplicable reports whether the coupon's minimum order value is met.
func IsApplicable(c Coupon, subtotal float64) bool {
	return subtotal >= c.MinOrderValue
}

// Summarize composes the full breakdown. The coupon discount is clamped so it
// never drives the goods total negative; an unavailable delivery charge
// contributes nothing to the grand total and is flagged for the caller.
func Summarize(products []ProductSnapshot, coupon *Coupon, tier *DeliveryTier) PriceSummary {
	subtotal := Subtotal(products)
	charge := DeliveryCharge(subtotal, tier)

	summary := PriceSummary{
		Subtotal:          subtotal,
		QuantityTotal:     QuantityTotal(products),
		DeliveryCharge:    charge.Amount,
		DeliveryAvailable: charge.Available,
	}
	if coupon != nil {
		summary.DiscountAmount = coupon.MaxDiscount
		summary.DiscountCode = coupon.Code
	}

	total := subtotal - summary.DiscountAmount
	if total < 0 {
		total = 0
	}
	if charge.Available {
		total += charge.Amount
	}
	summary.GrandTotal = round2(total)
	return summary
}
