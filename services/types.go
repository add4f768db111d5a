package services

import (
	"context"
	"time"

	"github.com/pithomlabs/storefront/pricing"
)

// Backend is the slice of the commerce API the cart engine consumes.
// Implemented by backend.Client; tests substitute a fake.
type Backend interface {
	FetchCartProducts(ctx context.Context, userID string, ids []string) ([]pricing.ProductSnapshot, error)
	FetchDeliveryTier(ctx context.Context, zone string) (*pricing.DeliveryTier, error)
	FetchCoupons(ctx context.Context) ([]pricing.Coupon, error)
	UpsertCartLine(ctx context.Context, userID, productID string, quantity int) error
	DeleteCartLine(ctx context.Context, userID, productID string) error
}

// CartEntry is one locally held cart line: product id plus quantity.
// Quantity is always >= 1 and product ids are unique within a cart.
type CartEntry struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddItemRequest for adding a product to the cart.
type AddItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// UpdateQuantityRequest for changing one line's quantity.
type UpdateQuantityRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CartLine is one rendered cart row: the local quantity joined with the
// authoritative snapshot.
type CartLine struct {
	ProductID       string  `json:"productId"`
	Name            string  `json:"name"`
	Quantity        int     `json:"quantity"`
	SellingPrice    float64 `json:"sellingPrice"`
	RegularPrice    float64 `json:"regularPrice"`
	DiscountPercent int     `json:"discountPercent"`
	HasDiscount     bool    `json:"hasDiscount"`
	Stock           int     `json:"stock"`
	Rating          float64 `json:"rating"`
	LineTotal       float64 `json:"lineTotal"`
	OutOfStock      bool    `json:"outOfStock"`
}

// CartView is the full cart as the client renders it.
type CartView struct {
	Lines      []CartLine           `json:"lines"`
	Summary    pricing.PriceSummary `json:"summary"`
	PromoShown bool                 `json:"promoShown"`
	// OutOfStock is set when any line is non-purchasable; checkout is
	// blocked while it holds.
	OutOfStock bool `json:"outOfStock"`
}

// MutationResult reports a cart mutation. Mirrored is false when the
// optimistic server-side mirror write failed; the local change stands
// regardless.
type MutationResult struct {
	Cart     CartView `json:"cart"`
	Mirrored bool     `json:"mirrored"`
}

// CouponResult reports a coupon application attempt. Applied is false when
// the coupon's minimum order value is not met; the prior selection, if any,
// is kept in that case.
type CouponResult struct {
	Applied bool     `json:"applied"`
	Reason  string   `json:"reason,omitempty"`
	Cart    CartView `json:"cart"`
}

// CouponOffer is a coupon annotated with its applicability against the
// caller's current subtotal, so the client can disable the apply action
// instead of round-tripping a rejection.
type CouponOffer struct {
	pricing.Coupon
	Applicable bool `json:"applicable"`
}

// ListCouponsRequest carries the subtotal used to annotate applicability.
type ListCouponsRequest struct {
	Subtotal float64 `json:"subtotal"`
}

// CheckoutResult is handed to the order flow after a successful checkout.
type CheckoutResult struct {
	OrderID  string               `json:"orderId"`
	Summary  pricing.PriceSummary `json:"summary"`
	PlacedAt time.Time            `json:"placedAt"`
}
