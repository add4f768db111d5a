package services

import (
	restate "github.com/restatedev/sdk-go"

	"github.com/pithomlabs/storefront/pricing"
)

// CouponService lists the live coupons for the coupon screen. Stateless; the
// selection itself lives on the CartSession.
type CouponService struct {
	backend Backend
}

// NewCouponService builds the service.
func NewCouponService(backend Backend) CouponService {
	return CouponService{backend: backend}
}

// ListActive fetches the coupon list, keeps only live ones and annotates each
// with applicability against the caller's subtotal. A failed fetch degrades
// to an empty list so the screen renders empty instead of erroring.
func (s CouponService) ListActive(ctx restate.Context, req ListCouponsRequest) ([]CouponOffer, error) {
	coupons, err := restate.Run(ctx, func(rc restate.RunContext) ([]pricing.Coupon, error) {
		return s.backend.FetchCoupons(rc)
	})
	if err != nil {
		ctx.Log().Warn("coupon fetch failed, rendering empty list", "error", err)
		return []CouponOffer{}, nil
	}

	return activeOffers(coupons, req.Subtotal), nil
}

// activeOffers filters to live coupons and marks which meet the subtotal.
func activeOffers(coupons []pricing.Coupon, subtotal float64) []CouponOffer {
	offers := make([]CouponOffer, 0, len(coupons))
	for _, c := range coupons {
		if !c.Active() {
			continue
		}
		offers = append(offers, CouponOffer{
			Coupon:     c,
			Applicable: pricing.IsApplicable(c, subtotal),
		})
	}
	return offers
}
