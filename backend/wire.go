package backend

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pithomlabs/storefront/pricing"
)

// The PHP backend is loose about numeric types: prices arrive as JSON
// numbers, quoted strings, empty strings or null depending on the endpoint.
// decimal and count fold all of those into a usable value, defaulting
// anything unparseable to zero so one bad row cannot sink a whole response.

type decimal float64

func (d *decimal) UnmarshalJSON(data []byte) error {
	*d = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			*d = decimal(v)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*d = decimal(v)
	}
	return nil
}

type count int

func (c *count) UnmarshalJSON(data []byte) error {
	*c = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if v, err := strconv.Atoi(s); err == nil {
			*c = count(v)
		}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err == nil {
		*c = count(v)
	}
	return nil
}

// envelope is the backend's standard response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type productRow struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	SellingPrice decimal `json:"selling_price"`
	RegularPrice decimal `json:"regular_price"`
	Stock        count   `json:"stock"`
	Rating       decimal `json:"rating"`
}

func (r productRow) snapshot() pricing.ProductSnapshot {
	return pricing.ProductSnapshot{
		ID:           r.ID,
		Name:         r.Name,
		SellingPrice: float64(r.SellingPrice),
		RegularPrice: float64(r.RegularPrice),
		Stock:        int(r.Stock),
		Rating:       float64(r.Rating),
	}
}

type tierRow struct {
	MinOrder decimal `json:"min_order"`
	Slab1    decimal `json:"slab1"`
	Charge1  decimal `json:"charge1"`
	Slab2    decimal `json:"slab2"`
	Charge2  decimal `json:"charge2"`
}

func (r tierRow) tier() pricing.DeliveryTier {
	return pricing.DeliveryTier{
		MinOrder: float64(r.MinOrder),
		Slab1:    float64(r.Slab1),
		Charge1:  float64(r.Charge1),
		Slab2:    float64(r.Slab2),
		Charge2:  float64(r.Charge2),
	}
}

type couponRow struct {
	Code          string  `json:"code"`
	MaxDiscount   decimal `json:"max_discount"`
	MinOrderValue decimal `json:"min_order_value"`
	Status        count   `json:"status"`
	Deleted       count   `json:"coupon_delete"`
}

func (r couponRow) coupon() pricing.Coupon {
	return pricing.Coupon{
		Code:          r.Code,
		MaxDiscount:   float64(r.MaxDiscount),
		MinOrderValue: float64(r.MinOrderValue),
		Status:        int(r.Status),
		Deleted:       int(r.Deleted),
	}
}
