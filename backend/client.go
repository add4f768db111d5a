// Package backend is the HTTP client for the remote commerce API. It covers
// the read endpoints the cart engine consumes (product snapshots, delivery
// tiers, coupons) and the cart-mirror writes issued after local mutations.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/pithomlabs/storefront/pricing"
)

// Open paths never carry the bearer token.
var unauthenticatedPaths = []string{
	"/login",
	"/register",
	"/healthz",
}

// Client talks to the commerce backend. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New builds a Client. tokens supplies the session bearer token per request;
// timeout 0 falls back to 15s.
func New(baseURL string, tokens TokenSource, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: newAuthTransport(baseURL, tokens),
		},
		log: log,
	}
}

// FetchCartProducts returns authoritative snapshots for exactly the given
// product ids in one batched round trip. An empty id list short-circuits to
// an empty result without touching the network.
func (c *Client) FetchCartProducts(ctx context.Context, userID string, ids []string) ([]pricing.ProductSnapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	body := map[string]any{"user_id": userID, "ids": ids}
	var rows []productRow
	if err := c.call(ctx, http.MethodPost, "/cart-products", body, &rows); err != nil {
		return nil, fmt.Errorf("fetch cart products: %w", err)
	}

	snapshots := make([]pricing.ProductSnapshot, 0, len(rows))
	for _, r := range rows {
		snapshots = append(snapshots, r.snapshot())
	}
	return snapshots, nil
}

// FetchDeliveryTier returns the active tier for a delivery zone, or nil when
// the backend has none configured. Only the first row is used.
func (c *Client) FetchDeliveryTier(ctx context.Context, zone string) (*pricing.DeliveryTier, error) {
	var rows []tierRow
	path := "/delivery-charges?zone=" + url.QueryEscape(zone)
	if err := c.call(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, fmt.Errorf("fetch delivery tier: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	tier := rows[0].tier()
	return &tier, nil
}

// FetchCoupons returns the backend's coupon list as-is; callers filter with
// Coupon.Active.
func (c *Client) FetchCoupons(ctx context.Context) ([]pricing.Coupon, error) {
	var rows []couponRow
	if err := c.call(ctx, http.MethodGet, "/coupons", nil, &rows); err != nil {
		return nil, fmt.Errorf("fetch coupons: %w", err)
	}
	coupons := make([]pricing.Coupon, 0, len(rows))
	for _, r := range rows {
		coupons = append(coupons, r.coupon())
	}
	return coupons, nil
}

// UpsertCartLine mirrors one cart line server-side, keyed by (user, product).
func (c *Client) UpsertCartLine(ctx context.Context, userID, productID string, quantity int) error {
	body := map[string]any{"user_id": userID, "product_id": productID, "quantity": quantity}
	if err := c.call(ctx, http.MethodPost, "/cart-mirror", body, nil); err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

// DeleteCartLine removes one mirrored cart line.
func (c *Client) DeleteCartLine(ctx context.Context, userID, productID string) error {
	body := map[string]any{"user_id": userID, "product_id": productID}
	if err := c.call(ctx, http.MethodDelete, "/cart-mirror", body, nil); err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

// call performs one round trip and decodes the standard success/data
// envelope. out may be nil for write endpoints.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("backend returned error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("request %s %s: status %d", method, path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if !env.Success {
		return fmt.Errorf("request %s %s: backend reported failure", method, path)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s data: %w", method, path, err)
		}
	}
	return nil
}
