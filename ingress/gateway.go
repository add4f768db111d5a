// Package ingress is the HTTP gateway the mobile client talks to. It
// terminates REST calls, authenticates the session token and forwards each
// operation to the Restate deployment through the SDK ingress client.
package ingress

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	restate "github.com/restatedev/sdk-go"
	restateingress "github.com/restatedev/sdk-go/ingress"
	"go.uber.org/zap"

	"github.com/pithomlabs/storefront/services"
)

// Gateway bridges REST routes onto the CartSession object and CouponService.
type Gateway struct {
	client *restateingress.Client
	apiKey string
	log    *zap.Logger
}

// New builds a Gateway against the Restate ingress URL. apiKey guards every
// route outside the allow-list; empty disables the check for local
// development.
func New(restateURL, apiKey string, log *zap.Logger) *Gateway {
	return &Gateway{
		client: restateingress.NewClient(restateURL),
		apiKey: apiKey,
		log:    log,
	}
}

// Router wires the REST surface. Everything under /api/v1/user/{userID} is
// authenticated; /healthz is the unauthenticated allow-list.
func (g *Gateway) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(g.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1/user/{userID}", func(r chi.Router) {
		r.Use(g.auth)

		r.Get("/cart", g.handleGetCart)
		r.Post("/cart/items", g.handleAddItem)
		r.Put("/cart/items/{productID}", g.handleUpdateQuantity)
		r.Delete("/cart/items/{productID}", g.handleRemoveItem)
		r.Get("/coupons", g.handleListCoupons)
		r.Post("/cart/coupon", g.handleApplyCoupon)
		r.Delete("/cart/coupon", g.handleRemoveCoupon)
		r.Post("/checkout", g.handleCheckout)
		r.Post("/promo-shown", g.handlePromoShown)
		r.Post("/logout", g.handleLogout)
	})

	return r
}

func (g *Gateway) handleGetCart(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	view, err := restateingress.Object[restate.Void, services.CartView](
		g.client, "CartSession", userID, "GetCart").Request(r.Context(), restate.Void{})
	if err != nil {
		g.fail(w, r, "get cart", err)
		return
	}
	g.writeJSON(w, http.StatusOK, view)
}

func (g *Gateway) handleAddItem(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	var req services.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := restateingress.Object[services.AddItemRequest, services.MutationResult](
		g.client, "CartSession", userID, "AddItem").Request(r.Context(), req)
	if err != nil {
		g.fail(w, r, "add item", err)
		return
	}
	g.writeJSON(w, http.StatusOK, result)
}

func (g *Gateway) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req := services.UpdateQuantityRequest{
		ProductID: chi.URLParam(r, "productID"),
		Quantity:  body.Quantity,
	}

	result, err := restateingress.Object[services.UpdateQuantityRequest, services.MutationResult](
		g.client, "CartSession", userID, "UpdateQuantity").Request(r.Context(), req)
	if err != nil {
		g.fail(w, r, "update quantity", err)
		return
	}
	g.writeJSON(w, http.StatusOK, result)
}

func (g *Gateway) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	productID := chi.URLParam(r, "productID")

	result, err := restateingress.Object[string, services.MutationResult](
		g.client, "CartSession", userID, "RemoveItem").Request(r.Context(), productID)
	if err != nil {
		g.fail(w, r, "remove item", err)
		return
	}
	g.writeJSON(w, http.StatusOK, result)
}

func (g *Gateway) handleListCoupons(w http.ResponseWriter, r *http.Request) {
	subtotal, _ := strconv.ParseFloat(r.URL.Query().Get("subtotal"), 64)

	offers, err := restateingress.Service[services.ListCouponsRequest, []services.CouponOffer](
		g.client, "CouponService", "ListActive").Request(r.Context(), services.ListCouponsRequest{Subtotal: subtotal})
	if err != nil {
		g.fail(w, r, "list coupons", err)
		return
	}
	g.writeJSON(w, http.StatusOK, offers)
}

func (g *Gateway) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		http.Error(w, "coupon code is required", http.StatusBadRequest)
		return
	}

	result, err := restateingress.Object[string, services.CouponResult](
		g.client, "CartSession", userID, "ApplyCoupon").Request(r.Context(), body.Code)
	if err != nil {
		g.fail(w, r, "apply coupon", err)
		return
	}
	g.writeJSON(w, http.StatusOK, result)
}

func (g *Gateway) handleRemoveCoupon(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	view, err := restateingress.Object[restate.Void, services.CartView](
		g.client, "CartSession", userID, "RemoveCoupon").Request(r.Context(), restate.Void{})
	if err != nil {
		g.fail(w, r, "remove coupon", err)
		return
	}
	g.writeJSON(w, http.StatusOK, view)
}

func (g *Gateway) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	result, err := restateingress.Object[restate.Void, services.CheckoutResult](
		g.client, "CartSession", userID, "Checkout").Request(r.Context(), restate.Void{})
	if err != nil {
		g.fail(w, r, "checkout", err)
		return
	}
	g.writeJSON(w, http.StatusOK, result)
}

func (g *Gateway) handlePromoShown(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	_, err := restateingress.Object[restate.Void, restate.Void](
		g.client, "CartSession", userID, "MarkPromoShown").Request(r.Context(), restate.Void{})
	if err != nil {
		g.fail(w, r, "mark promo shown", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	_, err := restateingress.Object[restate.Void, restate.Void](
		g.client, "CartSession", userID, "ResetSession").Request(r.Context(), restate.Void{})
	if err != nil {
		g.fail(w, r, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.log.Warn("response encode failed", zap.Error(err))
	}
}

func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	g.log.Error("durable call failed",
		zap.String("op", op),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	http.Error(w, "upstream call failed: "+err.Error(), http.StatusBadGateway)
}
