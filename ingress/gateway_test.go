package ingress

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubRestate imitates the Restate HTTP ingress: POST /{Service}/{key}/{Handler}.
func stubRestate(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		require.NotEmpty(t, parts)
		handler := parts[len(parts)-1]
		body, ok := responses[handler]
		if !ok {
			t.Errorf("unexpected handler call: %s", r.URL.Path)
			http.Error(w, "unknown handler", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func newTestGateway(t *testing.T, apiKey string, responses map[string]string) http.Handler {
	t.Helper()
	upstream := stubRestate(t, responses)
	t.Cleanup(upstream.Close)
	return New(upstream.URL, apiKey, zap.NewNop()).Router()
}

func TestGateway_Healthz_Unauthenticated(t *testing.T) {
	router := newTestGateway(t, "secret", nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateway_RejectsMissingToken(t *testing.T) {
	router := newTestGateway(t, "secret", nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/user/user-1/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGateway_RejectsWrongToken(t *testing.T) {
	router := newTestGateway(t, "secret", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/user-1/cart", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGateway_GetCart(t *testing.T) {
	router := newTestGateway(t, "secret", map[string]string{
		"GetCart": `{"lines":[],"summary":{"subtotal":0,"quantityTotal":0,"deliveryCharge":0,"deliveryAvailable":false,"discountAmount":0,"grandTotal":0},"promoShown":false,"outOfStock":false}`,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/user-1/cart", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"grandTotal":0`)
}

func TestGateway_AddItem(t *testing.T) {
	router := newTestGateway(t, "secret", map[string]string{
		"AddItem": `{"cart":{"lines":[{"productId":"p1","name":"Mug","quantity":2,"sellingPrice":100,"regularPrice":125,"discountPercent":20,"hasDiscount":true,"stock":20,"rating":4.5,"lineTotal":200,"outOfStock":false}],"summary":{"subtotal":200,"quantityTotal":2,"deliveryCharge":50,"deliveryAvailable":true,"discountAmount":0,"grandTotal":250},"promoShown":false,"outOfStock":false},"mirrored":true}`,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/user-1/cart/items",
		strings.NewReader(`{"productId":"p1","quantity":2}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mirrored":true`)
}

func TestGateway_AddItem_BadBody(t *testing.T) {
	router := newTestGateway(t, "secret", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/user-1/cart/items",
		strings.NewReader(`not json`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGateway_UpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(upstream.Close)
	router := New(upstream.URL, "secret", zap.NewNop()).Router()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/user-1/checkout", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
