package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, StaticToken("session-token"), 5*time.Second, zap.NewNop())
}

func TestFetchCartProducts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cart-products", r.URL.Path)
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))

		// Prices arrive as strings from the PHP side, rating as a number,
		// one row with garbage price.
		w.Write([]byte(`{"success":true,"data":[
			{"id":"p1","name":"Mug","selling_price":"199.99","regular_price":"249.99","stock":"7","rating":4.5},
			{"id":"p2","name":"Pen","selling_price":20,"regular_price":null,"stock":0,"rating":"3"},
			{"id":"p3","name":"Broken","selling_price":"n/a","stock":2}
		]}`))
	})

	products, err := client.FetchCartProducts(context.Background(), "user-1", []string{"p1", "p2", "p3"})
	require.NoError(t, err)
	require.Len(t, products, 3)

	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, 199.99, products[0].SellingPrice)
	assert.Equal(t, 249.99, products[0].RegularPrice)
	assert.Equal(t, 7, products[0].Stock)
	assert.Equal(t, 4.5, products[0].Rating)

	assert.Equal(t, 20.0, products[1].SellingPrice)
	assert.Zero(t, products[1].RegularPrice)
	assert.Zero(t, products[1].Stock)

	// Unparseable price defaults to zero rather than failing the batch.
	assert.Zero(t, products[2].SellingPrice)
	assert.Equal(t, 2, products[2].Stock)
}

func TestFetchCartProducts_EmptyIDsSkipsNetwork(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	products, err := client.FetchCartProducts(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.False(t, called)
}

func TestFetchDeliveryTier(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "zone-7", r.URL.Query().Get("zone"))
		w.Write([]byte(`{"success":true,"data":[
			{"min_order":"200","slab1":"500","charge1":"50","slab2":"1500","charge2":"20"},
			{"min_order":"999","slab1":"1","charge1":"1","slab2":"2","charge2":"1"}
		]}`))
	})

	tier, err := client.FetchDeliveryTier(context.Background(), "zone-7")
	require.NoError(t, err)
	require.NotNil(t, tier)

	// Only the first row counts.
	assert.Equal(t, 200.0, tier.MinOrder)
	assert.Equal(t, 500.0, tier.Slab1)
	assert.Equal(t, 50.0, tier.Charge1)
	assert.Equal(t, 1500.0, tier.Slab2)
	assert.Equal(t, 20.0, tier.Charge2)
}

func TestFetchDeliveryTier_NoneConfigured(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":[]}`))
	})

	tier, err := client.FetchDeliveryTier(context.Background(), "zone-7")
	require.NoError(t, err)
	assert.Nil(t, tier)
}

func TestFetchCoupons(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":[
			{"code":"SAVE150","max_discount":150,"min_order_value":500,"status":1,"coupon_delete":0},
			{"code":"DEAD","max_discount":10,"min_order_value":0,"status":1,"coupon_delete":1}
		]}`))
	})

	coupons, err := client.FetchCoupons(context.Background())
	require.NoError(t, err)
	require.Len(t, coupons, 2)
	assert.True(t, coupons[0].Active())
	assert.False(t, coupons[1].Active())
}

func TestCall_BackendFailureEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"data":[]}`))
	})

	_, err := client.FetchCoupons(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend reported failure")
}

func TestCall_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`))
	})

	_, err := client.FetchCoupons(context.Background())
	require.Error(t, err)
}

func TestCall_ErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.FetchCoupons(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestUpsertCartLine(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Write([]byte(`{"success":true}`))
	})

	err := client.UpsertCartLine(context.Background(), "user-1", "p1", 3)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"user-1","product_id":"p1","quantity":3}`, gotBody)
}

func TestAuthTransport_AllowListSkipsToken(t *testing.T) {
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	httpClient := &http.Client{Transport: newAuthTransport(srv.URL, StaticToken("tok"))}

	_, err := httpClient.Get(srv.URL + "/login")
	require.NoError(t, err)
	assert.Empty(t, header)

	_, err = httpClient.Get(srv.URL + "/coupons")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", header)
}

func TestAuthTransport_AllowListUnderBasePath(t *testing.T) {
	// Base URLs like http://host/api prefix every request path; the
	// allow-list still has to recognize /api/login as the open login route.
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	httpClient := &http.Client{Transport: newAuthTransport(srv.URL+"/api", StaticToken("tok"))}

	_, err := httpClient.Get(srv.URL + "/api/login")
	require.NoError(t, err)
	assert.Empty(t, header)

	_, err = httpClient.Get(srv.URL + "/api/register")
	require.NoError(t, err)
	assert.Empty(t, header)

	_, err = httpClient.Get(srv.URL + "/api/coupons")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", header)
}
