package shopify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandernook/wandernook/internal/pkg/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(config.ShopifyConfig{Domain: "wander.myshopify.com", AdminAccessToken: "shpat_x"})
	c.BaseURL = srv.URL
	return c
}

func TestNewClient_DefaultVersion(t *testing.T) {
	c := NewClient(config.ShopifyConfig{Domain: " shop.myshopify.com ", AdminAccessToken: "t"})
	assert.Equal(t, "2025-07", c.APIVersion)
	assert.True(t, c.Configured())
	assert.Equal(t, "https://shop.myshopify.com/admin/api/2025-07/orders.json", c.adminURL("/orders.json"))
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient(config.ShopifyConfig{})
	assert.False(t, c.Configured())

	_, err := c.FindOrderByTag(context.Background(), "rzp_payment_pay_1")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.CreateOrder(context.Background(), OrderInput{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, c.CancelOrder(context.Background(), 1), ErrNotConfigured)
}

func TestFindOrderByTag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2025-07/graphql.json", r.URL.Path)
		assert.Equal(t, "shpat_x", r.Header.Get("X-Shopify-Access-Token"))
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, `tag:"rzp_payment_pay_1"`, req.Variables["query"])
		_, _ = w.Write([]byte(`{"data":{"orders":{"edges":[{"node":{"id":"gid://shopify/Order/9","name":"#1009"}}]}}}`))
	})

	ref, err := c.FindOrderByTag(context.Background(), "rzp_payment_pay_1")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "gid://shopify/Order/9", ref.ID)
	assert.Equal(t, "#1009", ref.Name)
}

func TestFindOrderByTag_FailureIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	ref, err := c.FindOrderByTag(context.Background(), "rzp_payment_pay_1")
	assert.NoError(t, err)
	assert.Nil(t, ref)
}

func TestCreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2025-07/orders.json", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var payload map[string]map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "paid", payload["order"]["financial_status"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order":{"id":450789469,"name":"#1001"}}`))
	})

	ref, err := c.CreateOrder(context.Background(), OrderInput{
		Email:           "parent@example.com",
		FinancialStatus: "paid",
		LineItems:       []LineItem{{VariantID: 111, Quantity: 1, Price: "2300.00"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "450789469", ref.ID)
	assert.Equal(t, "#1001", ref.Name)
}

func TestCreateOrder_Errors(t *testing.T) {
	t.Run("errors payload", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"errors":{"line_items":["is invalid"]}}`))
		})
		_, err := c.CreateOrder(context.Background(), OrderInput{})
		require.Error(t, err)
		var shopErr *Error
		require.ErrorAs(t, err, &shopErr)
		assert.Equal(t, http.StatusUnprocessableEntity, shopErr.Status)
		assert.Equal(t, `Failed to create Shopify order: {"line_items":["is invalid"]}`, err.Error())
	})

	t.Run("no body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := c.CreateOrder(context.Background(), OrderInput{})
		require.Error(t, err)
		assert.Equal(t, "Failed to create Shopify order: HTTP 500", err.Error())
	})
}

func TestCancelOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2025-07/orders/77/cancel.json", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, false, payload["restock"])
		assert.Equal(t, false, payload["email"])
		_, _ = w.Write([]byte(`{"order":{"id":77}}`))
	})
	require.NoError(t, c.CancelOrder(context.Background(), 77))
}
