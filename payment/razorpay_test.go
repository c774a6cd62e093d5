package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(49999), ToMinorUnits(decimal.RequireFromString("499.99")))
	assert.Equal(t, int64(100), ToMinorUnits(decimal.NewFromInt(1)))
	assert.Equal(t, int64(1), ToMinorUnits(decimal.RequireFromString("0.005")))
}

func TestRazorpayClient_CreateOrder(t *testing.T) {
	var got createOrderBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "s3cret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc","amount":129900,"currency":"INR","receipt":"rcpt_1","status":"created"}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient("rzp_test_key", "s3cret", WithBaseURL(srv.URL))
	order, err := c.CreateOrder(context.Background(), decimal.RequireFromString("1299"), "rcpt_1")
	require.NoError(t, err)

	assert.Equal(t, int64(129900), got.Amount)
	assert.Equal(t, "INR", got.Currency)
	assert.Equal(t, "rcpt_1", got.Receipt)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, int64(129900), order.Amount)
}

func TestRazorpayClient_CreateOrder_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Order amount less than minimum amount allowed"}}`))
	}))
	defer srv.Close()

	c := NewRazorpayClient("k", "s", WithBaseURL(srv.URL))
	_, err := c.CreateOrder(context.Background(), decimal.RequireFromString("0.5"), "r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minimum amount")
}

func TestRazorpayClient_NotConfigured(t *testing.T) {
	c := NewRazorpayClient("", "")
	_, err := c.CreateOrder(context.Background(), decimal.NewFromInt(10), "r")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.VerifyPayment("order_1", "pay_1", "sig")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
