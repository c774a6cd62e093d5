package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/shopspring/decimal"
)

const (
	DefaultRazorpayBaseURL = "https://api.razorpay.com/v1"
	DefaultCurrency        = "INR"
)

// RazorpayClient talks to the Razorpay orders API and verifies the
// signatures it issues.
type RazorpayClient struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

type RazorpayOption func(*RazorpayClient)

// WithBaseURL points the client at another API root, used by tests.
func WithBaseURL(u string) RazorpayOption {
	return func(c *RazorpayClient) { c.baseURL = strings.TrimSuffix(u, "/") }
}

func WithHTTPClient(h *http.Client) RazorpayOption {
	return func(c *RazorpayClient) { c.httpClient = h }
}

func NewRazorpayClient(keyID, keySecret string, opts ...RazorpayOption) *RazorpayClient {
	c := &RazorpayClient{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    DefaultRazorpayBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RazorpayClient) Configured() bool {
	return c.keyID != "" && c.keySecret != ""
}

// VerifyPayment checks a checkout signature with the configured secret.
func (c *RazorpayClient) VerifyPayment(gatewayOrderID, gatewayPaymentID, signature string) (bool, error) {
	return VerifySignature(c.keySecret, gatewayOrderID, gatewayPaymentID, signature)
}

// ToMinorUnits converts rupees to paise, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

type createOrderBody struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type gatewayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder registers a gateway order for amount (in rupees) that the
// checkout page then collects payment against.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*models.RemoteOrder, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(createOrderBody{
		Amount:   ToMinorUnits(amount),
		Currency: DefaultCurrency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read razorpay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var gerr gatewayErrorBody
		if json.Unmarshal(body, &gerr) == nil && gerr.Error.Description != "" {
			return nil, fmt.Errorf("razorpay error %d: %s", resp.StatusCode, gerr.Error.Description)
		}
		return nil, fmt.Errorf("razorpay error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var order models.RemoteOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("failed to decode razorpay order: %w", err)
	}
	return &order, nil
}
