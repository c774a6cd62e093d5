package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentEmail struct {
	to, subject, body string
}

type mockSender struct {
	sent []sentEmail
	err  error
}

func (m *mockSender) SendEmail(_ context.Context, to, subject, body string) (SendResult, error) {
	if m.err != nil {
		return SendResult{}, m.err
	}
	m.sent = append(m.sent, sentEmail{to, subject, body})
	return SendResult{MessageID: "msg-1", SentAt: time.Now()}, nil
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:            "ord-1",
		UserID:        "u1",
		UserEmail:     "asha@example.com",
		Items:         []models.OrderLineItem{{ProductID: "p1", Title: "SSD", UnitPrice: decimal.NewFromInt(4999), Quantity: 1}},
		TotalAmount:   decimal.RequireFromString("123456.5"),
		Status:        models.StatusConfirmed,
		PaymentMethod: models.PaymentCashOnDelivery,
		PaymentStatus: models.PaymentPending,
		ShippingAddress: models.ShippingAddress{
			Name: "Asha", Phone: "9999999999", Street: "MG Road", City: "Bengaluru", Pincode: "560001",
		},
		OrderedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestNotifier(t *testing.T, sender EmailSender, admin string) *EmailNotifier {
	t.Helper()
	n, err := NewEmailNotifier(sender, admin, zap.NewNop())
	require.NoError(t, err)
	return n
}

func TestFormatINR(t *testing.T) {
	tests := map[string]string{
		"0":        "Rs. 0",
		"999":      "Rs. 999",
		"1000":     "Rs. 1,000",
		"123456.5": "Rs. 1,23,456.5",
		"12345678": "Rs. 1,23,45,678",
		"1999.999": "Rs. 2,000",
		"49.05":    "Rs. 49.05",
		"-2500.10": "Rs. -2,500.1",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatINR(decimal.RequireFromString(in)), in)
	}
}

func TestEmailNotifier_AdminOrderAlert(t *testing.T) {
	sender := &mockSender{}
	n := newTestNotifier(t, sender, "admin@shop.test")

	require.NoError(t, n.SendAdminOrderAlert(context.Background(), sampleOrder()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "admin@shop.test", sender.sent[0].to)
	assert.Equal(t, "New confirmed order: ord-1", sender.sent[0].subject)
	assert.Contains(t, sender.sent[0].body, "Rs. 1,23,456.5")
	assert.Contains(t, sender.sent[0].body, "Asha (asha@example.com)")
}

func TestEmailNotifier_AdminAlertSkippedWithoutAdmin(t *testing.T) {
	sender := &mockSender{}
	n := newTestNotifier(t, sender, "")

	require.NoError(t, n.SendAdminOrderAlert(context.Background(), sampleOrder()))
	assert.Empty(t, sender.sent)
}

func TestEmailNotifier_CustomerStatusEmail(t *testing.T) {
	sender := &mockSender{}
	n := newTestNotifier(t, sender, "admin@shop.test")

	require.NoError(t, n.SendCustomerStatusEmail(context.Background(), sampleOrder(), models.StatusShipped))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "asha@example.com", sender.sent[0].to)
	assert.Equal(t, "Order ord-1 status: shipped", sender.sent[0].subject)
	assert.Contains(t, sender.sent[0].body, "Your order has been shipped.")
}

func TestEmailNotifier_CustomerWithoutEmailIsSkipped(t *testing.T) {
	sender := &mockSender{}
	n := newTestNotifier(t, sender, "admin@shop.test")
	order := sampleOrder()
	order.UserEmail = ""

	require.NoError(t, n.SendCustomerStatusEmail(context.Background(), order, models.StatusPacked))
	assert.Empty(t, sender.sent)
}

func TestEmailNotifier_PendingReminder(t *testing.T) {
	sender := &mockSender{}
	n := newTestNotifier(t, sender, "admin@shop.test")

	sent, err := n.SendAdminPendingReminder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Contains(t, sender.sent[0].subject, "ord-1")
	assert.Contains(t, sender.sent[0].body, "01 Apr 2026")

	unconfigured := newTestNotifier(t, sender, "")
	sent, err = unconfigured.SendAdminPendingReminder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestEmailNotifier_SenderFailureIsReturned(t *testing.T) {
	n := newTestNotifier(t, &mockSender{err: errors.New("smtp down")}, "admin@shop.test")

	sent, err := n.SendAdminPendingReminder(context.Background(), sampleOrder())
	assert.Error(t, err)
	assert.False(t, sent)
}

func TestStatusMessage_UnknownStatus(t *testing.T) {
	assert.Equal(t, "Your order status is now returned.", StatusMessage(models.OrderStatus("returned")))
}
