package notifier

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/sanjay9342/ramesh-computers/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Notifier sends the order emails. Implementations never panic; callers treat
// every error as non-fatal.
type Notifier interface {
	SendAdminOrderAlert(ctx context.Context, order *models.Order) error
	SendCustomerStatusEmail(ctx context.Context, order *models.Order, status models.OrderStatus) error
	// SendAdminPendingReminder reports false when nothing was sent because no
	// admin address is configured.
	SendAdminPendingReminder(ctx context.Context, order *models.Order) (bool, error)
}

// EmailNotifier renders the order templates and hands them to an EmailSender.
type EmailNotifier struct {
	sender     EmailSender
	adminEmail string
	templates  *template.Template
	logger     *zap.Logger
}

func NewEmailNotifier(sender EmailSender, adminEmail string, logger *zap.Logger) (*EmailNotifier, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{"inr": FormatINR}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &EmailNotifier{sender: sender, adminEmail: adminEmail, templates: tmpl, logger: logger}, nil
}

func (n *EmailNotifier) SendAdminOrderAlert(ctx context.Context, order *models.Order) error {
	if n.sender == nil || n.adminEmail == "" {
		n.logger.Debug("Admin alert skipped, email not configured", zap.String("order_id", order.ID))
		return nil
	}
	return n.send(ctx, n.adminEmail, "New confirmed order: "+order.ID, "admin_order_alert.html", order, "")
}

func (n *EmailNotifier) SendCustomerStatusEmail(ctx context.Context, order *models.Order, status models.OrderStatus) error {
	if n.sender == nil || order.UserEmail == "" {
		return nil
	}
	subject := fmt.Sprintf("Order %s status: %s", order.ID, status)
	return n.send(ctx, order.UserEmail, subject, "order_status.html", order, StatusMessage(status))
}

func (n *EmailNotifier) SendAdminPendingReminder(ctx context.Context, order *models.Order) (bool, error) {
	if n.sender == nil || n.adminEmail == "" {
		return false, nil
	}
	subject := fmt.Sprintf("Pending order reminder: %s (%s)", order.ID, order.Status)
	if err := n.send(ctx, n.adminEmail, subject, "pending_reminder.html", order, ""); err != nil {
		return false, err
	}
	return true, nil
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, tmpl string, order *models.Order, message string) error {
	var body bytes.Buffer
	data := struct {
		Order   *models.Order
		Message string
	}{order, message}
	if err := n.templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return fmt.Errorf("render %s: %w", tmpl, err)
	}

	res, err := n.sender.SendEmail(ctx, to, subject, body.String())
	if err != nil {
		return err
	}
	n.logger.Info("Email sent",
		zap.String("template", tmpl),
		zap.String("order_id", order.ID),
		zap.String("message_id", res.MessageID),
	)
	return nil
}

// StatusMessage is the customer-facing sentence for a status.
func StatusMessage(status models.OrderStatus) string {
	switch status {
	case models.StatusConfirmed:
		return "Your order is confirmed and waiting for shipping."
	case models.StatusPacked:
		return "Your order has been packed."
	case models.StatusShipped:
		return "Your order has been shipped."
	case models.StatusOutForDelivery:
		return "Your order is out for delivery."
	case models.StatusDelivered:
		return "Your order has been delivered."
	case models.StatusCancelled:
		return "Your order has been cancelled."
	default:
		return fmt.Sprintf("Your order status is now %s.", status)
	}
}

// FormatINR renders an amount as "Rs. 1,23,456.5" using Indian digit grouping.
func FormatINR(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}

	s := rounded.StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")

	var grouped string
	if len(intPart) <= 3 {
		grouped = intPart
	} else {
		head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	}

	if frac != "" {
		grouped += "." + frac
	}
	return "Rs. " + sign + grouped
}
