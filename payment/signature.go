package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrNotConfigured is returned when no gateway secret is available.
var ErrNotConfigured = errors.New("payment gateway secret not configured")

// Sign returns the lowercase hex HMAC-SHA256 of "<orderID>|<paymentID>" keyed
// with secret, the signature the gateway attaches to a completed payment.
func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches the expected signature
// for the order/payment pair. The comparison is exact and case sensitive.
// The only error is ErrNotConfigured.
func VerifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) (bool, error) {
	if secret == "" {
		return false, ErrNotConfigured
	}
	expected := Sign(secret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}
