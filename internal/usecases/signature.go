package usecases

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputePaymentSignature returns the hex HMAC-SHA256 over
// "<gatewayOrderID>|<gatewayPaymentID>" with the merchant key secret. This
// is the gateway's per-payment signature scheme.
func ComputePaymentSignature(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks a client-reported payment signature in
// constant time. A "success" flag from the client is never trusted; this
// match is the only accepted success signal on the callback path.
func VerifyPaymentSignature(secret, gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := ComputePaymentSignature(secret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ComputeWebhookSignature returns the hex HMAC-SHA256 over the raw webhook
// body with the webhook secret. Distinct key material from the per-payment
// signature.
func ComputeWebhookSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks a webhook body signature in constant time.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	expected := ComputeWebhookSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
