package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// SignatureEncoding selects how a webhook producer encodes its digest.
type SignatureEncoding int

const (
	// SignatureHex is used by Razorpay (x-razorpay-signature).
	SignatureHex SignatureEncoding = iota
	// SignatureBase64 is used by Shopify (x-shopify-hmac-sha256).
	SignatureBase64
)

// VerifySubscriptionPaymentSignature checks the checkout handler signature,
// an HMAC-SHA256 hex digest over "paymentId|subscriptionId".
func VerifySubscriptionPaymentSignature(paymentID, subscriptionID, signature, keySecret string) (bool, error) {
	if strings.TrimSpace(keySecret) == "" {
		return false, ErrMissingSecret
	}
	return VerifyWebhookSignature([]byte(paymentID+"|"+subscriptionID), signature, keySecret, SignatureHex)
}

// VerifyWebhookSignature compares the header digest with the HMAC-SHA256 of
// the raw body. A mismatch is (false, nil); only a missing secret errors.
func VerifyWebhookSignature(body []byte, signature, secret string, encoding SignatureEncoding) (bool, error) {
	if strings.TrimSpace(secret) == "" {
		return false, ErrMissingSecret
	}
	if signature == "" {
		return false, nil
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sum := mac.Sum(nil)

	var expected string
	switch encoding {
	case SignatureBase64:
		expected = base64.StdEncoding.EncodeToString(sum)
	default:
		expected = hex.EncodeToString(sum)
	}
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}
