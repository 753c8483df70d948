package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Webhook signature headers.
const (
	HeaderTimestamp = "X-Hotpot-Timestamp"
	HeaderSignature = "X-Hotpot-Signature"
)

// WebhookSigner signs outbound webhook bodies so receivers can verify they
// came from this service.
type WebhookSigner struct {
	Secret string
}

// Headers returns the signature headers for body using the current time.
func (s *WebhookSigner) Headers(body []byte) map[string]string {
	return s.HeadersAt(body, time.Now().Unix())
}

// HeadersAt is like Headers but lets the caller supply the Unix timestamp.
// The signature is hex(HMAC-SHA256(secret, timestamp + "." + body)).
func (s *WebhookSigner) HeadersAt(body []byte, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	return map[string]string{
		HeaderTimestamp: ts,
		HeaderSignature: "sha256=" + hmacSHA256Hex([]byte(s.Secret), ts, body),
	}
}

// Verify checks a signature produced by HeadersAt.
func (s *WebhookSigner) Verify(body []byte, ts, signature string) bool {
	want := "sha256=" + hmacSHA256Hex([]byte(s.Secret), ts, body)
	return hmac.Equal([]byte(want), []byte(signature))
}

func hmacSHA256Hex(key []byte, ts string, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (s *WebhookSigner) String() string {
	redact := "****"
	if len(s.Secret) > 4 {
		redact = s.Secret[:4] + "****"
	}
	return fmt.Sprintf("WebhookSigner{secret=%s}", redact)
}
