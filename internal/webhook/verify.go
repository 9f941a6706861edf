// Package webhook validates the authenticity of inbound carrier webhooks.
package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strings"
)

// VerifyTwilio checks the X-Twilio-Signature header: HMAC-SHA1 over the full
// request URL concatenated with every POST parameter key+value in key order,
// compared in constant time against the base64-decoded header. Fails closed
// on a missing secret or malformed header.
func VerifyTwilio(authToken, requestURL string, params map[string]string, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	computed := mac.Sum(nil)

	provided, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(computed, provided)
}

// VerifyTelnyx checks the Telnyx signature header, format "timestamp.hash":
// HMAC-SHA256 over timestamp+body, hex-encoded, compared in constant time.
// Fails closed on a missing secret or malformed header.
func VerifyTelnyx(secret string, body []byte, signature string) bool {
	if secret == "" {
		return false
	}
	timestamp, providedHash, ok := strings.Cut(signature, ".")
	if !ok || timestamp == "" || providedHash == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(computed), []byte(providedHash))
}

// SignTelnyx produces a signature header for a timestamp and body. Used by
// tests and local tooling to build valid webhook deliveries.
func SignTelnyx(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return timestamp + "." + hex.EncodeToString(mac.Sum(nil))
}

// SignTwilio produces an X-Twilio-Signature value for a URL and params.
func SignTwilio(authToken, requestURL string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
