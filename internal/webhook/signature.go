// Package webhook signs outgoing webhook payloads and verifies incoming ones.
//
// Both directions use the same scheme: the SignatureHeader carries
// "sha256=<hex-encoded HMAC-SHA256 of the raw body>" keyed with a shared
// secret.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader is the header that carries the body signature.
const SignatureHeader = "X-Storyboard-Signature-256"

const signaturePrefix = "sha256="

// Sign returns the header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify validates a signature header value against body.
//
// Uses hmac.Equal for constant-time comparison.
func Verify(secret string, body []byte, header string) bool {
	if len(header) <= len(signaturePrefix) || !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	received, err := hex.DecodeString(header[len(signaturePrefix):])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(received, mac.Sum(nil))
}
