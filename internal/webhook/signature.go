package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign computes the hex-encoded HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks an HMAC-SHA256 signature over the raw request body.
// Both "sha256=<hex>" (GitHub style) and raw hex signatures are accepted.
// Comparison is constant-time.
func VerifySignature(secret string, body []byte, signature string) bool {
	actualHex := signature
	if strings.Contains(signature, "=") {
		parts := strings.SplitN(signature, "=", 2)
		if len(parts) == 2 {
			actualHex = parts[1]
		}
	}

	actualMAC, err := hex.DecodeString(actualHex)
	if err != nil {
		return false
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	expectedMAC := h.Sum(nil)

	return hmac.Equal(expectedMAC, actualMAC)
}
