// Package webhook authenticates payment provider notifications and maps the
// purchased product onto a plan tier.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Gumroad-Signature"

// Verifier checks HMAC-SHA256 signatures with a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for secret. An empty secret rejects every
// signature.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Configured reports whether a shared secret is set.
func (v *Verifier) Configured() bool {
	return len(v.secret) > 0
}

// Sign returns the hex HMAC-SHA256 of body.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the hex HMAC-SHA256 of rawBody. The
// comparison runs in constant time over the decoded MAC.
func (v *Verifier) Verify(rawBody []byte, signature string) bool {
	if !v.Configured() || signature == "" {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), provided)
}
