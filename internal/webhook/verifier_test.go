package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifier_Verify(t *testing.T) {
	body := []byte("email=alice%40example.com&product_name=PRO+Plan")
	valid := sign("shh", body)

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{"valid", "shh", body, valid, true},
		{"valid uppercase hex", "shh", body, strings.ToUpper(valid), true},
		{"tampered body", "shh", []byte(string(body) + "!"), valid, false},
		{"wrong secret", "other", body, valid, false},
		{"empty signature", "shh", body, "", false},
		{"not hex", "shh", body, "zz-not-hex", false},
		{"truncated", "shh", body, valid[:len(valid)-2], false},
		{"secret unset", "", body, sign("", body), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(tt.secret)
			assert.Equal(t, tt.want, v.Verify(tt.body, tt.signature))
		})
	}
}

func TestVerifier_Sign(t *testing.T) {
	v := NewVerifier("shh")
	body := []byte("payload")

	assert.Equal(t, sign("shh", body), v.Sign(body))
	assert.True(t, v.Verify(body, v.Sign(body)))
	assert.True(t, v.Configured())
	assert.False(t, NewVerifier("").Configured())
}
