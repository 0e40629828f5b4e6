package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader is the header the platform signs webhook bodies with.
const SignatureHeader = "X-Hub-Signature-256"

const signaturePrefix = "sha256="

// ErrSignatureMismatch is returned when a body does not match its signature.
var ErrSignatureMismatch = errors.New("webhook signature mismatch")

// Sign returns the header value for body signed with secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against body. An empty header or secret
// skips the check.
func VerifySignature(body []byte, header, secret string) error {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return nil
	}
	if !hmac.Equal([]byte(Sign(body, secret)), []byte(header)) {
		return ErrSignatureMismatch
	}
	return nil
}
