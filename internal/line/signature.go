package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidSignature is returned for every verification failure. It carries
// no detail about why the check failed.
var ErrInvalidSignature = errors.New("webhook verification failed")

// verifySignature verifies a base64 HMAC-SHA256 signature over body.
//
// The digest is computed over the exact bytes received, before any JSON
// decoding, and compared with crypto/subtle.
func verifySignature(body []byte, signature, secret string) error {
	if secret == "" {
		return ErrInvalidSignature
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrInvalidSignature
	}

	actualMAC, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedMAC := mac.Sum(nil)

	if subtle.ConstantTimeCompare(expectedMAC, actualMAC) != 1 {
		return ErrInvalidSignature
	}

	return nil
}

// Sign returns the X-Line-Signature value LINE would send for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
