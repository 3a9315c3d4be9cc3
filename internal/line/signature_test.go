package line

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "test-channel-secret"
	body := []byte(`{"destination":"U0","events":[]}`)

	expectedSig := Sign(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		wantErr   bool
	}{
		{
			name:      "valid signature",
			body:      body,
			signature: expectedSig,
			secret:    secret,
			wantErr:   false,
		},
		{
			name:      "valid signature - surrounding whitespace",
			body:      body,
			signature: " " + expectedSig + " ",
			secret:    secret,
			wantErr:   false,
		},
		{
			name:      "invalid signature - wrong signature",
			body:      body,
			signature: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=",
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "invalid signature - tampered body",
			body:      []byte(`{"destination":"U0","events":[{}]}`),
			signature: expectedSig,
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "invalid signature - reserialized body",
			body:      []byte(`{"destination": "U0", "events": []}`),
			signature: expectedSig,
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "invalid signature - wrong secret",
			body:      body,
			signature: expectedSig,
			secret:    "wrong-secret",
			wantErr:   true,
		},
		{
			name:      "invalid signature - empty signature",
			body:      body,
			signature: "",
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "invalid signature - empty secret",
			body:      body,
			signature: expectedSig,
			secret:    "",
			wantErr:   true,
		},
		{
			name:      "invalid signature - malformed base64",
			body:      body,
			signature: "not base64!!",
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "invalid signature - truncated digest",
			body:      body,
			signature: expectedSig[:10],
			secret:    secret,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifySignature(tt.body, tt.signature, tt.secret)
			if tt.wantErr {
				// All errors should be generic (no information leakage)
				assert.ErrorIs(t, err, ErrInvalidSignature)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSign(t *testing.T) {
	body := []byte("test payload")
	secret := "test-secret"

	sig := Sign(body, secret)

	// base64 of a 32-byte digest
	assert.Len(t, sig, 44)
	assert.Equal(t, sig, Sign(body, secret), "signature should be deterministic")
	assert.NotEqual(t, sig, Sign([]byte("different"), secret))
}
