// Package line holds the pieces of the LINE Messaging API this service consumes:
// channel credentials, X-Line-Signature verification and the webhook event envelope.
package line

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned by NewClient when the secret or token is empty.
var ErrMissingCredentials = errors.New("missing channel credentials")

// SignatureHeader is the header LINE uses to carry the body signature.
const SignatureHeader = "X-Line-Signature"

// Client carries the channel credentials. It is built once at startup and
// never mutated afterwards.
type Client struct {
	channelSecret string
	accessToken   string
}

// NewClient returns a Client for the given channel. Both values are required.
func NewClient(channelSecret, accessToken string) (*Client, error) {
	var missing []string
	if channelSecret == "" {
		missing = append(missing, "channel secret")
	}
	if accessToken == "" {
		missing = append(missing, "access token")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredentials, joinMissing(missing))
	}
	return &Client{channelSecret: channelSecret, accessToken: accessToken}, nil
}

// AccessToken returns the channel access token.
func (c *Client) AccessToken() string { return c.accessToken }

// VerifySignature checks signature against the raw request body.
func (c *Client) VerifySignature(body []byte, signature string) error {
	return verifySignature(body, signature, c.channelSecret)
}

func joinMissing(parts []string) string {
	if len(parts) == 1 {
		return parts[0] + " is required"
	}
	return parts[0] + " and " + parts[1] + " are required"
}
