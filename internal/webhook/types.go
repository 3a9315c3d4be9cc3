package webhook

import (
	"context"

	"github.com/mattjoyce/line-webhook/internal/message"
	"github.com/mattjoyce/line-webhook/internal/receipts"
)

//go:generate mockgen -destination=mocks/mock_webhook.go -package=mocks github.com/mattjoyce/line-webhook/internal/webhook SignatureVerifier,MessageAppender,ReceiptRecorder

// SignatureVerifier checks a raw body against its signature header value.
type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) error
}

// MessageAppender persists one normalized message.
type MessageAppender interface {
	Append(msg message.StoredMessage) error
}

// ReceiptRecorder records the outcome of a delivery.
type ReceiptRecorder interface {
	Record(ctx context.Context, r receipts.Receipt) (string, error)
}

// Config holds webhook server configuration.
type Config struct {
	// Listen is the host:port the server binds to.
	Listen string

	// Path is the URL path LINE posts to (default: "/webhook")
	Path string

	// SignatureHeader is the header carrying the body signature
	// (default: "X-Line-Signature")
	SignatureHeader string

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB)
	MaxBodySize int64

	// MetricsEnabled exposes GET /metrics.
	MetricsEnabled bool
}

// StatusResponse is the body of every 200 response from POST /webhook.
// Status is "OK" or "Error".
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DetailResponse is the body of non-200 responses.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// RootResponse is returned by GET /.
type RootResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Health  string `json:"health"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Response statuses and messages.
const (
	StatusOK    = "OK"
	StatusError = "Error"

	msgProcessed    = "Message processed successfully"
	msgNoEvents     = "No events"
	msgInvalidJSON  = "Invalid JSON payload"
	msgSaveFailed   = "Failed to save message"
	msgReadFailed   = "Failed to read request body"
	msgInvalidSig   = "Invalid signature"
	msgTooLarge     = "Payload too large"
	msgNonMessageFm = "Non-message event received: %s"
	msgWebhookErrFm = "Webhook error: %v"
)

// Default values
const (
	DefaultPath            = "/webhook"
	DefaultSignatureHeader = "X-Line-Signature"
	DefaultMaxBodySize     = 1048576 // 1 MB
	Version                = "1.0.0"
)
