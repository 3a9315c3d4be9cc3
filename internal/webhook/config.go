package webhook

import (
	"fmt"

	"github.com/mattjoyce/line-webhook/internal/config"
)

// FromGlobalConfig converts the process configuration to webhook.Config.
func FromGlobalConfig(c *config.Config) (Config, error) {
	if c == nil {
		return Config{}, fmt.Errorf("config is nil")
	}

	maxBodySize, err := c.MaxBodyBytes()
	if err != nil {
		return Config{}, fmt.Errorf("webhook endpoint %q: invalid max_body_size %q: %w", c.Server.WebhookPath, c.Server.MaxBodySize, err)
	}

	return Config{
		Listen:          c.ListenAddr(),
		Path:            c.Server.WebhookPath,
		SignatureHeader: c.Line.SignatureHeader,
		MaxBodySize:     maxBodySize,
		MetricsEnabled:  c.Metrics.Enabled,
	}, nil
}
