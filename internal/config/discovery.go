package config

import (
	"os"
	"path/filepath"
)

// DiscoverConfigPath finds a config file by checking standard locations.
// Priority order: $LINE_WEBHOOK_CONFIG, ~/.config/line-webhook/config.yaml,
// /etc/line-webhook/config.yaml, ./config.yaml. An empty result means
// configuration comes from the environment only.
func DiscoverConfigPath() string {
	candidates := make([]string, 0, 4)
	if p := os.Getenv("LINE_WEBHOOK_CONFIG"); p != "" {
		candidates = append(candidates, p)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "line-webhook", "config.yaml"))
	}
	candidates = append(candidates, "/etc/line-webhook/config.yaml", "config.yaml")

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
