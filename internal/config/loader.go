package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load builds the configuration from the YAML file at configPath (optional,
// may be empty) and the process environment. Environment variables win over
// file values.
func Load(configPath string) (*Config, error) {
	return load(configPath, environMap(os.Environ()))
}

func load(configPath string, environ map[string]string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		absPath, err := resolveConfigFile(configPath)
		if err != nil {
			return nil, err
		}

		if err := VerifyConfigHash(absPath); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", absPath, err)
		}

		interpolated := interpolateEnv(string(data), environ)
		if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML in %s: %w", absPath, err)
		}
		cfg.SourcePath = absPath
	}

	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// resolveConfigFile accepts a file or a directory containing config.yaml.
func resolveConfigFile(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Line.SignatureHeader == "" {
		cfg.Line.SignatureHeader = DefaultSignatureHeader
	}
	if cfg.Server.WebhookPath == "" {
		cfg.Server.WebhookPath = "/webhook"
	}
	if cfg.Storage.PIDFile == "" && cfg.Storage.MessagesFile != "" {
		cfg.Storage.PIDFile = filepath.Join(filepath.Dir(cfg.Storage.MessagesFile), pidFileName)
	}
}

// interpolateEnv replaces ${VAR} with values from environ. Unknown variables
// are left in place so validation can report them.
func interpolateEnv(input string, environ map[string]string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := environ[varName]; exists {
			return value
		}
		return match
	})
}

func environMap(pairs []string) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			m[k] = v
		}
	}
	return m
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	var errs []error

	if cfg.Line.ChannelSecret == "" || cfg.Line.AccessToken == "" {
		errs = append(errs, errors.New("LINE_CHANNEL_SECRET and LINE_ACCESS_TOKEN must be set"))
	}
	for name, v := range map[string]string{
		"line.channel_secret": cfg.Line.ChannelSecret,
		"line.access_token":   cfg.Line.AccessToken,
	} {
		if envVarPattern.MatchString(v) {
			errs = append(errs, fmt.Errorf("%s references an unset environment variable: %s", name, v))
		}
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if !strings.HasPrefix(cfg.Server.WebhookPath, "/") {
		errs = append(errs, fmt.Errorf("server.webhook_path must start with '/', got %q", cfg.Server.WebhookPath))
	}
	if _, err := cfg.MaxBodyBytes(); err != nil {
		errs = append(errs, fmt.Errorf("server.max_body_size %q: %w", cfg.Server.MaxBodySize, err))
	}

	if strings.TrimSpace(cfg.Storage.MessagesFile) == "" {
		errs = append(errs, errors.New("storage.messages_file is required"))
	}

	return errors.Join(errs...)
}

// ListenAddr returns host:port for the HTTP server.
func (c *Config) ListenAddr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// MaxBodyBytes returns the parsed server.max_body_size.
func (c *Config) MaxBodyBytes() (int64, error) {
	return ParseSize(c.Server.MaxBodySize)
}

// ParseSize parses size strings like "1MB", "512KB", "2048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func ParseSize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}

// Redacted returns a copy safe to print: credentials are masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Line.ChannelSecret = mask(c.Line.ChannelSecret)
	out.Line.AccessToken = mask(c.Line.AccessToken)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
