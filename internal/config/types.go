package config

// Config is the complete line-webhook configuration. Every field can come
// from the YAML file, and the env tags name the environment variables that
// override it.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Line     LineConfig     `yaml:"line"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Receipts ReceiptsConfig `yaml:"receipts,omitempty"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	// SourcePath is the config file this Config was read from, empty when
	// the configuration came from the environment only.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines process-level settings.
type ServiceConfig struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// LineConfig holds the LINE channel credentials.
type LineConfig struct {
	ChannelSecret string `yaml:"channel_secret" env:"LINE_CHANNEL_SECRET"`
	AccessToken   string `yaml:"access_token" env:"LINE_ACCESS_TOKEN"`
	// SignatureHeader defaults to X-Line-Signature.
	SignatureHeader string `yaml:"signature_header,omitempty" env:"LINE_SIGNATURE_HEADER"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Host        string `yaml:"host" env:"SERVER_HOST"`
	Port        int    `yaml:"port" env:"SERVER_PORT"`
	WebhookPath string `yaml:"webhook_path" env:"WEBHOOK_PATH"`
	// MaxBodySize accepts plain bytes or a KB/MB/GB suffix, e.g. "1MB".
	MaxBodySize string `yaml:"max_body_size,omitempty" env:"MAX_BODY_SIZE"`
}

// StorageConfig defines where messages are persisted.
type StorageConfig struct {
	MessagesFile string `yaml:"messages_file" env:"MESSAGES_FILE"`
	// PIDFile defaults to line-webhook.pid next to the messages file.
	PIDFile string `yaml:"pid_file,omitempty" env:"PID_FILE"`
}

// ReceiptsConfig enables the SQLite delivery ledger when Path is set.
type ReceiptsConfig struct {
	Path string `yaml:"path" env:"RECEIPTS_PATH"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED"`
}

// ChecksumManifest is the .checksums file written by "config lock".
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{LogLevel: "INFO"},
		Line:    LineConfig{SignatureHeader: DefaultSignatureHeader},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			WebhookPath: "/webhook",
			MaxBodySize: "1MB",
		},
		Storage: StorageConfig{MessagesFile: DefaultMessagesFile},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Default values
const (
	DefaultMessagesFile    = "/app/data/messages.json"
	DefaultSignatureHeader = "X-Line-Signature"
	DefaultMaxBodySize     = 1048576 // 1 MB
	pidFileName            = "line-webhook.pid"
)
