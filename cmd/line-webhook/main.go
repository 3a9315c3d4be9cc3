package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/line-webhook/internal/config"
	"github.com/mattjoyce/line-webhook/internal/line"
	"github.com/mattjoyce/line-webhook/internal/lock"
	"github.com/mattjoyce/line-webhook/internal/log"
	"github.com/mattjoyce/line-webhook/internal/receipts"
	"github.com/mattjoyce/line-webhook/internal/storage"
	"github.com/mattjoyce/line-webhook/internal/store"
	"github.com/mattjoyce/line-webhook/internal/webhook"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	envFile    string
}

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

func runCLI(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "line-webhook",
		Short:         "LINE Messaging API webhook receiver",
		Long:          "line-webhook verifies LINE webhook deliveries and appends each message to a JSON message log.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml or its directory (default: discovered)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")

	root.AddCommand(systemCmd(opts))
	root.AddCommand(configCmd(opts))
	root.AddCommand(lineCmd(opts))
	root.AddCommand(versionCmd())

	// Root alias kept for container entrypoints.
	start := startCmd(opts)
	start.Hidden = true
	root.AddCommand(start)

	return root
}

// loadConfig loads the dotenv file, resolves the config path and returns the
// validated configuration.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}
	path := opts.configPath
	if path == "" {
		path = config.DiscoverConfigPath()
	}
	return config.Load(path)
}

// --- system ---

func systemCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Run the webhook server",
	}
	cmd.AddCommand(startCmd(opts))
	return cmd
}

func startCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the webhook server in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runStart(ctx, opts)
		},
	}
}

func runStart(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("line-webhook starting", "version", version, "config", cfg.SourcePath)

	client, err := line.NewClient(cfg.Line.ChannelSecret, cfg.Line.AccessToken)
	if err != nil {
		logger.Error("LINE credentials missing", "error", err)
		return err
	}

	if err := storage.ValidateLocalFilesystem(cfg.Storage.MessagesFile, "messages file"); err != nil {
		logger.Error("unsupported message log location", "path", cfg.Storage.MessagesFile, "error", err)
		return err
	}

	pidLock, err := lock.AcquirePIDLock(cfg.Storage.PIDFile)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", cfg.Storage.PIDFile, "error", err)
		return err
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", cfg.Storage.PIDFile)

	writer := store.New(cfg.Storage.MessagesFile, log.WithComponent("store"))
	logger.Info("message log ready", "path", writer.Path())

	var ledger webhook.ReceiptRecorder
	if cfg.Receipts.Path != "" {
		if err := storage.ValidateLocalFilesystem(cfg.Receipts.Path, "receipts database"); err != nil {
			logger.Error("unsupported receipts location", "path", cfg.Receipts.Path, "error", err)
			return err
		}
		db, err := storage.OpenSQLite(ctx, cfg.Receipts.Path)
		if err != nil {
			logger.Error("failed to open receipts database", "path", cfg.Receipts.Path, "error", err)
			return err
		}
		defer db.Close()
		ledger = receipts.New(db)
		logger.Info("receipts ledger enabled", "path", cfg.Receipts.Path)
	}

	webhookConfig, err := webhook.FromGlobalConfig(cfg)
	if err != nil {
		logger.Error("failed to configure webhook server", "error", err)
		return err
	}

	server := webhook.New(webhookConfig, client, writer, ledger, log.WithComponent("webhook"))
	logger.Info("line-webhook running (press Ctrl+C to stop)", "listen", webhookConfig.Listen)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("webhook server failed", "error", err)
		return err
	}

	logger.Info("line-webhook stopped")
	return nil
}

// --- config ---

func configCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and lock configuration",
	}
	cmd.AddCommand(configCheckCmd(opts))
	cmd.AddCommand(configGetCmd(opts))
	cmd.AddCommand(configLockCmd(opts))
	return cmd
}

func configGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print one configuration value by dot path (e.g. server.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			val, err := cfg.GetPath(args[0])
			if err != nil {
				return err
			}
			if m, ok := val.(map[string]any); ok {
				data, err := yaml.Marshal(m)
				if err != nil {
					return fmt.Errorf("failed to render value: %w", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), val)
			return nil
		},
	}
}

func configCheckCmd(opts *rootOptions) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and print it with credentials masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !quiet {
				data, err := yaml.Marshal(cfg.Redacted())
				if err != nil {
					return fmt.Errorf("failed to render config: %w", err)
				}
				fmt.Fprint(out, string(data))
			}
			source := cfg.SourcePath
			if source == "" {
				source = "environment"
			}
			fmt.Fprintf(out, "Configuration valid (%s)\n", source)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only report validity")
	return cmd
}

func configLockCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Record the BLAKE3 hash of the config file in .checksums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				path = config.DiscoverConfigPath()
			}
			if path == "" {
				return fmt.Errorf("no config file found; pass --config")
			}
			manifest, err := config.LockConfig(path)
			if err != nil {
				return err
			}
			for name, hash := range manifest.Hashes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", hash, name)
			}
			return nil
		},
	}
}

// --- line ---

func lineCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "line",
		Short: "LINE channel helpers",
	}
	cmd.AddCommand(lineSignCmd(opts))
	return cmd
}

func lineSignCmd(opts *rootOptions) *cobra.Command {
	var bodyFile string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the X-Line-Signature for a request body (stdin by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			var body []byte
			if bodyFile == "" || bodyFile == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(bodyFile)
			}
			if err != nil {
				return fmt.Errorf("failed to read body: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), line.Sign(body, cfg.Line.ChannelSecret))
			return nil
		},
	}
	cmd.Flags().StringVarP(&bodyFile, "body", "b", "", "file containing the exact request body")
	return cmd
}

// --- version ---

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func versionCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := currentVersionInfo()
			out := cmd.OutOrStdout()

			if jsonOut {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to render version JSON: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "line-webhook %s\n", info.Version)
			fmt.Fprintf(out, "commit: %s\n", info.Commit)
			fmt.Fprintf(out, "built_at: %s\n", info.BuildTime)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output version metadata as JSON")
	return cmd
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}
