package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	wsrpc "github.com/wsrpc/go-sdk"
)

var (
	// Persistent flags available to all subcommands
	configPath string
	endpoint   string
	timeout    time.Duration
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "wsrpc",
	Short: "wsrpc talks JSON-RPC 2.0 to a node over WebSocket",
	Long: `wsrpc calls methods and follows event subscriptions on a JSON-RPC node.

Settings come from a TOML file (--config), then WSRPC_ENDPOINT and
WSRPC_TIMEOUT, then flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "WebSocket endpoint, e.g. ws://127.0.0.1:8080/json_rpc")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-call timeout (0 keeps the configured value)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(callCmd, listenCmd, stateCmd)
}

func newLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return zerolog.Nop(), err
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "wsrpc").Logger(), nil
}

func loadConfig() (wsrpc.Config, error) {
	cfg := wsrpc.DefaultConfig()
	if configPath != "" {
		loaded, err := wsrpc.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return cfg, nil
}

// newClient builds a client from flags and connects it.
func newClient(cmd *cobra.Command) (*wsrpc.Client, zerolog.Logger, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, logger, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, logger, err
	}
	client, err := wsrpc.NewClient(cfg, wsrpc.WithLogger(logger))
	if err != nil {
		return nil, logger, err
	}
	if err := client.Connect(cmd.Context(), ""); err != nil {
		return nil, logger, err
	}
	return client, logger, nil
}
