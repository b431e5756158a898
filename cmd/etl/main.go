// Command etl runs the orders pipeline.
//
//	etl run --root /srv/bootcamp -v
//	etl run --config etl.yaml --metrics-backend pushgateway --pushgateway-url http://localhost:9091
//	etl validate --config etl.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ordersetl/internal/config"
	"ordersetl/internal/etl"

	// Every SQL backend is linked in so storage.kind can name any of them.
	_ "ordersetl/internal/storage/all"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	root       string
	verbose    bool

	metricsBackend string
	pushgatewayURL string
	datadogAddr    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "etl",
		Short:         "Clean, join and persist the orders and users extracts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (.json, .yaml or .yml); defaults are used when empty")
	pf.StringVar(&opts.root, "root", "", "project root; relative paths resolve against it (overrides config root)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logs")

	root.AddCommand(newRunCmd(opts), newValidateCmd(opts))
	return root
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := checkConfig(cmd, cfg); err != nil {
				return err
			}

			logger, err := newLogger(opts.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if err := setupMetrics(cfg, logger); err != nil {
				return err
			}

			r := &etl.Runner{Config: cfg, Logger: logger}
			_, err = r.Run(cmd.Context())
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway or datadog (env METRICS_BACKEND)")
	f.StringVar(&opts.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	f.StringVar(&opts.datadogAddr, "datadog-addr", "", "DogStatsD address (env DD_AGENT_ADDR)")
	return cmd
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := checkConfig(cmd, cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}

// loadConfig builds the effective configuration: defaults, then the config
// file, then flags, then the environment for metrics settings left empty.
func loadConfig(opts *options) (config.Config, error) {
	cfg := config.Default(opts.root)
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath, cfg); err != nil {
			return config.Config{}, err
		}
	}
	if opts.root != "" {
		cfg.Root = opts.root
	}

	m := &cfg.Metrics
	m.Backend = firstNonEmpty(opts.metricsBackend, m.Backend, os.Getenv("METRICS_BACKEND"))
	m.PushgatewayURL = firstNonEmpty(opts.pushgatewayURL, m.PushgatewayURL, os.Getenv("PUSHGATEWAY_URL"))
	m.DatadogAddr = firstNonEmpty(opts.datadogAddr, m.DatadogAddr, os.Getenv("DD_AGENT_ADDR"))
	return cfg, nil
}

// checkConfig prints every issue and fails when any of them is an error.
func checkConfig(cmd *cobra.Command, cfg config.Config) error {
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid")
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc = zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
