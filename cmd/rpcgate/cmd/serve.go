package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	opshttp "github.com/Sentinel-Gate/rpcgate/internal/adapter/inbound/http"
	"github.com/Sentinel-Gate/rpcgate/internal/config"
	"github.com/Sentinel-Gate/rpcgate/internal/service"
	"github.com/Sentinel-Gate/rpcgate/internal/telemetry"
	"github.com/Sentinel-Gate/rpcgate/pkg/jsonrpc"
	"github.com/Sentinel-Gate/rpcgate/pkg/rpchttp"
)

var devMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON-RPC server",
	Long: `Start the rpcgate JSON-RPC server with the built-in methods
(hello, hello_async, hello_async2, echo, sleep, rpc.methods).

Examples:
  # Start with config file settings
  rpcgate serve

  # Accept every host and origin, log at debug level
  rpcgate serve --dev

  # Start with a specific config file
  rpcgate --config /path/to/rpcgate.yaml serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "enable development mode (debug logging, allow all hosts and origins)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}
	if cfg.DevMode {
		logger.Warn("development mode enabled: every host and origin may be accepted")
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer func() { _ = os.Remove(pidPath) }()
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}
	logger.Info("rpcgate stopped")
	return nil
}

// loadServeConfig loads the configuration and applies the --dev flag
// before validating.
func loadServeConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// run wires the registry, telemetry, transport and operations server,
// then blocks until ctx is done.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	methods := jsonrpc.NewRegistry()
	service.RegisterBuiltins(methods)

	promReg := opshttp.NewRegistry()
	opts := append(cfg.ServerOptions(),
		rpchttp.WithLogger(logger),
		rpchttp.WithMetrics(rpchttp.NewMetrics(promReg)),
	)

	if cfg.Tracing.Enabled {
		providers, err := telemetry.Setup(ctx, telemetry.Options{
			ServiceName: "rpcgate",
			Version:     Version,
			Exporter:    cfg.Tracing.Exporter,
			Endpoint:    cfg.Tracing.Endpoint,
			Insecure:    cfg.Tracing.Insecure,
			SampleRatio: cfg.Tracing.SampleRatio,
			Metrics:     cfg.Tracing.Metrics,
			Writer:      os.Stderr,
		})
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
			defer cancel()
			if err := providers.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
		opts = append(opts, rpchttp.WithTracerProvider(providers.TracerProvider))
		if providers.MeterProvider != nil {
			opts = append(opts, rpchttp.WithMeterProvider(providers.MeterProvider))
		}
		logger.Info("tracing enabled", "exporter", cfg.Tracing.Exporter, "sample_ratio", cfg.Tracing.SampleRatio)
	}

	srv, err := rpchttp.Start(methods, opts...)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	opsErr := make(chan error, 1)
	if cfg.Metrics.Enabled {
		ops := opshttp.NewOpsServer(cfg.Metrics.Addr, promReg,
			opshttp.WithHealthChecker(opshttp.NewHealthChecker(srv, Version)),
			opshttp.WithLogger(logger),
		)
		go func() { opsErr <- ops.Start(ctx) }()
	}

	select {
	case <-ctx.Done():
	case err := <-opsErr:
		if err != nil {
			logger.Error("operations server failed", "error", err)
			_ = srv.Close()
			return fmt.Errorf("operations server: %w", err)
		}
	}

	logger.Info("shutting down", "grace", cfg.ShutdownGrace().String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	if cfg.Metrics.Enabled {
		<-opsErr
	}
	return nil
}
