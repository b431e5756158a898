package main

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ordersetl/internal/config"
	"ordersetl/internal/metrics"
	"ordersetl/internal/metrics/datadog"
	"ordersetl/internal/metrics/prompush"
)

// setupMetrics installs the configured metrics backend. The runner flushes
// it when the run ends.
func setupMetrics(cfg config.Config, logger *zap.Logger) error {
	switch strings.ToLower(cfg.Metrics.Backend) {
	case "", "none":
		logger.Debug("metrics disabled")
		return nil

	case "pushgateway", "prometheus":
		b, err := prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			Namespace:  "orders.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		metrics.SetBackend(b)

	default:
		return fmt.Errorf("metrics: unknown backend %q", cfg.Metrics.Backend)
	}

	logger.Info("metrics enabled",
		zap.String("backend", cfg.Metrics.Backend),
		zap.String("pushgateway_url", cfg.Metrics.PushgatewayURL),
		zap.String("datadog_addr", cfg.Metrics.DatadogAddr))
	return nil
}
