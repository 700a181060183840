package telemetry

import (
	"context"

	"github.com/talkline/counters/internal/setup/config"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.uber.org/zap"
)

// InitTracing configures the OpenTelemetry exporter when a DSN is set.
// Returns a shutdown function that flushes pending spans; the function is a
// no-op when tracing is disabled.
func InitTracing(cfg *config.Tracing, logger *zap.Logger) func(context.Context) error {
	if cfg.DSN == "" {
		logger.Info("Tracing disabled, no DSN configured")
		return func(context.Context) error { return nil }
	}

	serviceName := "counters"
	if cfg.InstanceID != "" {
		serviceName = "counters_" + cfg.InstanceID
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.DSN),
		uptrace.WithServiceName(serviceName),
	)

	logger.Info("Tracing initialized", zap.String("service", serviceName))

	return uptrace.Shutdown
}
