package telemetry

import (
	"fmt"
	"os"

	"github.com/talkline/counters/internal/setup/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLoggers builds the main application logger and the database logger
// from the debug configuration. Both share the configured level; the
// database logger carries its own name so query noise is easy to filter.
func NewLoggers(cfg *config.Debug) (*zap.Logger, *zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	logger := zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	), zap.AddCaller())

	dbLogger := zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)).Named("database")

	return logger, dbLogger, nil
}
