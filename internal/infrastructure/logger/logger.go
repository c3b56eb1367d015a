// Package logger builds the zap loggers of the service and carries
// request and sync-job scoped loggers through context.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, encoding and destination. Zero fields take the
// defaults of the log section: info, console, stdout, iso8601.
type Config struct {
	Level      string
	Format     string // json or console
	Output     string // stdout, stderr or a file path
	TimeFormat string // iso8601, rfc3339 or epoch

	// Service and Env are attached to every entry when set
	Service string
	Env     string
}

func (c Config) withDefaults() Config {
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	return c
}

// New builds the root logger. Error entries carry a stack trace.
func New(cfg Config) (*zap.Logger, error) {
	cfg = cfg.withDefaults()

	sink, _, err := zap.Open(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("open log output %q: %w", cfg.Output, err)
	}
	core := zapcore.NewCore(encoderFor(cfg), sink, ParseLevel(cfg.Level))

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	var base []zap.Field
	if cfg.Service != "" {
		base = append(base, zap.String("service", cfg.Service))
	}
	if cfg.Env != "" {
		base = append(base, zap.String("env", cfg.Env))
	}
	if len(base) > 0 {
		opts = append(opts, zap.Fields(base...))
	}
	return zap.New(core, opts...), nil
}

// ParseLevel converts a level name, defaulting to info
func ParseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func encoderFor(cfg Config) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	ec.EncodeTime = timeEncoder(cfg.TimeFormat)

	if strings.EqualFold(cfg.Format, "json") {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func timeEncoder(format string) zapcore.TimeEncoder {
	switch strings.ToLower(format) {
	case "rfc3339":
		return zapcore.RFC3339TimeEncoder
	case "epoch":
		return zapcore.EpochMillisTimeEncoder
	}
	return zapcore.ISO8601TimeEncoder
}
