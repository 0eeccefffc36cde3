package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the process logger.
type Options struct {
	// Env selects the encoder: "prod" writes JSON, "local", "dev" and
	// "docker" write colored console output.
	Env string
	// Level overrides the environment default (debug, info, warn, error).
	Level string
	// Service and Version are attached to every entry when set.
	Service string
	Version string
}

// New builds the process logger. Sampling is off in every environment so
// each per-document ingestion report reaches the log.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	switch opts.Env {
	case "prod":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", opts.Env)
	}
	cfg.Sampling = nil

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel), zap.Fields(opts.fields()...))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

func (o Options) fields() []zap.Field {
	var fields []zap.Field
	if o.Service != "" {
		fields = append(fields, zap.String("service", o.Service))
	}
	if o.Version != "" {
		fields = append(fields, zap.String("version", o.Version))
	}
	return fields
}
