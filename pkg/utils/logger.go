package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogOptions configures the process logger.
type LogOptions struct {
	// Debug switches to the development config: console output at debug level.
	Debug bool
	// Version is stamped on every entry next to the service name.
	Version string
	// Output is a zap sink path; empty means stderr so stdout stays free for
	// command output.
	Output string
}

// NewLogger returns a zap logger tagged with the service name and build
// version. Production mode writes JSON at info level.
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	out := opts.Output
	if out == "" {
		out = "stderr"
	}
	cfg.OutputPaths = []string{out}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	cfg.InitialFields = map[string]interface{}{
		"service": "norma",
		"version": version,
	}
	return cfg.Build()
}
