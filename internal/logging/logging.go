// Package logging builds the process logger.
package logging

import (
	"fmt"

	"github.com/agentic-research/sitemap/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON (production) or console (development) logger at the
// configured level. Logs go to stderr so command output on stdout stays clean.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var zc zap.Config
	switch cfg.Format {
	case config.FormatJSON:
		zc = zap.NewProductionConfig()
	case config.FormatConsole, "":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}
