package config

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// LogLevelOff disables logging entirely.
const LogLevelOff = "off"

// ParseLogLevel parses a log level name. "off" and "none" report enabled=false.
// Unknown names fall back to error level.
func ParseLogLevel(s string) (level zapcore.Level, enabled bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case LogLevelOff, "none":
		return zapcore.ErrorLevel, false
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	default:
		return zapcore.ErrorLevel, true
	}
}

// NewLogger builds a JSON zap logger at the given level. Output goes to
// filePath ("~/" expanded, parent directory created) or to stderr when
// filePath is empty. Level "off" returns a no-op logger.
func NewLogger(level, filePath string) (*zap.Logger, error) {
	lvl, enabled := ParseLogLevel(level)
	if !enabled {
		return zap.NewNop(), nil
	}

	output := "stderr"
	if filePath != "" {
		expanded, err := ExpandPath(filePath)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(expanded), 0o750); err != nil {
			return nil, ccerr.WithCause(ccerr.WithDetails(ccerr.ErrConfigInvalid, map[string]string{
				"log_file": filePath,
			}), err)
		}
		output = expanded
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{output}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, ccerr.WithCause(ccerr.WithDetails(ccerr.ErrConfigInvalid, map[string]string{
			"log_file": filePath,
		}), err)
	}
	return logger, nil
}
