// Package logging builds the process logger and the gin middleware that
// logs requests and recovers panics.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AppName tags every entry so site logs can be picked out of a shared sink.
const AppName = "portfolio"

// ValidLogLevels lists the accepted log_level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}

// IsValidLogLevel reports whether level names a zap level (case-insensitive).
func IsValidLogLevel(level string) bool {
	level = strings.ToLower(level)
	for _, valid := range ValidLogLevels {
		if level == valid {
			return true
		}
	}
	return false
}

// BootstrapLogger is the info-level console logger used until the
// configuration has been read.
func BootstrapLogger() *zap.Logger {
	logger, err := newConfig("dev", zap.InfoLevel).Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// BuildLogger constructs the process logger. env "prod" selects sampled
// JSON; anything else gets the colored console encoder. An unknown level
// falls back to info with a warning on stderr.
func BuildLogger(level, env string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: invalid log level %q; valid levels are: %s. Defaulting to \"info\".\n",
			level, strings.Join(ValidLogLevels, ", "))
		lvl = zap.InfoLevel
	}
	return newConfig(env, lvl).Build()
}

// MustBuildLogger is BuildLogger for main(); it exits on failure.
func MustBuildLogger(level, env string) *zap.Logger {
	logger, err := BuildLogger(level, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func newConfig(env string, lvl zapcore.Level) zap.Config {
	var cfg zap.Config
	if env == "prod" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		// stack traces on warnings drown out request logs in dev
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.InitialFields = map[string]any{"app": AppName}
	return cfg
}

// LogRoutes sends gin's debug route table through logger instead of
// gin's own stdout printer. gin only prints routes in debug mode.
func LogRoutes(logger *zap.Logger) {
	gin.DebugPrintRouteFunc = routePrinter(logger)
}

func routePrinter(logger *zap.Logger) func(method, path, handler string, handlers int) {
	return func(method, path, handler string, handlers int) {
		logger.Debug("route registered",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("handler", handler),
			zap.Int("handlers", handlers),
		)
	}
}
