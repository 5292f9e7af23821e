package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"twinsa/internal/config"
)

// Logger is a global logger instance
var Logger *zap.Logger

// Init initializes the global logger
func Init(cfg *config.Config) error {
	var zapConfig zap.Config

	if cfg.IsProduction() {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// CLI output goes to stdout; keep logs off it.
	zapConfig.OutputPaths = []string{"stderr"}

	l, err := zapConfig.Build()
	if err != nil {
		return err
	}
	Logger = l.Named("twinsa")
	return nil
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Get returns the global logger instance
func Get() *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger
}
