// Package logger configures the application's global zap logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Initialize sets up the global logger based on the environment.
// env should be "production" or "development". After Initialize
// returns, zap.L() yields the configured logger.
func Initialize(env string) error {
	var logger *zap.Logger
	var err error

	if env == "production" {
		// Production config: JSON encoding, InfoLevel and above
		config := zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.MessageKey = "message"
		config.EncoderConfig.LevelKey = "level"
		config.EncoderConfig.CallerKey = "caller"
		config.EncoderConfig.StacktraceKey = "stacktrace"

		logger, err = config.Build(
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
	} else {
		// Development config: Console encoding, DebugLevel
		config := zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		logger, err = config.Build(
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
	}

	if err != nil {
		return err
	}

	zap.ReplaceGlobals(logger)
	return nil
}

// Sync flushes any buffered log entries.
// Should be called before application shutdown.
func Sync() error {
	return zap.L().Sync()
}

// IsSensitiveField checks if a field name contains sensitive data.
// Key material and master secrets must never reach log output.
func IsSensitiveField(fieldName string) bool {
	sensitiveFields := map[string]bool{
		"master_secret": true,
		"private_key":   true,
		"encrypted_key": true,
		"plaintext":     true,
		"password":      true,
	}

	return sensitiveFields[fieldName]
}
