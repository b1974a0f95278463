package common

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// All loggers share one atomic level so InitLoggers can adjust the whole
// process at once.
var logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// CreateLogger creates a named console logger. Packages keep their logger in
// a package-level variable:
//
//	var Logger = common.CreateLogger("transport/rpc")
func CreateLogger(pkgName string) *zap.SugaredLogger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05"),
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeName:     zapcore.FullNameEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		logLevel,
	)

	return zap.New(core).Named(pkgName).Sugar()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseLogLevel converts a string level to a zap level
func parseLogLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warning", "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers applies the configured log level to all loggers of the process
func InitLoggers(config ServerConfig) error {
	level, err := parseLogLevel(config.LogLevel)
	if err != nil {
		return err
	}
	logLevel.SetLevel(level)
	return nil
}
