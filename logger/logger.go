// Package logger initializes the process-wide zap logger.
package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	global *zap.Logger
	once   sync.Once
)

// Config defines the logging setup.
type Config struct {
	Level      string // debug, info, warn, error
	OutputPath string // log file; empty disables file output
	MaxSizeMB  int    // rotation threshold per file
	MaxBackups int
	MaxAgeDays int
}

// Init configures the global logger once per process.
func Init(cfg Config) {
	once.Do(func() {
		level := zapcore.InfoLevel
		switch cfg.Level {
		case "debug":
			level = zapcore.DebugLevel
		case "warn":
			level = zapcore.WarnLevel
		case "error":
			level = zapcore.ErrorLevel
		}

		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

		consoleCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			level,
		)

		core := consoleCore
		if cfg.OutputPath != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err == nil {
				fileWriter := zapcore.AddSync(&lumberjack.Logger{
					Filename:   cfg.OutputPath,
					MaxSize:    cfg.MaxSizeMB,
					MaxBackups: cfg.MaxBackups,
					MaxAge:     cfg.MaxAgeDays,
				})
				fileCore := zapcore.NewCore(
					zapcore.NewJSONEncoder(encoderConfig),
					fileWriter,
					level,
				)
				core = zapcore.NewTee(consoleCore, fileCore)
			}
		}

		global = zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
	})
}

// Get returns the global logger, initializing it with defaults if needed.
func Get() *zap.Logger {
	if global == nil {
		Init(Config{Level: "info"})
	}
	return global
}

// Sync flushes buffered log entries.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}
