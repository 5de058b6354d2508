package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

// New builds a console logger on stderr and, when opts.File is set, a rotating file
// copy of the same entries.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if opts.Level != "" {
		lvl, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = lvl
	}

	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)}
	if opts.File != "" {
		cores = append(cores, zapcore.NewCore(encoder, getLogWriter(opts), level))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

func getLogWriter(opts Options) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: 3,
	})
}
