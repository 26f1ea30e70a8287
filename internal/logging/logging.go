// Package logging builds the zap logger used by the pipeline and CLI
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/su1ph3r/procrisk/pkg/types"
)

// New builds a logger. level and format are matched case-insensitively
// against types.LogLevels and types.LogFormats; output is "stderr", "stdout" or a file path opened for append.
func New(level, format, output string) (*zap.Logger, error) {
	name, ok := types.NormalizeLogLevel(level)
	if !ok {
		return nil, fmt.Errorf("invalid log level: %q", level)
	}
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(name)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	encoding, ok := types.NormalizeLogFormat(format)
	if !ok {
		return nil, fmt.Errorf("unknown log format: %s", format)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if encoding == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var sink zapcore.WriteSyncer
	switch output {
	case "", "stderr":
		sink = zapcore.Lock(os.Stderr)
	case "stdout":
		sink = zapcore.Lock(os.Stdout)
	default:
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sink = zapcore.AddSync(file)
	}

	core := zapcore.NewCore(encoder, sink, zapLevel)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// Nop returns a logger that discards everything
func Nop() *zap.Logger {
	return zap.NewNop()
}
