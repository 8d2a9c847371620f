package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapConfig selects the zap backend behind the Logger facade
type ZapConfig struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	Output string // stdout or stderr
}

// NewZapLogFuncs builds a sugared zap logger and exposes it as LogFuncs.
// The returned sync function flushes buffered entries and should be deferred by main.
func NewZapLogFuncs(config ZapConfig) (LogFuncs, func(), error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return LogFuncs{}, nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	switch config.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	// Logs go to stderr by default so the status report on stdout stays readable
	var writeSyncer zapcore.WriteSyncer
	switch config.Output {
	case "stdout":
		writeSyncer = zapcore.Lock(zapcore.AddSync(os.Stdout))
	default:
		writeSyncer = zapcore.Lock(zapcore.AddSync(os.Stderr))
	}

	sugar := zap.New(zapcore.NewCore(encoder, writeSyncer, level)).Sugar()

	funcs := LogFuncs{
		Debugf: sugar.Debugf,
		Infof:  sugar.Infof,
		Warnf:  sugar.Warnf,
		Errorf: sugar.Errorf,
	}
	sync := func() {
		_ = sugar.Sync()
	}
	return funcs, sync, nil
}

// ParseLevel maps a config log level to zap. zap v1.20 has no zapcore.ParseLevel.
func ParseLevel(levelStr string) (zapcore.Level, error) {
	switch levelStr {
	case "debug":
		return zap.DebugLevel, nil
	case "info", "":
		return zap.InfoLevel, nil
	case "warn":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("unknown log level: %s", levelStr)
	}
}
