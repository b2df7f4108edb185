package main

import (
	"io"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Andrej220/go-utils/partition/config"
)

// newLogger writes JSON logs to a rotated file when cfg.File is set,
// console logs to w otherwise.
func newLogger(w io.Writer, cfg config.Log) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var core zapcore.Core
	if cfg.File != "" {
		sink := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(sink), level)
	} else {
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	}
	return zap.New(core), nil
}

// zapZLogger exposes a *zap.Logger as the zlog logger the executor reads
// from the context.
type zapZLogger struct{ l *zap.Logger }

func (z zapZLogger) Debug(msg string, fields ...lg.Field) { z.l.Debug(msg, fields...) }
func (z zapZLogger) Info(msg string, fields ...lg.Field)  { z.l.Info(msg, fields...) }
func (z zapZLogger) Warn(msg string, fields ...lg.Field)  { z.l.Warn(msg, fields...) }
func (z zapZLogger) Error(msg string, fields ...lg.Field) { z.l.Error(msg, fields...) }
func (z zapZLogger) Sync() error                          { return z.l.Sync() }

func (z zapZLogger) With(fields ...lg.Field) lg.ZLogger {
	return zapZLogger{l: z.l.With(fields...)}
}
