// Package elog provides the structured logger used by every actor in the
// ciphernode. It is a thin wrapper over zap's SugaredLogger, mirroring the
// logging shape used throughout the rest of the coordination engine.
package elog

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the interface every actor depends on instead of a concrete zap type.
//
//nolint:interfacebloat // kept wide so call sites never need type assertions
type Logger interface {
	Info(keyvals ...interface{})
	Debug(keyvals ...interface{})
	Warn(keyvals ...interface{})
	Error(keyvals ...interface{})
	Fatal(keyvals ...interface{})
	Infow(msg string, keyvals ...interface{})
	Debugw(msg string, keyvals ...interface{})
	Warnw(msg string, keyvals ...interface{})
	Errorw(msg string, keyvals ...interface{})
	With(args ...interface{}) Logger
	Named(s string) Logger
	AddCallerSkip(skip int) Logger
}

type log struct {
	*zap.SugaredLogger
}

func (l *log) AddCallerSkip(skip int) Logger {
	return &log{l.WithOptions(zap.AddCallerSkip(skip))}
}

func (l *log) With(args ...interface{}) Logger {
	return &log{l.SugaredLogger.With(args...)}
}

func (l *log) Named(s string) Logger {
	return &log{l.SugaredLogger.Named(s)}
}

const (
	InfoLevel  = int(zapcore.InfoLevel)
	DebugLevel = int(zapcore.DebugLevel)
	ErrorLevel = int(zapcore.ErrorLevel)
	FatalLevel = int(zapcore.FatalLevel)
	WarnLevel  = int(zapcore.WarnLevel)
)

// DefaultLevel is used by DefaultLogger before ConfigureDefaultLogger is called.
var DefaultLevel = InfoLevel

func init() {
	if v, ok := os.LookupEnv("ENCLAVE_TEST_LOGS"); ok && v == "DEBUG" {
		DefaultLevel = DebugLevel
	}
}

var isDefaultLoggerSet sync.Once

// DefaultLogger returns the package-wide default logger, lazily initialized.
func DefaultLogger() Logger {
	isDefaultLoggerSet.Do(func() {
		zap.ReplaceGlobals(newZapLogger(nil, getJSONEncoder(), DefaultLevel))
	})
	return &log{zap.S()}
}

// New returns a fresh logger writing to output at the given level.
func New(output zapcore.WriteSyncer, level int, isJSON bool) Logger {
	encoder := getConsoleEncoder()
	if isJSON {
		encoder = getJSONEncoder()
	}
	return &log{newZapLogger(output, encoder, level).Sugar()}
}

func newZapLogger(output zapcore.WriteSyncer, encoder zapcore.Encoder, level int) *zap.Logger {
	if output == nil {
		output = os.Stdout
	}
	core := zapcore.NewCore(encoder, output, zapcore.Level(level))
	return zap.New(core, zap.WithCaller(true))
}

func getJSONEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(cfg)
}

func getConsoleEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

type ctxKey string

const loggerCtxKey ctxKey = "enclaveLogger"

// ToContext attaches a logger to ctx.
func ToContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, l)
}

// FromContextOrDefault returns the logger stashed in ctx, or the package default.
func FromContextOrDefault(ctx context.Context) Logger {
	l, ok := ctx.Value(loggerCtxKey).(Logger)
	if !ok {
		return DefaultLogger()
	}
	return l
}
