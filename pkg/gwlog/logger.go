package gwlog

import (
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger      *zap.Logger // info日志
	warnLogger  *zap.Logger
	errorLogger *zap.Logger
	atom        = zap.NewAtomicLevel()
	opts        *Options
	configured  sync.Once
	mu          sync.RWMutex
)

// Configure installs the process wide loggers. Calling it again replaces them.
func Configure(op *Options) {
	mu.Lock()
	defer mu.Unlock()
	configure(op)
}

func configure(op *Options) {
	atom.SetLevel(op.Level)
	opts = op

	loggerOpts := make([]zap.Option, 0)
	if opts.LineNum {
		loggerOpts = append(loggerOpts, zap.AddCaller(), zap.AddCallerSkip(2))
	}

	writers := make([]zapcore.WriteSyncer, 0)
	if !opts.NoStdout {
		writers = append(writers, zapcore.AddSync(os.Stdout))
	}

	logger = zap.New(newCore("info.log", writers, atom), loggerOpts...)
	warnLogger = zap.New(newCore("warn.log", writers, zap.WarnLevel), loggerOpts...)
	errorLogger = zap.New(newCore("error.log", writers, zap.ErrorLevel), append(loggerOpts, zap.AddStacktrace(zapcore.PanicLevel))...)
}

func newCore(filename string, writers []zapcore.WriteSyncer, enab zapcore.LevelEnabler) zapcore.Core {
	ws := writers
	if !opts.NoFile {
		ws = append(ws, zapcore.AddSync(&lumberjack.Logger{
			Filename:   path.Join(opts.LogDir, filename),
			MaxSize:    500, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}))
	}
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(newEncoderConfig()),
		zapcore.NewMultiWriteSyncer(ws...),
		enab,
	)
}

func Level() zapcore.Level {
	return atom.Level()
}

// SetLevel 运行时调整日志级别
func SetLevel(l zapcore.Level) {
	atom.SetLevel(l)
}

func newEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:       "time",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "linenum",
		MessageKey:    "msg",
		StacktraceKey: "stacktrace",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.LowercaseLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
		EncodeName:    zapcore.FullNameEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("2006-01-02T15:04:05.999999999-07:00"))
		},
		EncodeDuration: func(d time.Duration, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendInt64(int64(d) / 1000000)
		},
	}
}

func ensure() {
	mu.RLock()
	ok := logger != nil
	mu.RUnlock()
	if ok {
		return
	}
	configured.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if logger == nil {
			configure(NewOptions())
		}
	})
}

func Info(msg string, fields ...zap.Field) {
	ensure()
	logger.Info(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	ensure()
	logger.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	ensure()
	warnLogger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	ensure()
	errorLogger.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	ensure()
	errorLogger.Fatal(msg, fields...)
}

func Panic(msg string, fields ...zap.Field) {
	ensure()
	errorLogger.Panic(msg, fields...)
}

func Sync() error {
	if logger == nil {
		return nil
	}
	for name, l := range map[string]*zap.Logger{"error": errorLogger, "warn": warnLogger, "info": logger} {
		if err := l.Sync(); err != nil {
			fmt.Println(name, "logger sync error", err)
		}
	}
	return nil
}

// Log is embedded by components that log with a fixed prefix.
type Log interface {
	Info(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
	Panic(msg string, fields ...zap.Field)
}

type GWLog struct {
	prefix string
}

func NewGWLog(prefix string) *GWLog {
	return &GWLog{prefix: prefix}
}

func (t *GWLog) format(msg string) string {
	var b strings.Builder
	b.Grow(len(t.prefix) + len(msg) + 3)
	b.WriteString("[")
	b.WriteString(t.prefix)
	b.WriteString("] ")
	b.WriteString(msg)
	return b.String()
}

func (t *GWLog) Info(msg string, fields ...zap.Field) {
	Info(t.format(msg), fields...)
}

func (t *GWLog) Debug(msg string, fields ...zap.Field) {
	Debug(t.format(msg), fields...)
}

func (t *GWLog) Warn(msg string, fields ...zap.Field) {
	Warn(t.format(msg), fields...)
}

func (t *GWLog) Error(msg string, fields ...zap.Field) {
	Error(t.format(msg), fields...)
}

func (t *GWLog) Fatal(msg string, fields ...zap.Field) {
	Fatal(t.format(msg), fields...)
}

func (t *GWLog) Panic(msg string, fields ...zap.Field) {
	Panic(t.format(msg), fields...)
}
