package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger represents a logger instance
type Logger struct {
	*zap.SugaredLogger
}

var (
	globalLogger *Logger
	mu           sync.RWMutex
	level        = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init initializes the global logger instance. Calling it again replaces the
// encoder and level; loggers obtained earlier keep their old core.
func Init(logLevel string, env string) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if env == "production" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	parsed, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	level.SetLevel(parsed)

	// Results go to stdout, diagnostics to stderr.
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)

	mu.Lock()
	globalLogger = &Logger{zap.New(core, zap.AddCaller()).Sugar()}
	mu.Unlock()
}

// GetLogger returns a logger instance with the given name
func GetLogger(name string) *Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()

	if l == nil {
		Init("info", "development")
		mu.RLock()
		l = globalLogger
		mu.RUnlock()
	}

	return &Logger{l.Named(name)}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

// SetLevel changes the level of every logger sharing the global core
func SetLevel(logLevel string) error {
	parsed, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	level.SetLevel(parsed)
	return nil
}

// With returns a logger with additional structured context
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{l.SugaredLogger.With(args...)}
}

// WithField returns a logger with a single field added to the context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{l.SugaredLogger.With(key, value)}
}
