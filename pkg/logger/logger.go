// Package logger provides opinionated logging capabilities for the sbp blackboard.
package logger

import (
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// config holds the resolved settings built up by Option funcs passed to New.
type config struct {
	level   slog.Level
	pretty  bool
	json    bool
	writers []io.Writer
	source  bool
}

// New builds an *slog.Logger from the given Options. With no options it
// writes human-readable text to stdout at info level -- the shape `sbp
// serve` uses interactively. WithJSON switches to structured JSON output
// for piped/production use; WithPretty forces the text handler even when
// WithJSON is also set.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:   slog.LevelInfo,
		writers: []io.Writer{os.Stdout},
	}
	for _, opt := range opts {
		opt(c)
	}

	w := io.MultiWriter(c.writers...)
	handlerOpts := &slog.HandlerOptions{Level: c.level, AddSource: c.source}

	var handler slog.Handler
	if c.json && !c.pretty {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return slog.New(handler)
}

// Nop returns an *slog.Logger that discards everything it is given, e.g.
// for tests.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError + 1, // above any real level: Enabled() always false
	}))
}

// NewLogger builds a *zap.Logger for the trigger-dispatch worker pool
// (pkg/blackboard/dispatch.go), which predates the slog-based New above and
// has not yet been migrated onto it.
//
// TODO: migrate the dispatch pool onto pkg/logger.New and delete this.
func NewLogger(debug bool) *zap.Logger {
	return NewLoggerWithWriters(debug, os.Stdout)
}

// NewLoggerWithWriters is NewLogger with explicit output writers, used by
// `sbp serve` to build the dispatcher's logger.
func NewLoggerWithWriters(debug bool, writers ...io.Writer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	// Set log level
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}

	syncers := make([]zapcore.WriteSyncer, 0, len(writers))
	for _, writer := range writers {
		syncers = append(syncers, zapcore.AddSync(writer))
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(syncers...),
		level,
	)

	return zap.New(core, zap.AddCaller())
}
