package logging

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Package-wide logger. All packages log through L(); Setup runs once,
// later calls are ignored.
var (
	mu      sync.Mutex
	logger  *slog.Logger
	level   = new(slog.LevelVar)
	started bool
)

type Options struct {
	// File receives JSON records and is size-rotated. Empty disables
	// file output.
	File string
	// Level is one of debug, info, warn, error.
	Level string
	// Console mirrors records as text on stdout.
	Console bool

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func Setup(opt Options) {
	mu.Lock()
	defer mu.Unlock()
	if started {
		return
	}
	started = true

	level.Set(parseLevel(opt.Level))

	var sinks []slog.Handler
	if opt.File != "" {
		if opt.MaxSizeMB <= 0 {
			opt.MaxSizeMB = 25
		}
		if opt.MaxBackups <= 0 {
			opt.MaxBackups = 5
		}
		if opt.MaxAgeDays <= 0 {
			opt.MaxAgeDays = 30
		}
		_ = os.MkdirAll(filepath.Dir(opt.File), 0755)
		rotated := &lumberjack.Logger{
			Filename:   opt.File,
			MaxSize:    opt.MaxSizeMB,
			MaxBackups: opt.MaxBackups,
			MaxAge:     opt.MaxAgeDays,
		}
		sinks = append(sinks, slog.NewJSONHandler(rotated, &slog.HandlerOptions{Level: level}))
	}
	if opt.Console || len(sinks) == 0 {
		sinks = append(sinks, slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}

	logger = slog.New(tee(sinks))
	logger.Info("logger ready", "file", opt.File, "level", level.Level().String(), "console", opt.Console)
}

// SetLevel adjusts verbosity at runtime without reconfiguring sinks.
func SetLevel(s string) {
	level.Set(parseLevel(s))
}

func L() *slog.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		Setup(Options{Console: true})
		return L()
	}
	return l
}

// Named returns a logger tagged with the originating component.
func Named(component string) *slog.Logger {
	return L().With("component", component)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// tee duplicates every record to all sinks.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

// BootstrapFromEnv configures logging from the process environment,
// loading .env first so LOG_* can live next to the bot's credentials.
func BootstrapFromEnv() {
	_ = godotenv.Load()
	Setup(Options{
		File:    envDefault("LOG_FILE", "./logs/testing.log"),
		Level:   envDefault("LOG_LEVEL", "info"),
		Console: os.Getenv("ENV") == "dev" || os.Getenv("LOG_CONSOLE") == "1",
	})
}

func envDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
