// Package log provides structured logging for redditor.
// It keeps a small category-based API on top of log/slog with a tint handler,
// and stays silent until Init is called.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a level name (case-insensitive) into a Level.
// "WARNING" is accepted as an alias of WARN.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Category groups related log messages.
type Category string

const (
	CatConfig   Category = "config"   // Configuration loading/saving
	CatPipeline Category = "pipeline" // Pipeline lifecycle and registry
	CatReddit   Category = "reddit"   // Reddit API calls
	CatAI       Category = "ai"       // Summarizer calls
	CatCache    Category = "cache"    // cache operations
	CatServer   Category = "server"   // HTTP server
	CatCLI      Category = "cli"
)

// Options configures Init.
type Options struct {
	// Path is a log file to append to. Empty means Writer (or stderr).
	Path string
	// Writer is used when Path is empty.
	Writer io.Writer
	// Level is the minimum level written.
	Level Level
	// NoColor disables ANSI colors. Always true for files.
	NoColor bool
}

// Logger provides structured logging.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	slog    *slog.Logger
	level   *slog.LevelVar
	enabled bool
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Init initializes the global logger, replacing any previous one.
// Returns a cleanup function to close the log file.
func Init(opts Options) (func(), error) {
	var (
		w    io.Writer = os.Stderr
		file *os.File
	)
	noColor := opts.NoColor
	switch {
	case opts.Path != "":
		f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: operator-chosen log path
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		w, file, noColor = f, f, true
	case opts.Writer != nil:
		w = opts.Writer
	}

	level := new(slog.LevelVar)
	level.Set(opts.Level.slogLevel())

	logger := &Logger{
		file:    file,
		level:   level,
		enabled: true,
		slog: slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			NoColor:    noColor,
			TimeFormat: time.DateTime,
		})),
	}

	defaultMu.Lock()
	prev := defaultLogger
	defaultLogger = logger
	defaultMu.Unlock()
	if prev != nil && prev.file != nil {
		_ = prev.file.Close()
	}

	return func() {
		defaultMu.Lock()
		if defaultLogger == logger {
			defaultLogger = nil
		}
		defaultMu.Unlock()
		if file != nil {
			_ = file.Close()
		}
	}, nil
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if l := current(); l != nil {
		l.mu.Lock()
		l.enabled = enabled
		l.mu.Unlock()
	}
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	if l := current(); l != nil {
		l.level.Set(level.slogLevel())
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	log(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	log(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	log(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	log(LevelError, cat, msg, fields...)
}

func current() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

func log(level Level, cat Category, msg string, fields ...any) {
	l := current()
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return
	}

	// Odd field counts keep the orphan key visible instead of slog's !BADKEY.
	if len(fields)%2 != 0 {
		fields = append(fields, "<missing>")
	}
	args := make([]any, 0, len(fields)+2)
	args = append(args, "cat", string(cat))
	args = append(args, fields...)
	l.slog.Log(context.Background(), level.slogLevel(), msg, args...)
}
