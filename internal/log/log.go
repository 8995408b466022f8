package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger().
		Level(zerolog.InfoLevel)
)

// Setup replaces the process logger.
//
// With an empty file, logs go to stderr in console format. Otherwise JSON
// lines are written to file (parent directories are created). The returned
// closer releases the file and is safe to call when no file was opened.
func Setup(level string, file string) (func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return closer, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return closer, fmt.Errorf("create logs dir: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closer, err
		}
		closer = func() { _ = f.Close() }
		w = f
	}

	l := zerolog.New(w).With().Timestamp().Logger().Level(lvl)

	mu.Lock()
	logger = l
	mu.Unlock()

	return closer, nil
}

// SetOutput redirects logging to w at the given level. Tests use it to
// capture log lines.
func SetOutput(w io.Writer, l Level) {
	lvl, err := zerolog.ParseLevel(string(l))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	mu.Lock()
	logger = zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	mu.Unlock()
}

func SetLevel(l Level) {
	lvl, err := zerolog.ParseLevel(string(l))
	if err != nil {
		return
	}
	mu.Lock()
	logger = logger.Level(lvl)
	mu.Unlock()
}

func Debug(msg string, kv ...any) {
	current().Debug().Fields(pairs(kv)).Msg(msg)
}

func Info(msg string, kv ...any) {
	current().Info().Fields(pairs(kv)).Msg(msg)
}

func Warn(msg string, kv ...any) {
	current().Warn().Fields(pairs(kv)).Msg(msg)
}

func Error(msg string, err error, kv ...any) {
	current().Error().Err(err).Fields(pairs(kv)).Msg(msg)
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

// pairs turns key, value, key, value... into a field map. Non-string keys
// are skipped, and a trailing odd value is dropped.
func pairs(kv []any) map[string]any {
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out[key] = kv[i+1]
	}
	return out
}
