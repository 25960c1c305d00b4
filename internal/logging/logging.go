// Package logging holds the process-wide slog logger and the level
// vocabulary of the dispatcher, including the trace level used by the
// scheduler's per-source skip decisions.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// LevelTrace sits below slog.LevelDebug. The scheduler emits one line per
// visited source at this level, which is far too chatty for debug output
// but invaluable when diagnosing why a source was skipped.
const LevelTrace = slog.Level(-8)

// logger is the process-wide logger, stored as an atomic pointer so reads
// and replacements are data-race-free without a mutex on the hot path.
// Named "logger" instead of "log" to avoid shadowing the stdlib package.
var logger atomic.Pointer[slog.Logger]

// defaultLogger caches the default-derived logger so Logger() does not
// allocate on every call before Init has run.
var defaultLogger atomic.Pointer[slog.Logger]

// Logger returns the current process-wide logger. Before Init is called it
// returns a cached logger derived from slog.Default(). Safe for concurrent
// use.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := slog.Default()
	// CompareAndSwap so a concurrent caller's cached value is not clobbered.
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	if l2 := defaultLogger.Load(); l2 != nil {
		return l2
	}
	return l
}

// SetLogger replaces the process-wide logger. A nil value resets to the
// default derived from slog.Default() on the next Logger() call.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	defaultLogger.Store(nil)
}

// Init installs a text handler on stderr filtered at the given level name
// and makes it the process-wide logger. Called once from main.
func Init(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: replaceLevelName,
	})))
	return nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level. Accepted values are
// trace, debug, info, warn and error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// replaceLevelName renders LevelTrace as "TRACE" instead of slog's
// arithmetic default ("DEBUG-4").
func replaceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
