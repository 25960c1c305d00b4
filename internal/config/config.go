// Package config loads the dispatcher configuration from the environment.
// All values are read once at startup; the resulting Config is immutable.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/mvplabs/process-dispatcher/internal/logging"
)

const (
	// DefaultHTTPPort is used when HTTP_PORT is unset.
	DefaultHTTPPort = 8081

	// DefaultMaxDBConnections is the per-pool connection cap used when
	// MAX_DB_CONNECTIONS is unset.
	DefaultMaxDBConnections = 10

	// DefaultLogLevel is used when LOG_LEVEL is unset. Trace is intentional:
	// the scheduler's per-source skip decisions are only visible at trace.
	DefaultLogLevel = "trace"
)

// Config holds the dispatcher's environment-derived settings.
//
// Concurrency contract: all fields are immutable after FromEnv returns.
// The repository and HTTP server read them without synchronization.
type Config struct {
	// HTTPPort is the listen port for the supervisor assignment endpoint.
	HTTPPort uint16

	// MaxDBConnections caps open connections on each of the two pools.
	MaxDBConnections int

	// MVPDatabaseURL is the DSN of the mvp database (sources catalog and
	// process queue). Required.
	MVPDatabaseURL string

	// PDDatabaseURL is the DSN of the pd database (process audit and
	// assignment). Required.
	PDDatabaseURL string

	// LogLevel is the minimum level emitted by the process-wide logger.
	LogLevel string

	// InstanceLockFile, when non-empty, is a file path the process flocks
	// at startup so at most one dispatcher runs per deployment host.
	InstanceLockFile string
}

// FromEnv reads the environment and returns a validated Config.
//
// Panics when MVP_DATABASE_URL or PD_DATABASE_URL is missing, or when a set
// variable fails to parse. A dispatcher without its databases is a deployment
// error that must surface before any task starts, similar in spirit to
// regexp.MustCompile.
func FromEnv() Config {
	cfg := Config{
		HTTPPort:         envUint16("HTTP_PORT", DefaultHTTPPort),
		MaxDBConnections: envInt("MAX_DB_CONNECTIONS", DefaultMaxDBConnections),
		MVPDatabaseURL:   os.Getenv("MVP_DATABASE_URL"),
		PDDatabaseURL:    os.Getenv("PD_DATABASE_URL"),
		LogLevel:         envString("LOG_LEVEL", DefaultLogLevel),
		InstanceLockFile: os.Getenv("INSTANCE_LOCK_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("process-dispatcher: invalid configuration: %v", err))
	}
	return cfg
}

// Validate reports every problem with the configuration as a joined error.
func (c Config) Validate() error {
	var errs []error

	if c.MVPDatabaseURL == "" {
		errs = append(errs, errors.New("MVP_DATABASE_URL is not set"))
	}
	if c.PDDatabaseURL == "" {
		errs = append(errs, errors.New("PD_DATABASE_URL is not set"))
	}
	if c.MaxDBConnections <= 0 {
		errs = append(errs, fmt.Errorf("max DB connections must be positive, got %d", c.MaxDBConnections))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}

	return errors.Join(errs...)
}

// envString returns the named variable or def when unset.
func envString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	logging.Logger().Info("environment variable not set, using default", "name", name, "default", def)
	return def
}

// envUint16 returns the named variable parsed as uint16 or def when unset.
// Panics on a set-but-unparsable value.
func envUint16(name string, def uint16) uint16 {
	v, ok := os.LookupEnv(name)
	if !ok {
		logging.Logger().Info("environment variable not set, using default", "name", name, "default", def)
		return def
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		panic(fmt.Sprintf("process-dispatcher: %s=%q is not a valid port: %v", name, v, err))
	}
	return uint16(n)
}

// envInt returns the named variable parsed as a positive int or def when
// unset. Panics on a set-but-unparsable value.
func envInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		logging.Logger().Info("environment variable not set, using default", "name", name, "default", def)
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("process-dispatcher: %s=%q is not a valid integer: %v", name, v, err))
	}
	return n
}
