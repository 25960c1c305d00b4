package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTPPort:         8081,
		MaxDBConnections: 10,
		MVPDatabaseURL:   "user:pass@tcp(mvp:3306)/mvp",
		PDDatabaseURL:    "user:pass@tcp(pd:3306)/pd",
		LogLevel:         "trace",
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	tests := map[string]struct {
		modify       func(c *Config)
		wantContains string
	}{
		"missing mvp url": {
			modify:       func(c *Config) { c.MVPDatabaseURL = "" },
			wantContains: "MVP_DATABASE_URL",
		},
		"missing pd url": {
			modify:       func(c *Config) { c.PDDatabaseURL = "" },
			wantContains: "PD_DATABASE_URL",
		},
		"zero max connections": {
			modify:       func(c *Config) { c.MaxDBConnections = 0 },
			wantContains: "max DB connections",
		},
		"negative max connections": {
			modify:       func(c *Config) { c.MaxDBConnections = -3 },
			wantContains: "max DB connections",
		},
		"unknown log level": {
			modify:       func(c *Config) { c.LogLevel = "chatty" },
			wantContains: "log level",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.modify(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantContains) {
				t.Errorf("error %q should contain %q", err.Error(), tc.wantContains)
			}
		})
	}

	t.Run("multiple errors joined", func(t *testing.T) {
		t.Parallel()
		cfg := Config{LogLevel: "trace"} // both URLs missing, zero connections

		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error for zero-value config")
		}
		for _, part := range []string{"MVP_DATABASE_URL", "PD_DATABASE_URL", "max DB connections"} {
			if !strings.Contains(err.Error(), part) {
				t.Errorf("joined error should mention %q, got %q", part, err.Error())
			}
		}
	})
}

func TestFromEnvDefaults(t *testing.T) {
	// Not parallel: mutates the process environment.
	t.Setenv("MVP_DATABASE_URL", "user:pass@tcp(mvp:3306)/mvp")
	t.Setenv("PD_DATABASE_URL", "user:pass@tcp(pd:3306)/pd")

	cfg := FromEnv()
	if cfg.HTTPPort != DefaultHTTPPort {
		t.Errorf("HTTPPort = %d, want default %d", cfg.HTTPPort, DefaultHTTPPort)
	}
	if cfg.MaxDBConnections != DefaultMaxDBConnections {
		t.Errorf("MaxDBConnections = %d, want default %d", cfg.MaxDBConnections, DefaultMaxDBConnections)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want default %q", cfg.LogLevel, DefaultLogLevel)
	}
	if cfg.InstanceLockFile != "" {
		t.Errorf("InstanceLockFile = %q, want empty", cfg.InstanceLockFile)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	// Not parallel: mutates the process environment.
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("MAX_DB_CONNECTIONS", "25")
	t.Setenv("MVP_DATABASE_URL", "user:pass@tcp(mvp:3306)/mvp")
	t.Setenv("PD_DATABASE_URL", "user:pass@tcp(pd:3306)/pd")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("INSTANCE_LOCK_FILE", "/var/run/process-dispatcher.lock")

	cfg := FromEnv()
	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.MaxDBConnections != 25 {
		t.Errorf("MaxDBConnections = %d, want 25", cfg.MaxDBConnections)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.InstanceLockFile != "/var/run/process-dispatcher.lock" {
		t.Errorf("InstanceLockFile = %q", cfg.InstanceLockFile)
	}
}

func TestFromEnvPanics(t *testing.T) {
	// Not parallel: mutates the process environment.
	tests := map[string]struct {
		env          map[string]string
		wantContains string
	}{
		"missing mvp url": {
			env: map[string]string{
				"MVP_DATABASE_URL": "",
				"PD_DATABASE_URL":  "user:pass@tcp(pd:3306)/pd",
			},
			wantContains: "MVP_DATABASE_URL",
		},
		"missing pd url": {
			env: map[string]string{
				"MVP_DATABASE_URL": "user:pass@tcp(mvp:3306)/mvp",
				"PD_DATABASE_URL":  "",
			},
			wantContains: "PD_DATABASE_URL",
		},
		"garbage port": {
			env: map[string]string{
				"HTTP_PORT":        "eighty-eighty-one",
				"MVP_DATABASE_URL": "user:pass@tcp(mvp:3306)/mvp",
				"PD_DATABASE_URL":  "user:pass@tcp(pd:3306)/pd",
			},
			wantContains: "HTTP_PORT",
		},
		"port out of range": {
			env: map[string]string{
				"HTTP_PORT":        "70000",
				"MVP_DATABASE_URL": "user:pass@tcp(mvp:3306)/mvp",
				"PD_DATABASE_URL":  "user:pass@tcp(pd:3306)/pd",
			},
			wantContains: "HTTP_PORT",
		},
		"garbage max connections": {
			env: map[string]string{
				"MAX_DB_CONNECTIONS": "many",
				"MVP_DATABASE_URL":   "user:pass@tcp(mvp:3306)/mvp",
				"PD_DATABASE_URL":    "user:pass@tcp(pd:3306)/pd",
			},
			wantContains: "MAX_DB_CONNECTIONS",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("FromEnv should panic")
				}
				msg, ok := r.(string)
				if !ok {
					t.Fatalf("panic value %v (%T) is not a string", r, r)
				}
				if !strings.Contains(msg, tc.wantContains) {
					t.Errorf("panic %q should contain %q", msg, tc.wantContains)
				}
			}()
			FromEnv()
		})
	}
}
