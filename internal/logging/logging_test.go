package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		"trace":            {input: "trace", want: LevelTrace},
		"trace uppercase":  {input: "TRACE", want: LevelTrace},
		"debug":            {input: "debug", want: slog.LevelDebug},
		"info":             {input: "info", want: slog.LevelInfo},
		"warn":             {input: "warn", want: slog.LevelWarn},
		"warning alias":    {input: "warning", want: slog.LevelWarn},
		"error":            {input: "error", want: slog.LevelError},
		"unknown":          {input: "verbose", wantErr: true},
		"empty":            {input: "", wantErr: true},
		"mixed case debug": {input: "Debug", want: slog.LevelDebug},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseLevel(%q) should fail", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q): %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestTraceLevelRendersAsTrace(t *testing.T) {
	// Not parallel: mutates the process-wide logger.
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level:       LevelTrace,
		ReplaceAttr: replaceLevelName,
	})))
	defer SetLogger(nil)

	Logger().Log(context.Background(), LevelTrace, "skipping source", "source_id", 7)

	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("trace line should carry level=TRACE, got %q", out)
	}
	if strings.Contains(out, "DEBUG-4") {
		t.Errorf("trace level should not render with slog's arithmetic name: %q", out)
	}
}

func TestSetLoggerNilResetsToDefault(t *testing.T) {
	// Not parallel: mutates the process-wide logger.
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(custom)
	if Logger() != custom {
		t.Fatal("Logger should return the custom logger after SetLogger")
	}

	SetLogger(nil)
	if Logger() == custom {
		t.Error("Logger should no longer return the custom logger after reset")
	}
	if Logger() == nil {
		t.Error("Logger must never return nil")
	}
}
