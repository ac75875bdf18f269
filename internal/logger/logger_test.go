package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", ""} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("new %q: %v", mode, err)
		}
		l.Sync()
	}
}

func TestRedactsSecrets(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core).With("run_id", int64(7))

	l.Info("login", "refresh_token", "abc", "athlete_id", "u-1")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["refresh_token"] != "[REDACTED]" {
		t.Fatalf("expected token redacted, got %v", fields["refresh_token"])
	}
	if fields["athlete_id"] != "u-1" || fields["run_id"] != int64(7) {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestOddKeyValues(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected sanitize output: %v", out)
	}
	Nop().Warn("ignored", "password", "x")
}
