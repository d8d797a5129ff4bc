package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// decode parses one JSON record per line.
func decode(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("invalid JSON record %q: %v", line, err)
		}
		records = append(records, rec)
	}
	return records
}

func newBuffered(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { SetLevel("info") })
	return l, &buf
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"text", Config{Format: "text", Level: "debug"}, false},
		{"console alias", Config{Format: "console"}, false},
		{"warning alias", Config{Level: "WARNING"}, false},
		{"bad level", Config{Level: "verbose"}, true},
		{"bad format", Config{Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.cfg.Output = &buf
			_, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	SetLevel("info")
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newBuffered(t, "warn")

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	records := decode(t, buf)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0]["msg"] != "w" || records[1]["level"] != "ERROR" {
		t.Errorf("records = %v", records)
	}
}

func TestSetLevel(t *testing.T) {
	l, buf := newBuffered(t, "info")

	l.Debug("hidden")
	SetLevel("debug")
	if GetLevel() != "debug" {
		t.Errorf("GetLevel() = %q, want debug", GetLevel())
	}
	l.Debug("shown")
	SetLevel("nonsense")
	if GetLevel() != "info" {
		t.Errorf("GetLevel() after unknown level = %q, want info", GetLevel())
	}

	records := decode(t, buf)
	if len(records) != 1 || records[0]["msg"] != "shown" {
		t.Errorf("records = %v, want only the record logged at debug", records)
	}
}

func TestLogger_Redaction(t *testing.T) {
	l, buf := newBuffered(t, "info")

	l.Info("reload", "admin_token", "s3cret", "Authorization", "Bearer s3cret", "field", "switch/isOn")

	if strings.Contains(buf.String(), "s3cret") {
		t.Fatalf("secret leaked: %s", buf.String())
	}
	rec := decode(t, buf)[0]
	if rec["admin_token"] != Redacted || rec["Authorization"] != Redacted {
		t.Errorf("record = %v, want redacted credentials", rec)
	}
	if rec["field"] != "switch/isOn" {
		t.Errorf("field = %v, want switch/isOn", rec["field"])
	}
}

func TestLogger_ContextIDs(t *testing.T) {
	l, buf := newBuffered(t, "info")

	ctx := WithSessionID(WithRequestID(context.Background(), "req-1"), "sess-1")
	l.WithContext(ctx).With("field", "door").Info("committed")
	l.Info("no context")
	l.Slog().InfoContext(ctx, "via slog")

	records := decode(t, buf)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[0]["request_id"] != "req-1" || records[0]["session_id"] != "sess-1" || records[0]["field"] != "door" {
		t.Errorf("bound record = %v", records[0])
	}
	if _, ok := records[1]["request_id"]; ok {
		t.Errorf("unbound record = %v, want no request_id", records[1])
	}
	if records[2]["request_id"] != "req-1" {
		t.Errorf("slog record = %v, want request_id from context", records[2])
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Format: "text", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("started", "addr", "127.0.0.1:5380")
	if out := buf.String(); !strings.Contains(out, "msg=started") || !strings.Contains(out, "addr=127.0.0.1:5380") {
		t.Errorf("text output = %q", out)
	}
}

func TestValidLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "warn", "warning", "error"} {
		if !ValidLevel(name) {
			t.Errorf("ValidLevel(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"", "trace", "fatal"} {
		if ValidLevel(name) {
			t.Errorf("ValidLevel(%q) = true, want false", name)
		}
	}
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, buf := newBuffered(t, "info")
	SetDefault(l)
	if Default() != l {
		t.Fatal("Default() did not return the logger set")
	}
	L(WithRequestID(context.Background(), "req-9")).Info("via default")

	rec := decode(t, buf)[0]
	if rec["msg"] != "via default" || rec["request_id"] != "req-9" {
		t.Errorf("record = %v", rec)
	}
}
