package buildinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	tests := []struct {
		name  string
		value string
	}{
		{"Version", info.Version},
		{"Commit", info.Commit},
		{"BuildTime", info.BuildTime},
		{"GoVersion", info.GoVersion},
		{"Platform", info.Platform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				t.Errorf("%s field should not be empty", tt.name)
			}
		})
	}

	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
}

func TestGet_LdflagsWin(t *testing.T) {
	oldCommit, oldTime := Commit, BuildTime
	t.Cleanup(func() { Commit, BuildTime = oldCommit, oldTime })

	Commit, BuildTime = "abc123", "2026-01-02T03:04:05Z"
	info := Get()
	if info.Commit != "abc123" {
		t.Errorf("Commit = %q, want abc123", info.Commit)
	}
	if info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Errorf("BuildTime = %q, want 2026-01-02T03:04:05Z", info.BuildTime)
	}
}

func TestString(t *testing.T) {
	s := String()
	info := Get()

	prefix := info.Version + " (" + info.Commit + ") built at " + info.BuildTime
	if !strings.HasPrefix(s, prefix) {
		t.Errorf("String() = %q, want prefix %q", s, prefix)
	}
	if !strings.HasSuffix(s, info.Platform) {
		t.Errorf("String() = %q, want suffix %q", s, info.Platform)
	}
}
