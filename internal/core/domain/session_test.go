package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGenerateSessionID(t *testing.T) {
	ids := make(map[string]bool)

	for range 100 {
		id, err := GenerateSessionID()
		if err != nil {
			t.Fatalf("GenerateSessionID() error = %v", err)
		}
		if !strings.HasPrefix(id, SessionIDPrefix) {
			t.Errorf("ID should have prefix %q, got %q", SessionIDPrefix, id)
		}
		if !IsValidSessionID(id) {
			t.Errorf("Generated ID is not valid: %q", id)
		}
		if ids[id] {
			t.Errorf("Duplicate ID generated: %q", id)
		}
		ids[id] = true
	}
}

func TestGenerateCommandID(t *testing.T) {
	id, err := GenerateCommandID()
	if err != nil {
		t.Fatalf("GenerateCommandID() error = %v", err)
	}
	if !strings.HasPrefix(id, CommandIDPrefix) || len(id) != 31 {
		t.Errorf("GenerateCommandID() = %q, want %s prefix and 31 characters", id, CommandIDPrefix)
	}
	if IsValidSessionID(id) {
		t.Errorf("command ID %q accepted as session ID", id)
	}
}

func TestIsValidSessionID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"valid ID", "smss-01hqv1234567890abcdefghjkm", true},
		{"wrong prefix", "smcm-01hqv1234567890abcdefghjkm", false},
		{"no prefix", "01hqv1234567890abcdefghjkmxyzw", false},
		{"too short", "smss-01hqv123", false},
		{"too long", "smss-01hqv1234567890abcdefghjkmnp", false},
		{"not base32", "smss-01hqv1234567890abcdefgh!!m", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidSessionID(tt.id); got != tt.valid {
				t.Errorf("IsValidSessionID(%q) = %v, want %v", tt.id, got, tt.valid)
			}
		})
	}
}

func TestNotification_MarshalJSON(t *testing.T) {
	n := Notification{
		FieldID: "switch/isOn",
		Old:     BoolValue(false),
		New:     BoolValue(true),
		Version: 1,
		At:      1700000000000,
	}

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"field_id":"switch/isOn","old":{"kind":"bool","value":false},"new":{"kind":"bool","value":true},"version":1,"at":1700000000000}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
