package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestTable_Render(t *testing.T) {
	table := &Table{Headers: []string{"FIELD", "VERSION"}}
	table.AddRow("switch/isOn", "12")
	table.AddRow("door", "3")

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := []string{
		"FIELD        VERSION",
		"switch/isOn  12",
		"door         3",
	}
	got := lines(buf.String())
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("Render() =\n%s\nwant\n%s", buf.String(), strings.Join(want, "\n"))
	}
}

func TestTableFormatter_Format(t *testing.T) {
	type field struct {
		ID      string       `json:"id"`
		Value   domain.Value `json:"value"`
		Version uint64       `json:"version"`
		Owner   string       `json:"owner,omitempty"`
	}

	tests := []struct {
		name string
		f    TableFormatter
		data any
		want []string
	}{
		{
			name: "nil prints nothing",
			data: nil,
			want: []string{""},
		},
		{
			name: "table value",
			data: Table{Headers: []string{"A"}, Rows: [][]string{{"1"}}},
			want: []string{"A", "1"},
		},
		{
			name: "headers suppressed",
			f:    TableFormatter{NoHeaders: true},
			data: &Table{Headers: []string{"A"}, Rows: [][]string{{"1"}}},
			want: []string{"1"},
		},
		{
			name: "object as key value rows in wire order",
			data: field{ID: "lamp", Value: domain.BoolValue(true), Version: 4},
			want: []string{
				"KEY      VALUE",
				"id       lamp",
				"value    true",
				"version  4",
			},
		},
		{
			name: "list of objects with a column per key",
			data: []field{
				{ID: "a", Value: domain.NumberValue(1.5), Version: 1},
				{ID: "player/s1", Value: domain.VectorValue(domain.Vec2{X: 1, Y: -2}), Version: 7, Owner: "s1"},
			},
			want: []string{
				"ID         VALUE    VERSION  OWNER",
				"a          1.5      1        -",
				"player/s1  (1, -2)  7        s1",
			},
		},
		{
			name: "scalars",
			data: []string{"x", "y"},
			want: []string{"VALUE", "x", "y"},
		},
		{
			name: "empty and nested values",
			data: map[string]any{"items": []string{}, "tags": []string{"a", "b"}, "meta": map[string]int{"n": 1}},
			want: []string{
				"KEY    VALUE",
				"items  -",
				"meta   {1 keys}",
				"tags   a,b",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.f.Format(&buf, tt.data); err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			got := strings.Join(lines(buf.String()), "\n")
			if want := strings.Join(tt.want, "\n"); got != want {
				t.Errorf("Format() =\n%s\nwant\n%s", got, want)
			}
		})
	}
}

func TestTableFormatter_Truncation(t *testing.T) {
	long := strings.Repeat("x", narrowCell+10)
	data := map[string]string{"id": long}

	var narrow bytes.Buffer
	if err := (&TableFormatter{}).Format(&narrow, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.Contains(narrow.String(), long) || !strings.Contains(narrow.String(), "...") {
		t.Errorf("narrow output not truncated: %q", narrow.String())
	}

	var wide bytes.Buffer
	if err := (&TableFormatter{Wide: true}).Format(&wide, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(wide.String(), long) {
		t.Errorf("wide output truncated: %q", wide.String())
	}
}
