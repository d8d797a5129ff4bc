package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// narrowCell is the longest cell printed outside wide mode.
const narrowCell = 48

// Table is a header row plus data rows.
type Table struct {
	Headers []string
	Rows    [][]string
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render writes the table with its headers.
func (t *Table) Render(w io.Writer) error {
	return t.render(w, true)
}

func (t *Table) render(w io.Writer, headers bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if headers && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// TableFormatter renders data as an aligned table. A *Table renders as it
// is. Anything else goes through its JSON form: an object becomes KEY/VALUE
// rows and a list of objects becomes one row per element.
type TableFormatter struct {
	// Wide prints long cells in full.
	Wide      bool
	NoHeaders bool
}

func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch t := data.(type) {
	case nil:
		return nil
	case *Table:
		return t.render(w, !f.NoHeaders)
	case Table:
		return t.render(w, !f.NoHeaders)
	}
	n, err := jsonNode(data)
	if err != nil {
		return err
	}
	return f.table(n).render(w, !f.NoHeaders)
}

func (f *TableFormatter) table(n *yaml.Node) *Table {
	switch n.Kind {
	case yaml.MappingNode:
		t := &Table{Headers: []string{"KEY", "VALUE"}}
		for i := 0; i+1 < len(n.Content); i += 2 {
			t.AddRow(n.Content[i].Value, f.cell(n.Content[i+1]))
		}
		return t
	case yaml.SequenceNode:
		return f.list(n.Content)
	default:
		return &Table{Headers: []string{"VALUE"}, Rows: [][]string{{f.cell(n)}}}
	}
}

// list makes one column per key seen in any element, in first-seen order.
func (f *TableFormatter) list(items []*yaml.Node) *Table {
	t := &Table{}
	if len(items) == 0 {
		return t
	}
	if items[0].Kind != yaml.MappingNode {
		t.Headers = []string{"VALUE"}
		for _, item := range items {
			t.AddRow(f.cell(item))
		}
		return t
	}

	var keys []string
	column := make(map[string]int)
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		row := make(map[string]string)
		for i := 0; i+1 < len(item.Content); i += 2 {
			key := item.Content[i].Value
			if _, ok := column[key]; !ok {
				column[key] = len(keys)
				keys = append(keys, key)
			}
			row[key] = f.cell(item.Content[i+1])
		}
		rows = append(rows, row)
	}

	for _, key := range keys {
		t.Headers = append(t.Headers, strings.ToUpper(key))
	}
	for _, row := range rows {
		cells := make([]string, len(keys))
		for i, key := range keys {
			cell, ok := row[key]
			if !ok {
				cell = "-"
			}
			cells[i] = cell
		}
		t.AddRow(cells...)
	}
	return t
}

func (f *TableFormatter) cell(n *yaml.Node) string {
	s := cellText(n)
	if f.Wide || utf8.RuneCountInString(s) <= narrowCell {
		return s
	}
	r := []rune(s)
	return string(r[:narrowCell-3]) + "..."
}

func cellText(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" || n.Value == "" {
			return "-"
		}
		return n.Value
	case yaml.MappingNode:
		fields := mapping(n)
		// Replicated values encode as {"kind", "value"}.
		if v, ok := fields["value"]; ok && len(fields) == 2 && fields["kind"] != nil {
			return cellText(v)
		}
		if x, ok := fields["x"]; ok && len(fields) == 2 && fields["y"] != nil {
			return "(" + x.Value + ", " + fields["y"].Value + ")"
		}
		if len(fields) == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", len(fields))
	case yaml.SequenceNode:
		if len(n.Content) == 0 {
			return "-"
		}
		parts := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return fmt.Sprintf("[%d items]", len(n.Content))
			}
			parts = append(parts, c.Value)
		}
		return strings.Join(parts, ",")
	default:
		return "-"
	}
}

func mapping(n *yaml.Node) map[string]*yaml.Node {
	m := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		m[n.Content[i].Value] = n.Content[i+1]
	}
	return m
}
