package output

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats data as YAML.
type YAMLFormatter struct{}

// Format formats data as YAML. Data is passed through its JSON form first so
// json tags and custom marshalers decide the field names.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	doc, err := jsonNode(data)
	if err != nil {
		return err
	}
	clearStyle(doc)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// jsonNode decodes the JSON form of data into a YAML node tree, which keeps
// object keys in their encoded order.
func jsonNode(data any) (*yaml.Node, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		return doc.Content[0], nil
	}
	return &doc, nil
}

// clearStyle drops the flow and quoting styles kept from the JSON input so
// the document is written in block style.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}
