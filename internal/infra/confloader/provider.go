package confloader

import (
	"errors"
	"strings"
)

// mapProvider is a koanf provider over dotted keys such as
// "replication.rate_limit".
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("confloader: map provider has no byte form")
}

func (m mapProvider) Read() (map[string]any, error) {
	tree := make(map[string]any)
	for key, value := range m {
		node := tree
		parts := strings.Split(key, ".")
		for _, part := range parts[:len(parts)-1] {
			next, ok := node[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				node[part] = next
			}
			node = next
		}
		node[parts[len(parts)-1]] = value
	}
	return tree, nil
}
