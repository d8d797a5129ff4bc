package repl

import (
	"slices"
	"strings"
)

var builtins = []string{"exit", "help", "quit"}

// Completer completes command paths such as "field declare".
type Completer struct {
	paths []string
}

func NewCompleter(paths []string) *Completer {
	all := slices.Concat(builtins, paths)
	slices.Sort(all)
	return &Completer{paths: slices.Compact(all)}
}

// Complete returns, in order, the paths that extend prefix. Runs of spaces
// in prefix count as one.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.Join(strings.Fields(prefix), " ")
	var out []string
	for _, p := range c.paths {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}
