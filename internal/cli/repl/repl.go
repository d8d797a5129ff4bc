package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultPrompt is printed before every line.
const DefaultPrompt = "syncmesh> "

// Executor runs one split command line.
type Executor func(args []string) error

// Config configures a REPL.
type Config struct {
	Input  io.Reader
	Output io.Writer
	Prompt string
	Exec   Executor
	// Commands feeds completion; see Completer.
	Commands []string
	History  *History
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	prompt    string
	exec      Executor
	completer *Completer
	history   *History
}

// New creates a new REPL instance.
func New(cfg Config) *REPL {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.History == nil {
		cfg.History = NewHistory("", DefaultHistorySize)
	}
	if cfg.Exec == nil {
		cfg.Exec = func([]string) error { return nil }
	}
	return &REPL{
		input:     cfg.Input,
		output:    cfg.Output,
		prompt:    cfg.Prompt,
		exec:      cfg.Exec,
		completer: NewCompleter(cfg.Commands),
		history:   cfg.History,
	}
}

// Run starts the REPL loop. It returns nil on exit, quit or end of input.
func (r *REPL) Run() error {
	reader := bufio.NewReader(r.input)

	for {
		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimSpace(line)
		if line == "" {
			if eof {
				fmt.Fprintln(r.output)
				return nil
			}
			continue
		}

		r.history.Add(line)
		if line == "exit" || line == "quit" {
			return nil
		}

		if err := r.execute(line); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
		if eof {
			return nil
		}
	}
}

func (r *REPL) execute(line string) error {
	if prefix, ok := strings.CutSuffix(line, "?"); ok {
		for _, s := range r.completer.Complete(strings.TrimSpace(prefix)) {
			fmt.Fprintln(r.output, s)
		}
		return nil
	}

	args, err := SplitArgs(line)
	if err != nil {
		return err
	}
	return r.exec(args)
}

// SplitArgs splits a line into arguments. Single and double quotes group
// words; a backslash escapes the next character outside single quotes.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)
	for _, ch := range line {
		switch {
		case escaped:
			cur.WriteRune(ch)
			escaped = false
		case ch == '\\' && quote != '\'':
			escaped = true
			inArg = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteRune(ch)
			}
		case ch == '"' || ch == '\'':
			quote = ch
			inArg = true
		case ch == ' ' || ch == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(ch)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
