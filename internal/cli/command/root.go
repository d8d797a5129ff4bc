package command

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/syncmesh-go/internal/cli/config"
	"github.com/yndnr/syncmesh-go/internal/cli/connection"
	"github.com/yndnr/syncmesh-go/internal/cli/output"
	"github.com/yndnr/syncmesh-go/internal/cli/repl"
	"github.com/yndnr/syncmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/syncmesh-go/internal/infra/tlsroots"
)

const (
	metaConfig  = "cliConfig"
	metaRootCAs = "rootCAs"
)

// App creates the CLI application. Run without a command it starts the
// interactive mode.
func App() *cli.App {
	app := newApp()
	app.Action = interactiveAction
	return app
}

func newApp() *cli.App {
	info := buildinfo.Get()
	return &cli.App{
		Name:     "syncmesh-cli",
		Usage:    "syncmesh command-line client",
		Version:  fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.BuildTime),
		Flags:    globalFlags(),
		Commands: Commands(),
		Before:   loadConfig,
		Metadata: map[string]any{},
	}
}

// Commands returns every top-level command.
func Commands() []*cli.Command {
	return []*cli.Command{
		ConnectCommand(),
		DisconnectCommand(),
		UseCommand(),
		SessionCommand(),
		FieldCommand(),
		ClaimCommand(),
		ReleaseCommand(),
		SubscribeCommand(),
		UnsubscribeCommand(),
		ToggleCommand(),
		SetCommand(),
		CommitCommand(),
		SwitchCommand(),
		MoveCommand(),
		PlayerCommand(),
		WatchCommand(),
		BackupCommand(),
		SystemCommand(),
		ConfigCommand(),
	}
}

// globalFlags returns the global CLI flags. The connection flags carry no
// defaults so that unset ones fall back to the saved connection.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server address: host:port, http(s)://host:port or unix:///path",
			EnvVars: []string{config.EnvServer},
		},
		&cli.StringFlag{
			Name:    "session",
			Aliases: []string{"S"},
			Usage:   "act as this session instead of the saved one",
			EnvVars: []string{config.EnvSession},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "bearer token for admin endpoints",
			EnvVars: []string{config.EnvAdminToken},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
			EnvVars: []string{config.EnvOutput},
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "CLI config file",
			Value: config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "PEM bundle to trust for https servers, in addition to the system roots",
			EnvVars: []string{config.EnvCAFile},
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

func loadConfig(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	c.App.Metadata[metaConfig] = cfg

	if path := c.String("ca-file"); path != "" {
		pool, err := tlsroots.Pool(path)
		if err != nil {
			return err
		}
		c.App.Metadata[metaRootCAs] = pool
	}

	_, err = output.ParseFormat(string(ParseGlobalFlags(c).Output))
	return err
}

func cliConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

func saveConfig(c *cli.Context) error {
	return config.Save(cliConfig(c), c.String("config"))
}

// GlobalFlags is the effective connection and output setup of a command.
type GlobalFlags struct {
	Server     string
	Session    string
	AdminToken string
	Output     output.Format
	Wide       bool
}

// ParseGlobalFlags merges the flags (or their environment variables) with
// the saved connection.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	set := make(map[string]string)
	for _, name := range []string{"server", "session", "admin-token", "output"} {
		if c.IsSet(name) {
			set[name] = c.String(name)
		}
	}
	conn, format := config.Merge(cliConfig(c), set)
	return &GlobalFlags{
		Server:     conn.Server,
		Session:    conn.Session,
		AdminToken: conn.AdminToken,
		Output:     output.Format(format),
		Wide:       c.Bool("wide"),
	}
}

// EnsureConnected returns a client for the effective server, acting as the
// effective session when there is one.
func EnsureConnected(c *cli.Context) (*connection.HTTPClient, *GlobalFlags) {
	flags := ParseGlobalFlags(c)
	client := newClient(c, flags.Server, flags.AdminToken)
	if flags.Session != "" {
		client = client.WithSession(flags.Session)
	}
	return client, flags
}

func newClient(c *cli.Context, server, adminToken string) *connection.HTTPClient {
	var opts []connection.ClientOption
	if pool, ok := c.App.Metadata[metaRootCAs].(*x509.CertPool); ok {
		opts = append(opts, connection.WithRootCAs(pool))
	}
	return connection.NewHTTPClient(server, adminToken, opts...)
}

// RequireSession is EnsureConnected for commands that act as a session.
func RequireSession(c *cli.Context) (*connection.HTTPClient, *GlobalFlags, error) {
	client, flags := EnsureConnected(c)
	if flags.Session == "" {
		return nil, nil, fmt.Errorf("no session: run 'syncmesh-cli connect' first or pass --session")
	}
	return client, flags, nil
}

func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, connection.DefaultTimeout)
}

// render prints data in the selected format. Table output uses table when
// it is non-nil.
func render(c *cli.Context, flags *GlobalFlags, data any, table func() *output.Table) error {
	switch flags.Output {
	case output.FormatJSON, output.FormatYAML:
		return output.NewFormatter(flags.Output, flags.Wide).Format(c.App.Writer, data)
	}
	if table == nil {
		return output.NewFormatter(output.FormatTable, flags.Wide).Format(c.App.Writer, data)
	}
	return table().Render(c.App.Writer)
}

// fieldPath escapes each segment of a field id for use in a URL path.
func fieldPath(id string) string {
	parts := strings.Split(id, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() < n {
		return fmt.Errorf("usage: %s %s", c.Command.HelpName, usage)
	}
	return nil
}

// interactiveAction runs the REPL. Each line is run by a fresh app that
// inherits the global flags given on the command line.
func interactiveAction(c *cli.Context) error {
	if c.NArg() > 0 {
		return fmt.Errorf("unknown command %q", c.Args().First())
	}

	var inherited []string
	for _, name := range []string{"server", "session", "admin-token", "output", "config"} {
		if c.IsSet(name) {
			inherited = append(inherited, "--"+name+"="+c.String(name))
		}
	}
	if c.Bool("wide") {
		inherited = append(inherited, "--wide")
	}

	history := repl.NewHistory(repl.DefaultHistoryPath(), repl.DefaultHistorySize)
	_ = history.Load()
	defer func() { _ = history.Save() }()

	r := repl.New(repl.Config{
		Input:    c.App.Reader,
		Output:   c.App.Writer,
		Commands: CommandPaths(Commands()),
		History:  history,
		Exec: func(args []string) error {
			app := newApp()
			app.Reader, app.Writer, app.ErrWriter = c.App.Reader, c.App.Writer, c.App.ErrWriter
			app.Action = func(c *cli.Context) error {
				if c.NArg() > 0 {
					return fmt.Errorf("unknown command %q", c.Args().First())
				}
				return nil
			}
			argv := append([]string{app.Name}, inherited...)
			return app.RunContext(c.Context, append(argv, args...))
		},
	})
	return r.Run()
}

// CommandPaths lists "group sub" paths of commands for completion.
func CommandPaths(cmds []*cli.Command) []string {
	var paths []string
	var walk func(prefix string, cmds []*cli.Command)
	walk = func(prefix string, cmds []*cli.Command) {
		for _, cmd := range cmds {
			p := strings.TrimSpace(prefix + " " + cmd.Name)
			paths = append(paths, p)
			walk(p, cmd.Subcommands)
		}
	}
	walk("", cmds)
	return paths
}

// PrintError prints an error message to w.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
