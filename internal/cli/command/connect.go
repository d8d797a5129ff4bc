package command

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/syncmesh-go/internal/cli/config"
	"github.com/yndnr/syncmesh-go/internal/cli/connection"
	"github.com/yndnr/syncmesh-go/internal/cli/output"
)

// ConnectCommand returns the connect command.
func ConnectCommand() *cli.Command {
	return &cli.Command{
		Name:      "connect",
		Usage:     "Open a session on a server and remember it",
		ArgsUsage: "[SERVER]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "save the connection under this name and make it current",
			},
			&cli.BoolFlag{
				Name:  "spawn-player",
				Usage: "spawn a player owned by the new session",
			},
		},
		Action: connectAction,
	}
}

func connectAction(c *cli.Context) error {
	cfg := cliConfig(c)
	if name := c.String("name"); name != "" {
		cfg.CurrentConnection = name
	}

	flags := ParseGlobalFlags(c)
	if server := c.Args().First(); server != "" && server != flags.Server {
		flags.Server = server
		flags.AdminToken = ""
		if c.IsSet("admin-token") {
			flags.AdminToken = c.String("admin-token")
		}
	}
	client := newClient(c, flags.Server, flags.AdminToken)

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/sessions", map[string]any{"spawn_player": c.Bool("spawn-player")})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var result connectResult
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	cfg.SetCurrent(config.ConnectionConfig{
		Server:     flags.Server,
		AdminToken: flags.AdminToken,
		Session:    result.Session.ID,
	})
	if err := saveConfig(c); err != nil {
		return fmt.Errorf("save cli config: %w", err)
	}

	if flags.Output != output.FormatTable {
		return render(c, flags, result, nil)
	}
	fmt.Fprintf(c.App.Writer, "Connected to %s as session %s\n", flags.Server, result.Session.ID)
	if result.Player != nil {
		fmt.Fprintf(c.App.Writer, "Player %s at %s\n", result.Player.ID, result.Player.Value)
	}
	return nil
}

// DisconnectCommand returns the disconnect command.
func DisconnectCommand() *cli.Command {
	return &cli.Command{
		Name:   "disconnect",
		Usage:  "Close the current session",
		Action: disconnectAction,
	}
}

func disconnectAction(c *cli.Context) error {
	client, flags := EnsureConnected(c)
	if flags.Session == "" {
		fmt.Fprintln(c.App.Writer, "Not connected")
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Delete(ctx, "/v1/sessions/"+flags.Session)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	err = connection.ParseResponse(resp, nil)
	var apiErr *connection.APIError
	if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound) {
		return err
	}

	cfg := cliConfig(c)
	if cur := cfg.Current(); cur.Session == flags.Session {
		cur.Session = ""
		cfg.SetCurrent(cur)
		if err := saveConfig(c); err != nil {
			return fmt.Errorf("save cli config: %w", err)
		}
	}
	fmt.Fprintf(c.App.Writer, "Disconnected session %s\n", flags.Session)
	return nil
}

// UseCommand returns the use command for switching connections.
func UseCommand() *cli.Command {
	return &cli.Command{
		Name:      "use",
		Usage:     "Switch to a saved connection, or list them",
		ArgsUsage: "[CONNECTION_NAME]",
		Action:    useAction,
	}
}

func useAction(c *cli.Context) error {
	cfg := cliConfig(c)
	name := c.Args().First()
	if name == "" {
		return listConnections(c, cfg)
	}
	if _, ok := cfg.Connections[name]; !ok {
		return fmt.Errorf("no saved connection %q", name)
	}
	cfg.CurrentConnection = name
	if err := saveConfig(c); err != nil {
		return fmt.Errorf("save cli config: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Using connection %s (%s)\n", name, cfg.Current().Server)
	return nil
}

func listConnections(c *cli.Context, cfg *config.CLIConfig) error {
	names := make([]string, 0, len(cfg.Connections))
	for name := range cfg.Connections {
		names = append(names, name)
	}
	sort.Strings(names)

	current := cfg.CurrentConnection
	if current == "" {
		current = config.DefaultConnection
	}
	table := &output.Table{Headers: []string{"", "NAME", "SERVER", "SESSION"}}
	for _, name := range names {
		conn := cfg.Connections[name]
		mark := ""
		if name == current {
			mark = "*"
		}
		table.AddRow(mark, name, orDash(conn.Server), orDash(conn.Session))
	}
	return table.Render(c.App.Writer)
}
