package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/syncmesh-go/internal/cli/connection"
	"github.com/yndnr/syncmesh-go/internal/cli/output"
	"github.com/yndnr/syncmesh-go/internal/infra/buildinfo"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server status commands",
		Subcommands: []*cli.Command{
			{
				Name:  "health",
				Usage: "Check server health",
				Action: func(c *cli.Context) error {
					return probe(c, "/health")
				},
			},
			{
				Name:  "ready",
				Usage: "Check server readiness and counts",
				Action: func(c *cli.Context) error {
					return probe(c, "/ready")
				},
			},
			{
				Name:   "version",
				Usage:  "Show client and server versions",
				Action: systemVersion,
			},
		},
	}
}

func probe(c *cli.Context, path string) error {
	client, flags := EnsureConnected(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var result map[string]any
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return render(c, flags, result, nil)
}

func systemVersion(c *cli.Context) error {
	client, flags := EnsureConnected(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	info := buildinfo.Get()
	server := "unreachable"
	if resp, err := client.Get(ctx, "/health"); err == nil {
		var health struct {
			Version string `json:"version"`
		}
		if err := connection.ParseResponse(resp, &health); err == nil {
			server = health.Version
		}
	}

	result := map[string]any{"client": info, "server": server}
	return render(c, flags, result, func() *output.Table {
		table := &output.Table{Headers: []string{"COMPONENT", "VERSION", "COMMIT", "GO"}}
		table.AddRow("client", info.Version, info.Commit, info.GoVersion)
		table.AddRow("server", server, "-", "-")
		return table
	})
}
