package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/syncmesh-go/internal/cli/connection"
	"github.com/yndnr/syncmesh-go/internal/cli/output"
	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// SessionCommand returns the session subcommand group.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sess"},
		Usage:   "Inspect sessions",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List connected sessions",
				Action: sessionListAction,
			},
			{
				Name:      "get",
				Usage:     "Show a session; defaults to the current one",
				ArgsUsage: "[SESSION_ID]",
				Action:    sessionGetAction,
			},
		},
	}
}

func sessionListAction(c *cli.Context) error {
	client, flags := EnsureConnected(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/sessions")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var result sessionsResponse
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	return render(c, flags, result, func() *output.Table {
		return sessionTable(flags, result.Items...)
	})
}

func sessionGetAction(c *cli.Context) error {
	client, flags := EnsureConnected(c)
	id := c.Args().First()
	if id == "" {
		id = flags.Session
	}
	if id == "" {
		return fmt.Errorf("session ID required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/sessions/"+id)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var info domain.SessionInfo
	if err := connection.ParseResponse(resp, &info); err != nil {
		return err
	}

	return render(c, flags, info, func() *output.Table {
		return sessionTable(flags, info)
	})
}

func sessionTable(flags *GlobalFlags, sessions ...domain.SessionInfo) *output.Table {
	table := &output.Table{
		Headers: []string{"SESSION ID", "STATE", "ROLE", "CONNECTED", "AUTHORITY", "SUBSCRIPTIONS"},
	}
	for _, s := range sessions {
		id := s.ID
		if s.ID == flags.Session {
			id += " *"
		}
		table.AddRow(
			id,
			string(s.State),
			string(s.Role),
			formatTime(s.ConnectedAt),
			joinOrDash(s.AuthorityFor),
			joinOrDash(s.Subscriptions),
		)
	}
	return table
}
