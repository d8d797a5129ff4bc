package command

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/syncmesh-go/internal/cli/connection"
	"github.com/yndnr/syncmesh-go/internal/cli/output"
	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// FieldCommand returns the field subcommand group.
func FieldCommand() *cli.Command {
	return &cli.Command{
		Name:    "field",
		Aliases: []string{"f"},
		Usage:   "Manage replicated fields",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List fields",
				Action: fieldListAction,
			},
			{
				Name:      "get",
				Usage:     "Show a field",
				ArgsUsage: "FIELD",
				Action:    fieldGetAction,
			},
			{
				Name:      "declare",
				Usage:     "Declare a field",
				ArgsUsage: "FIELD",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "kind",
						Aliases:  []string{"k"},
						Usage:    "value kind: bool, number, string, vector",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "value",
						Usage: "initial value; vectors are written x,y",
					},
					&cli.StringFlag{
						Name:  "owner",
						Usage: "session allowed to move the field",
					},
					&cli.BoolFlag{
						Name:  "owned",
						Usage: "make the current session the owner",
					},
					&cli.BoolFlag{
						Name:  "ephemeral",
						Usage: "never journal the field; drop it when the owner leaves",
					},
				},
				Action: fieldDeclareAction,
			},
			{
				Name:      "drop",
				Usage:     "Drop a field",
				ArgsUsage: "FIELD",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: fieldDropAction,
			},
		},
	}
}

func fieldListAction(c *cli.Context) error {
	client, flags := EnsureConnected(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/v1/fields")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var result fieldsResponse
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	return render(c, flags, result, func() *output.Table {
		return fieldTable(flags, result.Items...)
	})
}

func fieldGetAction(c *cli.Context) error {
	if err := requireArgs(c, 1, "FIELD"); err != nil {
		return err
	}
	client, flags := EnsureConnected(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	info, err := getField(ctx, client, c.Args().First())
	if err != nil {
		return err
	}
	return render(c, flags, info, func() *output.Table {
		return fieldTable(flags, info)
	})
}

func getField(ctx context.Context, client *connection.HTTPClient, id string) (fieldView, error) {
	resp, err := client.Get(ctx, "/v1/fields/"+fieldPath(id))
	if err != nil {
		return fieldView{}, fmt.Errorf("request failed: %w", err)
	}
	var info fieldView
	if err := connection.ParseResponse(resp, &info); err != nil {
		return fieldView{}, err
	}
	return info, nil
}

func fieldDeclareAction(c *cli.Context) error {
	if err := requireArgs(c, 1, "--kind KIND [--value VALUE] FIELD"); err != nil {
		return err
	}
	client, flags := EnsureConnected(c)

	kind := domain.Kind(c.String("kind"))
	if !kind.Valid() {
		return fmt.Errorf("unknown kind %q", kind)
	}
	initial := domain.ZeroValue(kind)
	if c.IsSet("value") {
		v, err := domain.ParseValue(kind, c.String("value"))
		if err != nil {
			return err
		}
		initial = v
	}

	owner := c.String("owner")
	if c.Bool("owned") {
		if flags.Session == "" {
			return fmt.Errorf("--owned needs a session: run 'syncmesh-cli connect' first")
		}
		owner = flags.Session
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	id := c.Args().First()
	resp, err := client.Put(ctx, "/v1/fields/"+fieldPath(id), map[string]any{
		"initial":   initial,
		"owner":     owner,
		"ephemeral": c.Bool("ephemeral"),
	})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var info fieldView
	if err := connection.ParseResponse(resp, &info); err != nil {
		return err
	}

	if flags.Output != output.FormatTable {
		return render(c, flags, info, nil)
	}
	fmt.Fprintf(c.App.Writer, "Declared %s (%s) = %s at version %d\n", info.ID, info.Kind, info.Value, info.Version)
	return nil
}

func fieldDropAction(c *cli.Context) error {
	if err := requireArgs(c, 1, "FIELD"); err != nil {
		return err
	}
	id := c.Args().First()

	if !c.Bool("force") && !confirm(c, fmt.Sprintf("Drop field '%s'? [y/N]: ", id)) {
		fmt.Fprintln(c.App.Writer, "Cancelled.")
		return nil
	}

	client, _ := EnsureConnected(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Delete(ctx, "/v1/fields/"+fieldPath(id))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Field %s dropped.\n", id)
	return nil
}

func confirm(c *cli.Context, prompt string) bool {
	fmt.Fprint(c.App.Writer, prompt)
	line, _ := bufio.NewReader(c.App.Reader).ReadString('\n')
	answer := strings.TrimSpace(line)
	return answer == "y" || answer == "Y"
}

func fieldTable(flags *GlobalFlags, fields ...fieldView) *output.Table {
	table := &output.Table{
		Headers: []string{"FIELD", "KIND", "VALUE", "VERSION", "AUTHORITY", "SUBSCRIBERS"},
	}
	if flags.Wide {
		table.Headers = append(table.Headers, "OWNER", "EPHEMERAL", "PENDING")
	}
	for _, f := range fields {
		row := []string{
			f.ID,
			string(f.Kind),
			f.Value.String(),
			utoa(f.Version),
			orDash(truncateID(f.Authority, flags.Wide)),
			itoa(f.Subscribers),
		}
		if flags.Wide {
			row = append(row, orDash(f.Owner), fmt.Sprint(f.Ephemeral), itoa(f.Pending))
		}
		table.AddRow(row...)
	}
	return table
}

// ClaimCommand returns the claim command.
func ClaimCommand() *cli.Command {
	return &cli.Command{
		Name:      "claim",
		Usage:     "Claim authority over a field for the current session",
		ArgsUsage: "FIELD",
		Action: func(c *cli.Context) error {
			return authorityAction(c, true)
		},
	}
}

// ReleaseCommand returns the release command.
func ReleaseCommand() *cli.Command {
	return &cli.Command{
		Name:      "release",
		Usage:     "Release authority over a field",
		ArgsUsage: "FIELD",
		Action: func(c *cli.Context) error {
			return authorityAction(c, false)
		},
	}
}

func authorityAction(c *cli.Context, claim bool) error {
	if err := requireArgs(c, 1, "FIELD"); err != nil {
		return err
	}
	client, flags, err := RequireSession(c)
	if err != nil {
		return err
	}
	id := c.Args().First()
	path := "/v1/sessions/" + flags.Session + "/authority/" + fieldPath(id)

	ctx, cancel := requestContext(c)
	defer cancel()

	if !claim {
		resp, err := client.Delete(ctx, path)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if err := connection.ParseResponse(resp, nil); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Released authority over %s\n", id)
		return nil
	}

	resp, err := client.Post(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var result authorityResult
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	if flags.Output != output.FormatTable {
		return render(c, flags, result, nil)
	}
	fmt.Fprintf(c.App.Writer, "Authority over %s held at epoch %d\n", result.FieldID, result.Epoch)
	return nil
}

// SubscribeCommand returns the subscribe command.
func SubscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe the current session to fields",
		ArgsUsage: "FIELD...",
		Action: func(c *cli.Context) error {
			return subscriptionAction(c, true)
		},
	}
}

// UnsubscribeCommand returns the unsubscribe command.
func UnsubscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "unsubscribe",
		Usage:     "Unsubscribe the current session from fields",
		ArgsUsage: "FIELD...",
		Action: func(c *cli.Context) error {
			return subscriptionAction(c, false)
		},
	}
}

func subscriptionAction(c *cli.Context, subscribe bool) error {
	if err := requireArgs(c, 1, "FIELD..."); err != nil {
		return err
	}
	client, flags, err := RequireSession(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	for _, id := range c.Args().Slice() {
		path := "/v1/sessions/" + flags.Session + "/subscriptions/" + fieldPath(id)
		method, verb := "DELETE", "Unsubscribed from"
		if subscribe {
			method, verb = "POST", "Subscribed to"
		}
		resp, err := client.Do(ctx, method, path, nil)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if err := connection.ParseResponse(resp, nil); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		fmt.Fprintf(c.App.Writer, "%s %s\n", verb, id)
	}
	return nil
}
