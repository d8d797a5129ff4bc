package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/syncmesh-go/internal/cli/connection"
	"github.com/yndnr/syncmesh-go/internal/cli/output"
	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// ToggleCommand returns the toggle command.
func ToggleCommand() *cli.Command {
	return &cli.Command{
		Name:      "toggle",
		Usage:     "Ask the authority to flip a bool field; without FIELD, the switch",
		ArgsUsage: "[FIELD]",
		Action:    toggleAction,
	}
}

func toggleAction(c *cli.Context) error {
	client, flags, err := RequireSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	id := c.Args().First()
	if id == "" {
		resp, err := client.Post(ctx, "/v1/switch/toggle", nil)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		var state switchState
		if err := connection.ParseResponse(resp, &state); err != nil {
			return err
		}
		return renderSwitch(c, flags, state)
	}

	res, err := submit(ctx, client, id, map[string]any{"kind": domain.CommandToggle})
	if err != nil {
		return err
	}
	return renderResult(c, flags, res)
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Ask the authority to replace a field value",
		ArgsUsage: "FIELD VALUE",
		Action:    setAction,
	}
}

func setAction(c *cli.Context) error {
	if err := requireArgs(c, 2, "FIELD VALUE"); err != nil {
		return err
	}
	client, flags, err := RequireSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	id := c.Args().Get(0)
	v, err := parseFor(ctx, client, id, c.Args().Get(1))
	if err != nil {
		return err
	}
	res, err := submit(ctx, client, id, map[string]any{"kind": domain.CommandSet, "value": v})
	if err != nil {
		return err
	}
	return renderResult(c, flags, res)
}

// CommitCommand returns the commit command.
func CommitCommand() *cli.Command {
	return &cli.Command{
		Name:      "commit",
		Usage:     "Write a field directly as its authority",
		ArgsUsage: "FIELD VALUE",
		Action:    commitAction,
	}
}

func commitAction(c *cli.Context) error {
	if err := requireArgs(c, 2, "FIELD VALUE"); err != nil {
		return err
	}
	client, flags, err := RequireSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	id := c.Args().Get(0)
	v, err := parseFor(ctx, client, id, c.Args().Get(1))
	if err != nil {
		return err
	}
	resp, err := client.Post(ctx, "/v1/commits/"+fieldPath(id), map[string]any{"value": v})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var result commitResult
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	if flags.Output != output.FormatTable {
		return render(c, flags, result, nil)
	}
	fmt.Fprintf(c.App.Writer, "%s = %s at version %d\n", id, v, result.Version)
	return nil
}

// parseFor parses text as a value of the field's declared kind.
func parseFor(ctx context.Context, client *connection.HTTPClient, id, text string) (domain.Value, error) {
	info, err := getField(ctx, client, id)
	if err != nil {
		return domain.Value{}, err
	}
	return domain.ParseValue(info.Kind, text)
}

func submit(ctx context.Context, client *connection.HTTPClient, id string, body map[string]any) (commandResult, error) {
	resp, err := client.Post(ctx, "/v1/commands/"+fieldPath(id), body)
	if err != nil {
		return commandResult{}, fmt.Errorf("request failed: %w", err)
	}
	var res commandResult
	if err := connection.ParseResponse(resp, &res); err != nil {
		return commandResult{}, err
	}
	return res, nil
}

func renderResult(c *cli.Context, flags *GlobalFlags, res commandResult) error {
	if flags.Output != output.FormatTable {
		return render(c, flags, res, nil)
	}
	if !res.Changed {
		fmt.Fprintf(c.App.Writer, "%s unchanged: %s at version %d\n", res.FieldID, res.Value, res.Version)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "%s = %s at version %d\n", res.FieldID, res.Value, res.Version)
	return nil
}

// SwitchCommand returns the switch command.
func SwitchCommand() *cli.Command {
	return &cli.Command{
		Name:  "switch",
		Usage: "Show the shared switch",
		Action: func(c *cli.Context) error {
			client, flags := EnsureConnected(c)
			ctx, cancel := requestContext(c)
			defer cancel()

			resp, err := client.Get(ctx, "/v1/switch")
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			var state switchState
			if err := connection.ParseResponse(resp, &state); err != nil {
				return err
			}
			return renderSwitch(c, flags, state)
		},
	}
}

func renderSwitch(c *cli.Context, flags *GlobalFlags, state switchState) error {
	return render(c, flags, state, func() *output.Table {
		on := "off"
		if state.On {
			on = "on"
		}
		table := &output.Table{Headers: []string{"FIELD", "STATE", "COLOR", "VERSION"}}
		table.AddRow(state.FieldID, on, state.Color, utoa(state.Version))
		return table
	})
}

// MoveCommand returns the move command.
func MoveCommand() *cli.Command {
	return &cli.Command{
		Name:  "move",
		Usage: "Move the current session's player",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "x", Usage: "horizontal input axis in [-1, 1]"},
			&cli.Float64Flag{Name: "y", Usage: "vertical input axis in [-1, 1]"},
			&cli.Float64Flag{Name: "dt", Usage: "frame time in seconds", Value: 0.1},
		},
		Action: moveAction,
	}
}

func moveAction(c *cli.Context) error {
	client, flags, err := RequireSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/players/"+flags.Session+"/move", map[string]float64{
		"x":  c.Float64("x"),
		"y":  c.Float64("y"),
		"dt": c.Float64("dt"),
	})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var state playerState
	if err := connection.ParseResponse(resp, &state); err != nil {
		return err
	}
	return renderPlayer(c, flags, state)
}

// PlayerCommand returns the player command.
func PlayerCommand() *cli.Command {
	return &cli.Command{
		Name:      "player",
		Usage:     "Show a player's position; defaults to the current session's",
		ArgsUsage: "[SESSION_ID]",
		Action: func(c *cli.Context) error {
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

			resp, err := client.Get(ctx, "/v1/players/"+id)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			var state playerState
			if err := connection.ParseResponse(resp, &state); err != nil {
				return err
			}
			return renderPlayer(c, flags, state)
		},
	}
}

func renderPlayer(c *cli.Context, flags *GlobalFlags, state playerState) error {
	return render(c, flags, state, func() *output.Table {
		table := &output.Table{Headers: []string{"PLAYER", "X", "Y", "VERSION"}}
		table.AddRow(
			state.FieldID,
			fmt.Sprintf("%g", state.Position.X),
			fmt.Sprintf("%g", state.Position.Y),
			utoa(state.Version),
		)
		return table
	})
}
