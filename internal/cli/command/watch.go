package command

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/syncmesh-go/internal/cli/connection"
	"github.com/yndnr/syncmesh-go/internal/cli/output"
	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Stream change notifications of the current session",
		ArgsUsage: "[FIELD...]",
		Description: "Each FIELD is subscribed before streaming. Without FIELD the\n" +
			"session's existing subscriptions are streamed.",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "stop after this many notifications; 0 streams until interrupted",
			},
		},
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	client, flags, err := RequireSession(c)
	if err != nil {
		return err
	}

	q := url.Values{}
	for _, id := range c.Args().Slice() {
		q.Add("field", id)
	}
	path := "/v1/sessions/" + flags.Session + "/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	limit := c.Int("count")
	seen := 0
	return client.Stream(c.Context, path, func(ev connection.Event) error {
		switch ev.Name {
		case "closed":
			fmt.Fprintln(c.App.ErrWriter, "session closed")
			return connection.ErrStopStream
		case "change":
		default:
			return nil
		}

		var n domain.Notification
		if err := json.Unmarshal([]byte(ev.Data), &n); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		if err := printNotification(c, flags, n); err != nil {
			return err
		}
		seen++
		if limit > 0 && seen >= limit {
			return connection.ErrStopStream
		}
		return nil
	})
}

func printNotification(c *cli.Context, flags *GlobalFlags, n domain.Notification) error {
	switch flags.Output {
	case output.FormatJSON:
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.App.Writer, "%s\n", data)
		return err
	case output.FormatYAML:
		fmt.Fprintln(c.App.Writer, "---")
		return render(c, flags, n, nil)
	default:
		_, err := fmt.Fprintf(c.App.Writer, "%s %s v%d: %s -> %s\n",
			formatTime(n.At), n.FieldID, n.Version, n.Old, n.New)
		return err
	}
}
