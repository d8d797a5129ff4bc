package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/syncmesh-go/internal/cli/config"
	"github.com/yndnr/syncmesh-go/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the CLI configuration with tokens masked",
				Action: configShow,
			},
			{
				Name:  "path",
				Usage: "Print the CLI configuration file path",
				Action: func(c *cli.Context) error {
					_, err := c.App.Writer.Write([]byte(c.String("config") + "\n"))
					return err
				},
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg := *cliConfig(c)
	masked := make(map[string]config.ConnectionConfig, len(cfg.Connections))
	for name, conn := range cfg.Connections {
		if conn.AdminToken != "" {
			conn.AdminToken = "***"
		}
		masked[name] = conn
	}
	cfg.Connections = masked

	flags := ParseGlobalFlags(c)
	if flags.Output == output.FormatTable {
		flags.Output = output.FormatYAML
	}
	return render(c, flags, cfg, nil)
}
