package command

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/syncmesh-go/internal/cli/connection"
	"github.com/yndnr/syncmesh-go/internal/cli/output"
)

// BackupCommand returns the backup command.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Download a journal backup (admin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output-file",
				Aliases: []string{"f"},
				Usage:   "destination file; defaults to the name chosen by the server",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "no progress output",
			},
		},
		Action: backupAction,
	}
}

func backupAction(c *cli.Context) error {
	client, _ := EnsureConnected(c)

	progress := c.App.ErrWriter
	if c.Bool("quiet") {
		progress = io.Discard
	}

	spinner := output.NewSpinner(progress, "Requesting backup...")
	spinner.Start()
	resp, err := client.Get(c.Context, "/v1/admin/backup")
	if err != nil {
		spinner.Fail("backup request failed")
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		spinner.Fail("backup refused")
		return connection.ParseResponse(resp, nil)
	}
	spinner.Stop()
	defer resp.Body.Close()

	path := c.String("output-file")
	if path == "" {
		path = "syncmesh.bak"
		if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
			path = filepath.Base(params["filename"])
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	bar := output.NewProgressBar(progress, "Downloading")
	if resp.ContentLength > 0 {
		bar.SetTotal(resp.ContentLength)
	}
	n, err := io.Copy(f, io.TeeReader(resp.Body, bar))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("download backup: %w", err)
	}
	bar.Finish()

	fmt.Fprintf(c.App.Writer, "Backup written to %s (%d bytes)\n", path, n)
	return nil
}
