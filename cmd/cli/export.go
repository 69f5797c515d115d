package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/triad3/irpf-import/internal/export"
)

var exportCommand = &cli.Command{
	Name:  "export",
	Usage: "Write a declaration workbook (.xlsx)",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "id",
			Usage:    "Declaration ID",
			Required: true,
		},
		&cli.PathFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "Output file (defaults to declaracao-<id>.xlsx)",
		},
	},
	Action: func(c *cli.Context) error {
		account, err := requireAccount(c)
		if err != nil {
			return err
		}

		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.Close()

		id := c.String("id")
		data, err := export.NewService(e.store).DeclarationXLSX(e.ctx, account, id)
		if err != nil {
			return err
		}

		out := c.Path("out")
		if out == "" {
			out = "declaracao-" + id + ".xlsx"
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}

		e.log.Info().Str("file", out).Int("bytes", len(data)).Msg("Workbook written")
		return nil
	},
}
