package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/triad3/irpf-import/internal/pipeline"
)

var sweepCommand = &cli.Command{
	Name:  "sweep",
	Usage: "Fail declarations stuck in processing",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "older-than",
			Usage: "Minimum age of a stuck declaration (defaults to STALE_AFTER)",
		},
	},
	Action: func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.Close()

		olderThan := c.Duration("older-than")
		if olderThan <= 0 {
			olderThan = e.cfg.StaleAfter
		}
		if olderThan < time.Minute {
			return fmt.Errorf("--older-than %s would fail imports still running", olderThan)
		}

		n, err := pipeline.NewSweeper(e.store).Sweep(e.ctx, olderThan)
		if err != nil {
			return err
		}
		fmt.Printf("%d declaration(s) marked as failed\n", n)
		return nil
	},
}
