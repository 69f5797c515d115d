package main

import (
	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Create the storage tables",
	Action: func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.Migrate(e.ctx); err != nil {
			return err
		}
		e.log.Info().Str("backend", e.cfg.StorageBackend).Msg("Migrations applied")
		return nil
	},
}
