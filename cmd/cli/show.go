package main

import (
	"fmt"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

var showCommand = &cli.Command{
	Name:  "show",
	Usage: "Print declarations of the account, or one declaration with its income lines",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "id",
			Usage: "Declaration ID",
		},
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "Include the stored extraction payload",
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
		if id == "" {
			decls, err := e.store.ListDeclarations(e.ctx, account)
			if err != nil {
				return err
			}
			for _, d := range decls {
				fmt.Printf("%s\t%d\t%s\t%s\t%d\n", d.ID, d.TaxYear, d.CreatedAt.Format("2006-01-02 15:04"), d.Status, d.TotalInserted())
			}
			return nil
		}

		decl, err := e.store.GetDeclaration(e.ctx, account, id)
		if err != nil {
			return fmt.Errorf("declaration %s: %w", id, err)
		}
		if !c.Bool("raw") {
			decl.RawPayload = nil
		}
		income, err := e.store.ListIncomeItems(e.ctx, account, id)
		if err != nil {
			return err
		}

		pp.Println(decl)
		pp.Println(income)
		return nil
	},
}
