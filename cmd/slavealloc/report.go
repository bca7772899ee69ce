package main

import (
	"context"

	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"github.com/atvirokodosprendimai/slavealloc/internal/report"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

func (a *app) silosCommand() *cli.Command {
	return &cli.Command{
		Name:  "silos",
		Usage: "Count slaves in each silo",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "columns", Aliases: []string{"c"}, Usage: "Comma separated columns to group by (default: all)"},
			&cli.StringFlag{Name: "sort", Aliases: []string{"s"}, Usage: "Comma separated sort keys; columns or count"},
			&cli.BoolFlag{Name: "csv", Usage: "Write CSV instead of aligned text"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			columns, err := report.ParseColumns(cmd.String("columns"), report.SiloKeys)
			if err != nil {
				return err
			}
			sortKeys, err := report.ParseColumns(cmd.String("sort"), append(append([]string{}, report.SiloKeys...), "count"))
			if err != nil {
				return err
			}
			return a.withDB(func(gormDB *gorm.DB) error {
				slaves, err := db.DenormalizedSlaves(ctx, gormDB)
				if err != nil {
					return err
				}
				table, err := report.Silos(slaves, columns, sortKeys)
				if err != nil {
					return err
				}
				if cmd.Bool("csv") {
					return report.WriteCSV(a.stdout, table)
				}
				return report.WriteText(a.stdout, table)
			})
		},
	}
}

func (a *app) poolsCommand() *cli.Command {
	return &cli.Command{
		Name:  "pools",
		Usage: "Summarize masters and slaves per pool",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "columns", Aliases: []string{"c"}, Usage: "Comma separated columns to show (pool, nmasters, nslaves, masters)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			columns, err := report.ParseColumns(cmd.String("columns"), report.PoolKeys)
			if err != nil {
				return err
			}
			return a.withDB(func(gormDB *gorm.DB) error {
				slaves, err := db.DenormalizedSlaves(ctx, gormDB)
				if err != nil {
					return err
				}
				masters, err := db.DenormalizedMasters(ctx, gormDB)
				if err != nil {
					return err
				}
				return report.WriteText(a.stdout, report.Pools(slaves, masters, columns))
			})
		},
	}
}
