package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/atvirokodosprendimai/slavealloc/internal/seed"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

func (a *app) dbinitCommand() *cli.Command {
	return &cli.Command{
		Name:  "dbinit",
		Usage: "Reset the database and load it from CSV files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "slave-data", Required: true, Usage: "CSV file of slaves"},
			&cli.StringFlag{Name: "master-data", Required: true, Usage: "CSV file of masters"},
			&cli.StringFlag{Name: "password-data", Usage: "CSV file of slave passwords"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var (
				roster seed.Roster
				err    error
			)
			roster.Slaves, err = readCSV(cmd.String("slave-data"), seed.ReadSlaves)
			if err != nil {
				return err
			}
			roster.Masters, err = readCSV(cmd.String("master-data"), seed.ReadMasters)
			if err != nil {
				return err
			}
			if path := cmd.String("password-data"); path != "" {
				roster.Passwords, err = readCSV(path, seed.ReadPasswords)
				if err != nil {
					return err
				}
			}

			return a.withDB(func(gormDB *gorm.DB) error {
				sum, err := seed.Load(ctx, gormDB, roster)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "loaded %d slaves, %d masters, %d passwords in %d pools\n",
					sum.Slaves, sum.Masters, sum.Passwords, sum.Pools)
				return nil
			})
		},
	}
}

func readCSV[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
