package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/atvirokodosprendimai/slavealloc/internal/allocator"
	"github.com/atvirokodosprendimai/slavealloc/internal/tac"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

func (a *app) gettacCommand() *cli.Command {
	return &cli.Command{
		Name:      "gettac",
		Usage:     "Allocate slaves and print their buildbot.tac",
		ArgsUsage: "SLAVE...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "noop", Aliases: []string{"n"}, Usage: "Don't record the allocation"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Don't print the tac file; just the allocation made"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return errors.New("at least one slave name is required")
			}
			names := cmd.Args().Slice()
			for _, n := range names {
				if _, err := slaveArg(n); err != nil {
					return err
				}
			}
			noop, quiet := cmd.Bool("noop"), cmd.Bool("quiet")

			return a.withDB(func(gormDB *gorm.DB) error {
				alloc := allocator.New(gormDB)
				renderer := tac.NewRenderer()
				for _, name := range names {
					var (
						allocation *allocator.Allocation
						err        error
					)
					if noop {
						allocation, err = alloc.Resolve(ctx, name)
					} else {
						allocation, err = alloc.Allocate(ctx, name)
					}
					if err != nil {
						return fmt.Errorf("no buildbot.tac available for '%s': %w", name, err)
					}

					if !quiet {
						text, err := renderer.Render(allocation)
						if err != nil {
							return err
						}
						fmt.Fprint(a.stdout, text)
					}
					if allocation.Disabled() {
						a.errorf("Slave '%s' is disabled; no allocation made", name)
						continue
					}
					verb := "Allocated"
					if noop {
						verb = "Would allocate"
					}
					a.errorf("%s '%s' to '%s' (%s:%d)", verb, name,
						allocation.MasterNickname, allocation.MasterFQDN, allocation.MasterPBPort)
				}
				return nil
			})
		},
	}
}

func (a *app) lockCommand() *cli.Command {
	return &cli.Command{
		Name:      "lock",
		Usage:     "Lock a slave to a particular master",
		ArgsUsage: "SLAVE MASTER",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			slave, err := slaveArg(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			master := cmd.Args().Get(1)
			if master == "" {
				return errors.New("master name is required to lock")
			}
			return a.withDB(func(gormDB *gorm.DB) error {
				m, err := allocator.New(gormDB).Lock(ctx, slave, master)
				if err != nil {
					return err
				}
				a.errorf("Locked '%s' to '%s' (%s:%d)", slave, m.Nickname, m.FQDN, m.PBPort)
				return nil
			})
		},
	}
}

func (a *app) unlockCommand() *cli.Command {
	return &cli.Command{
		Name:      "unlock",
		Usage:     "Unlock a locked slave",
		ArgsUsage: "SLAVE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			slave, err := slaveArg(cmd.Args().First())
			if err != nil {
				return err
			}
			return a.withDB(func(gormDB *gorm.DB) error {
				if err := allocator.New(gormDB).Unlock(ctx, slave); err != nil {
					return err
				}
				a.errorf("Slave '%s' unlocked", slave)
				return nil
			})
		},
	}
}

func (a *app) disableCommand() *cli.Command {
	return &cli.Command{
		Name:      "disable",
		Usage:     "Disable a slave, preventing it from starting",
		ArgsUsage: "SLAVE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.setEnabled(ctx, cmd, false)
		},
	}
}

func (a *app) enableCommand() *cli.Command {
	return &cli.Command{
		Name:      "enable",
		Usage:     "Enable a disabled slave",
		ArgsUsage: "SLAVE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.setEnabled(ctx, cmd, true)
		},
	}
}

func (a *app) setEnabled(ctx context.Context, cmd *cli.Command, enabled bool) error {
	slave, err := slaveArg(cmd.Args().First())
	if err != nil {
		return err
	}
	state := map[bool]string{true: "enabled", false: "disabled"}[enabled]
	return a.withDB(func(gormDB *gorm.DB) error {
		changed, err := allocator.New(gormDB).SetEnabled(ctx, slave, enabled)
		if err != nil {
			return err
		}
		if !changed {
			a.errorf("Slave '%s' is already %s", slave, state)
			return nil
		}
		a.errorf("Slave '%s' %s", slave, state)
		return nil
	})
}

func (a *app) templateCommand() *cli.Command {
	return &cli.Command{
		Name:      "template",
		Usage:     "Set or clear a master's buildbot.tac template override",
		ArgsUsage: "MASTER",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Go text/template file to use as the tac body"},
			&cli.BoolFlag{Name: "clear", Usage: "Restore the built-in tac body"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			master := cmd.Args().First()
			if master == "" {
				return errors.New("master name is required")
			}
			file, reset := cmd.String("file"), cmd.Bool("clear")
			if (file == "") == !reset {
				return errors.New("exactly one of --file or --clear is required")
			}

			var body string
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read template: %w", err)
				}
				if _, err := tac.ParseOverride(string(data)); err != nil {
					return err
				}
				body = string(data)
			}

			return a.withDB(func(gormDB *gorm.DB) error {
				if err := allocator.New(gormDB).SetMasterTemplate(ctx, master, body); err != nil {
					return err
				}
				if reset {
					a.errorf("Cleared tac template for '%s'", master)
				} else {
					a.errorf("Set tac template for '%s' from %s", master, file)
				}
				return nil
			})
		},
	}
}
