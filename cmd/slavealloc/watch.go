package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/atvirokodosprendimai/slavealloc/internal/messaging"
	"github.com/urfave/cli/v3"
)

func (a *app) watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print allocation events as the server commits them",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "nats-url", Usage: "NATS server the allocator publishes to"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			url := a.cfg.NATS.URL
			if cmd.IsSet("nats-url") {
				url = cmd.String("nats-url")
			}
			if url == "" {
				return errors.New("a NATS url is required; pass --nats-url or set nats.url")
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			nc, err := messaging.Connect(url)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			events := make(chan messaging.AllocationEvent, 64)
			sub, err := messaging.SubscribeAllocations(nc, forwardTo(ctx, events))
			if err != nil {
				return fmt.Errorf("failed to subscribe to allocations: %w", err)
			}
			defer sub.Unsubscribe()
			if err := nc.Flush(); err != nil {
				return err
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case ev := <-events:
					locked := ""
					if ev.Locked {
						locked = " (locked)"
					}
					fmt.Fprintf(a.stdout, "%s %s -> %s (%s:%d)%s\n",
						ev.Timestamp.Format("2006-01-02T15:04:05Z"), ev.Slave, ev.Master, ev.FQDN, ev.Port, locked)
				}
			}
		},
	}
}

// forwardTo hands events to ch until ctx is done. After that events are
// dropped so the subscription goroutine never blocks on a reader that has
// gone away.
func forwardTo(ctx context.Context, ch chan<- messaging.AllocationEvent) func(messaging.AllocationEvent) {
	return func(ev messaging.AllocationEvent) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}
}
