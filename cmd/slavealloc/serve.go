package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/atvirokodosprendimai/slavealloc/internal/allocator"
	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"github.com/atvirokodosprendimai/slavealloc/internal/log"
	"github.com/atvirokodosprendimai/slavealloc/internal/messaging"
	"github.com/atvirokodosprendimai/slavealloc/internal/server"
	"github.com/atvirokodosprendimai/slavealloc/internal/tac"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
)

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve buildbot.tac files over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "http-addr", Usage: "HTTP server bind address (default 0.0.0.0:8010)"},
			&cli.StringFlag{Name: "nats-url", Usage: "Publish allocation events to this NATS server"},
			&cli.StringFlag{Name: "nats-embedded-addr", Usage: "Start an embedded NATS server on host:port and publish to it"},
		},
		Action: a.runServe,
	}
}

func (a *app) runServe(ctx context.Context, cmd *cli.Command) error {
	cfg := a.cfg
	if cmd.IsSet("http-addr") {
		cfg.HTTP.Addr = cmd.String("http-addr")
	}
	if cmd.IsSet("nats-url") {
		cfg.NATS.URL = cmd.String("nats-url")
	}
	if cmd.IsSet("nats-embedded-addr") {
		cfg.NATS.EmbeddedAddr = cmd.String("nats-embedded-addr")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Logger.Info().Str("db", cfg.Database.Path).Msg("starting slavealloc server")
	gormDB, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	var opts []allocator.Option
	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedAddr != "" {
		ns, err := messaging.StartEmbedded(cfg.NATS.EmbeddedAddr)
		if err != nil {
			return err
		}
		defer ns.Shutdown()
		natsURL = ns.ClientURL()
	}
	if natsURL != "" {
		var nc *nats.Conn
		nc, err = messaging.Connect(natsURL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()
		opts = append(opts, allocator.WithPublisher(messaging.NewPublisher(nc)))
	}

	alloc := allocator.New(gormDB, opts...)
	router := server.NewRouter(gormDB, alloc, tac.NewRenderer())
	return server.ListenAndServe(ctx, cfg.HTTP.Addr, router)
}
