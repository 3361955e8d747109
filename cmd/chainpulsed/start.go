package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tokenize-x/chainpulse/internal/config"
	"github.com/tokenize-x/chainpulse/internal/metrics"
	"github.com/tokenize-x/chainpulse/internal/populate"
	"github.com/tokenize-x/chainpulse/internal/store"
	"github.com/tokenize-x/chainpulse/internal/stuckpackets"
	"github.com/tokenize-x/chainpulse/internal/supervisor"
)

func runStart(cmd *cobra.Command, configPath string) error {
	logger := log.NewLogger(cmd.OutOrStdout())

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.PopulateOnStart {
		for id := range cfg.Chains {
			id := id
			if err := populate.Run(id, db, m, logger.With("chain", id)); err != nil {
				logger.Error("populating metrics at startup", "chain", id, "err", err)
			}
		}
	}

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(m, cfg.Metrics.Port, logger.With("component", "metrics"))
		group.Go(func() error { return server.Run(ctx) })
	}

	if cfg.Metrics.StuckPackets {
		chains := make([]string, 0, len(cfg.Chains))
		for id := range cfg.Chains {
			chains = append(chains, id)
		}
		poller := &stuckpackets.Poller{Chains: chains, Metrics: m, Logger: logger.With("component", "stuckpackets")}
		group.Go(func() error { poller.Run(ctx); return nil })
	}

	sup := supervisor.New(cfg, db, m, logger.With("component", "supervisor"))
	group.Go(func() error { return sup.Run(ctx) })

	logger.Info("chainpulsed started", "config", configPath, "chains", len(cfg.Chains))

	return group.Wait()
}
