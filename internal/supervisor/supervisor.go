// Package supervisor spawns and owns one Collector per configured chain
// (§4.5 of the design).
package supervisor

import (
	"context"
	"sort"

	"cosmossdk.io/log"
	"golang.org/x/sync/errgroup"

	"github.com/tokenize-x/chainpulse/internal/collector"
	"github.com/tokenize-x/chainpulse/internal/config"
	"github.com/tokenize-x/chainpulse/internal/metrics"
	"github.com/tokenize-x/chainpulse/internal/store"
)

// Supervisor owns the full set of per-chain collectors and runs them as
// independent failure domains: one chain's collector never takes down
// another's (§5 "Isolation").
type Supervisor struct {
	chainIDs []string
	chains   map[string]*config.Chain
	store    *store.Store
	metrics  *metrics.Metrics
	logger   log.Logger
}

// New builds a Supervisor from a loaded Config. Chain ids are sorted once
// here so collector startup order (and the logs it produces) is stable
// across restarts despite cfg.Chains being decoded from TOML into a
// plain, iteration-order-randomized Go map.
func New(cfg *config.Config, db *store.Store, m *metrics.Metrics, logger log.Logger) *Supervisor {
	ids := make([]string, 0, len(cfg.Chains))
	for id := range cfg.Chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	m.SetChains(len(ids))

	return &Supervisor{
		chainIDs: ids,
		chains:   cfg.Chains,
		store:    db,
		metrics:  m,
		logger:   logger,
	}
}

// Run starts one Collector per configured chain and blocks until ctx is
// canceled or a collector returns a non-recoverable error. A Collector's Run
// method never itself returns an error (every failure is retried internally
// per §4.4), so in practice Run blocks until shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, id := range s.chainIDs {
		id := id
		chain := s.chains[id]
		c := &collector.Collector{
			ChainID: id,
			WSURL:   chain.URL,
			Compat:  compatFor(chain.CometVersion),
			Store:   s.store,
			Metrics: s.metrics,
			Logger:  s.logger.With("chain", id),
		}

		group.Go(func() error {
			c.Run(ctx)
			return nil
		})
	}

	s.logger.Info("supervisor started", "chains", len(s.chainIDs))

	return group.Wait()
}

// compatFor maps the config schema's comet_version strings onto the
// collector's RPC compatibility mode.
func compatFor(v config.CometVersion) collector.CompatMode {
	if v == config.CometV037 {
		return collector.CompatV037
	}
	return collector.CompatV034
}
