package supervisor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/tokenize-x/chainpulse/internal/config"
	"github.com/tokenize-x/chainpulse/internal/metrics"
	"github.com/tokenize-x/chainpulse/internal/store"
)

func TestNewSetsChainGauge(t *testing.T) {
	cfg := &config.Config{
		Chains: map[string]*config.Chain{
			"osmosis-1":   {URL: "wss://osmosis.example.com/websocket", CometVersion: config.CometV037},
			"cosmoshub-4": {URL: "wss://cosmoshub.example.com/websocket", CometVersion: config.CometV034},
		},
	}

	db, err := store.Open(filepath.Join(t.TempDir(), "chainpulse.db"), log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := metrics.New()
	s := New(cfg, db, m, log.NewNopLogger())

	require.Len(t, s.chainIDs, 2)
	require.Equal(t, []string{"cosmoshub-4", "osmosis-1"}, s.chainIDs)
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	cfg := &config.Config{
		Chains: map[string]*config.Chain{
			"osmosis-1": {URL: "wss://osmosis.example.com/websocket", CometVersion: config.CometV037},
		},
	}

	db, err := store.Open(filepath.Join(t.TempDir(), "chainpulse.db"), log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(cfg, db, metrics.New(), log.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestCompatFor(t *testing.T) {
	require.Equal(t, "v0.37", string(compatFor(config.CometV037)))
	require.Equal(t, "v0.34", string(compatFor(config.CometV034)))
	require.Equal(t, "v0.34", string(compatFor("")))
}
