// Package collector owns one chain's event-subscription lifetime: the
// resilient WebSocket connect/subscribe/stream/rotate loop of §4.4, and the
// Block Handler dispatch of §4.3.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/log"
	"github.com/cometbft/cometbft/types"
	"github.com/google/uuid"

	"github.com/tokenize-x/chainpulse/internal/metrics"
	"github.com/tokenize-x/chainpulse/internal/store"
)

const (
	newBlockTimeout  = 60 * time.Second
	disconnectAfter  = 100
	reconnectBackoff = 5 * time.Second
	newBlockQuery    = "tm.event='NewBlock'"
)

// outcome is why a streaming session ended; it is always non-fatal and
// always results in a rotate-and-reconnect.
type outcome struct {
	reason string
}

func (o outcome) String() string { return o.reason }

func timeoutOutcome(d time.Duration) outcome {
	return outcome{reason: fmt.Sprintf("timed out after %s waiting for a NewBlock event", d)}
}

func blockElapsedOutcome(n int) outcome {
	return outcome{reason: fmt.Sprintf("disconnecting after %d blocks", n)}
}

// Collector owns the connect/subscribe/stream/rotate state machine for one
// chain (§4.4).
type Collector struct {
	ChainID string
	WSURL   string
	Compat  CompatMode

	Store   *store.Store
	Metrics *metrics.Metrics
	Logger  log.Logger

	Dial Dialer // defaults to DialCometBFT when nil
}

// Run loops forever: connect, subscribe, stream until rotate/error, sleep,
// repeat. It only returns when ctx is canceled (process shutdown, §5
// "Cancellation").
func (c *Collector) Run(ctx context.Context) {
	dial := c.Dial
	if dial == nil {
		dial = DialCometBFT
	}

	for {
		if ctx.Err() != nil {
			return
		}

		result, err := c.collectOnce(ctx, dial)
		if err != nil {
			c.Metrics.ChainpulseErrors(c.ChainID)
			c.Logger.Error("collector error", "chain", c.ChainID, "err", err)
		} else {
			c.Logger.Warn("rotating", "chain", c.ChainID, "reason", result.String())
		}

		c.Metrics.ChainpulseReconnects(c.ChainID)

		c.Logger.Info("reconnecting", "chain", c.ChainID, "in", reconnectBackoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

// collectOnce runs one DISCONNECTED → SUBSCRIBING → STREAMING session to
// completion and reports why it ended.
func (c *Collector) collectOnce(ctx context.Context, dial Dialer) (outcome, error) {
	c.Logger.Info("connecting", "chain", c.ChainID, "url", c.WSURL, "compat", c.Compat)

	client, err := dial(c.WSURL, c.Compat)
	if err != nil {
		return outcome{}, fmt.Errorf("connect: %w", err)
	}

	if err := client.Start(); err != nil {
		return outcome{}, fmt.Errorf("starting client: %w", err)
	}
	defer func() {
		if err := client.Stop(); err != nil {
			c.Logger.Debug("error stopping client", "chain", c.ChainID, "err", err)
		}
	}()

	subscriber := "chainpulse-" + uuid.NewString()

	c.Logger.Info("subscribing to NewBlock events", "chain", c.ChainID)
	events, err := client.Subscribe(ctx, subscriber, newBlockQuery)
	if err != nil {
		return outcome{}, fmt.Errorf("subscribe: %w", err)
	}
	defer func() {
		unsubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Unsubscribe(unsubCtx, subscriber, newBlockQuery); err != nil {
			c.Logger.Debug("error unsubscribing", "chain", c.ChainID, "err", err)
		}
	}()

	c.Logger.Info("waiting for new blocks", "chain", c.ChainID)

	count := 0
	for {
		select {
		case <-ctx.Done():
			return outcome{}, nil

		case <-time.After(newBlockTimeout):
			c.Metrics.ChainpulseTimeouts(c.ChainID)
			return timeoutOutcome(newBlockTimeout), nil

		case event, ok := <-events:
			if !ok {
				return outcome{}, errors.New("event subscription closed")
			}

			count++

			block, ok := event.Data.(types.EventDataNewBlock)
			if !ok || block.Block == nil {
				// Non-terminal: an undecodable or unexpected frame on this
				// subscription continues the loop without incrementing
				// the processed-block count (§4.4).
				count--
				continue
			}

			height := block.Block.Header.Height
			c.Logger.Info("new block", "chain", c.ChainID, "height", height)

			client := client // capture for the detached task
			go func() {
				if err := HandleBlock(context.Background(), c.ChainID, height, client, c.Store, c.Metrics, c.Logger); err != nil {
					c.Metrics.ChainpulseErrors(c.ChainID)
					c.Logger.Error("block processing error", "chain", c.ChainID, "height", height, "err", err)
				}
			}()

			if count >= disconnectAfter {
				return blockElapsedOutcome(count), nil
			}
		}
	}
}
