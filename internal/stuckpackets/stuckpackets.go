// Package stuckpackets polls a third-party IBC channel-status feed and
// republishes, per monitored chain, the queue depth of packets submitted but
// not yet relayed. This supplements the core packet-observation pipeline: it
// is the only component in this module that looks outside the chains being
// collected (§8 of the design, "external stuck-packet visibility").
package stuckpackets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"cosmossdk.io/log"

	"github.com/tokenize-x/chainpulse/internal/metrics"
)

const (
	statusURL      = "https://api-osmosis.imperator.co/ibc/v1/raw"
	pollInterval   = 60 * time.Second
	errorBackoff   = 120 * time.Second
	requestTimeout = 30 * time.Second
)

// channelStatus is one queue-depth observation for a single channel,
// attributed to its source and destination chain.
type channelStatus struct {
	SrcChain   string
	DstChain   string
	SrcChannel string
	SizeQueue  int64
}

// rawStatus is the status payload of one upstream feed entry; each entry is
// a map with exactly one key (the human-readable channel description) to
// this payload.
type rawStatus struct {
	Name      string `json:"name"`
	TokenName string `json:"token_name"`
	LastTx    string `json:"last_tx"`
	Counter   int64  `json:"counter"`
	SizeQueue int64  `json:"size_queue"`
	IsTrigger bool   `json:"is_trigger"`
}

// Poller periodically fetches the feed and updates ibc_stuck_packets for
// every channel touching a monitored chain.
type Poller struct {
	Chains  []string
	Metrics *metrics.Metrics
	Logger  log.Logger

	httpClient *http.Client
	url        string // overridden in tests; defaults to statusURL
}

// Run polls until ctx is canceled. A fetch failure is logged and followed by
// a longer backoff rather than tearing down the poller (§4.4's "never
// terminate on a recoverable error" applies here too).
func (p *Poller) Run(ctx context.Context) {
	client := p.httpClient
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}

	url := p.url
	if url == "" {
		url = statusURL
	}

	monitored := make(map[string]bool, len(p.Chains))
	for _, c := range p.Chains {
		monitored[c] = true
	}

	for {
		statuses, err := fetchStatus(ctx, client, url)
		if err != nil {
			p.Logger.Error("fetching stuck packet status", "err", err)
			if !sleepOrDone(ctx, errorBackoff) {
				return
			}
			continue
		}

		stuck := make([]channelStatus, 0, len(statuses))
		for _, s := range statuses {
			if s.SizeQueue <= 0 {
				continue
			}
			if !monitored[s.SrcChain] && !monitored[s.DstChain] {
				continue
			}
			stuck = append(stuck, s)
		}

		sort.Slice(stuck, func(i, j int) bool { return stuck[i].SizeQueue > stuck[j].SizeQueue })

		p.Logger.Info("stuck packet channels", "count", len(stuck))
		for _, s := range stuck {
			p.Metrics.IBCStuckPackets(s.SrcChain, s.DstChain, s.SrcChannel, s.SizeQueue)
			p.Logger.Info("stuck packets",
				"src_chain", s.SrcChain, "src_channel", s.SrcChannel, "dst_chain", s.DstChain, "size_queue", s.SizeQueue)
		}

		if !sleepOrDone(ctx, pollInterval) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func fetchStatus(ctx context.Context, client *http.Client, url string) ([]channelStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var entries []map[string]rawStatus
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding response body: %w", err)
	}

	out := make([]channelStatus, 0, len(entries))
	for _, entry := range entries {
		if len(entry) != 1 {
			continue
		}
		for desc, status := range entry {
			srcChain, srcChannel, dstChain, err := parseDescription(desc)
			if err != nil {
				// Malformed description in the upstream feed: skip this
				// entry rather than aborting the whole poll.
				continue
			}
			out = append(out, channelStatus{
				SrcChain:   srcChain,
				DstChain:   dstChain,
				SrcChannel: srcChannel,
				SizeQueue:  status.SizeQueue,
			})
		}
	}

	return out, nil
}
