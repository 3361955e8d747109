// Package metrics holds the Prometheus metric families chainpulse exports
// and the small HTTP server that exposes them (§6 of the design).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the process-wide metrics registry. It is constructed once in
// main and passed explicitly to every collector — never kept as an ambient
// singleton (see "Global state" in the design notes).
type Metrics struct {
	registry *prometheus.Registry

	ibcEffectedPackets   *prometheus.CounterVec
	ibcUneffectedPackets *prometheus.CounterVec
	ibcFrontrunCounter   *prometheus.CounterVec
	ibcStuckPackets      *prometheus.GaugeVec

	chainpulseChains     prometheus.Gauge
	chainpulseTxs        *prometheus.CounterVec
	chainpulsePackets    *prometheus.CounterVec
	chainpulseReconnects *prometheus.CounterVec
	chainpulseTimeouts   *prometheus.CounterVec
	chainpulseErrors     *prometheus.CounterVec
}

// New builds a Metrics instance wired to a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ibcEffectedPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ibc_effected_packets",
			Help: "Number of IBC packets that were the first submission to land on chain",
		}, []string{"chain_id", "src_channel", "src_port", "dst_channel", "dst_port", "signer", "memo"}),

		ibcUneffectedPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ibc_uneffected_packets",
			Help: "Number of IBC packets that landed after another relayer already effected them",
		}, []string{"chain_id", "src_channel", "src_port", "dst_channel", "dst_port", "signer", "memo"}),

		ibcFrontrunCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ibc_frontrun_counter",
			Help: "Number of times a signer was frontrun by another signer's submission",
		}, []string{"chain_id", "src_channel", "src_port", "dst_channel", "dst_port", "signer", "frontrunned_by", "memo", "effected_memo"}),

		ibcStuckPackets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ibc_stuck_packets",
			Help: "Number of packets queued on a channel but not yet relayed",
		}, []string{"src_chain", "dst_chain", "src_channel"}),

		chainpulseChains: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chainpulse_chains",
			Help: "Number of chains being monitored",
		}),

		chainpulseTxs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainpulse_txs",
			Help: "Number of transactions processed",
		}, []string{"chain_id"}),

		chainpulsePackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainpulse_packets",
			Help: "Number of IBC packets processed",
		}, []string{"chain_id"}),

		chainpulseReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainpulse_reconnects",
			Help: "Number of times a chain collector reconnected",
		}, []string{"chain_id"}),

		chainpulseTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainpulse_timeouts",
			Help: "Number of times a chain collector timed out waiting for a new block",
		}, []string{"chain_id"}),

		chainpulseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainpulse_errors",
			Help: "Number of block-processing errors encountered",
		}, []string{"chain_id"}),
	}

	registry.MustRegister(
		m.ibcEffectedPackets,
		m.ibcUneffectedPackets,
		m.ibcFrontrunCounter,
		m.ibcStuckPackets,
		m.chainpulseChains,
		m.chainpulseTxs,
		m.chainpulsePackets,
		m.chainpulseReconnects,
		m.chainpulseTimeouts,
		m.chainpulseErrors,
	)

	return m
}

// Registry returns the underlying Prometheus registry, for the exposition
// server.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetChains sets the chainpulse_chains gauge to the number of configured
// chains. Called once at startup by the Supervisor.
func (m *Metrics) SetChains(n int) {
	m.chainpulseChains.Set(float64(n))
}

func (m *Metrics) IBCEffectedPackets(chainID, srcChannel, srcPort, dstChannel, dstPort, signer, memo string) {
	m.ibcEffectedPackets.WithLabelValues(chainID, srcChannel, srcPort, dstChannel, dstPort, signer, memo).Inc()
}

func (m *Metrics) IBCUneffectedPackets(chainID, srcChannel, srcPort, dstChannel, dstPort, signer, memo string) {
	m.ibcUneffectedPackets.WithLabelValues(chainID, srcChannel, srcPort, dstChannel, dstPort, signer, memo).Inc()
}

func (m *Metrics) IBCFrontrunCounter(chainID, srcChannel, srcPort, dstChannel, dstPort, signer, frontrunnedBy, memo, effectedMemo string) {
	m.ibcFrontrunCounter.WithLabelValues(chainID, srcChannel, srcPort, dstChannel, dstPort, signer, frontrunnedBy, memo, effectedMemo).Inc()
}

func (m *Metrics) IBCStuckPackets(srcChain, dstChain, srcChannel string, n int64) {
	m.ibcStuckPackets.WithLabelValues(srcChain, dstChain, srcChannel).Set(float64(n))
}

func (m *Metrics) ChainpulseTxs(chainID string) {
	m.chainpulseTxs.WithLabelValues(chainID).Inc()
}

func (m *Metrics) ChainpulsePackets(chainID string) {
	m.chainpulsePackets.WithLabelValues(chainID).Inc()
}

func (m *Metrics) ChainpulseReconnects(chainID string) {
	m.chainpulseReconnects.WithLabelValues(chainID).Inc()
}

func (m *Metrics) ChainpulseTimeouts(chainID string) {
	m.chainpulseTimeouts.WithLabelValues(chainID).Inc()
}

func (m *Metrics) ChainpulseErrors(chainID string) {
	m.chainpulseErrors.WithLabelValues(chainID).Inc()
}
