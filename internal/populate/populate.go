// Package populate re-hydrates the in-process Prometheus counters from the
// packet store's history at startup, so a restarted process doesn't report
// zeroed counters for packets it already observed in a prior run (§4.6 of
// the design).
package populate

import (
	"time"

	"cosmossdk.io/log"

	"github.com/tokenize-x/chainpulse/internal/metrics"
	"github.com/tokenize-x/chainpulse/internal/store"
)

// Run replays every stored packet for chain through the metrics pipeline.
func Run(chain string, db *store.Store, m *metrics.Metrics, logger log.Logger) error {
	logger.Info("populating metrics from store", "chain", chain)
	start := time.Now()

	packets, err := db.ListPacketsByChain(chain)
	if err != nil {
		return err
	}

	seenTxs := make(map[int64]bool)

	for _, packet := range packets {
		m.ChainpulsePackets(chain)

		tx, err := db.LookupTx(packet.TxID)
		if err != nil {
			return err
		}

		if !seenTxs[tx.ID] {
			m.ChainpulseTxs(chain)
			seenTxs[tx.ID] = true
		}

		if packet.Effected {
			m.IBCEffectedPackets(chain, packet.SrcChannel, packet.SrcPort, packet.DstChannel, packet.DstPort, packet.Signer, tx.Memo)
			continue
		}

		effectedSigner := ""
		if packet.EffectedSigner != nil {
			effectedSigner = *packet.EffectedSigner
		}

		effectedMemo := ""
		if packet.EffectedTx != nil {
			effectedTx, err := db.LookupTx(*packet.EffectedTx)
			if err != nil {
				return err
			}
			effectedMemo = effectedTx.Memo
		}

		m.IBCUneffectedPackets(chain, packet.SrcChannel, packet.SrcPort, packet.DstChannel, packet.DstPort, packet.Signer, tx.Memo)
		m.IBCFrontrunCounter(chain, packet.SrcChannel, packet.SrcPort, packet.DstChannel, packet.DstPort, packet.Signer, effectedSigner, tx.Memo, effectedMemo)
	}

	logger.Info("populated metrics", "chain", chain, "elapsed", time.Since(start))
	return nil
}
