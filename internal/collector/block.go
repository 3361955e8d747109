package collector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"cosmossdk.io/log"
	sdktx "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/cosmos/gogoproto/proto"

	"github.com/tokenize-x/chainpulse/internal/classify"
	"github.com/tokenize-x/chainpulse/internal/metrics"
	"github.com/tokenize-x/chainpulse/internal/store"
)

// HandleBlock is the Block Handler of §4.3: given a NewBlock event, it
// fetches the full block, persists every transaction, classifies every
// message, and reconciles the relevant (packet-bearing) ones. A failure on
// one transaction is surfaced as an error for this block; the caller (the
// Chain Collector's receive loop) never exits because of it.
func HandleBlock(ctx context.Context, chainID string, height int64, rpc RPCClient, db *store.Store, m *metrics.Metrics, logger log.Logger) error {
	result, err := rpc.Block(ctx, &height)
	if err != nil {
		return fmt.Errorf("fetching block %d: %w", height, err)
	}

	for _, rawTx := range result.Block.Data.Txs {
		m.ChainpulseTxs(chainID)

		if err := handleTx(chainID, uint64(height), rawTx, db, m, logger); err != nil {
			return fmt.Errorf("processing tx in block %d: %w", height, err)
		}
	}

	return nil
}

func handleTx(chainID string, height uint64, raw []byte, db *store.Store, m *metrics.Metrics, logger log.Logger) error {
	var tx sdktx.Tx
	if err := proto.Unmarshal(raw, &tx); err != nil {
		return fmt.Errorf("decoding tx envelope: %w", err)
	}

	hash := hashTx(raw)

	if tx.Body == nil {
		return fmt.Errorf("tx %s: missing body", hash)
	}

	txRow, err := db.UpsertTx(chainID, height, hash, tx.Body.Memo)
	if err != nil {
		return fmt.Errorf("persisting tx %s: %w", hash, err)
	}

	for _, any := range tx.Body.Messages {
		msg, err := classify.Decode(any)
		if err != nil {
			// Known IBC URL with an undecodable payload is a per-message
			// decode failure; protobuf schema drift is expected and these
			// are silently skipped (§7.5), not a block-level error.
			logger.Debug("skipping message with undecodable payload", "chain", chainID, "type_url", any.TypeUrl, "err", err)
			continue
		}

		if !msg.IsIBC() || !msg.IsRelevant() {
			continue
		}

		m.ChainpulsePackets(chainID)
		logger.Info("packet message", "chain", chainID, "msg", msg.String())

		if err := reconcile(chainID, txRow, msg, db, m, logger); err != nil {
			return fmt.Errorf("reconciling packet in tx %s: %w", hash, err)
		}
	}

	return nil
}

// reconcile implements the packet reconciliation algorithm of §4.4.1.
func reconcile(chainID string, txRow store.TxRow, msg classify.Msg, db *store.Store, m *metrics.Metrics, logger log.Logger) error {
	packet := msg.Packet()
	if packet == nil {
		// Timeout (and friends) with no packet attached: a boundary case
		// (§8) — nothing to reconcile.
		return nil
	}

	signer, _ := msg.Signer()

	identity := store.Identity{
		SrcChannel: packet.SourceChannel,
		SrcPort:    packet.SourcePort,
		DstChannel: packet.DestinationChannel,
		DstPort:    packet.DestinationPort,
		Sequence:   packet.Sequence,
		MsgTypeURL: msg.TypeURL(),
	}

	prior, err := db.FindPacket(identity)
	if err != nil {
		return fmt.Errorf("looking up packet identity: %w", err)
	}

	if prior != nil {
		effectedTx, err := db.LookupTx(prior.TxID)
		if err != nil {
			return fmt.Errorf("looking up effected tx: %w", err)
		}

		logger.Debug("frontrun", "chain", chainID, "sequence", packet.Sequence, "effected_tx", effectedTx.ID)

		m.IBCUneffectedPackets(chainID, identity.SrcChannel, identity.SrcPort, identity.DstChannel, identity.DstPort, signer, txRow.Memo)
		m.IBCFrontrunCounter(chainID, identity.SrcChannel, identity.SrcPort, identity.DstChannel, identity.DstPort, signer, prior.Signer, txRow.Memo, effectedTx.Memo)
	} else {
		m.IBCEffectedPackets(chainID, identity.SrcChannel, identity.SrcPort, identity.DstChannel, identity.DstPort, signer, txRow.Memo)
	}

	return db.RecordPacket(txRow.ID, identity, signer, prior)
}

func hashTx(raw []byte) string {
	sum := sha256.Sum256(raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
