package populate

import (
	"path/filepath"
	"strings"
	"testing"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/tokenize-x/chainpulse/internal/metrics"
	"github.com/tokenize-x/chainpulse/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "chainpulse.db"), log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunReplaysEffectedAndUneffectedPackets(t *testing.T) {
	s := openTestStore(t)

	tx1, err := s.UpsertTx("osmosis-1", 1, "TX1", "alice-memo")
	require.NoError(t, err)
	tx2, err := s.UpsertTx("osmosis-1", 2, "TX2", "bob-memo")
	require.NoError(t, err)

	id := store.Identity{
		SrcChannel: "channel-0", SrcPort: "transfer",
		DstChannel: "channel-141", DstPort: "transfer",
		Sequence: 1, MsgTypeURL: "/ibc.core.channel.v1.MsgRecvPacket",
	}

	require.NoError(t, s.RecordPacket(tx1.ID, id, "alice", nil))

	prior, err := s.FindPacket(id)
	require.NoError(t, err)

	id2 := id
	id2.Sequence = 2
	require.NoError(t, s.RecordPacket(tx2.ID, id2, "bob", prior))

	m := metrics.New()
	require.NoError(t, Run("osmosis-1", s, m, log.NewNopLogger()))

	err = testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP ibc_effected_packets Number of IBC packets that were the first submission to land on chain
# TYPE ibc_effected_packets counter
ibc_effected_packets{chain_id="osmosis-1",dst_channel="channel-141",dst_port="transfer",memo="alice-memo",signer="alice",src_channel="channel-0",src_port="transfer"} 1
# HELP ibc_uneffected_packets Number of IBC packets that landed after another relayer already effected them
# TYPE ibc_uneffected_packets counter
ibc_uneffected_packets{chain_id="osmosis-1",dst_channel="channel-141",dst_port="transfer",memo="bob-memo",signer="bob",src_channel="channel-0",src_port="transfer"} 1
# HELP ibc_frontrun_counter Number of times a signer was frontrun by another signer's submission
# TYPE ibc_frontrun_counter counter
ibc_frontrun_counter{chain_id="osmosis-1",dst_channel="channel-141",dst_port="transfer",effected_memo="alice-memo",frontrunned_by="alice",memo="bob-memo",signer="bob",src_channel="channel-0",src_port="transfer"} 1
`), "ibc_effected_packets", "ibc_uneffected_packets", "ibc_frontrun_counter")
	require.NoError(t, err)
}

func TestRunOnEmptyChainIsANoOp(t *testing.T) {
	s := openTestStore(t)
	m := metrics.New()
	require.NoError(t, Run("nonexistent-1", s, m, log.NewNopLogger()))
}
