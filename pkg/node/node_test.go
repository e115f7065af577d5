package node_test

import (
	"context"
	"testing"
	"time"

	clock "github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/config"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/fhe"
	"github.com/gnosisguild/enclave-sub005/pkg/node"
)

var nodeParams = fhe.Params{
	Degree:           512,
	PlaintextModulus: 65537,
	Moduli:           []uint64{0x7fffffd8001},
	EsiPerCt:         1,
}

func newTestNode(t *testing.T) *node.Node {
	t.Helper()
	cfg := config.NewConfig(
		config.WithStorageEngine(config.StorageEngineMemory),
		config.WithControlPort("0"),
		config.WithListenAddress("127.0.0.1:0"),
		config.WithClock(clock.NewFakeClock()), // sync quiescence never fires on its own
	)
	n, err := node.New(context.Background(), node.Options{
		Config:         cfg,
		Local:          "0xa",
		SealPassphrase: []byte("node-test-pass"),
		HistoryCapture: true,
	})
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() { n.Stop(context.Background()) })
	return n
}

func (h *historyHelper) count(k events.Kind) int {
	n := 0
	for _, ev := range h.n.Bus().History() {
		if ev.Kind() == k {
			n++
		}
	}
	return n
}

type historyHelper struct{ n *node.Node }

func (h *historyHelper) waitFor(t *testing.T, k events.Kind, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.count(k) >= want },
		5*time.Second, 10*time.Millisecond, "waiting for %d %s", want, k)
}

func TestNodeRunsFullCeremony(t *testing.T) {
	n := newTestNode(t)
	h := &historyHelper{n: n}
	id := events.E3id{ChainID: 1, ID: "7"}

	for _, addr := range []string{"0xa", "0xb", "0xc", "0xd", "0xe"} {
		require.NoError(t, n.Submit(events.CiphernodeAdded{ChainID: 1, Address: addr}))
	}
	h.waitFor(t, events.KindCiphernodeAdded, 5)

	req := events.E3Requested{Seed: events.Seed{1}, ThresholdM: 3, ThresholdN: 5, Params: fhe.EncodeParams(nodeParams)}
	req.Id = id
	require.NoError(t, n.Submit(req))
	cr := events.CommitteeRequested{Seed: events.Seed{1}}
	cr.Id = id
	require.NoError(t, n.Submit(cr))

	h.waitFor(t, events.KindCommitteeFinalized, 1)
	// T0 proof round-trips through the pool and the local share goes out
	h.waitFor(t, events.KindThresholdShareCreated, 1)
	h.waitFor(t, events.KindKeyshareCreated, 1)

	var localParty uint64
	var committee []string
	for _, ev := range n.Bus().History() {
		if fin, ok := ev.Payload.(events.CommitteeFinalized); ok {
			committee = fin.Nodes
			c := events.Committee{ThresholdM: 3, ThresholdN: 5, Nodes: fin.Nodes}
			localParty = c.PartyIdOf("0xa")
		}
	}
	require.NotZero(t, localParty)

	// two remote parties complete Exchange #1
	var mock fhe.Mock
	remotes := 0
	for party := uint64(1); party <= 5 && remotes < 2; party++ {
		if party == localParty {
			continue
		}
		pk, sk, esi, err := mock.GenerateThresholdShare(nodeParams, party, 3, 5)
		require.NoError(t, err)
		share := events.ThresholdShareCreated{PartyId: party, PkShare: pk, SkSSS: sk, EsiSSS: esi}
		share.Id = id
		require.NoError(t, n.Submit(share))
		remotes++
	}
	h.waitFor(t, events.KindThresholdShareCreated, 3)

	// the remaining members publish key shares: aggregation at n=5
	for _, addr := range committee {
		if addr == "0xa" {
			continue
		}
		ks := events.KeyshareCreated{Node: addr, PubKey: []byte("pk-" + addr)}
		ks.Id = id
		require.NoError(t, n.Submit(ks))
	}
	h.waitFor(t, events.KindPublicKeyAggregated, 1)
	h.waitFor(t, events.KindCommitteePublished, 1)

	ct := events.CiphertextOutputPublished{Ciphertext: []byte{0xde, 0xad}}
	ct.Id = id
	require.NoError(t, n.Submit(ct))
	h.waitFor(t, events.KindDecryptionKeyShared, 1)
	h.waitFor(t, events.KindDecryptionshareCreated, 1)

	for _, addr := range []string{"0xr1", "0xr2"} {
		ds := events.DecryptionshareCreated{Node: addr, Share: []byte("s-" + addr)}
		ds.Id = id
		require.NoError(t, n.Submit(ds))
	}
	h.waitFor(t, events.KindPlaintextAggregated, 1)
	h.waitFor(t, events.KindPlaintextOutputPublished, 1)
	h.waitFor(t, events.KindE3RequestComplete, 1)
}

func TestNodeDeduplicatesRepeatedRequests(t *testing.T) {
	n := newTestNode(t)
	h := &historyHelper{n: n}
	id := events.E3id{ChainID: 1, ID: "dup"}

	req := events.E3Requested{Seed: events.Seed{9}, ThresholdM: 2, ThresholdN: 3, Params: fhe.EncodeParams(nodeParams)}
	req.Id = id
	require.NoError(t, n.Submit(req))
	require.NoError(t, n.Submit(req))

	h.waitFor(t, events.KindE3Requested, 1)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, h.count(events.KindE3Requested), "same payload must sequence once (P2)")
}

func TestNodeControlStatus(t *testing.T) {
	n := newTestNode(t)
	st, err := n.Status(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, st.Armed)
}
