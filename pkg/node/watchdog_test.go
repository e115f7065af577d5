package node

import (
	stdsync "sync"
	"testing"
	"time"

	clock "github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/hlc"
)

type submitRecorder struct {
	mu  stdsync.Mutex
	got []events.Unsequenced
}

func (r *submitRecorder) submit(u events.Unsequenced) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, u)
	return nil
}

func (r *submitRecorder) all() []events.Unsequenced {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Unsequenced(nil), r.got...)
}

func sealEv(p events.Payload, seq uint64) events.Event {
	u := events.Unsequenced{Payload: p}
	return events.Seal(u, u.Id(), seq, hlc.Timestamp{Wall: seq})
}

func TestWatchdogFailsStalledAggregation(t *testing.T) {
	fc := clock.NewFakeClock()
	rec := &submitRecorder{}
	w := newWatchdog(fc, time.Minute, rec.submit)

	id := events.E3id{ChainID: 1, ID: "stall"}
	fin := events.CommitteeFinalized{Nodes: []string{"a", "b"}, ThresholdM: 2, ThresholdN: 2}
	fin.Id = id
	w.observe(sealEv(fin, 1))

	fc.BlockUntil(1)
	fc.Advance(time.Minute)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	failed, ok := rec.all()[0].Payload.(events.E3Failed)
	require.True(t, ok)
	require.Equal(t, events.FailureStageKeyPublished, failed.Stage)
	require.Equal(t, events.ReasonInsufficientCommitteeMembers, failed.Reason)
}

func TestWatchdogDisarmedByProgress(t *testing.T) {
	fc := clock.NewFakeClock()
	rec := &submitRecorder{}
	w := newWatchdog(fc, time.Minute, rec.submit)

	id := events.E3id{ChainID: 1, ID: "ok"}
	fin := events.CommitteeFinalized{Nodes: []string{"a", "b"}, ThresholdM: 2, ThresholdN: 2}
	fin.Id = id
	w.observe(sealEv(fin, 1))
	fc.BlockUntil(1)

	agg := events.PublicKeyAggregated{PublicKey: []byte("joint")}
	agg.Id = id
	w.observe(sealEv(agg, 2))

	fc.Advance(2 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, rec.all(), "disarmed watchdog must not fail the ceremony")
}

func TestWatchdogDecryptionDeadline(t *testing.T) {
	fc := clock.NewFakeClock()
	rec := &submitRecorder{}
	w := newWatchdog(fc, 30*time.Second, rec.submit)

	id := events.E3id{ChainID: 1, ID: "slow-dec"}
	ct := events.CiphertextOutputPublished{Ciphertext: []byte{1}}
	ct.Id = id
	w.observe(sealEv(ct, 1))

	fc.BlockUntil(1)
	fc.Advance(30 * time.Second)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	failed := rec.all()[0].Payload.(events.E3Failed)
	require.Equal(t, events.FailureStageDecryptionTimeout, failed.Stage)
	require.Equal(t, events.ReasonDecryptionInvalidShares, failed.Reason)
}
