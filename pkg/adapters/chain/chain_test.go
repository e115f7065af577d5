package chain

import (
	"context"
	"sync"
	"testing"
	"time"

	clockwork "github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/bus"
	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

type fakeClient struct {
	mu   sync.Mutex
	logs []Log
	err  error
}

func (f *fakeClient) LatestBlock(ctx context.Context) (uint64, error) { return 0, nil }

func (f *fakeClient) LogsSince(ctx context.Context, fromBlock uint64) ([]Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []Log
	for _, l := range f.logs {
		if l.Block > fromBlock {
			out = append(out, l)
		}
	}
	return out, nil
}

func collect(n int) (Submitter, chan events.Unsequenced) {
	ch := make(chan events.Unsequenced, n)
	return func(u events.Unsequenced) error {
		ch <- u
		return nil
	}, ch
}

func TestReaderEmitsBatchAndAdvancesLastBlock(t *testing.T) {
	fc := clockwork.NewFakeClock()
	client := &fakeClient{logs: []Log{
		{Block: 10, Raw: []byte("a")},
		{Block: 12, Raw: []byte("b")},
	}}
	submit, ch := collect(1)

	r := NewReader(ReaderConfig{
		Log:      elog.DefaultLogger(),
		Clock:    fc,
		Client:   client,
		ChainID:  5,
		Interval: time.Millisecond,
		Submit:   submit,
	}, 0)
	r.Start(context.Background())
	defer r.Stop()

	fc.BlockUntil(1)
	fc.Advance(time.Millisecond)

	select {
	case u := <-ch:
		batch, ok := u.Payload.(events.EvmSyncEventsReceived)
		require.True(t, ok)
		require.Equal(t, uint64(5), batch.ChainID)
		require.Len(t, batch.Raw, 2)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for batch")
	}

	require.Eventually(t, func() bool { return r.LastBlock() == 12 }, time.Second, time.Millisecond)
}

func TestReaderSkipsEmptyPolls(t *testing.T) {
	fc := clockwork.NewFakeClock()
	client := &fakeClient{}
	submit, ch := collect(1)

	r := NewReader(ReaderConfig{
		Log:      elog.DefaultLogger(),
		Clock:    fc,
		Client:   client,
		ChainID:  1,
		Interval: time.Millisecond,
		Submit:   submit,
	}, 0)
	r.Start(context.Background())
	defer r.Stop()

	fc.BlockUntil(1)
	fc.Advance(time.Millisecond)

	select {
	case u := <-ch:
		t.Fatalf("expected no batch for an empty poll, got %+v", u)
	case <-time.After(100 * time.Millisecond):
	}
}

type fakeSender struct {
	mu         sync.Mutex
	committees []events.CommitteePublished
	plaintexts []events.PlaintextOutputPublished
}

func (f *fakeSender) PublishCommittee(ctx context.Context, e events.CommitteePublished) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committees = append(f.committees, e)
	return nil
}

func (f *fakeSender) PublishPlaintext(ctx context.Context, e events.PlaintextOutputPublished) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plaintexts = append(f.plaintexts, e)
	return nil
}

func TestWriterForwardsAggregatorOutputsToSender(t *testing.T) {
	b := bus.New(elog.DefaultLogger())
	sender := &fakeSender{}
	NewWriter(elog.DefaultLogger(), b, sender)

	id := events.E3id{ChainID: 1, ID: "e1"}
	committee := events.CommitteePublished{PublicKey: []byte("pub")}
	committee.Id = id
	b.Publish(context.Background(), events.Event{Id: events.NewEventId([]byte("1")), Payload: committee})

	plaintext := events.PlaintextOutputPublished{DecryptedOutput: []byte("out")}
	plaintext.Id = id
	b.Publish(context.Background(), events.Event{Id: events.NewEventId([]byte("2")), Payload: plaintext})

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.committees) == 1 && len(sender.plaintexts) == 1
	}, time.Second, time.Millisecond)
}
