package sequencer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/bus"
	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/hlc"
	"github.com/gnosisguild/enclave-sub005/pkg/sequencer"
	"github.com/gnosisguild/enclave-sub005/pkg/store"
	"github.com/gnosisguild/enclave-sub005/pkg/store/memstore"
)

func newSequencer(t *testing.T) (*sequencer.Sequencer, *bus.Bus) {
	t.Helper()
	backend := memstore.New()
	repo := store.NewRepository(backend, "//eventlog")
	b := bus.New(elog.DefaultLogger())
	clock := hlc.New(func() uint64 { return 1 })
	seq, err := sequencer.New(context.Background(), elog.DefaultLogger(), b, clock, repo)
	require.NoError(t, err)
	return seq, b
}

func reqEvent(seed byte) events.Unsequenced {
	return events.Unsequenced{Payload: events.E3Requested{
		Seed: events.Seed{seed}, ThresholdM: 3, ThresholdN: 5, Params: []byte("p"),
	}}
}

func TestSubmitAssignsMonotonicSeq(t *testing.T) {
	seq, _ := newSequencer(t)
	ctx := context.Background()

	a, err := seq.Submit(ctx, reqEvent(1), nil)
	require.NoError(t, err)
	b, err := seq.Submit(ctx, reqEvent(2), nil)
	require.NoError(t, err)

	require.Equal(t, uint64(1), a.Seq)
	require.Equal(t, uint64(2), b.Seq)
}

func TestSubmitDedupesByEventId(t *testing.T) {
	seq, bs := newSequencer(t)
	ctx := context.Background()
	var delivered int
	bs.Subscribe(events.WildcardTopic, func(_ context.Context, _ events.Event) error {
		delivered++
		return nil
	})

	a, err := seq.Submit(ctx, reqEvent(1), nil)
	require.NoError(t, err)
	b, err := seq.Submit(ctx, reqEvent(1), nil)
	require.NoError(t, err)

	require.Equal(t, a.Seq, b.Seq, "identical event must reuse its existing seq")
	require.Equal(t, 1, delivered, "the bus must not re-publish a deduped event")
}

func TestSeekForPrev(t *testing.T) {
	seq, _ := newSequencer(t)
	ctx := context.Background()

	a, err := seq.Submit(ctx, reqEvent(1), nil)
	require.NoError(t, err)
	b, err := seq.Submit(ctx, reqEvent(2), nil)
	require.NoError(t, err)

	foundSeq, ok := seq.SeekForPrev(b.Ts)
	require.True(t, ok)
	require.Equal(t, b.Seq, foundSeq)

	foundSeq, ok = seq.SeekForPrev(a.Ts)
	require.True(t, ok)
	require.Equal(t, a.Seq, foundSeq)
}

func TestRebuildRecoversLastSeq(t *testing.T) {
	backend := memstore.New()
	repo := store.NewRepository(backend, "//eventlog")
	b := bus.New(elog.DefaultLogger())
	clock := hlc.New(func() uint64 { return 1 })
	ctx := context.Background()

	first, err := sequencer.New(ctx, elog.DefaultLogger(), b, clock, repo)
	require.NoError(t, err)
	_, err = first.Submit(ctx, reqEvent(1), nil)
	require.NoError(t, err)
	_, err = first.Submit(ctx, reqEvent(2), nil)
	require.NoError(t, err)

	second, err := sequencer.New(ctx, elog.DefaultLogger(), b, hlc.New(func() uint64 { return 1 }), repo)
	require.NoError(t, err)
	require.Equal(t, uint64(2), second.LastSeq())
}
