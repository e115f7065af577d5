package netrpc_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/bus"
	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/hlc"
	"github.com/gnosisguild/enclave-sub005/pkg/netrpc"
	"github.com/gnosisguild/enclave-sub005/pkg/sequencer"
	"github.com/gnosisguild/enclave-sub005/pkg/store"
	"github.com/gnosisguild/enclave-sub005/pkg/store/memstore"
)

func newSequencer(t *testing.T) *sequencer.Sequencer {
	t.Helper()
	log := elog.DefaultLogger()
	b := bus.New(log)
	clock := hlc.New(func() uint64 { return uint64(time.Now().UnixNano()) })
	s, err := sequencer.New(context.Background(), log, b, clock, store.NewRepository(memstore.New(), "//eventlog"))
	require.NoError(t, err)
	return s
}

func TestSubmitEventRoundTripAndDedup(t *testing.T) {
	log := elog.DefaultLogger()
	seqr := newSequencer(t)

	lis, err := netrpc.NewListener(log, "127.0.0.1:0", &netrpc.DefaultService{Log: log, Seqr: seqr})
	require.NoError(t, err)
	go lis.Start()
	defer lis.Stop()

	client, err := netrpc.Dial(lis.Addr())
	require.NoError(t, err)
	defer client.Close()

	// a "remote" event: sequenced elsewhere, pushed to this node
	req := events.E3Requested{Seed: events.Seed{5}, ThresholdM: 2, ThresholdN: 3, Params: []byte("p")}
	req.Id = events.E3id{ChainID: 1, ID: "rpc"}
	u := events.Unsequenced{Payload: req}
	remote := events.Seal(u, u.Id(), 9, hlc.Timestamp{Wall: 77, Logic: 3})
	wire, err := events.EncodeEvent(remote)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := client.SubmitEvent(ctx, &netrpc.EventPacket{Wire: wire})
	require.NoError(t, err)
	require.Equal(t, remote.Id.String(), reply.EventId)
	require.Equal(t, uint64(1), reply.Seq, "receiver assigns its own seq")

	// resubmission is idempotent (P2)
	again, err := client.SubmitEvent(ctx, &netrpc.EventPacket{Wire: wire})
	require.NoError(t, err)
	require.Equal(t, reply.Seq, again.Seq)
	require.Equal(t, uint64(1), seqr.LastSeq())
}

func TestSyncSinceReturnsEventsAfterCursor(t *testing.T) {
	log := elog.DefaultLogger()
	seqr := newSequencer(t)
	ctx := context.Background()

	var sealedTs []hlc.Timestamp
	for i := 0; i < 3; i++ {
		p := events.CiphernodeAdded{ChainID: 1, Address: string(rune('a' + i))}
		ev, err := seqr.Submit(ctx, events.Unsequenced{Payload: p}, nil)
		require.NoError(t, err)
		sealedTs = append(sealedTs, ev.Ts)
	}

	lis, err := netrpc.NewListener(log, "127.0.0.1:0", &netrpc.DefaultService{Log: log, Seqr: seqr})
	require.NoError(t, err)
	go lis.Start()
	defer lis.Stop()

	client, err := netrpc.Dial(lis.Addr())
	require.NoError(t, err)
	defer client.Close()

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// cursor at the first event's ts: expect the two later events
	batch, err := client.SyncSince(rctx, &netrpc.SyncQuery{
		SinceWall:  sealedTs[0].Wall,
		SinceLogic: sealedTs[0].Logic,
	})
	require.NoError(t, err)
	require.Len(t, batch.Events, 2)

	ev, err := events.DecodeEvent(batch.Events[0])
	require.NoError(t, err)
	require.Equal(t, uint64(2), ev.Seq)
}

func TestControlSurface(t *testing.T) {
	log := elog.DefaultLogger()
	seqr := newSequencer(t)

	shutdown := make(chan struct{}, 1)
	svc := &fakeControl{seqr: seqr, shutdown: shutdown}
	lis, err := netrpc.NewControlListener(log, "0", svc)
	require.NoError(t, err)
	go lis.Start()
	defer lis.Stop()

	client, err := netrpc.DialControl(lis.Addr())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pong, err := client.Ping(ctx)
	require.NoError(t, err)
	require.Equal(t, seqr.LastSeq(), pong.LastSeq)

	st, err := client.Status(ctx)
	require.NoError(t, err)
	require.False(t, st.Armed)

	require.NoError(t, client.Shutdown(ctx))
	select {
	case <-shutdown:
	case <-time.After(time.Second):
		t.Fatal("shutdown signal not delivered")
	}
}

type fakeControl struct {
	seqr     *sequencer.Sequencer
	shutdown chan struct{}
}

func (f *fakeControl) PingPong(context.Context, *netrpc.Ping) (*netrpc.Pong, error) {
	return &netrpc.Pong{LastSeq: f.seqr.LastSeq()}, nil
}

func (f *fakeControl) Status(context.Context, *netrpc.StatusRequest) (*netrpc.StatusReply, error) {
	return &netrpc.StatusReply{LastSeq: f.seqr.LastSeq()}, nil
}

func (f *fakeControl) Shutdown(context.Context, *netrpc.ShutdownRequest) (*netrpc.ShutdownReply, error) {
	f.shutdown <- struct{}{}
	return &netrpc.ShutdownReply{}, nil
}
