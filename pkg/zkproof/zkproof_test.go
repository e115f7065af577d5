package zkproof

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

type fakeBackend struct {
	mu       sync.Mutex
	delay    time.Duration
	fail     map[string]bool // req.Kind -> force an error
	seen     []Request
	inFlight chan struct{}
}

func (f *fakeBackend) Prove(ctx context.Context, req Request) ([]byte, error) {
	f.mu.Lock()
	f.seen = append(f.seen, req)
	shouldFail := f.fail[req.Kind]
	f.mu.Unlock()

	if f.inFlight != nil {
		f.inFlight <- struct{}{}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if shouldFail {
		return nil, context.DeadlineExceeded
	}
	return []byte("proof:" + req.Kind), nil
}

func collectSubmissions(n int) (Submitter, chan events.Unsequenced) {
	ch := make(chan events.Unsequenced, n)
	return func(u events.Unsequenced) error {
		ch <- u
		return nil
	}, ch
}

func testID(id string) events.E3id {
	return events.E3id{ChainID: 1, ID: id}
}

func TestPoolSignsSuccessfulProof(t *testing.T) {
	backend := &fakeBackend{}
	submit, ch := collectSubmissions(1)
	pool := New(elog.DefaultLogger(), backend, 2, submit)
	defer pool.Close()

	pool.Submit(Request{E3id: testID("e1"), PartyId: 1, Kind: "T0"})

	select {
	case u := <-ch:
		signed, ok := u.Payload.(events.DkgProofSigned)
		require.True(t, ok)
		require.Equal(t, "T0", signed.ProofKind)
		require.Equal(t, []byte("proof:T0"), signed.Proof)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signed proof")
	}
}

func TestPoolEmitsE3FailedOnVerificationFailure(t *testing.T) {
	backend := &fakeBackend{fail: map[string]bool{"C4a": true}}
	submit, ch := collectSubmissions(1)
	pool := New(elog.DefaultLogger(), backend, 1, submit)
	defer pool.Close()

	pool.Submit(Request{E3id: testID("e1"), PartyId: 1, Kind: "C4a", Stage: events.FailureStageDecryptionTimeout})

	select {
	case u := <-ch:
		failed, ok := u.Payload.(events.E3Failed)
		require.True(t, ok)
		require.Equal(t, events.ReasonVerificationFailed, failed.Reason)
		require.Equal(t, events.FailureStageDecryptionTimeout, failed.Stage)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for failure event")
	}
}

func TestPoolQueuesRequestsBeyondThreadCount(t *testing.T) {
	backend := &fakeBackend{delay: 50 * time.Millisecond}
	submit, ch := collectSubmissions(5)
	pool := New(elog.DefaultLogger(), backend, 1, submit)
	defer pool.Close()

	for i := 0; i < 5; i++ {
		pool.Submit(Request{E3id: testID("e1"), PartyId: uint64(i), Kind: "T0"})
	}

	for i := 0; i < 5; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for result %d", i)
		}
	}
}

func TestPoolCancelDiscardsQueuedAndInFlightWork(t *testing.T) {
	backend := &fakeBackend{delay: 200 * time.Millisecond, inFlight: make(chan struct{}, 1)}
	submit, ch := collectSubmissions(3)
	pool := New(elog.DefaultLogger(), backend, 1, submit)
	defer pool.Close()

	id := testID("cancel-me")
	pool.Submit(Request{E3id: id, PartyId: 1, Kind: "T0"})
	<-backend.inFlight // first request is now in flight inside Prove

	pool.Submit(Request{E3id: id, PartyId: 2, Kind: "C4a"})
	pool.Cancel(id)

	select {
	case u := <-ch:
		t.Fatalf("expected no results after cancel, got %+v", u)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestPoolSubmitAfterCancelIsNoOp(t *testing.T) {
	backend := &fakeBackend{}
	submit, ch := collectSubmissions(1)
	pool := New(elog.DefaultLogger(), backend, 1, submit)
	defer pool.Close()

	id := testID("e2")
	pool.Cancel(id) // cancel before any work starts creates and cancels a fresh context
	pool.Submit(Request{E3id: id, PartyId: 1, Kind: "T0"})

	select {
	case u := <-ch:
		t.Fatalf("expected no result for a cancelled ceremony, got %+v", u)
	case <-time.After(200 * time.Millisecond):
	}
}
