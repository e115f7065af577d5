package bus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnosisguild/enclave-sub005/pkg/bus"
	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

func mkEvent(id byte, kind events.Kind) events.Event {
	return events.Event{
		Id:      events.EventId{id},
		Seq:     uint64(id),
		Payload: testPayload{kind: kind},
	}
}

type testPayload struct{ kind events.Kind }

func (p testPayload) Kind() Kind        { return p.kind }
func (p testPayload) E3id() (events.E3id, bool) { return events.E3id{}, false }
func (p testPayload) StableEncode(buf []byte) []byte { return buf }

type Kind = events.Kind

func TestPublishDeliversToMatchingSubscriber(t *testing.T) {
	b := bus.New(elog.DefaultLogger())
	var got []events.Event
	b.Subscribe(events.KindE3Requested, func(_ context.Context, ev events.Event) error {
		got = append(got, ev)
		return nil
	})

	b.Publish(context.Background(), mkEvent(1, events.KindE3Requested))
	b.Publish(context.Background(), mkEvent(2, events.KindCommitteeRequested))

	require.Len(t, got, 1)
	require.Equal(t, events.EventId{1}, got[0].Id)
}

func TestWildcardSubscriberSeesEverything(t *testing.T) {
	b := bus.New(elog.DefaultLogger())
	var count int
	b.Subscribe(events.WildcardTopic, func(_ context.Context, _ events.Event) error {
		count++
		return nil
	})
	b.Publish(context.Background(), mkEvent(1, events.KindE3Requested))
	b.Publish(context.Background(), mkEvent(2, events.KindCommitteeRequested))
	require.Equal(t, 2, count)
}

func TestPublishIsIdempotentByEventId(t *testing.T) {
	b := bus.New(elog.DefaultLogger())
	var count int
	b.Subscribe(events.WildcardTopic, func(_ context.Context, _ events.Event) error {
		count++
		return nil
	})
	ev := mkEvent(1, events.KindE3Requested)
	b.Publish(context.Background(), ev)
	b.Publish(context.Background(), ev)
	require.Equal(t, 1, count, "duplicate event id must be delivered at most once (invariant E2)")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := bus.New(elog.DefaultLogger())
	var count int
	id := b.Subscribe(events.WildcardTopic, func(_ context.Context, _ events.Event) error {
		count++
		return nil
	})
	b.Publish(context.Background(), mkEvent(1, events.KindE3Requested))
	b.Unsubscribe(id)
	b.Publish(context.Background(), mkEvent(2, events.KindE3Requested))
	require.Equal(t, 1, count)
}

func TestOneFailingSubscriberDoesNotBlockOthers(t *testing.T) {
	b := bus.New(elog.DefaultLogger())
	var secondCalled bool
	b.Subscribe(events.WildcardTopic, func(_ context.Context, _ events.Event) error {
		return context.DeadlineExceeded
	})
	b.Subscribe(events.WildcardTopic, func(_ context.Context, _ events.Event) error {
		secondCalled = true
		return nil
	})
	b.Publish(context.Background(), mkEvent(1, events.KindE3Requested))
	require.True(t, secondCalled)
}

func TestErrorEventsAreCollected(t *testing.T) {
	b := bus.New(elog.DefaultLogger())
	b.Publish(context.Background(), mkEvent(1, events.KindEnclaveError))
	require.Len(t, b.Errors(), 1)
}

func TestHistoryCapture(t *testing.T) {
	b := bus.New(elog.DefaultLogger(), bus.WithHistory())
	b.Publish(context.Background(), mkEvent(1, events.KindE3Requested))
	b.Publish(context.Background(), mkEvent(2, events.KindCommitteeRequested))
	require.Len(t, b.History(), 2)
}
