package router

import (
	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/zkproof"
)

// Submitter hands a new unsequenced event to the sequencer without blocking
// the dispatching extension — the node wires it to an enqueue, never to a
// synchronous sequencer call (spec §5: every message send is a suspension
// point, and the bus must not be re-entered mid-dispatch).
type Submitter func(events.Unsequenced) error

// Prover is the proof-generation handle extensions reach the zkproof pool
// through (spec §4.4 extension 6). *zkproof.Pool satisfies it.
type Prover interface {
	Submit(req zkproof.Request)
	Cancel(id events.E3id)
}

// payloadAs unwraps ev's payload as a *T whether the event came off the
// wire (pointer payloads from DecodeEvent) or was built locally (value
// payloads).
func payloadAs[T any](ev events.Event) (*T, bool) {
	if p, ok := ev.Payload.(*T); ok {
		return p, true
	}
	if p, ok := ev.Payload.(T); ok {
		return &p, true
	}
	return nil, false
}

// caused stamps the causal-chain fields of a follow-up event: the incoming
// event is the direct cause, and the origin chain is carried through
// (spec §3's origin_id/causation_id contract).
func caused(p events.Payload, from events.Event) events.Unsequenced {
	return events.Unsequenced{Payload: p, OriginId: from.OriginId, CausationId: from.Id}
}
