package events

import "github.com/gnosisguild/enclave-sub005/pkg/hlc"

// Payload is implemented by every event's domain-specific body. E3id
// returns the zero value when the event is not scoped to a ceremony
// (e.g. CiphernodeAdded, Shutdown).
type Payload interface {
	Kind() Kind
	E3id() (E3id, bool)
	// StableEncode appends the payload's canonical little-endian,
	// declaration-ordered, length-prefixed encoding to buf (spec §6) and
	// returns the result. Field order always matches struct declaration
	// order; this is what EventId hashes.
	StableEncode(buf []byte) []byte
}

// Unsequenced is an event as produced by any source (local actor, EVM
// reader, net gossip) before the sequencer assigns it a seq (spec §3).
type Unsequenced struct {
	Payload      Payload
	OriginId     EventId // the event that started this causal chain
	CausationId  EventId // the direct predecessor, zero if none
}

// Id computes this event's content-addressed, dedup-stable identifier.
func (u Unsequenced) Id() EventId {
	return NewEventId(u.Payload.StableEncode(nil))
}

// Event is the full envelope carried on the bus once sequenced (spec §3).
type Event struct {
	Id          EventId
	Ts          hlc.Timestamp
	Seq         uint64
	OriginId    EventId
	CausationId EventId
	Payload     Payload
}

func (e Event) Kind() Kind { return e.Payload.Kind() }

// E3id returns the ceremony this event is scoped to, if any.
func (e Event) E3id() (E3id, bool) { return e.Payload.E3id() }

// Seal assigns seq/ts to an unsequenced event, called only by the sequencer.
func Seal(u Unsequenced, id EventId, seq uint64, ts hlc.Timestamp) Event {
	origin := u.OriginId
	if origin.IsZero() {
		origin = id
	}
	return Event{
		Id:          id,
		Ts:          ts,
		Seq:         seq,
		OriginId:    origin,
		CausationId: u.CausationId,
		Payload:     u.Payload,
	}
}
