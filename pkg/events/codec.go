package events

import (
	"encoding/json"
	"fmt"

	"github.com/gnosisguild/enclave-sub005/pkg/hlc"
)

// wireEnvelope is the on-disk/on-wire representation of one event: the
// envelope fields plus a tagged union of the payload, following the
// teacher's JSON-encoded bucket convention (chain/boltdb stores beacons as
// JSON via nikkolasg/hexjson) generalized to a tagged union so any Kind can
// round-trip through the sequencer's log and the gossip wire alike (spec
// §6 "self-describing tagged union").
type wireEnvelope struct {
	Id          EventId         `json:"id"`
	TsWall      uint64          `json:"ts_wall"`
	TsLogic     uint64          `json:"ts_logic"`
	Seq         uint64          `json:"seq"`
	OriginId    EventId         `json:"origin_id"`
	CausationId EventId         `json:"causation_id"`
	Kind        Kind            `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
}

var payloadFactories = map[Kind]func() Payload{}

func register(k Kind, factory func() Payload) { payloadFactories[k] = factory }

func init() {
	register(KindE3Requested, func() Payload { return &E3Requested{} })
	register(KindCommitteeRequested, func() Payload { return &CommitteeRequested{} })
	register(KindCiphernodeSelected, func() Payload { return &CiphernodeSelected{} })
	register(KindCommitteeFinalized, func() Payload { return &CommitteeFinalized{} })
	register(KindCommitteePublished, func() Payload { return &CommitteePublished{} })
	register(KindPublicKeyAggregated, func() Payload { return &PublicKeyAggregated{} })
	register(KindCiphertextOutputPublished, func() Payload { return &CiphertextOutputPublished{} })
	register(KindPlaintextAggregated, func() Payload { return &PlaintextAggregated{} })
	register(KindPlaintextOutputPublished, func() Payload { return &PlaintextOutputPublished{} })
	register(KindE3RequestComplete, func() Payload { return &E3RequestComplete{} })
	register(KindE3Failed, func() Payload { return &E3Failed{} })
	register(KindE3StageChanged, func() Payload { return &E3StageChanged{} })

	register(KindThresholdShareCreated, func() Payload { return &ThresholdShareCreated{} })
	register(KindThresholdSharePending, func() Payload { return &ThresholdSharePending{} })
	register(KindEncryptionKeyCreated, func() Payload { return &EncryptionKeyCreated{} })
	register(KindEncryptionKeyPending, func() Payload { return &EncryptionKeyPending{} })
	register(KindDecryptionKeyShared, func() Payload { return &DecryptionKeyShared{} })
	register(KindDecryptionShareProofsPending, func() Payload { return &DecryptionShareProofsPending{} })
	register(KindDkgProofSigned, func() Payload { return &DkgProofSigned{} })

	register(KindDecryptionshareCreated, func() Payload { return &DecryptionshareCreated{} })
	register(KindKeyshareCreated, func() Payload { return &KeyshareCreated{} })

	register(KindEvmSyncEventsReceived, func() Payload { return &EvmSyncEventsReceived{} })
	register(KindNetEventsReceived, func() Payload { return &NetEventsReceived{} })
	register(KindSyncRequest, func() Payload { return &SyncRequest{} })
	register(KindSyncEffect, func() Payload { return &SyncEffect{} })
	register(KindEffectsEnabled, func() Payload { return &EffectsEnabled{} })
	register(KindShutdown, func() Payload { return &Shutdown{} })
	register(KindEnclaveError, func() Payload { return &EnclaveError{} })
	register(KindCiphernodeAdded, func() Payload { return &CiphernodeAdded{} })
	register(KindOperatorActivationChanged, func() Payload { return &OperatorActivationChanged{} })
}

// EncodeEvent marshals a sequenced event to its durable/wire representation.
func EncodeEvent(e Event) ([]byte, error) {
	payloadBytes, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	wall, logic := e.Ts.Uint128()
	return json.Marshal(wireEnvelope{
		Id: e.Id, TsWall: wall, TsLogic: logic, Seq: e.Seq,
		OriginId: e.OriginId, CausationId: e.CausationId,
		Kind: e.Kind(), Payload: payloadBytes,
	})
}

// DecodeEvent unmarshals an event previously written by EncodeEvent.
func DecodeEvent(wire []byte) (Event, error) {
	var w wireEnvelope
	if err := json.Unmarshal(wire, &w); err != nil {
		return Event{}, err
	}
	factory, ok := payloadFactories[w.Kind]
	if !ok {
		return Event{}, fmt.Errorf("events: unknown kind %q", w.Kind)
	}
	payload := factory()
	if err := json.Unmarshal(w.Payload, payload); err != nil {
		return Event{}, err
	}
	return Event{
		Id:          w.Id,
		Ts:          hlc.Timestamp{Wall: w.TsWall, Logic: w.TsLogic},
		Seq:         w.Seq,
		OriginId:    w.OriginId,
		CausationId: w.CausationId,
		Payload:     payload,
	}, nil
}
