package netrpc

import (
	"context"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/hlc"
	"github.com/gnosisguild/enclave-sub005/pkg/sequencer"
)

// DefaultService is the standard ProtocolServer: incoming events go
// straight through the local sequencer (whose EventId dedup makes
// resubmission idempotent, spec §4.8 step 3), and sync queries answer
// from the local event log via the HLC index.
type DefaultService struct {
	Log  elog.Logger
	Seqr *sequencer.Sequencer
}

var _ ProtocolServer = (*DefaultService)(nil)

func (s *DefaultService) SubmitEvent(ctx context.Context, in *EventPacket) (*SubmitReply, error) {
	ev, err := events.DecodeEvent(in.Wire)
	if err != nil {
		return nil, err
	}
	u := events.Unsequenced{
		Payload:     ev.Payload,
		OriginId:    ev.OriginId,
		CausationId: ev.CausationId,
	}
	remoteTs := ev.Ts
	sealed, err := s.Seqr.Submit(ctx, u, &remoteTs)
	if err != nil {
		return nil, err
	}
	return &SubmitReply{EventId: sealed.Id.String(), Seq: sealed.Seq}, nil
}

func (s *DefaultService) SyncSince(ctx context.Context, in *SyncQuery) (*EventBatch, error) {
	cursor := hlc.Timestamp{Wall: in.SinceWall, Logic: in.SinceLogic}
	from, ok := s.Seqr.SeekForPrev(cursor)
	if !ok {
		from = 0
	}
	evs, err := s.Seqr.Since(ctx, from)
	if err != nil {
		return nil, err
	}
	batch := &EventBatch{Events: make([][]byte, 0, len(evs))}
	for _, ev := range evs {
		wire, err := events.EncodeEvent(ev)
		if err != nil {
			return nil, err
		}
		batch.Events = append(batch.Events, wire)
	}
	return batch, nil
}
