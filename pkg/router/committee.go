package router

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/sortition"
)

const committeeSlot = "committee"

// CommitteeState is the persisted shape of the CommitteeSelect extension's
// slot.
type CommitteeState struct {
	Finalized    bool     `json:"finalized"`
	Nodes        []string `json:"nodes"`
	ThresholdM   uint32   `json:"threshold_m"`
	ThresholdN   uint32   `json:"threshold_n"`
	LocalPartyId uint64   `json:"local_party_id"`
}

// CommitteeSelect runs distance sortition on CommitteeRequested and
// publishes the outcome. Because sortition is a pure function of
// (seed, registered set, threshold_n) — invariant E5 — every node emits
// byte-identical CiphernodeSelected/CommitteeFinalized payloads, and
// EventId dedup collapses them into one log entry per node.
type CommitteeSelect struct {
	Registry *sortition.Registry
	Local    string
	Submit   Submitter
}

func (CommitteeSelect) Name() string { return committeeSlot }

func (s CommitteeSelect) OnEvent(_ context.Context, c *Context, ev events.Event) error {
	req, ok := payloadAs[events.CommitteeRequested](ev)
	if !ok {
		return nil
	}
	if st, _ := committeeOf(c); st.Finalized {
		return nil
	}

	meta, ok := MetaOf(c)
	if !ok || !meta.Requested {
		return nil // CommitteeRequested before E3Requested; the retry arrives via sync
	}

	candidates := s.Registry.Candidates(c.E3id.ChainID)
	committee, err := sortition.Select(req.Seed, candidates, meta.ThresholdM, meta.ThresholdN, s.Local)
	if errors.Is(err, sortition.ErrInsufficientCandidates) {
		failed := events.E3Failed{
			Stage:  events.FailureStageCommitteeFormationTimeout,
			Reason: events.ReasonInsufficientCommitteeMembers,
		}
		failed.Id = c.E3id
		return s.Submit(caused(failed, ev))
	}
	if err != nil {
		return err
	}

	c.Set(committeeSlot, CommitteeState{
		Finalized:    true,
		Nodes:        committee.Nodes,
		ThresholdM:   committee.ThresholdM,
		ThresholdN:   committee.ThresholdN,
		LocalPartyId: committee.PartyId,
	})

	if committee.PartyId != 0 {
		selected := events.CiphernodeSelected{Node: s.Local, PartyId: committee.PartyId}
		selected.Id = c.E3id
		if err := s.Submit(caused(selected, ev)); err != nil {
			return err
		}
	}

	finalized := events.CommitteeFinalized{
		Nodes:      committee.Nodes,
		ThresholdM: committee.ThresholdM,
		ThresholdN: committee.ThresholdN,
	}
	finalized.Id = c.E3id
	return s.Submit(caused(finalized, ev))
}

func (CommitteeSelect) Hydrate(_ context.Context, c *Context, raw json.RawMessage) error {
	if raw == nil {
		c.Set(committeeSlot, CommitteeState{})
		return nil
	}
	var st CommitteeState
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	c.Set(committeeSlot, st)
	return nil
}

func (CommitteeSelect) Snapshot(c *Context) (json.RawMessage, error) {
	v, ok := c.Get(committeeSlot)
	if !ok {
		return nil, nil
	}
	return json.Marshal(v)
}

func committeeOf(c *Context) (CommitteeState, bool) {
	v, ok := c.Get(committeeSlot)
	if !ok {
		return CommitteeState{}, false
	}
	st, ok := v.(CommitteeState)
	return st, ok
}

// CommitteeOf returns the finalized committee for ctx, false before
// sortition has run.
func CommitteeOf(c *Context) (CommitteeState, bool) {
	st, ok := committeeOf(c)
	return st, ok && st.Finalized
}
