package router

import (
	"context"
	"encoding/json"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/sortition"
)

const sortitionScoreSlot = "sortition_score"

// SortitionScoreState is the persisted shape of the SortitionScore
// extension's slot.
type SortitionScoreState struct {
	Computed   bool   `json:"computed"`
	Score      string `json:"score"` // decimal-encoded big.Int, empty if not Computed
	IsSelected bool   `json:"is_selected"`
	PartyId    uint64 `json:"party_id"`
}

// SortitionScore computes the local node's committee score on
// CommitteeRequested and marks local participation on CiphernodeSelected
// (spec §4.4, extension 2).
type SortitionScore struct {
	LocalAddr string
}

func (SortitionScore) Name() string { return sortitionScoreSlot }

func (s SortitionScore) OnEvent(_ context.Context, c *Context, ev events.Event) error {
	if seed, ok := committeeRequestedSeed(ev); ok {
		st, _ := sortitionScoreOf(c)
		st.Computed = true
		st.Score = sortition.Score(seed, s.LocalAddr).String()
		c.Set(sortitionScoreSlot, st)
		return nil
	}

	if node, partyID, ok := ciphernodeSelectedFields(ev); ok && node == s.LocalAddr {
		st, _ := sortitionScoreOf(c)
		st.IsSelected = true
		st.PartyId = partyID
		c.Set(sortitionScoreSlot, st)
	}
	return nil
}

// committeeRequestedSeed extracts the seed from a CommitteeRequested
// payload, value or pointer form.
func committeeRequestedSeed(ev events.Event) (events.Seed, bool) {
	switch p := ev.Payload.(type) {
	case *events.CommitteeRequested:
		return p.Seed, true
	case events.CommitteeRequested:
		return p.Seed, true
	default:
		return events.Seed{}, false
	}
}

// ciphernodeSelectedFields extracts (node, party_id, true) from a
// CiphernodeSelected payload, value or pointer form.
func ciphernodeSelectedFields(ev events.Event) (string, uint64, bool) {
	switch p := ev.Payload.(type) {
	case *events.CiphernodeSelected:
		return p.Node, p.PartyId, true
	case events.CiphernodeSelected:
		return p.Node, p.PartyId, true
	default:
		return "", 0, false
	}
}

func (SortitionScore) Hydrate(_ context.Context, c *Context, raw json.RawMessage) error {
	if raw == nil {
		c.Set(sortitionScoreSlot, SortitionScoreState{})
		return nil
	}
	var st SortitionScoreState
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	c.Set(sortitionScoreSlot, st)
	return nil
}

func (SortitionScore) Snapshot(c *Context) (json.RawMessage, error) {
	v, ok := c.Get(sortitionScoreSlot)
	if !ok {
		return nil, nil
	}
	return json.Marshal(v)
}

func sortitionScoreOf(c *Context) (SortitionScoreState, bool) {
	v, ok := c.Get(sortitionScoreSlot)
	if !ok {
		return SortitionScoreState{}, false
	}
	st, ok := v.(SortitionScoreState)
	return st, ok
}
