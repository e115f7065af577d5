package router

import (
	"context"
	"encoding/json"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

const lifecycleSlot = "lifecycle"

// LifecycleState is the persisted shape of the Lifecycle extension's slot.
type LifecycleState struct {
	Stage events.Stage `json:"stage"`
}

// Lifecycle tracks a ceremony's monotonic stage (invariant E4) and
// publishes E3StageChanged on every advance. Back-transitions are dropped,
// so a replayed or reordered event can never move a ceremony backwards
// (property P3).
type Lifecycle struct {
	Submit Submitter
}

func (Lifecycle) Name() string { return lifecycleSlot }

func stageFor(k events.Kind) (events.Stage, bool) {
	switch k {
	case events.KindE3Requested:
		return events.StageRequested, true
	case events.KindCommitteeFinalized:
		return events.StageCommitteeFinalized, true
	case events.KindPublicKeyAggregated:
		return events.StageKeyPublished, true
	case events.KindCiphertextOutputPublished:
		return events.StageCiphertextReady, true
	case events.KindE3RequestComplete:
		return events.StageComplete, true
	case events.KindE3Failed:
		return events.StageFailed, true
	default:
		return "", false
	}
}

func (l Lifecycle) OnEvent(_ context.Context, c *Context, ev events.Event) error {
	target, ok := stageFor(ev.Kind())
	if !ok {
		return nil
	}
	st, _ := lifecycleOf(c)

	advance := false
	switch {
	case st.Stage == "" && target == events.StageRequested:
		advance = true
	case st.Stage == "" && target == events.StageFailed:
		advance = true
	case st.Stage != "" && events.IsValidStageTransition(st.Stage, target):
		advance = true
	}
	if !advance {
		return nil
	}

	c.Set(lifecycleSlot, LifecycleState{Stage: target})
	changed := events.E3StageChanged{NewStage: target}
	changed.Id = c.E3id
	return l.Submit(caused(changed, ev))
}

func (Lifecycle) Hydrate(_ context.Context, c *Context, raw json.RawMessage) error {
	if raw == nil {
		c.Set(lifecycleSlot, LifecycleState{})
		return nil
	}
	var st LifecycleState
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	c.Set(lifecycleSlot, st)
	return nil
}

func (Lifecycle) Snapshot(c *Context) (json.RawMessage, error) {
	v, ok := c.Get(lifecycleSlot)
	if !ok {
		return nil, nil
	}
	return json.Marshal(v)
}

func lifecycleOf(c *Context) (LifecycleState, bool) {
	v, ok := c.Get(lifecycleSlot)
	if !ok {
		return LifecycleState{}, false
	}
	st, ok := v.(LifecycleState)
	return st, ok
}

// StageOf returns the ceremony's current lifecycle stage, empty before
// E3Requested has been seen.
func StageOf(c *Context) events.Stage {
	st, _ := lifecycleOf(c)
	return st.Stage
}
