package router

import (
	"context"
	"encoding/json"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

const metaSlot = "meta"

// Meta derives and stores {threshold_m, seed, params} from E3Requested
// (spec §4.4, extension 1).
type Meta struct{}

// MetaState is the persisted shape of the Meta extension's slot.
type MetaState struct {
	ThresholdM uint32      `json:"threshold_m"`
	ThresholdN uint32      `json:"threshold_n"`
	Seed       events.Seed `json:"seed"`
	Params     []byte      `json:"params"`
	Requested  bool        `json:"requested"`
}

func (Meta) Name() string { return metaSlot }

func (Meta) OnEvent(_ context.Context, c *Context, ev events.Event) error {
	req, ok := ev.Payload.(*events.E3Requested)
	if !ok {
		if reqv, ok := ev.Payload.(events.E3Requested); ok {
			req = &reqv
		} else {
			return nil
		}
	}
	c.Set(metaSlot, MetaState{
		ThresholdM: req.ThresholdM,
		ThresholdN: req.ThresholdN,
		Seed:       req.Seed,
		Params:     req.Params,
		Requested:  true,
	})
	return nil
}

func (Meta) Hydrate(_ context.Context, c *Context, raw json.RawMessage) error {
	if raw == nil {
		c.Set(metaSlot, MetaState{})
		return nil
	}
	var st MetaState
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	c.Set(metaSlot, st)
	return nil
}

func (Meta) Snapshot(c *Context) (json.RawMessage, error) {
	v, ok := c.Get(metaSlot)
	if !ok {
		return nil, nil
	}
	return json.Marshal(v)
}

// MetaOf returns the Meta slot's current state for ctx, the zero value if
// E3Requested has not yet been seen.
func MetaOf(c *Context) (st MetaState, ok bool) {
	v, present := c.Get(metaSlot)
	if !present {
		return MetaState{}, false
	}
	st, ok = v.(MetaState)
	return st, ok
}
