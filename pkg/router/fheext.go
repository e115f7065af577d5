package router

import (
	"context"
	"encoding/json"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/fhe"
)

const fheSlot = "fhe"

// FHEParams decodes the opaque BFV parameter blob from E3Requested and
// exposes it as a typed slot for the DKG and aggregator extensions
// (spec §4.4, extension 3).
type FHEParams struct{}

// FHEState is the persisted shape of the FHEParams extension's slot. Only
// the raw blob is persisted; the decoded form is rebuilt on hydrate.
type FHEState struct {
	Raw    []byte     `json:"raw,omitempty"`
	Params fhe.Params `json:"-"`
}

func (FHEParams) Name() string { return fheSlot }

func (FHEParams) OnEvent(_ context.Context, c *Context, ev events.Event) error {
	req, ok := payloadAs[events.E3Requested](ev)
	if !ok {
		return nil
	}
	params, err := fhe.DecodeParams(req.Params)
	if err != nil {
		return err
	}
	c.Set(fheSlot, FHEState{Raw: req.Params, Params: params})
	return nil
}

func (FHEParams) Hydrate(_ context.Context, c *Context, raw json.RawMessage) error {
	if raw == nil {
		c.Set(fheSlot, FHEState{})
		return nil
	}
	var st FHEState
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	if len(st.Raw) > 0 {
		params, err := fhe.DecodeParams(st.Raw)
		if err != nil {
			return err
		}
		st.Params = params
	}
	c.Set(fheSlot, st)
	return nil
}

func (FHEParams) Snapshot(c *Context) (json.RawMessage, error) {
	v, ok := c.Get(fheSlot)
	if !ok {
		return nil, nil
	}
	return json.Marshal(v)
}

// ParamsOf returns the decoded BFV parameters for ctx, false before
// E3Requested has been seen.
func ParamsOf(c *Context) (fhe.Params, bool) {
	v, ok := c.Get(fheSlot)
	if !ok {
		return fhe.Params{}, false
	}
	st, ok := v.(FHEState)
	if !ok || len(st.Raw) == 0 {
		return fhe.Params{}, false
	}
	return st.Params, true
}
