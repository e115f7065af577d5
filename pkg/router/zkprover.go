package router

import (
	"context"
	"encoding/json"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

const zkProverSlot = "zkprover"

// ZKProver cancels outstanding proof work when a ceremony terminates
// (spec §4.9 "on E3Failed or E3RequestComplete for an e3_id, outstanding
// proof requests for that e3_id are cancelled"). Submission happens from
// the extensions that own the proof obligations; this extension only owns
// the cancellation side.
type ZKProver struct {
	Prover Prover
}

func (ZKProver) Name() string { return zkProverSlot }

func (z ZKProver) OnEvent(_ context.Context, c *Context, ev events.Event) error {
	switch ev.Kind() {
	case events.KindE3Failed, events.KindE3RequestComplete:
		z.Prover.Cancel(c.E3id)
	}
	return nil
}

func (ZKProver) Hydrate(_ context.Context, _ *Context, _ json.RawMessage) error { return nil }

func (ZKProver) Snapshot(_ *Context) (json.RawMessage, error) { return nil, nil }
