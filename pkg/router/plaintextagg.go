package router

import (
	"context"
	"encoding/json"

	"github.com/gnosisguild/enclave-sub005/pkg/aggregator/plaintext"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

const plaintextAggSlot = "plaintext"

// PlaintextAgg hosts the plaintext aggregation sub-state-machine (spec
// §4.7): it collects decryption shares from threshold_m distinct honest
// members, reconstructs the plaintext, and publishes the result. The
// ceremony completes once the output is published.
type PlaintextAgg struct {
	Kernel plaintext.Kernel
	Submit Submitter
}

func (PlaintextAgg) Name() string { return plaintextAggSlot }

func (a PlaintextAgg) OnEvent(_ context.Context, c *Context, ev events.Event) error {
	switch ev.Kind() {
	case events.KindCommitteeFinalized:
		if _, ok := plaintextAggOf(c); ok {
			return nil
		}
		fin, ok := payloadAs[events.CommitteeFinalized](ev)
		if !ok {
			return nil
		}
		c.Set(plaintextAggSlot, plaintext.New(c.E3id, fin.ThresholdM))
		return nil

	case events.KindDecryptionshareCreated:
		agg, ok := plaintextAggOf(c)
		if !ok {
			return nil
		}
		ds, ok := payloadAs[events.DecryptionshareCreated](ev)
		if !ok {
			return nil
		}
		if !agg.OnDecryptionshareCreated(ds.Node, ds.Share) {
			return nil
		}
		pt, err := agg.Reconstruct(a.Kernel)
		if err != nil {
			failed := events.E3Failed{
				Stage:  events.FailureStageDecryptionTimeout,
				Reason: events.ReasonDecryptionInvalidShares,
			}
			failed.Id = c.E3id
			return a.Submit(caused(failed, ev))
		}
		aggregated := events.PlaintextAggregated{DecryptedOutput: pt}
		aggregated.Id = c.E3id
		if err := a.Submit(caused(aggregated, ev)); err != nil {
			return err
		}
		published := events.PlaintextOutputPublished{DecryptedOutput: pt}
		published.Id = c.E3id
		if err := a.Submit(caused(published, ev)); err != nil {
			return err
		}
		complete := events.E3RequestComplete{}
		complete.Id = c.E3id
		return a.Submit(caused(complete, ev))

	case events.KindE3Failed:
		if agg, ok := plaintextAggOf(c); ok {
			agg.Fail()
		}
		return nil
	}
	return nil
}

func (PlaintextAgg) Hydrate(_ context.Context, c *Context, raw json.RawMessage) error {
	if raw == nil {
		return nil
	}
	agg := &plaintext.Aggregator{}
	if err := agg.UnmarshalJSON(raw); err != nil {
		return err
	}
	agg.E3id = c.E3id
	c.Set(plaintextAggSlot, agg)
	return nil
}

func (PlaintextAgg) Snapshot(c *Context) (json.RawMessage, error) {
	agg, ok := plaintextAggOf(c)
	if !ok {
		return nil, nil
	}
	return agg.MarshalJSON()
}

func plaintextAggOf(c *Context) (*plaintext.Aggregator, bool) {
	v, ok := c.Get(plaintextAggSlot)
	if !ok {
		return nil, false
	}
	agg, ok := v.(*plaintext.Aggregator)
	return agg, ok
}
