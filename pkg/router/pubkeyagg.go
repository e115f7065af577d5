package router

import (
	"context"
	"encoding/json"

	"github.com/gnosisguild/enclave-sub005/pkg/aggregator/pubkey"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

const pubkeyAggSlot = "publickey"

// PubKeyAgg hosts the public-key aggregation sub-state-machine (spec §4.5)
// inside the ceremony context. The aggregator starts on CommitteeFinalized
// and consumes KeyshareCreated until threshold_n distinct members have
// contributed, then computes the joint key and publishes it.
type PubKeyAgg struct {
	Kernel pubkey.Kernel
	Submit Submitter
}

func (PubKeyAgg) Name() string { return pubkeyAggSlot }

func (a PubKeyAgg) OnEvent(_ context.Context, c *Context, ev events.Event) error {
	switch ev.Kind() {
	case events.KindCommitteeFinalized:
		if _, ok := pubkeyAggOf(c); ok {
			return nil
		}
		fin, ok := payloadAs[events.CommitteeFinalized](ev)
		if !ok {
			return nil
		}
		c.Set(pubkeyAggSlot, pubkey.New(c.E3id, fin.ThresholdN))
		return nil

	case events.KindKeyshareCreated:
		agg, ok := pubkeyAggOf(c)
		if !ok {
			return nil
		}
		ks, ok := payloadAs[events.KeyshareCreated](ev)
		if !ok {
			return nil
		}
		if !agg.OnKeyshareCreated(ks.Node, ks.PubKey) {
			return nil
		}
		joint, err := agg.Compute(a.Kernel)
		if err != nil {
			failed := events.E3Failed{
				Stage:  events.FailureStageKeyPublished,
				Reason: events.ReasonVerificationFailed,
			}
			failed.Id = c.E3id
			return a.Submit(caused(failed, ev))
		}
		aggregated := events.PublicKeyAggregated{PublicKey: joint}
		aggregated.Id = c.E3id
		if err := a.Submit(caused(aggregated, ev)); err != nil {
			return err
		}
		published := events.CommitteePublished{PublicKey: joint}
		published.Id = c.E3id
		return a.Submit(caused(published, ev))

	case events.KindE3Failed:
		if agg, ok := pubkeyAggOf(c); ok {
			agg.Fail()
		}
		return nil
	}
	return nil
}

func (PubKeyAgg) Hydrate(_ context.Context, c *Context, raw json.RawMessage) error {
	if raw == nil {
		return nil
	}
	agg := &pubkey.Aggregator{}
	if err := agg.UnmarshalJSON(raw); err != nil {
		return err
	}
	agg.E3id = c.E3id
	c.Set(pubkeyAggSlot, agg)
	return nil
}

func (PubKeyAgg) Snapshot(c *Context) (json.RawMessage, error) {
	agg, ok := pubkeyAggOf(c)
	if !ok {
		return nil, nil
	}
	return agg.MarshalJSON()
}

func pubkeyAggOf(c *Context) (*pubkey.Aggregator, bool) {
	v, ok := c.Get(pubkeyAggSlot)
	if !ok {
		return nil, false
	}
	agg, ok := v.(*pubkey.Aggregator)
	return agg, ok
}
