// Package pubkey implements the public-key aggregator state machine
// (spec §4.5): Collecting -> Computing -> Published -> Failed. It follows
// the teacher's explicit-transition-table style (core/dkg_state_machine.go's
// DKGStatus plus isValidStateChange) rather than a generic FSM library.
package pubkey

import (
	"encoding/json"
	"fmt"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

// State names a point in the aggregator's lifecycle.
type State uint32

const (
	Collecting State = iota
	Computing
	Published
	Failed
)

func (s State) String() string {
	switch s {
	case Collecting:
		return "Collecting"
	case Computing:
		return "Computing"
	case Published:
		return "Published"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

func isValidTransition(from, to State) bool {
	switch from {
	case Collecting:
		return to == Computing || to == Failed
	case Computing:
		return to == Published || to == Failed
	case Published, Failed:
		return false
	default:
		return false
	}
}

// Kernel performs the BFV aggregation math over collected pubkey shares.
// The BFV ring arithmetic itself is out of scope (spec §1); a concrete
// implementation sits behind this interface, reached from pkg/fhe.
type Kernel interface {
	AggregatePublicKeys(shares map[string][]byte) ([]byte, error)
}

// Aggregator holds one e3_id's public-key collection state.
type Aggregator struct {
	E3id       events.E3id
	State      State
	ThresholdN uint32
	Collected  map[string][]byte // node -> pubkey_bytes
}

// New starts a fresh Aggregator in Collecting, per spec §4.5.
func New(id events.E3id, thresholdN uint32) *Aggregator {
	return &Aggregator{
		E3id:       id,
		State:      Collecting,
		ThresholdN: thresholdN,
		Collected:  make(map[string][]byte),
	}
}

// OnKeyshareCreated handles a KeyshareCreated event. Duplicates (same node
// seen twice) are rejected silently, matching spec §4.5. Once |collected|
// reaches ThresholdN, transitions to Computing and returns true.
func (a *Aggregator) OnKeyshareCreated(node string, pubkey []byte) (readyToCompute bool) {
	if a.State != Collecting {
		return false
	}
	if _, dup := a.Collected[node]; dup {
		return false
	}
	a.Collected[node] = pubkey
	if uint32(len(a.Collected)) == a.ThresholdN {
		a.transition(Computing)
		return true
	}
	return false
}

// Compute runs kernel over the collected shares and transitions to
// Published on success or Failed on error, per spec §4.5.
func (a *Aggregator) Compute(kernel Kernel) (jointKey []byte, err error) {
	if a.State != Computing {
		return nil, fmt.Errorf("pubkey: Compute called in state %s, want Computing", a.State)
	}
	jointKey, err = kernel.AggregatePublicKeys(a.Collected)
	if err != nil {
		a.transition(Failed)
		return nil, err
	}
	a.transition(Published)
	return jointKey, nil
}

// Fail forces a transition to Failed from any non-terminal state, used when
// the router observes an external E3Failed for this e3_id. A no-op once
// already Published or Failed.
func (a *Aggregator) Fail() {
	if a.State == Published || a.State == Failed {
		return
	}
	a.transition(Failed)
}

func (a *Aggregator) transition(to State) {
	if !isValidTransition(a.State, to) {
		panic(fmt.Sprintf("pubkey: invalid transition %s -> %s", a.State, to))
	}
	a.State = to
}

// snapshot is the persisted shape of an Aggregator, matching spec §4.5's
// `{state, collected: map<node, pubkey>, threshold_n}`.
type snapshot struct {
	State      State             `json:"state"`
	ThresholdN uint32            `json:"threshold_n"`
	Collected  map[string][]byte `json:"collected"`
}

func (a *Aggregator) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{State: a.State, ThresholdN: a.ThresholdN, Collected: a.Collected})
}

func (a *Aggregator) UnmarshalJSON(raw []byte) error {
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return err
	}
	a.State = snap.State
	a.ThresholdN = snap.ThresholdN
	a.Collected = snap.Collected
	if a.Collected == nil {
		a.Collected = make(map[string][]byte)
	}
	return nil
}
