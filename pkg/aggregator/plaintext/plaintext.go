// Package plaintext implements the plaintext aggregator state machine
// (spec §4.7): Collecting -> Reconstructing -> Published -> Failed,
// the same explicit-transition-table style as pkg/aggregator/pubkey,
// grounded on core/dkg_state_machine.go.
package plaintext

import (
	"encoding/json"
	"fmt"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

type State uint32

const (
	Collecting State = iota
	Reconstructing
	Published
	Failed
)

func (s State) String() string {
	switch s {
	case Collecting:
		return "Collecting"
	case Reconstructing:
		return "Reconstructing"
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
		return to == Reconstructing || to == Failed
	case Reconstructing:
		return to == Published || to == Failed
	case Published, Failed:
		return false
	default:
		return false
	}
}

// Kernel performs the BFV threshold-combine math (Lagrange at 0 plus CRT
// reconstruction, spec §4.7) over collected decryption shares. Out of
// scope per spec §1; a concrete implementation sits behind this interface.
type Kernel interface {
	Reconstruct(shares map[string][]byte) ([]byte, error)
}

// Aggregator holds one e3_id's plaintext reconstruction state.
type Aggregator struct {
	E3id       events.E3id
	State      State
	ThresholdM uint32
	Collected  map[string][]byte // node -> decryption share
}

// New starts a fresh Aggregator in Collecting.
func New(id events.E3id, thresholdM uint32) *Aggregator {
	return &Aggregator{
		E3id:       id,
		State:      Collecting,
		ThresholdM: thresholdM,
		Collected:  make(map[string][]byte),
	}
}

// OnDecryptionshareCreated handles a DecryptionshareCreated event.
// Duplicates-per-node are rejected silently, matching spec §4.7. Once
// |collected| reaches ThresholdM, transitions to Reconstructing.
func (a *Aggregator) OnDecryptionshareCreated(node string, share []byte) (readyToReconstruct bool) {
	if a.State != Collecting {
		return false
	}
	if _, dup := a.Collected[node]; dup {
		return false
	}
	a.Collected[node] = share
	if uint32(len(a.Collected)) >= a.ThresholdM {
		a.transition(Reconstructing)
		return true
	}
	return false
}

// Reconstruct runs kernel over the collected shares and transitions to
// Published on success or Failed on error, per spec §4.7.
func (a *Aggregator) Reconstruct(kernel Kernel) (plaintext []byte, err error) {
	if a.State != Reconstructing {
		return nil, fmt.Errorf("plaintext: Reconstruct called in state %s, want Reconstructing", a.State)
	}
	plaintext, err = kernel.Reconstruct(a.Collected)
	if err != nil {
		a.transition(Failed)
		return nil, err
	}
	a.transition(Published)
	return plaintext, nil
}

// Fail forces a transition to Failed, a no-op once already Published or
// Failed.
func (a *Aggregator) Fail() {
	if a.State == Published || a.State == Failed {
		return
	}
	a.transition(Failed)
}

func (a *Aggregator) transition(to State) {
	if !isValidTransition(a.State, to) {
		panic(fmt.Sprintf("plaintext: invalid transition %s -> %s", a.State, to))
	}
	a.State = to
}

type snapshot struct {
	State      State             `json:"state"`
	ThresholdM uint32            `json:"threshold_m"`
	Collected  map[string][]byte `json:"collected"`
}

func (a *Aggregator) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{State: a.State, ThresholdM: a.ThresholdM, Collected: a.Collected})
}

func (a *Aggregator) UnmarshalJSON(raw []byte) error {
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return err
	}
	a.State = snap.State
	a.ThresholdM = snap.ThresholdM
	a.Collected = snap.Collected
	if a.Collected == nil {
		a.Collected = make(map[string][]byte)
	}
	return nil
}
