package node

import (
	stdsync "sync"
	"time"

	clock "github.com/jonboulle/clockwork"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

// watchdog enforces the ceremony deadlines of spec §4.3/§4.6: a committee
// that never aggregates a key within the DKG timeout, or a published
// ciphertext that never reaches a plaintext, fails the ceremony. One timer
// runs per armed stage per ceremony; progress or a terminal event disarms
// it.
type watchdog struct {
	clock   clock.Clock
	timeout time.Duration
	submit  func(events.Unsequenced) error

	mu     stdsync.Mutex
	timers map[string]chan struct{} // e3_id -> cancel channel of the armed timer
}

func newWatchdog(c clock.Clock, timeout time.Duration, submit func(events.Unsequenced) error) *watchdog {
	return &watchdog{
		clock:   c,
		timeout: timeout,
		submit:  submit,
		timers:  make(map[string]chan struct{}),
	}
}

func (w *watchdog) observe(ev events.Event) {
	id, scoped := ev.E3id()
	if !scoped {
		return
	}
	switch ev.Kind() {
	case events.KindCommitteeFinalized:
		w.arm(id, ev, events.FailureStageKeyPublished, events.ReasonInsufficientCommitteeMembers)
	case events.KindPublicKeyAggregated:
		w.disarm(id)
	case events.KindCiphertextOutputPublished:
		w.arm(id, ev, events.FailureStageDecryptionTimeout, events.ReasonDecryptionInvalidShares)
	case events.KindPlaintextAggregated, events.KindE3Failed, events.KindE3RequestComplete:
		w.disarm(id)
	}
}

func (w *watchdog) arm(id events.E3id, from events.Event, stage events.FailureStage, reason events.FailureReason) {
	w.mu.Lock()
	if prev, ok := w.timers[id.String()]; ok {
		close(prev)
	}
	cancel := make(chan struct{})
	w.timers[id.String()] = cancel
	w.mu.Unlock()

	go func() {
		select {
		case <-w.clock.After(w.timeout):
			failed := events.E3Failed{Stage: stage, Reason: reason}
			failed.Id = id
			_ = w.submit(events.Unsequenced{Payload: failed, OriginId: from.OriginId, CausationId: from.Id})
		case <-cancel:
		}
	}()
}

func (w *watchdog) disarm(id events.E3id) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cancel, ok := w.timers[id.String()]; ok {
		close(cancel)
		delete(w.timers, id.String())
	}
}
