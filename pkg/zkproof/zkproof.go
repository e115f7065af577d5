// Package zkproof orchestrates proof requests against an external circuit
// backend (Noir/Barretenberg, out of scope per spec §1) through a bounded
// worker pool, and cancels outstanding work for a ceremony once it
// terminates (spec §4.9). It generalizes the teacher's per-destination
// sender/dispatcher pair (core/broadcast.go) from "one worker per peer" to
// "N fungible workers pulling from one shared queue", since any worker can
// service any proof request.
package zkproof

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

// Backend performs the actual proof generation. The concrete circuit
// implementation is out of scope (spec §1); this interface is its only
// contract with the rest of the system.
type Backend interface {
	Prove(ctx context.Context, req Request) (proof []byte, err error)
}

// Request names one proof obligation: a T0 (correct BFV public-key
// generation), C4a (SecretKey decryption), or C4b (SmudgingNoise
// decryption) proof for one party in one ceremony (spec §4.6/§4.9). Stage
// is the ceremony stage to blame in E3Failed if verification fails.
type Request struct {
	E3id    events.E3id
	PartyId uint64
	Kind    string // "T0", "C4a", "C4b"
	Input   []byte
	Stage   events.FailureStage
}

type job struct {
	id  uuid.UUID // correlates a queued request with its worker logs
	req Request
	ctx context.Context
}

type ceremony struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Submitter hands a finished proof (or a verification failure) back to the
// sequencer as a new unsequenced event, decoupling the pool from any
// concrete sequencer type.
type Submitter func(events.Unsequenced) error

// Pool is the bounded worker pool described by spec §4.9: "bounded to
// max_threads; excess requests queue."
type Pool struct {
	log     elog.Logger
	backend Backend
	submit  Submitter

	jobs chan job
	wg   sync.WaitGroup

	mu         sync.Mutex
	ceremonies map[string]*ceremony
}

// New starts maxThreads worker goroutines pulling from a shared queue.
func New(log elog.Logger, backend Backend, maxThreads int, submit Submitter) *Pool {
	p := &Pool{
		log:        log,
		backend:    backend,
		submit:     submit,
		jobs:       make(chan job, maxThreads*4),
		ceremonies: make(map[string]*ceremony),
	}
	for i := 0; i < maxThreads; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues req, blocking if the queue is full ("excess requests
// queue", spec §4.9). A no-op if req's ceremony was already cancelled.
func (p *Pool) Submit(req Request) {
	ctx := p.ctxFor(req.E3id)
	select {
	case <-ctx.Done():
		return
	default:
	}
	j := job{id: uuid.New(), req: req, ctx: ctx}
	p.log.Debugw("zkproof: queued", "job", j.id.String(), "kind", req.Kind, "e3id", req.E3id.String())
	p.jobs <- j
}

func (p *Pool) ctxFor(id events.E3id) context.Context {
	key := id.String()
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.ceremonies[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		c = &ceremony{ctx: ctx, cancel: cancel}
		p.ceremonies[key] = c
	}
	return c.ctx
}

// Cancel discards outstanding and in-flight proof requests for id,
// triggered by E3Failed or E3RequestComplete (spec §4.9). The ceremony's
// context stays cancelled afterward, so any late Submit for the same id
// is a no-op rather than starting a fresh round of work.
func (p *Pool) Cancel(id events.E3id) {
	key := id.String()
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.ceremonies[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		c = &ceremony{ctx: ctx, cancel: cancel}
		p.ceremonies[key] = c
	}
	c.cancel()
}

// Close stops accepting new work and waits for in-flight workers to drain.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		select {
		case <-j.ctx.Done():
			continue
		default:
		}
		proof, err := p.backend.Prove(j.ctx, j.req)
		if j.ctx.Err() != nil {
			continue
		}
		if err != nil {
			p.log.Warnw("zkproof: proof failed", "kind", j.req.Kind, "e3id", j.req.E3id.String(), "err", err)
			failure := events.E3Failed{Stage: j.req.Stage, Reason: events.ReasonVerificationFailed}
			failure.Id = j.req.E3id
			if submitErr := p.submit(events.Unsequenced{Payload: failure}); submitErr != nil {
				p.log.Errorw("zkproof: failed to submit failure event", "err", submitErr)
			}
			continue
		}
		signed := events.DkgProofSigned{PartyId: j.req.PartyId, ProofKind: j.req.Kind, Proof: proof}
		signed.Id = j.req.E3id
		if submitErr := p.submit(events.Unsequenced{Payload: signed}); submitErr != nil {
			p.log.Errorw("zkproof: failed to submit signed proof event", "err", submitErr)
		}
	}
}
