// Package chain implements spec §4.10's EVM reader/writer adapters. The
// chain RPC client itself stays out of scope (spec §1: "blockchain RPC
// clients... remain external collaborators reached through interfaces"),
// so Client below is the adapter's only contract with a concrete EVM
// node; nothing in this package imports a chain SDK.
//
// Reader polls Client for new logs and emits events.EvmSyncEventsReceived
// batches, the same shape sync.Manager already knows how to unwrap.
// Writer watches the bus for the two aggregator write-side events
// (CommitteePublished, PlaintextOutputPublished) and forwards them to an
// injected Sender. Both are grounded on chain/sync/heartbeat.go's
// clockwork-driven poll loop, generalized from "fetch the next beacon
// round" to "fetch the next page of logs since a cursor".
package chain

import (
	"context"
	"time"

	clockwork "github.com/jonboulle/clockwork"

	"github.com/gnosisguild/enclave-sub005/pkg/bus"
	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

// Client reads logs from one EVM chain. A concrete implementation lives
// outside this module; it is responsible for translating chain logs into
// the wire-encoded events.Event bytes that Raw carries (spec §6's
// self-describing tagged union), e.g. E3Requested, CommitteeRequested,
// CiphertextOutputPublished, CiphernodeAdded, OperatorActivationChanged,
// TicketBalanceUpdated, ConfigurationUpdated.
type Client interface {
	// LatestBlock returns the chain's current head.
	LatestBlock(ctx context.Context) (uint64, error)
	// LogsSince returns wire-encoded events observed strictly after
	// fromBlock, up to and including the chain head, along with the
	// block number they were observed at.
	LogsSince(ctx context.Context, fromBlock uint64) (logs []Log, err error)
}

// Log is one chain log already translated to this system's wire format.
type Log struct {
	Block uint64
	Raw   []byte
}

// Sender submits transactions derived from aggregator outputs. A concrete
// implementation (wallet, gas estimation, nonce management) lives outside
// this module.
type Sender interface {
	PublishCommittee(ctx context.Context, e events.CommitteePublished) error
	PublishPlaintext(ctx context.Context, e events.PlaintextOutputPublished) error
}

// Submitter hands a decoded batch to the sequencer.
type Submitter func(events.Unsequenced) error

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	Log      elog.Logger
	Clock    clockwork.Clock
	Client   Client
	ChainID  uint64
	Interval time.Duration // how often to poll Client for new logs
	Submit   Submitter
}

// Reader polls one chain's Client on a fixed interval and emits
// EvmSyncEventsReceived batches for every new block range observed.
type Reader struct {
	log      elog.Logger
	clock    clockwork.Clock
	client   Client
	chainID  uint64
	interval time.Duration
	submit   Submitter

	lastBlock uint64
	done      chan struct{}
}

// NewReader constructs a Reader starting from fromBlock (exclusive).
func NewReader(c ReaderConfig, fromBlock uint64) *Reader {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	return &Reader{
		log:       c.Log,
		clock:     c.Clock,
		client:    c.Client,
		chainID:   c.ChainID,
		interval:  c.Interval,
		submit:    c.Submit,
		lastBlock: fromBlock,
		done:      make(chan struct{}),
	}
}

// Start begins the poll loop.
func (r *Reader) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop halts the poll loop. Idempotent.
func (r *Reader) Stop() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

func (r *Reader) run(ctx context.Context) {
	for {
		select {
		case <-r.clock.After(r.interval):
			if err := r.poll(ctx); err != nil {
				r.log.Warnw("chain: poll failed", "chain_id", r.chainID, "err", err)
			}
		case <-r.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reader) poll(ctx context.Context) error {
	logs, err := r.client.LogsSince(ctx, r.lastBlock)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}
	raw := make([][]byte, 0, len(logs))
	highest := r.lastBlock
	for _, l := range logs {
		raw = append(raw, l.Raw)
		if l.Block > highest {
			highest = l.Block
		}
	}
	if r.submit != nil {
		if err := r.submit(events.Unsequenced{
			Payload: events.EvmSyncEventsReceived{ChainID: r.chainID, Raw: raw},
		}); err != nil {
			return err
		}
	}
	r.lastBlock = highest
	return nil
}

// LastBlock reports the highest block number observed so far.
func (r *Reader) LastBlock() uint64 { return r.lastBlock }

// Writer forwards aggregator write-side events to a Sender.
type Writer struct {
	log    elog.Logger
	sender Sender
}

// NewWriter constructs a Writer and subscribes it to the bus.
func NewWriter(log elog.Logger, b *bus.Bus, sender Sender) *Writer {
	w := &Writer{log: log, sender: sender}
	b.Subscribe(events.KindCommitteePublished, w.onCommitteePublished)
	b.Subscribe(events.KindPlaintextOutputPublished, w.onPlaintextPublished)
	return w
}

func (w *Writer) onCommitteePublished(ctx context.Context, ev events.Event) error {
	e, ok := ev.Payload.(events.CommitteePublished)
	if !ok {
		return nil
	}
	if err := w.sender.PublishCommittee(ctx, e); err != nil {
		w.log.Errorw("chain: failed to publish committee key on-chain", "err", err)
		return err
	}
	return nil
}

func (w *Writer) onPlaintextPublished(ctx context.Context, ev events.Event) error {
	e, ok := ev.Payload.(events.PlaintextOutputPublished)
	if !ok {
		return nil
	}
	if err := w.sender.PublishPlaintext(ctx, e); err != nil {
		w.log.Errorw("chain: failed to publish plaintext output on-chain", "err", err)
		return err
	}
	return nil
}
