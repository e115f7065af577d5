// Package sync implements spec §4.8: bring a restarting or newly joined
// node up to the globally consistent event prefix before enabling effect
// emission. It tracks one cursor per aggregate (a logical partition;
// aggregate_id 0 is global, aggregate_id = chain_id for blockchain-derived
// events), requests catch-up from peers and EVM readers, resubmits
// incoming events through the sequencer for idempotent dedup, and arms
// effect-producing subscribers only once every aggregate has gone quiet.
// Grounded on chain/sync/heartbeat.go's clockwork-driven run loop (tick,
// fan out fetches, collect replies) and chain/beacon/sync_manager.go's
// cancel-and-restart-on-stall shape, generalized from "catch up to a
// round" to "catch up to a log prefix, per aggregate".
package sync

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"
	"time"

	clockwork "github.com/jonboulle/clockwork"

	"github.com/gnosisguild/enclave-sub005/pkg/bus"
	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/hlc"
	"github.com/gnosisguild/enclave-sub005/pkg/sequencer"
	"github.com/gnosisguild/enclave-sub005/pkg/store"
)

// GlobalAggregate is aggregate_id 0, spec §4.8's "global" partition.
const GlobalAggregate uint64 = 0

// Cursor is one aggregate's catch-up position.
type Cursor struct {
	Seq   uint64
	Ts    hlc.Timestamp
	Block *uint64
}

// Manager implements the sync protocol described above.
type Manager struct {
	log   elog.Logger
	clock clockwork.Clock
	seqr  *sequencer.Sequencer

	seqRepo   store.Repository
	tsRepo    store.Repository
	blockRepo store.Repository

	quiescence time.Duration
	aggregates []uint64

	mu           sync.Mutex
	cursors      map[uint64]Cursor
	lastActivity map[uint64]time.Time
	quiet        map[uint64]bool
	armed        bool

	incoming chan events.Event
	done     chan struct{}
}

// Config configures a Manager.
type Config struct {
	Log        elog.Logger
	Clock      clockwork.Clock
	Sequencer  *sequencer.Sequencer
	Backend    store.Store   // cursor repositories are rooted directly on the backend
	Quiescence time.Duration // no new events for this long on an aggregate => caught up
	Chains     []uint64      // known chain_id aggregates beyond the global one
}

// New constructs a Manager and hydrates any persisted cursors (spec §6's
// `//aggregate_{seq|ts|block}/{aggregate_id}` layout).
func New(ctx context.Context, c Config) (*Manager, error) {
	if c.Quiescence <= 0 {
		c.Quiescence = 5 * time.Second
	}
	m := &Manager{
		log:          c.Log,
		clock:        c.Clock,
		seqr:         c.Sequencer,
		seqRepo:      store.NewRepository(c.Backend, "//aggregate_seq"),
		tsRepo:       store.NewRepository(c.Backend, "//aggregate_ts"),
		blockRepo:    store.NewRepository(c.Backend, "//aggregate_block"),
		quiescence:   c.Quiescence,
		aggregates:   append([]uint64{GlobalAggregate}, c.Chains...),
		cursors:      make(map[uint64]Cursor),
		lastActivity: make(map[uint64]time.Time),
		quiet:        make(map[uint64]bool),
		incoming:     make(chan events.Event, 64),
		done:         make(chan struct{}),
	}
	if err := m.hydrate(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func aggKey(id uint64) string { return fmt.Sprintf("%020d", id) }

func (m *Manager) hydrate(ctx context.Context) error {
	keys, err := m.seqRepo.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			continue
		}
		cur, err := m.readCursor(ctx, id)
		if err != nil {
			return err
		}
		m.cursors[id] = cur
	}
	return nil
}

func (m *Manager) readCursor(ctx context.Context, id uint64) (Cursor, error) {
	var cur Cursor
	if raw, err := m.seqRepo.Read(ctx, aggKey(id)); err == nil {
		cur.Seq = binary.BigEndian.Uint64(raw)
	} else if err != store.ErrNotFound {
		return Cursor{}, err
	}
	if raw, err := m.tsRepo.Read(ctx, aggKey(id)); err == nil {
		cur.Ts = hlc.Timestamp{Wall: binary.BigEndian.Uint64(raw[0:8]), Logic: binary.BigEndian.Uint64(raw[8:16])}
	} else if err != store.ErrNotFound {
		return Cursor{}, err
	}
	if raw, err := m.blockRepo.Read(ctx, aggKey(id)); err == nil {
		block := binary.BigEndian.Uint64(raw)
		cur.Block = &block
	} else if err != store.ErrNotFound {
		return Cursor{}, err
	}
	return cur, nil
}

func (m *Manager) persistCursor(ctx context.Context, id uint64, cur Cursor) error {
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], cur.Seq)
	if err := m.seqRepo.Write(ctx, aggKey(id), seqBytes[:]); err != nil {
		return err
	}
	var tsBytes [16]byte
	binary.BigEndian.PutUint64(tsBytes[0:8], cur.Ts.Wall)
	binary.BigEndian.PutUint64(tsBytes[8:16], cur.Ts.Logic)
	if err := m.tsRepo.Write(ctx, aggKey(id), tsBytes[:]); err != nil {
		return err
	}
	if cur.Block != nil {
		var blockBytes [8]byte
		binary.BigEndian.PutUint64(blockBytes[:], *cur.Block)
		if err := m.blockRepo.Write(ctx, aggKey(id), blockBytes[:]); err != nil {
			return err
		}
	}
	return nil
}

// Start subscribes to incoming sync traffic, publishes the initial
// SyncRequest per aggregate, and begins the quiescence-tracking run loop.
func (m *Manager) Start(ctx context.Context, b *bus.Bus) error {
	b.Subscribe(events.KindEvmSyncEventsReceived, m.onBusEvent)
	b.Subscribe(events.KindNetEventsReceived, m.onBusEvent)

	m.mu.Lock()
	for _, agg := range m.aggregates {
		m.lastActivity[agg] = m.clock.Now()
	}
	m.mu.Unlock()

	for _, agg := range m.aggregates {
		if err := m.requestSync(ctx, agg); err != nil {
			return err
		}
	}

	go m.run(ctx)
	return nil
}

// Stop halts the run loop. Idempotent.
func (m *Manager) Stop() {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

func (m *Manager) onBusEvent(ctx context.Context, ev events.Event) error {
	select {
	case m.incoming <- ev:
	default:
		m.log.Warnw("sync: incoming queue full, dropping event", "kind", ev.Kind())
	}
	return nil
}

func (m *Manager) requestSync(ctx context.Context, aggregate uint64) error {
	m.mu.Lock()
	cur := m.cursors[aggregate]
	m.mu.Unlock()

	req := events.SyncRequest{AggregateId: aggregate, SinceWall: cur.Ts.Wall, SinceLogic: cur.Ts.Logic}
	_, err := m.seqr.Submit(ctx, events.Unsequenced{Payload: req}, nil)
	return err
}

func (m *Manager) run(ctx context.Context) {
	for {
		select {
		case ev := <-m.incoming:
			m.handleIncoming(ctx, ev)
		case <-m.clock.After(m.quiescence / 2):
			m.checkQuiescence(ctx)
		case <-m.done:
			return
		}
	}
}

func (m *Manager) handleIncoming(ctx context.Context, ev events.Event) {
	aggregate, raw, ok := aggregateAndRaw(ev.Payload)
	if !ok {
		return
	}
	for _, wire := range raw {
		inner, err := events.DecodeEvent(wire)
		if err != nil {
			m.log.Warnw("sync: failed to decode incoming event", "aggregate", aggregate, "err", err)
			continue
		}
		sealed, err := m.seqr.Submit(ctx, events.Unsequenced{
			Payload:     inner.Payload,
			OriginId:    inner.OriginId,
			CausationId: inner.CausationId,
		}, &inner.Ts)
		if err != nil {
			m.log.Errorw("sync: failed to resubmit incoming event", "aggregate", aggregate, "err", err)
			continue
		}
		m.noteActivity(aggregate, sealed)
	}
}

func (m *Manager) noteActivity(aggregate uint64, sealed events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity[aggregate] = m.clock.Now()
	m.quiet[aggregate] = false
	cur := m.cursors[aggregate]
	if sealed.Seq > cur.Seq {
		cur.Seq = sealed.Seq
		cur.Ts = sealed.Ts
	}
	m.cursors[aggregate] = cur
}

func (m *Manager) checkQuiescence(ctx context.Context) {
	m.mu.Lock()
	now := m.clock.Now()
	allQuiet := true
	var newlyQuiet []uint64
	for _, agg := range m.aggregates {
		if m.quiet[agg] {
			continue
		}
		if now.Sub(m.lastActivity[agg]) >= m.quiescence {
			m.quiet[agg] = true
			newlyQuiet = append(newlyQuiet, agg)
		} else {
			allQuiet = false
		}
	}
	armed := m.armed
	m.mu.Unlock()

	for _, agg := range newlyQuiet {
		if _, err := m.seqr.Submit(ctx, events.Unsequenced{Payload: events.SyncEffect{AggregateId: agg}}, nil); err != nil {
			m.log.Errorw("sync: failed to submit SyncEffect", "aggregate", agg, "err", err)
		}
	}

	if !allQuiet || armed {
		return
	}

	m.mu.Lock()
	m.armed = true
	cursors := make(map[uint64]Cursor, len(m.cursors))
	for k, v := range m.cursors {
		cursors[k] = v
	}
	m.mu.Unlock()

	for agg, cur := range cursors {
		if err := m.persistCursor(ctx, agg, cur); err != nil {
			m.log.Errorw("sync: failed to persist cursor", "aggregate", agg, "err", err)
		}
	}

	if _, err := m.seqr.Submit(ctx, events.Unsequenced{Payload: events.EffectsEnabled{}}, nil); err != nil {
		m.log.Errorw("sync: failed to submit EffectsEnabled", "err", err)
	}
}

// Armed reports whether EffectsEnabled has fired.
func (m *Manager) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// Cursor returns the current cursor for aggregate, if known.
func (m *Manager) Cursor(aggregate uint64) (Cursor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.cursors[aggregate]
	return cur, ok
}

func aggregateAndRaw(p events.Payload) (aggregate uint64, raw [][]byte, ok bool) {
	switch v := p.(type) {
	case events.EvmSyncEventsReceived:
		return v.ChainID, v.Raw, true
	case *events.EvmSyncEventsReceived:
		return v.ChainID, v.Raw, true
	case events.NetEventsReceived:
		return GlobalAggregate, v.Raw, true
	case *events.NetEventsReceived:
		return GlobalAggregate, v.Raw, true
	default:
		return 0, nil, false
	}
}
