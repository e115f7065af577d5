// Package sequencer implements spec §4.2: it assigns a monotonic seq to
// every accepted unsequenced event, durably appends the sequenced event to
// an event log, indexes it by HLC timestamp for sync cursor resolution, and
// publishes it on the bus. It generalizes the teacher's round-assignment
// and durable-append pattern (chain/beacon.go's round bookkeeping backed by
// chain/boltdb) to an arbitrary event stream.
package sequencer

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/gnosisguild/enclave-sub005/pkg/bus"
	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/hlc"
	"github.com/gnosisguild/enclave-sub005/pkg/store"
)

type hlcEntry struct {
	ts  hlc.Timestamp
	seq uint64
}

// Sequencer is the single logical writer for the event log (invariant E3's
// "exactly one logical writer" generalized to the whole log, not just one
// e3_id): every Submit call is serialized by mu, so seq assignment and log
// append happen as one atomic step from the caller's point of view.
type Sequencer struct {
	log elog.Logger
	bus *bus.Bus

	clock *hlc.Clock

	logRepo   store.Repository // seq -> encoded event
	idRepo    store.Repository // event id -> seq, for dedup across restarts
	hlcRepo   store.Repository // sortable ts bytes -> seq

	mu      sync.Mutex
	lastSeq uint64
	hlcIdx  []hlcEntry // sorted ascending by ts, mirrors hlcRepo for fast seek
}

// New constructs a Sequencer over repo (typically store.NewRepository(backend, "//eventlog"))
// and rebuilds its in-memory indexes from the durable log, matching spec
// §4.2's recovery guarantee ("on restart, scan tail of log and rebuild tail
// of index" — here a full scan, acceptable at this scale).
func New(ctx context.Context, log elog.Logger, b *bus.Bus, clock *hlc.Clock, repo store.Repository) (*Sequencer, error) {
	s := &Sequencer{
		log:     log,
		bus:     b,
		clock:   clock,
		logRepo: repo.Sub("log"),
		idRepo:  repo.Sub("ids"),
		hlcRepo: repo.Sub("hlc"),
	}
	if err := s.rebuild(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func seqKey(seq uint64) string { return fmt.Sprintf("%020d", seq) }

func tsKey(ts hlc.Timestamp) string {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], ts.Wall)
	binary.BigEndian.PutUint64(b[8:16], ts.Logic)
	return string(b[:])
}

func (s *Sequencer) rebuild(ctx context.Context) error {
	var maxSeq uint64
	keys, err := s.logRepo.Keys(ctx)
	if err != nil {
		return err
	}
	sort.Strings(keys)
	for _, k := range keys {
		raw, err := s.logRepo.Read(ctx, k)
		if err != nil {
			return err
		}
		ev, err := events.DecodeEvent(raw)
		if err != nil {
			return err
		}
		if ev.Seq > maxSeq {
			maxSeq = ev.Seq
		}
		s.hlcIdx = append(s.hlcIdx, hlcEntry{ts: ev.Ts, seq: ev.Seq})
		if ev.Ts.Compare(hlc.Timestamp{}) > 0 {
			s.clock.Observe(ev.Ts)
		}
	}
	s.lastSeq = maxSeq
	return nil
}

// Submit is the Go equivalent of EventStoreRequested: it either returns the
// existing sequenced event for a previously-seen EventId (dedup, spec
// §4.2 step 2) or assigns the next seq, persists, and publishes it.
func (s *Sequencer) Submit(ctx context.Context, u events.Unsequenced, remoteTs *hlc.Timestamp) (events.Event, error) {
	id := u.Id()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existingSeqBytes, err := s.idRepo.Read(ctx, id.String()); err == nil {
		existingSeq := binary.BigEndian.Uint64(existingSeqBytes)
		raw, err := s.logRepo.Read(ctx, seqKey(existingSeq))
		if err != nil {
			return events.Event{}, err
		}
		return events.DecodeEvent(raw)
	} else if err != store.ErrNotFound {
		return events.Event{}, err
	}

	var ts hlc.Timestamp
	if remoteTs != nil {
		ts = s.clock.Observe(*remoteTs)
	} else {
		ts = s.clock.Now()
	}

	seq := s.lastSeq + 1
	sealed := events.Seal(u, id, seq, ts)

	wire, err := events.EncodeEvent(sealed)
	if err != nil {
		return events.Event{}, err
	}
	// Durability before publish (spec §9: "the event log write must be
	// durable before publishing; otherwise a crash between publish and
	// persist would emit events that never reappear on restart").
	if err := s.logRepo.Write(ctx, seqKey(seq), wire); err != nil {
		return events.Event{}, err
	}
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	if err := s.idRepo.Write(ctx, id.String(), seqBytes[:]); err != nil {
		return events.Event{}, err
	}
	if err := s.hlcRepo.Write(ctx, tsKey(ts), seqBytes[:]); err != nil {
		return events.Event{}, err
	}

	s.lastSeq = seq
	s.hlcIdx = append(s.hlcIdx, hlcEntry{ts: ts, seq: seq})

	s.bus.Publish(ctx, sealed)

	return sealed, nil
}

// LastSeq returns the most recently assigned sequence number.
func (s *Sequencer) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// SeekForPrev returns the greatest seq whose ts <= input, used by the sync
// protocol to translate HLC cursors between nodes (spec §4.2).
func (s *Sequencer) SeekForPrev(ts hlc.Timestamp) (seq uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := sort.Search(len(s.hlcIdx), func(i int) bool {
		return s.hlcIdx[i].ts.Compare(ts) > 0
	})
	if idx == 0 {
		return 0, false
	}
	return s.hlcIdx[idx-1].seq, true
}

// Since returns every sequenced event with seq > fromSeq, in seq order,
// used by the event log iteration contract of spec §4.2.
func (s *Sequencer) Since(ctx context.Context, fromSeq uint64) ([]events.Event, error) {
	s.mu.Lock()
	last := s.lastSeq
	s.mu.Unlock()

	var out []events.Event
	for seq := fromSeq + 1; seq <= last; seq++ {
		raw, err := s.logRepo.Read(ctx, seqKey(seq))
		if err != nil {
			return nil, err
		}
		ev, err := events.DecodeEvent(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
