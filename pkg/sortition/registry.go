package sortition

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/store"
)

// Registry maintains the per-chain registered-node set that sortition
// candidates are drawn from, updated by CiphernodeAdded and
// OperatorActivationChanged events (spec §4.3), persisted under //sortition
// (spec §6) so it survives restart — a feature named but not detailed by
// the distilled spec, supplemented from original_source/crates/sortition/src
// per SPEC_FULL.md §10.
type Registry struct {
	mu    sync.RWMutex
	nodes map[uint64]map[string]bool // chainID -> address -> active
	repo  store.Repository
}

// NewRegistry constructs a Registry persisted under repo and hydrates it
// from any previously stored snapshot.
func NewRegistry(ctx context.Context, repo store.Repository) (*Registry, error) {
	r := &Registry{nodes: make(map[uint64]map[string]bool), repo: repo}
	if err := r.hydrate(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

type chainSnapshot struct {
	ChainID uint64          `json:"chain_id"`
	Nodes   map[string]bool `json:"nodes"`
}

func (r *Registry) hydrate(ctx context.Context) error {
	keys, err := r.repo.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		raw, err := r.repo.Read(ctx, k)
		if err != nil {
			return err
		}
		var snap chainSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return err
		}
		r.nodes[snap.ChainID] = snap.Nodes
	}
	return nil
}

func (r *Registry) persist(ctx context.Context, chainID uint64) error {
	snap := chainSnapshot{ChainID: chainID, Nodes: r.nodes[chainID]}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.repo.Write(ctx, chainKey(chainID), raw)
}

func chainKey(chainID uint64) string {
	return fmt.Sprintf("%020d", chainID)
}

// OnCiphernodeAdded registers a node as active on chainID.
func (r *Registry) OnCiphernodeAdded(ctx context.Context, ev events.CiphernodeAdded) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nodes[ev.ChainID] == nil {
		r.nodes[ev.ChainID] = make(map[string]bool)
	}
	r.nodes[ev.ChainID][ev.Address] = true
	return r.persist(ctx, ev.ChainID)
}

// OnOperatorActivationChanged flips a node's activation flag on chainID.
func (r *Registry) OnOperatorActivationChanged(ctx context.Context, ev events.OperatorActivationChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nodes[ev.ChainID] == nil {
		r.nodes[ev.ChainID] = make(map[string]bool)
	}
	r.nodes[ev.ChainID][ev.Address] = ev.Active
	return r.persist(ctx, ev.ChainID)
}

// Candidates returns the currently active registered addresses for chainID,
// the registered_nodes_snapshot input to Select (spec §4.3/invariant E5).
func (r *Registry) Candidates(chainID uint64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for addr, active := range r.nodes[chainID] {
		if active {
			out = append(out, addr)
		}
	}
	return out
}
