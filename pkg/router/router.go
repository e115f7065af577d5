// Package router dispatches every event scoped to an E3id to a per-ceremony
// Context, running a fixed, ordered set of composable Extensions against it.
// It generalizes the teacher's per-entity lifecycle dispatch
// (core/drand_daemon.go's per-beacon-id process table, core/dkg.go's
// hydrate-from-group-file-on-restart) from "one beacon process per chain" to
// "one Context per ceremony".
package router

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
	"github.com/gnosisguild/enclave-sub005/pkg/store"
)

// Extension owns one typed slot of a Context. Ordering matters: extensions
// run in registration order per event, and later extensions may read slots
// an earlier extension wrote for the same event (spec §4.4).
type Extension interface {
	// Name identifies this extension's slot in a persisted snapshot.
	Name() string
	// OnEvent mutates c in response to ev. Must be idempotent: replaying the
	// same event against the same starting state must produce the same
	// final state.
	OnEvent(ctx context.Context, c *Context, ev events.Event) error
	// Hydrate restores this extension's slot from a previously persisted
	// snapshot fragment. raw is nil if the extension had no prior state.
	Hydrate(ctx context.Context, c *Context, raw json.RawMessage) error
	// Snapshot returns this extension's current slot, to be merged into the
	// Context-wide persisted snapshot.
	Snapshot(c *Context) (json.RawMessage, error)
}

// Context is the per-ceremony scratch space extensions read and write.
// Slots are keyed by Extension.Name() and typed as `any` because each
// extension owns the concrete type behind its own key.
type Context struct {
	mu       sync.Mutex
	E3id     events.E3id
	Slots    map[string]any
	Terminal bool
}

func newContext(id events.E3id) *Context {
	return &Context{E3id: id, Slots: make(map[string]any)}
}

// Get returns the value an extension stored under key, if any.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.Slots[key]
	return v, ok
}

// Set stores value under key.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Slots[key] = value
}

type persistedSnapshot struct {
	Terminal bool                       `json:"terminal"`
	Slots    map[string]json.RawMessage `json:"slots"`
}

// Router owns the live Context table and the ordered extension chain.
type Router struct {
	log        elog.Logger
	extensions []Extension
	repo       store.Repository

	mu       sync.Mutex
	contexts map[string]*Context
}

// New constructs a Router. repo is typically store.NewRepository(backend, "//context").
func New(log elog.Logger, repo store.Repository, extensions ...Extension) *Router {
	return &Router{
		log:        log,
		extensions: extensions,
		repo:       repo,
		contexts:   make(map[string]*Context),
	}
}

// Dispatch routes ev to its ceremony Context, creating or hydrating it as
// needed, then drops the Context on a terminal event (spec §4.4).
func (r *Router) Dispatch(ctx context.Context, ev events.Event) error {
	id, scoped := ev.E3id()
	if !scoped {
		return nil
	}

	c, err := r.contextFor(ctx, id)
	if err != nil {
		return err
	}

	for _, ext := range r.extensions {
		if err := ext.OnEvent(ctx, c, ev); err != nil {
			r.log.Warnw("router: extension failed", "extension", ext.Name(), "e3id", id.String(), "err", err)
			return err
		}
	}

	if err := r.persist(ctx, c); err != nil {
		return err
	}

	if isTerminal(ev) {
		r.mu.Lock()
		delete(r.contexts, id.String())
		r.mu.Unlock()
		c.mu.Lock()
		c.Terminal = true
		c.mu.Unlock()
		return r.persist(ctx, c)
	}

	return nil
}

func isTerminal(ev events.Event) bool {
	switch ev.Kind() {
	case events.KindE3RequestComplete:
		return true
	case events.KindE3Failed:
		return true
	default:
		return false
	}
}

// ContextOf returns the live (or hydrated-from-snapshot) Context for id,
// for diagnostics and tests. It does not run extensions.
func (r *Router) ContextOf(ctx context.Context, id events.E3id) (*Context, error) {
	return r.contextFor(ctx, id)
}

func (r *Router) contextFor(ctx context.Context, id events.E3id) (*Context, error) {
	r.mu.Lock()
	if c, ok := r.contexts[id.String()]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	c := newContext(id)
	raw, err := r.repo.Read(ctx, id.String())
	switch err {
	case nil:
		var snap persistedSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, err
		}
		c.Terminal = snap.Terminal
		for _, ext := range r.extensions {
			if err := ext.Hydrate(ctx, c, snap.Slots[ext.Name()]); err != nil {
				return nil, err
			}
		}
	case store.ErrNotFound:
		for _, ext := range r.extensions {
			if err := ext.Hydrate(ctx, c, nil); err != nil {
				return nil, err
			}
		}
	default:
		return nil, err
	}

	r.mu.Lock()
	if !c.Terminal {
		r.contexts[id.String()] = c
	}
	r.mu.Unlock()
	return c, nil
}

func (r *Router) persist(ctx context.Context, c *Context) error {
	snap := persistedSnapshot{Slots: make(map[string]json.RawMessage, len(r.extensions))}
	c.mu.Lock()
	snap.Terminal = c.Terminal
	c.mu.Unlock()

	for _, ext := range r.extensions {
		raw, err := ext.Snapshot(c)
		if err != nil {
			return err
		}
		if raw != nil {
			snap.Slots[ext.Name()] = raw
		}
	}

	wire, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.repo.Write(ctx, c.E3id.String(), wire)
}
