// Package httpapi is the node's read-only diagnostics HTTP endpoint:
// health, captured event history (when bus history capture is enabled),
// and the Prometheus scrape surface.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/gorilla/handlers"
	json "github.com/nikkolasg/hexjson"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

// Health is the /health response body.
type Health struct {
	Status  string `json:"status"`
	LastSeq uint64 `json:"last_seq"`
	Armed   bool   `json:"armed"`
}

// Config wires the server to the node's introspection hooks.
type Config struct {
	Log elog.Logger
	// Health reports the node's current state.
	Health func() Health
	// History returns the captured bus history; nil disables the
	// /history routes (capture off).
	History func() []events.Event
	// Metrics, if non-nil, is mounted at /metrics.
	Metrics http.Handler
	// Control, if non-nil, is the REST/JSON control bridge
	// (netrpc.RESTHandler), mounted under /api.
	Control http.Handler
}

// Server serves the diagnostics surface.
type Server struct {
	log     elog.Logger
	handler http.Handler
	srv     *http.Server
	lis     net.Listener
}

// New assembles the route table.
func New(cfg Config) *Server {
	s := &Server{log: cfg.Log}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, cfg.Health())
	})
	if cfg.History != nil {
		r.Get("/history", func(w http.ResponseWriter, _ *http.Request) {
			s.writeDump(w, cfg.History())
		})
		r.Get("/history/{chain}/{id}", func(w http.ResponseWriter, req *http.Request) {
			chainID, err := strconv.ParseUint(chi.URLParam(req, "chain"), 10, 64)
			if err != nil {
				http.Error(w, "bad chain id", http.StatusBadRequest)
				return
			}
			want := events.E3id{ChainID: chainID, ID: chi.URLParam(req, "id")}
			var filtered []events.Event
			for _, ev := range cfg.History() {
				if id, ok := ev.E3id(); ok && id == want {
					filtered = append(filtered, ev)
				}
			}
			s.writeDump(w, filtered)
		})
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.Control != nil {
		r.Handle("/api/*", http.StripPrefix("/api", cfg.Control))
	}

	s.handler = handlers.RecoveryHandler()(handlers.CompressHandler(r))
	return s
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	raw, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(raw)
}

func (s *Server) writeDump(w http.ResponseWriter, evs []events.Event) {
	raw, err := events.DumpEvents(evs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

// Handler exposes the assembled route table, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start binds addr and serves in the background.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = lis
	s.srv = &http.Server{Handler: s.handler}
	go func() {
		if err := s.srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			s.log.Errorw("httpapi: server stopped", "err", err)
		}
	}()
	s.log.Infow("httpapi: listening", "addr", lis.Addr().String())
	return nil
}

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
