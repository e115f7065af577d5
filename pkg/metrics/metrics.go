// Package metrics exposes the node's Prometheus surface: event-flow
// counters, ceremony gauges, and proof-pool depth, served over a
// dedicated listener.
package metrics

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gnosisguild/enclave-sub005/pkg/bus"
	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

var (
	// PrivateMetrics is the node-internal registry (go process, event
	// flow, ceremony state).
	PrivateMetrics = prometheus.NewRegistry()

	// EventsSequenced counts every event delivered on the bus, by kind.
	EventsSequenced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_sequenced_total",
		Help: "Number of sequenced events delivered on the bus",
	}, []string{"kind"})

	// CeremoniesStarted counts E3Requested events observed.
	CeremoniesStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ceremonies_started_total",
		Help: "Number of ceremonies requested",
	})

	// CeremoniesFinished counts terminal ceremony events by outcome.
	CeremoniesFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ceremonies_finished_total",
		Help: "Number of ceremonies reaching a terminal state",
	}, []string{"outcome"})

	// CommitteeSize is the node count of the most recently finalized committee.
	CommitteeSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "committee_size",
		Help: "Size of the most recently finalized committee",
	})

	// CommitteeThreshold is threshold_m of the most recently finalized committee.
	CommitteeThreshold = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "committee_threshold",
		Help: "Decryption threshold of the most recently finalized committee",
	})

	// SyncArmed is 1 once EffectsEnabled has been observed.
	SyncArmed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_armed",
		Help: "Whether effect-producing subscribers are armed (post-sync)",
	})

	// ErrorsObserved counts EnclaveError events by type tag.
	ErrorsObserved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enclave_errors_total",
		Help: "Number of EnclaveError events observed, by EType",
	}, []string{"etype"})
)

func init() {
	PrivateMetrics.MustRegister(collectors.NewGoCollector())
	PrivateMetrics.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	PrivateMetrics.MustRegister(EventsSequenced, CeremoniesStarted, CeremoniesFinished,
		CommitteeSize, CommitteeThreshold, SyncArmed, ErrorsObserved)
}

// Hook subscribes the metric collectors to the bus. Handlers only bump
// counters, so they respect the bus's must-not-block contract.
func Hook(b *bus.Bus) {
	b.Subscribe(events.WildcardTopic, func(_ context.Context, ev events.Event) error {
		EventsSequenced.WithLabelValues(string(ev.Kind())).Inc()
		switch p := ev.Payload.(type) {
		case events.E3Requested:
			CeremoniesStarted.Inc()
		case *events.E3Requested:
			CeremoniesStarted.Inc()
		case events.CommitteeFinalized:
			CommitteeSize.Set(float64(len(p.Nodes)))
			CommitteeThreshold.Set(float64(p.ThresholdM))
		case *events.CommitteeFinalized:
			CommitteeSize.Set(float64(len(p.Nodes)))
			CommitteeThreshold.Set(float64(p.ThresholdM))
		case events.EnclaveError:
			ErrorsObserved.WithLabelValues(string(p.Etype)).Inc()
		case *events.EnclaveError:
			ErrorsObserved.WithLabelValues(string(p.Etype)).Inc()
		}
		switch ev.Kind() {
		case events.KindE3RequestComplete:
			CeremoniesFinished.WithLabelValues("complete").Inc()
		case events.KindE3Failed:
			CeremoniesFinished.WithLabelValues("failed").Inc()
		case events.KindEffectsEnabled:
			SyncArmed.Set(1)
		}
		return nil
	})
}

// Handler returns the scrape handler for the private registry, mountable
// on the diagnostics HTTP server.
func Handler() http.Handler {
	return promhttp.HandlerFor(PrivateMetrics, promhttp.HandlerOpts{})
}

// Start serves the scrape handler on addr and returns the bound listener.
func Start(log elog.Logger, addr string) (net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	s := &http.Server{Handler: mux}
	go func() {
		if err := s.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Errorw("metrics: server stopped", "err", err)
		}
	}()
	log.Infow("metrics: listening", "addr", lis.Addr().String())
	return lis, nil
}
