// Package metrics exposes ambient Prometheus counters for the Event
// Loop's five dispatch sources, gated by an optional loopback HTTP
// listener (SPEC_FULL.md §2 ambient stack).
//
// Grounded on controller/pkg/metrics/metrics.go's GaugeVec/CounterVec
// construction and record-function style, using a private registry
// instead of the controller-runtime global one (sigs.k8s.io/controller-runtime
// is dropped per DESIGN.md — nothing else in this repository touches
// Kubernetes).
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the private Prometheus registry this package's metrics
// are registered to.
var Registry = prometheus.NewRegistry()

var (
	// EventsProcessed counts every event the Event Loop dispatches, by
	// its source (spec.md §3 "five sources").
	EventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utopia_core_events_processed_total",
			Help: "Total events dispatched by the event loop, by source.",
		},
		[]string{"source"},
	)

	// BroadcastsSent counts Frontend Registry broadcasts, one per
	// broadcast, by whether every connection's write succeeded.
	BroadcastsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utopia_core_broadcasts_total",
			Help: "Total frontend broadcast writes attempted, by outcome.",
		},
		[]string{"outcome"},
	)

	// PluginTaskDeaths counts plugin task completions, by whether they
	// self-reported or were killed by an error.
	PluginTaskDeaths = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utopia_core_plugin_task_deaths_total",
			Help: "Total plugin task completions, by outcome.",
		},
		[]string{"plugin_id", "outcome"},
	)

	// ChildProcessDeaths counts watched launched-game processes exiting.
	ChildProcessDeaths = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "utopia_core_child_process_deaths_total",
			Help: "Total watched child processes observed exiting.",
		},
	)

	// FrontendsConnected is the current size of the Frontend Registry.
	FrontendsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "utopia_core_frontends_connected",
			Help: "Current number of registered frontend connections.",
		},
	)

	// LibraryItems is the current size of the Library Index.
	LibraryItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "utopia_core_library_items",
			Help: "Current number of distinct items in the library index.",
		},
	)
)

func init() {
	Registry.MustRegister(
		EventsProcessed,
		BroadcastsSent,
		PluginTaskDeaths,
		ChildProcessDeaths,
		FrontendsConnected,
		LibraryItems,
	)
}

// RecordEvent increments EventsProcessed for source.
func RecordEvent(source string) {
	EventsProcessed.WithLabelValues(source).Inc()
}

// RecordBroadcast increments BroadcastsSent for outcome ("ok" or
// "partial_error").
func RecordBroadcast(outcome string) {
	BroadcastsSent.WithLabelValues(outcome).Inc()
}

// RecordPluginDeath increments PluginTaskDeaths for pluginID.
func RecordPluginDeath(pluginID, outcome string) {
	PluginTaskDeaths.WithLabelValues(pluginID, outcome).Inc()
}

// Server wraps the optional loopback metrics HTTP listener
// (spec.md §9 observability is explicitly out of scope for the core
// protocol, but SPEC_FULL.md's ambient stack still carries it).
type Server struct {
	http *http.Server
}

// Serve starts the metrics HTTP listener on addr if addr is non-empty.
// When addr is empty a Server with no listener is returned (its Shutdown
// is a no-op), so callers don't need a separate enabled/disabled branch.
func Serve(log zerolog.Logger, addr string) *Server {
	if addr == "" {
		return &Server{}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()
	return &Server{http: srv}
}

// Shutdown stops the metrics listener, if one was started.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}
