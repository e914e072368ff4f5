// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes enforcement decisions as Prometheus metrics
// and serves them, with a health check, over HTTP.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/keygate/lib/enforcement"
)

// Operation labels for keygate_decisions_total.
const (
	OperationAuthorize = "authorize"
	OperationRescope   = "rescope"
)

// Result labels for keygate_user_auth_events_total.
const (
	AuthAccepted = "accepted"
	AuthRejected = "rejected"

	// AuthUnverified counts bare authentication events from trusted
	// peers, accepted when no token key is configured.
	AuthUnverified = "unverified"
)

// Metrics holds keygate's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Decisions      *prometheus.CounterVec
	UserAuthEvents *prometheus.CounterVec
	LedgerKeys     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers keygate's collectors with registry.
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_decisions_total",
			Help: "Authorization decisions by operation and result code",
		}, []string{"operation", "code"}),

		UserAuthEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_user_auth_events_total",
			Help: "User authentication events by result",
		}, []string{"result"}),

		LedgerKeys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "keygate_ledger_keys",
			Help: "Keys with a recorded access since boot",
		}),

		gatherer: registry,
	}
}

// RecordDecision counts one authorize or rescope decision.
func (m *Metrics) RecordDecision(operation string, code enforcement.Code) {
	if m != nil {
		m.Decisions.WithLabelValues(operation, code.String()).Inc()
	}
}

// RecordUserAuth counts one authentication event.
func (m *Metrics) RecordUserAuth(result string) {
	if m != nil {
		m.UserAuthEvents.WithLabelValues(result).Inc()
	}
}

// SetLedgerKeys updates the tracked-keys gauge.
func (m *Metrics) SetLedgerKeys(count int) {
	if m != nil {
		m.LedgerKeys.Set(float64(count))
	}
}

// Router serves /metrics from the registry given to New, and /healthz,
// which answers 503 with the error text while healthy returns an error.
// healthy may be nil.
func (m *Metrics) Router(healthy func() error) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if healthy != nil {
			if err := healthy(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(err.Error() + "\n"))
				return
			}
		}
		w.Write([]byte("ok\n"))
	})
	return router
}
