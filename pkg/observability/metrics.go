// Package observability provides Prometheus metrics for the recall sync service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the sync/scheduling/ingest core.
type Metrics struct {
	// Sync metrics
	SyncsTotal        *prometheus.CounterVec
	SyncSeconds       *prometheus.HistogramVec
	EventsUpserted    prometheus.Counter
	EventsDeleted     prometheus.Counter
	SweepCalendars    prometheus.Gauge

	// Webhook metrics
	WebhooksTotal *prometheus.CounterVec

	// Bot scheduling metrics
	BotsScheduled prometheus.Counter
	BotsRemoved   prometheus.Counter
	StaleSkips    prometheus.Counter

	// Ingestion metrics
	ChunksWritten    *prometheus.CounterVec
	IngestFailures   prometheus.Counter
	FallbackFetches  prometheus.Counter
	EnrichTriggers   prometheus.Counter
}

// Default creates metrics registered on the default registerer.
func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// New creates a new metrics set registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SyncsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recall_syncs_total",
				Help: "Calendar syncs run, by trigger and outcome",
			},
			[]string{"trigger", "status"},
		),
		SyncSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recall_sync_seconds",
				Help:    "Calendar sync latency",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"trigger"},
		),
		EventsUpserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_events_upserted_total",
			Help: "Mirror events upserted from the remote provider",
		}),
		EventsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_events_deleted_total",
			Help: "Mirror events deleted because the remote flagged them deleted",
		}),
		SweepCalendars: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recall_sweep_calendars",
			Help: "Calendars covered by the last periodic sweep",
		}),
		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recall_webhooks_total",
				Help: "Inbound webhooks, by event type",
			},
			[]string{"event"},
		),
		BotsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_bots_scheduled_total",
			Help: "Ensure-bot-present calls issued to the provider",
		}),
		BotsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_bots_removed_total",
			Help: "Ensure-bot-absent calls issued to the provider",
		}),
		StaleSkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_stale_skips_total",
			Help: "Bot reconciliations skipped because the event already started",
		}),
		ChunksWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recall_transcript_chunks_total",
				Help: "Transcript chunks persisted, by delivery mode",
			},
			[]string{"mode"},
		),
		IngestFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_ingest_failures_total",
			Help: "Ingest payloads that failed processing (acked anyway)",
		}),
		FallbackFetches: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_fallback_fetches_total",
			Help: "Transcript pulls issued because a terminal event carried none",
		}),
		EnrichTriggers: factory.NewCounter(prometheus.CounterOpts{
			Name: "recall_enrich_triggers_total",
			Help: "Downstream enrichment jobs enqueued",
		}),
	}
}
