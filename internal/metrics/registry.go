// Package metrics keeps in-process aggregates of webhook processing outcomes
// and mirrors them into Prometheus. The in-memory view backs the
// authenticated health endpoint; a restart resets it, which is fine because
// it is advisory only.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrorBucket is the synthetic event type used when a request fails before a
// real event type is known (bad signature, stale timestamp, rate limited,
// store unreachable).
const ErrorBucket = "error"

// Failure ratio above which the health endpoint reports degraded.
const degradedFailureRatio = 0.1

type Sample struct {
	EventType string
	Success   bool
	Duration  time.Duration
	Err       string
}

type typeStats struct {
	processed       int64
	succeeded       int64
	failed          int64
	totalLatencyMs  int64
	lastError       string
	lastProcessedAt time.Time
}

type TypeSnapshot struct {
	EventType       string    `json:"event_type"`
	Processed       int64     `json:"processed"`
	Succeeded       int64     `json:"succeeded"`
	Failed          int64     `json:"failed"`
	AvgLatencyMs    float64   `json:"avg_latency_ms"`
	LastError       string    `json:"last_error,omitempty"`
	LastProcessedAt time.Time `json:"last_processed_at"`
}

type HealthStatus struct {
	Status          string         `json:"status"`
	TotalProcessed  int64          `json:"total_processed"`
	TotalFailed     int64          `json:"total_failed"`
	TotalDuplicates int64          `json:"total_duplicates"`
	FailureRatio    float64        `json:"failure_ratio"`
	StartedAt       time.Time      `json:"started_at"`
	GeneratedAt     time.Time      `json:"generated_at"`
	EventTypes      []TypeSnapshot `json:"event_types"`
}

type Registry struct {
	mu         sync.Mutex
	perType    map[string]*typeStats
	duplicates int64
	startedAt  time.Time
	now        func() time.Time

	processedTotal *prometheus.CounterVec
	rejectedTotal  *prometheus.CounterVec
	duplicateTotal prometheus.Counter
	durationMs     prometheus.Histogram
}

// NewRegistry builds a recorder registering its collectors with reg. Pass nil
// for the default Prometheus registerer; tests pass their own to stay
// isolated.
func NewRegistry(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Registry{
		perType:   make(map[string]*typeStats),
		startedAt: time.Now().UTC(),
		now:       time.Now,
		processedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_processed_total",
			Help: "Webhook events processed, labelled by event type and outcome.",
		}, []string{"event_type", "status"}),
		rejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_requests_rejected_total",
			Help: "Requests rejected before dispatch, labelled by reason.",
		}, []string{"reason"}),
		duplicateTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "webhook_duplicate_deliveries_total",
			Help: "Deliveries short-circuited because the event was already processed.",
		}),
		durationMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "webhook_processing_duration_ms",
			Help:    "End-to-end webhook processing latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
	}
}

// Record folds one processing outcome into the aggregates. It never blocks on
// anything but the registry mutex and never returns an error; the request
// path must not fail because observability did.
func (r *Registry) Record(s Sample) {
	status := "success"
	if !s.Success {
		status = "failure"
	}
	r.processedTotal.WithLabelValues(s.EventType, status).Inc()
	r.durationMs.Observe(float64(s.Duration.Milliseconds()))

	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.statsFor(s.EventType)
	stats.processed++
	if s.Success {
		stats.succeeded++
	} else {
		stats.failed++
		if s.Err != "" {
			stats.lastError = s.Err
		}
	}
	stats.totalLatencyMs += s.Duration.Milliseconds()
	stats.lastProcessedAt = r.now().UTC()
}

// RecordRejection accounts for a request turned away before any event type
// was known. These land in the synthetic error bucket, kept apart from
// business-level per-type failures.
func (r *Registry) RecordRejection(reason string) {
	r.rejectedTotal.WithLabelValues(reason).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.statsFor(ErrorBucket)
	stats.processed++
	stats.failed++
	stats.lastError = reason
	stats.lastProcessedAt = r.now().UTC()
}

// RecordDuplicate counts a redelivery short-circuited by the idempotency
// store. Duplicates are not processing attempts, so they do not touch the
// per-type business aggregates.
func (r *Registry) RecordDuplicate() {
	r.duplicateTotal.Inc()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.duplicates++
}

func (r *Registry) Snapshot() HealthStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	var totalProcessed, totalFailed int64
	types := make([]TypeSnapshot, 0, len(r.perType))
	for eventType, stats := range r.perType {
		snap := TypeSnapshot{
			EventType:       eventType,
			Processed:       stats.processed,
			Succeeded:       stats.succeeded,
			Failed:          stats.failed,
			LastError:       stats.lastError,
			LastProcessedAt: stats.lastProcessedAt,
		}
		if stats.processed > 0 {
			snap.AvgLatencyMs = float64(stats.totalLatencyMs) / float64(stats.processed)
		}
		types = append(types, snap)
		totalProcessed += stats.processed
		totalFailed += stats.failed
	}
	sort.Slice(types, func(i, j int) bool { return types[i].EventType < types[j].EventType })

	var ratio float64
	if totalProcessed > 0 {
		ratio = float64(totalFailed) / float64(totalProcessed)
	}

	status := "healthy"
	if ratio >= degradedFailureRatio && totalProcessed > 0 {
		status = "degraded"
	}

	return HealthStatus{
		Status:          status,
		TotalProcessed:  totalProcessed,
		TotalFailed:     totalFailed,
		TotalDuplicates: r.duplicates,
		FailureRatio:    ratio,
		StartedAt:       r.startedAt,
		GeneratedAt:     r.now().UTC(),
		EventTypes:      types,
	}
}

func (r *Registry) statsFor(eventType string) *typeStats {
	stats, ok := r.perType[eventType]
	if !ok {
		stats = &typeStats{}
		r.perType[eventType] = stats
	}
	return stats
}
