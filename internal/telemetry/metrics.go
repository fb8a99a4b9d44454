package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики redix-core.
//
// Принцип: вторичные best-effort пути (fan-out подписчикам, relay в MQ)
// никогда не блокируют основной путь, но их сбои должны быть видимы —
// поэтому каждый drop/failure считается, а не глотается молча.
var (
	// EventsPublished — количество опубликованных событий по типу.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redix_events_published_total",
		Help: "Number of events published to the event bus.",
	}, []string{"event_type"})

	// EventsDropped — события, потерянные на fan-out медленному подписчику.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redix_events_dropped_total",
		Help: "Events dropped on fan-out to a slow or full subscriber.",
	})

	// EventRelayFailures — неудачные best-effort relay публикации в MQ.
	EventRelayFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redix_event_relay_failures_total",
		Help: "Failed best-effort event relays to the message broker.",
	})

	// JobsProcessed — обработанные jobs по очереди и исходу.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redix_jobs_processed_total",
		Help: "Jobs finished by a worker, labelled by queue and outcome.",
	}, []string{"queue", "outcome"})

	// JobRetries — запланированные retry по очереди.
	JobRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redix_job_retries_total",
		Help: "Job retries scheduled after a nack.",
	}, []string{"queue"})

	// DeadLetters — записи, попавшие в dead-letter ring.
	DeadLetters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redix_dead_letters_total",
		Help: "Entries moved to the dead-letter ring after retry exhaustion.",
	})

	// LeasesExpired — leases, отобранные по таймауту видимости.
	LeasesExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redix_leases_expired_total",
		Help: "Job leases reclaimed after the visibility timeout.",
	}, []string{"queue"})

	// TaskDuration — длительность выполнения task по типу.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redix_task_duration_seconds",
		Help:    "Task handler execution time by task type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task_type"})

	// WSConnections — текущее количество WebSocket соединений.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "redix_ws_connections",
		Help: "Currently open WebSocket connections.",
	})

	// WSFramesSent — отправленные WebSocket фреймы (после коалесинга).
	WSFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redix_ws_frames_sent_total",
		Help: "WebSocket frames flushed to clients after coalescing.",
	})

	// WSEventsCoalesced — события, слитые в батчи backpressure-буфером.
	WSEventsCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redix_ws_events_coalesced_total",
		Help: "Events coalesced into batched frames by the per-connection buffer.",
	})
)
