package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChunksTotal counts dispatched chunks by endpoint and result ("ok", "error").
	ChunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ox_batch_chunks_total",
		Help: "Total chunks dispatched by endpoint and result",
	}, []string{"endpoint", "result"})

	// ChunkDuration observes the wall time of one chunk call, selective retries included.
	ChunkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ox_batch_chunk_duration_seconds",
		Help:    "Chunk call duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	// InFlight tracks busy pool slots.
	InFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ox_batch_inflight",
		Help: "Number of calls currently holding a worker pool slot",
	}, []string{"pool"})

	// SlotWait observes how long a submission waited for a free pool slot.
	SlotWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ox_batch_slot_wait_seconds",
		Help:    "Time spent waiting for a free worker pool slot",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15},
	}, []string{"pool"})
)
