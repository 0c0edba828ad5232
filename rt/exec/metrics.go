package exec

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deform_chunks_total",
		Help: "Chunks processed by the program runner, by outcome",
	}, []string{"outcome"})

	programLoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deform_program_load_failures_total",
		Help: "Program loads that failed, per chunk or per pass",
	})

	passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deform_program_pass_seconds",
		Help:    "Wall time of one program pass over a geometry",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.25, 1},
	}, []string{"domain"})

	passesAborted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deform_program_passes_aborted_total",
		Help: "Program passes discarded because a worker could not be started",
	})
)
