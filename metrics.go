package deform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	instancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deform_instances_total",
		Help: "Instances built by the deformer, by final state",
	}, []string{"state"})

	instancerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "deform_instancer_initialize_seconds",
		Help:    "Wall time of building every instance of one procedural",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})
)
