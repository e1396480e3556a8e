// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.14
//

package gnssir

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ingestRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gnssir_ingest_records_total",
			Help: "Total number of decoded records drained per stream.",
		},
		[]string{"stream"},
	)

	ingestDrops = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gnssir_ingest_drops",
			Help: "Cumulative entries overwritten in the ingestion buffer per stream.",
		},
		[]string{"stream"},
	)

	solveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gnssir_solve_total",
			Help: "Total number of solve attempts by resulting status.",
		},
		[]string{"status"},
	)

	solveDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gnssir_solve_duration_seconds",
			Help:    "Positioning solve duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		},
	)

	trackedSatellites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gnssir_tracked_satellites",
			Help: "Satellites currently held by the aggregator.",
		},
	)

	storeSamples = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gnssir_store_samples",
			Help: "Observable samples currently retained in the IR store.",
		},
	)
)

func init() {
	prometheus.MustRegister(ingestRecordsTotal)
	prometheus.MustRegister(ingestDrops)
	prometheus.MustRegister(solveTotal)
	prometheus.MustRegister(solveDurationSeconds)
	prometheus.MustRegister(trackedSatellites)
	prometheus.MustRegister(storeSamples)
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
