// Package metrics exposes Prometheus metrics for engine commands issued by
// the vector store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CommandBuckets covers sub-millisecond pipelined writes up to slow KNN
// queries on large indexes.
var CommandBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

var (
	// CommandsTotal counts engine commands by name and outcome.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valkey_search_commands_total",
			Help: "Engine commands issued",
		},
		[]string{"command", "status"},
	)

	// CommandDuration records engine command latency in seconds.
	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "valkey_search_command_duration_seconds",
			Help:    "Engine command latency",
			Buckets: CommandBuckets,
		},
		[]string{"command"},
	)

	// PointsUpserted counts points written, by index.
	PointsUpserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valkey_search_points_upserted_total",
			Help: "Points upserted",
		},
		[]string{"index"},
	)

	// PointsDeleted counts document keys removed, by index.
	PointsDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valkey_search_points_deleted_total",
			Help: "Points deleted",
		},
		[]string{"index"},
	)

	// SearchHits records how many results each search returned after
	// score filtering.
	SearchHits = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "valkey_search_search_hits",
			Help:    "Results returned per search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
		[]string{"index"},
	)
)

func init() {
	prometheus.MustRegister(
		CommandsTotal,
		CommandDuration,
		PointsUpserted,
		PointsDeleted,
		SearchHits,
	)
}

// ObserveCommand records one engine command.
func ObserveCommand(command string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	CommandsTotal.WithLabelValues(command, status).Inc()
	CommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
