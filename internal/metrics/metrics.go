// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringsync_records_uploaded_total",
			Help: "Rows pushed to the remote store, by entity",
		},
		[]string{"entity"},
	)

	RecordsDownloaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringsync_records_downloaded_total",
			Help: "Scoring rows pulled back into the local store, by entity",
		},
		[]string{"entity"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringsync_errors_total",
			Help: "Sync steps that surfaced an error to the operator",
		},
		[]string{"operation"},
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ringsync_remote_request_duration_seconds",
			Help:    "Remote REST call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ringsync_api_request_duration_seconds",
			Help:    "Results API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
