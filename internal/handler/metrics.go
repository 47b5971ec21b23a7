package handler

import (
	"fmt"
	"net/http"

	"github.com/carlog/carlog/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// rejectionReasons fixes the output order of the labelled series.
var rejectionReasons = []string{
	metrics.ReasonMissingField,
	metrics.ReasonEmailExists,
	metrics.ReasonUsernameExists,
}

// Metrics returns metrics in Prometheus exposition format.
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "carlog_users_registered_total %d\n", snap.UsersRegistered)
	for _, reason := range rejectionReasons {
		writeMetric(w, "carlog_registrations_rejected_total{reason=%q} %d\n", reason, snap.RegistrationsRejected[reason])
	}

	writeMetric(w, "carlog_logins_total{status=\"success\"} %d\n", snap.LoginsSucceeded)
	writeMetric(w, "carlog_logins_total{status=\"failed\"} %d\n", snap.LoginsFailed)

	writeMetric(w, "carlog_password_hash_duration_seconds_count %d\n", snap.PasswordHashCount)
	writeMetric(w, "carlog_password_hash_duration_seconds_sum %.6f\n", float64(snap.PasswordHashTotalNs)/1e9)

	writeMetric(w, "carlog_maintenance_records_created_total %d\n", snap.RecordsCreated)
	writeMetric(w, "carlog_maintenance_record_listings_total %d\n", snap.RecordListings)
	writeMetric(w, "carlog_maintenance_records_listed_total %d\n", snap.RecordsListedTotal)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
