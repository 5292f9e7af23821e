package metrics

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StoreOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twinsa_store_ops_total",
		Help: "Store operations by outcome",
	}, []string{"op", "outcome"})
	StoreOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "twinsa_store_op_duration_seconds",
		Help:    "Store operation duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	SnapshotWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twinsa_snapshot_writes_total",
		Help: "Total collection snapshot writes",
	}, []string{"collection"})
	SnapshotWriteErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twinsa_snapshot_write_errors_total",
		Help: "Total failed collection snapshot writes",
	}, []string{"collection"})
	SnapshotBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "twinsa_snapshot_bytes",
		Help: "Size of the last written snapshot",
	}, []string{"collection"})
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twinsa_notifications_total",
		Help: "Notifications stored by type",
	}, []string{"type"})
	MigratedRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twinsa_migrated_records_total",
		Help: "Records rewritten by the schema migrator",
	}, []string{"collection"})
)

func init() {
	prometheus.MustRegister(StoreOps, StoreOpDuration, SnapshotWrites, SnapshotWriteErrors,
		SnapshotBytes, Notifications, MigratedRecords)
}

// ObserveOp records one store operation. err decides the outcome label.
func ObserveOp(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StoreOps.WithLabelValues(op, outcome).Inc()
	StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveSnapshotWrite records a snapshot save of size bytes.
func ObserveSnapshotWrite(collection string, size int, err error) {
	if err != nil {
		SnapshotWriteErrors.WithLabelValues(collection).Inc()
		return
	}
	SnapshotWrites.WithLabelValues(collection).Inc()
	SnapshotBytes.WithLabelValues(collection).Set(float64(size))
}

func IncNotification(kind string) { Notifications.WithLabelValues(kind).Inc() }

func AddMigrated(collection string, n int) {
	if n > 0 {
		MigratedRecords.WithLabelValues(collection).Add(float64(n))
	}
}

// NewRouter returns the ops router. health is called on GET /healthz; nil means always healthy.
func NewRouter(health func() error) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	return r
}
