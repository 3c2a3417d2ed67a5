package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Bin layout metrics
	BinsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harmonicio_bins_total",
			Help: "Current number of bins in the allocator's layout",
		},
	)

	BinFreeSpace = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harmonicio_bin_free_space",
			Help: "Free space fraction per bin and descriptor",
		},
		[]string{"bin_index", "descriptor"},
	)

	TargetWorkerNumber = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harmonicio_target_worker_number",
			Help: "Suggested worker count computed by the allocator's packing pass",
		},
	)

	// Queue depth metrics
	ContainerQueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harmonicio_container_queue_length",
			Help: "Number of container requests waiting for their first packing",
		},
	)

	AllocationQueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harmonicio_allocation_queue_length",
			Help: "Number of packed containers waiting for dispatch to a worker",
		},
	)

	MessageQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harmonicio_message_queue_depth",
			Help: "Pending message count reported by the ingestion path, per image",
		},
		[]string{"image"},
	)

	// Worker / container registry
	WorkersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harmonicio_workers_total",
			Help: "Total number of registered workers",
		},
	)

	ContainersByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harmonicio_containers_total",
			Help: "Total number of containers by bin status",
		},
		[]string{"status"},
	)

	// Packing / dispatch operations
	PackingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harmonicio_packing_latency_seconds",
			Help:    "Time taken to perform one packing pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContainersPacked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonicio_containers_packed_total",
			Help: "Total number of containers newly placed by the packing algorithm",
		},
	)

	ContainersDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonicio_containers_dispatched_total",
			Help: "Total number of containers successfully started on a worker",
		},
	)

	ContainersDispatchFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonicio_containers_dispatch_failed_total",
			Help: "Total number of start-RPC failures",
		},
	)

	ContainersRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonicio_containers_removed_total",
			Help: "Total number of containers removed from their bin on termination",
		},
	)

	ContainersRequeued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonicio_containers_requeued_total",
			Help: "Total number of containers requeued after their worker died mid-flight",
		},
	)

	DispatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harmonicio_dispatch_latency_seconds",
			Help:    "Time taken for the worker start-RPC to complete",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Autoscaling
	ScaleUpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmonicio_scale_ups_total",
			Help: "Total number of autoscaling scale-up decisions, by image and size",
		},
		[]string{"image", "size"},
	)

	MessageQueueRoC = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harmonicio_message_queue_roc",
			Help: "Rate of change of the message queue depth, per image",
		},
		[]string{"image"},
	)
)

func init() {
	prometheus.MustRegister(
		BinsTotal,
		BinFreeSpace,
		TargetWorkerNumber,
		ContainerQueueLength,
		AllocationQueueLength,
		MessageQueueDepth,
		WorkersTotal,
		ContainersByStatus,
		PackingLatency,
		ContainersPacked,
		ContainersDispatched,
		ContainersDispatchFailed,
		ContainersRemoved,
		ContainersRequeued,
		DispatchLatency,
		ScaleUpsTotal,
		MessageQueueRoC,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
