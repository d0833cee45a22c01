package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	displayPresented = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hwvideo",
		Subsystem: "display",
		Name:      "presented_total",
		Help:      "Frames written to the scanout buffer",
	}, []string{"device"})

	displaySkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hwvideo",
		Subsystem: "display",
		Name:      "skipped_total",
		Help:      "Frames dropped because the display consumer held the lock",
	}, []string{"device"})

	displayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hwvideo",
		Subsystem: "display",
		Name:      "errors_total",
		Help:      "Present failures by error code",
	}, []string{"device", "code"})

	displayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hwvideo",
		Subsystem: "display",
		Name:      "present_duration_seconds",
		Help:      "Time spent converting a frame into the scanout buffer",
		Buckets:   []float64{.0005, .001, .002, .005, .01, .02, .05},
	}, []string{"device"})
)

// RecordPresented accounts one presented frame.
func RecordPresented(device string, d time.Duration) {
	displayPresented.WithLabelValues(device).Inc()
	displayDuration.WithLabelValues(device).Observe(d.Seconds())
}

// IncSkipped counts a frame dropped under lock contention.
func IncSkipped(device string) {
	displaySkipped.WithLabelValues(device).Inc()
}

// IncPresentError counts a present failure.
func IncPresentError(device, code string) {
	displayErrors.WithLabelValues(device, code).Inc()
}

// DeleteDisplayMetrics removes all metrics for a device.
func DeleteDisplayMetrics(device string) {
	displayPresented.DeleteLabelValues(device)
	displaySkipped.DeleteLabelValues(device)
	displayDuration.DeleteLabelValues(device)
	displayErrors.DeletePartialMatch(prometheus.Labels{"device": device})
}
