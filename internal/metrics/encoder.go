// Package metrics provides Prometheus metrics for encoder sessions, display
// surfaces and the MPP hardware load collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	encoderFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hwvideo",
		Subsystem: "encoder",
		Name:      "frames_total",
		Help:      "Frames compressed by the hardware encoder",
	}, []string{"session", "coding"})

	encoderBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hwvideo",
		Subsystem: "encoder",
		Name:      "stream_bytes_total",
		Help:      "Compressed bytes drained from the encoder",
	}, []string{"session", "coding"})

	encoderPartitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hwvideo",
		Subsystem: "encoder",
		Name:      "partition_packets_total",
		Help:      "Low-delay partition packets drained",
	}, []string{"session", "coding"})

	encoderForcedKeyframes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hwvideo",
		Subsystem: "encoder",
		Name:      "forced_keyframes_total",
		Help:      "Keyframes requested on demand or on source switch",
	}, []string{"session", "coding"})

	encoderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hwvideo",
		Subsystem: "encoder",
		Name:      "errors_total",
		Help:      "Encoder failures by error code",
	}, []string{"session", "code"})

	encoderOpenFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hwvideo",
		Subsystem: "encoder",
		Name:      "open_failures_total",
		Help:      "Sessions that failed to open, by error code",
	}, []string{"code"})

	encoderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hwvideo",
		Subsystem: "encoder",
		Name:      "compress_duration_seconds",
		Help:      "Time spent in one compress call",
		Buckets:   []float64{.001, .002, .005, .01, .02, .033, .05, .1, .25},
	}, []string{"session", "coding"})
)

// RecordEncodedFrame accounts one compressed frame.
func RecordEncodedFrame(session, coding string, bytes, partitions int, d time.Duration) {
	encoderFrames.WithLabelValues(session, coding).Inc()
	encoderBytes.WithLabelValues(session, coding).Add(float64(bytes))
	if partitions > 0 {
		encoderPartitions.WithLabelValues(session, coding).Add(float64(partitions))
	}
	encoderDuration.WithLabelValues(session, coding).Observe(d.Seconds())
}

// IncForcedKeyframes counts a forced keyframe request.
func IncForcedKeyframes(session, coding string) {
	encoderForcedKeyframes.WithLabelValues(session, coding).Inc()
}

// IncEncoderError counts an encoder failure.
func IncEncoderError(session, code string) {
	encoderErrors.WithLabelValues(session, code).Inc()
}

// IncEncoderOpenFailure counts a session that never became ready.
func IncEncoderOpenFailure(code string) {
	encoderOpenFailures.WithLabelValues(code).Inc()
}

// DeleteEncoderMetrics removes all metrics for a session.
func DeleteEncoderMetrics(session, coding string) {
	encoderFrames.DeleteLabelValues(session, coding)
	encoderBytes.DeleteLabelValues(session, coding)
	encoderPartitions.DeleteLabelValues(session, coding)
	encoderForcedKeyframes.DeleteLabelValues(session, coding)
	encoderDuration.DeleteLabelValues(session, coding)
	encoderErrors.DeletePartialMatch(prometheus.Labels{"session": session})
}
