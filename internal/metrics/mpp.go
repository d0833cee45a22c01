package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll outcomes for the MPP load file.
const (
	MPPPollOK      = "ok"
	MPPPollMissing = "missing"
	MPPPollInvalid = "invalid"
)

var (
	mppCoreLoad = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hwvideo",
		Subsystem: "mpp",
		Name:      "device_load",
		Help:      "Load of an MPP hardware core in percent",
	}, []string{"device"})

	mppCoreUtilization = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hwvideo",
		Subsystem: "mpp",
		Name:      "device_utilization",
		Help:      "Utilization of an MPP hardware core in percent",
	}, []string{"device"})

	mppPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hwvideo",
		Subsystem: "mpp",
		Name:      "polls_total",
		Help:      "Reads of the MPP service load file by outcome",
	}, []string{"result"})
)

// ObserveMPPCore records one sample for a hardware core such as rkvenc0.
func ObserveMPPCore(device string, load, utilization float64) {
	mppCoreLoad.WithLabelValues(device).Set(load)
	mppCoreUtilization.WithLabelValues(device).Set(utilization)
}

// IncMPPPoll counts one read of the load file.
func IncMPPPoll(result string) {
	mppPolls.WithLabelValues(result).Inc()
}

// DeleteMPPMetrics removes the gauges of a core that is no longer listed.
func DeleteMPPMetrics(device string) {
	mppCoreLoad.DeleteLabelValues(device)
	mppCoreUtilization.DeleteLabelValues(device)
}
