package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveMPPCore(t *testing.T) {
	samples := []struct {
		device      string
		load        float64
		utilization float64
	}{
		{"rkvenc0", 45.5, 78.2},
		{"rkvenc0", 12, 30},
		{"jpege", 0, 0},
	}
	for _, s := range samples {
		ObserveMPPCore(s.device, s.load, s.utilization)
		if got := testutil.ToFloat64(mppCoreLoad.WithLabelValues(s.device)); got != s.load {
			t.Errorf("%s load = %v, want %v", s.device, got, s.load)
		}
		if got := testutil.ToFloat64(mppCoreUtilization.WithLabelValues(s.device)); got != s.utilization {
			t.Errorf("%s utilization = %v, want %v", s.device, got, s.utilization)
		}
	}

	DeleteMPPMetrics("rkvenc0")
	DeleteMPPMetrics("jpege")
	if n := testutil.CollectAndCount(mppCoreLoad); n != 0 {
		t.Errorf("load series after delete = %d, want 0", n)
	}
	DeleteMPPMetrics("never-seen")
}

func TestIncMPPPoll(t *testing.T) {
	before := testutil.ToFloat64(mppPolls.WithLabelValues(MPPPollMissing))
	IncMPPPoll(MPPPollMissing)
	IncMPPPoll(MPPPollMissing)
	if got := testutil.ToFloat64(mppPolls.WithLabelValues(MPPPollMissing)); got != before+2 {
		t.Errorf("missing polls = %v, want %v", got, before+2)
	}
}
