package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDisplayMetrics(t *testing.T) {
	device := "/dev/dri/card-test"

	RecordPresented(device, time.Millisecond)
	IncSkipped(device)
	IncSkipped(device)
	IncPresentError(device, "FRAME_TOO_LARGE")

	if got := testutil.ToFloat64(displayPresented.WithLabelValues(device)); got != 1 {
		t.Errorf("displayPresented = %v, want 1", got)
	}
	if got := testutil.ToFloat64(displaySkipped.WithLabelValues(device)); got != 2 {
		t.Errorf("displaySkipped = %v, want 2", got)
	}
	if got := testutil.ToFloat64(displayErrors.WithLabelValues(device, "FRAME_TOO_LARGE")); got != 1 {
		t.Errorf("displayErrors = %v, want 1", got)
	}

	DeleteDisplayMetrics(device)
	DeleteDisplayMetrics("non-existent-device")

	if n := testutil.CollectAndCount(displaySkipped); n != 0 {
		t.Errorf("displaySkipped series after delete = %d, want 0", n)
	}
}
