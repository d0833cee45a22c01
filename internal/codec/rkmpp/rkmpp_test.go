//go:build linux && rkmpp

package rkmpp

import (
	"os"
	"testing"

	"github.com/smazurov/hwvideo/internal/codec"
)

func requireDevice(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/mpp_service"); err != nil {
		t.Skip("no MPP service device")
	}
}

func TestEncoderCloseReleasesHandles(t *testing.T) {
	requireDevice(t)

	for _, coding := range []codec.CodingType{codec.CodingAVC, codec.CodingMJPEG} {
		t.Run(coding.String(), func(t *testing.T) {
			enc, err := New().Open(coding)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			e := enc.(*encoder)
			if err := e.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}
			if e.ctx != nil || e.mpi != nil || e.cfg != nil {
				t.Error("handles left after Close")
			}
			if err := e.Close(); err != nil {
				t.Errorf("second Close() error = %v", err)
			}
		})
	}
}
