package encoder

import (
	"testing"

	"github.com/smazurov/hwvideo/internal/codec"
)

func TestIsKeyframe(t *testing.T) {
	sps := []byte{0, 0, 0, 1, 0x67, 0x64, 0x00, 0x28}
	idr := []byte{0, 0, 0, 1, 0x65, 0x88, 0x84}
	nonIDR := []byte{0, 0, 0, 1, 0x41, 0x9a, 0x02}

	tests := []struct {
		name   string
		coding codec.CodingType
		data   []byte
		want   bool
	}{
		{"h264 idr with headers", codec.CodingAVC, append(append([]byte{}, sps...), idr...), true},
		{"h264 p slice", codec.CodingAVC, nonIDR, false},
		{"h264 garbage", codec.CodingAVC, []byte{1, 2, 3}, false},
		{"hevc idr_w_radl", codec.CodingHEVC, []byte{0, 0, 0, 1, 0x26, 0x01, 0xaf}, true},
		{"hevc cra", codec.CodingHEVC, []byte{0, 0, 0, 1, 0x2a, 0x01, 0xaf}, true},
		{"hevc trail_r", codec.CodingHEVC, []byte{0, 0, 0, 1, 0x02, 0x01, 0xd0}, false},
		{"vp8 key", codec.CodingVP8, []byte{0x50, 0x42, 0x00}, true},
		{"vp8 inter", codec.CodingVP8, []byte{0x31, 0x02, 0x00}, false},
		{"mjpeg", codec.CodingMJPEG, []byte{0xff, 0xd8}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isKeyframe(tt.coding, tt.data); got != tt.want {
				t.Errorf("isKeyframe = %v, want %v", got, tt.want)
			}
		})
	}
}
