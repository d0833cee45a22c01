package encoder

import (
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/smazurov/hwvideo/internal/codec"
)

// HEVC IRAP NAL unit types (BLA_W_LP through CRA_NUT).
const (
	hevcIRAPFirst = 16
	hevcIRAPLast  = 21
)

// isKeyframe inspects an encoded access unit. Intra-only codings are always
// keyframes.
func isKeyframe(coding codec.CodingType, data []byte) bool {
	switch coding {
	case codec.CodingAVC:
		var ab h264.AnnexB
		if ab.Unmarshal(data) != nil {
			return false
		}
		for _, n := range ab {
			if len(n) > 0 && h264.NALUType(n[0]&0x1F) == h264.NALUTypeIDR {
				return true
			}
		}
		return false
	case codec.CodingHEVC:
		// H.265 shares the Annex-B framing; only the header layout differs.
		var ab h264.AnnexB
		if ab.Unmarshal(data) != nil {
			return false
		}
		for _, n := range ab {
			if len(n) == 0 {
				continue
			}
			if t := (n[0] >> 1) & 0x3f; t >= hevcIRAPFirst && t <= hevcIRAPLast {
				return true
			}
		}
		return false
	case codec.CodingVP8:
		// frame tag bit 0 clear marks a key frame
		return len(data) > 0 && data[0]&0x01 == 0
	default:
		return true
	}
}
