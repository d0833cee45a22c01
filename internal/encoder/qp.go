package encoder

import "github.com/smazurov/hwvideo/internal/codec"

var (
	qpFixed = codec.QPRange{Init: 20, Max: 20, Min: 20, MaxI: 20, MinI: 20, IP: 2}
	qpRated = codec.QPRange{Init: 26, Max: 51, Min: 10, MaxI: 51, MinI: 10, IP: 2}
	qpVP8   = codec.QPRange{Init: 40, Max: 127, Min: 0, MaxI: 127, MinI: 0, IP: 6}
)

// qpFor looks up the quantizer range for a coding and rate-control mode.
// MJPEG and unknown codings have no range.
func qpFor(coding codec.CodingType, mode codec.RCMode) *codec.QPRange {
	var qp codec.QPRange
	switch coding {
	case codec.CodingAVC, codec.CodingHEVC:
		if mode == codec.RCModeFixQP {
			qp = qpFixed
		} else {
			qp = qpRated
		}
	case codec.CodingVP8:
		qp = qpVP8
	default:
		return nil
	}
	return &qp
}

// jpegQuant maps a 0-100 quality to the 0-10 quantization strength.
func jpegQuant(quality int) int {
	q := (quality + 5) / 10
	if q > 10 {
		return 10
	}
	if q < 0 {
		return 0
	}
	return q
}
