package codec

import (
	"fmt"
	"strings"

	"github.com/smazurov/hwvideo/internal/frame"
)

// CodingType identifies a compressed bitstream format. Values match the
// vendor codec library so backends can pass them through unchanged.
type CodingType int

// Coding types.
const (
	CodingUnused CodingType = 0
	CodingAVC    CodingType = 7
	CodingMJPEG  CodingType = 8
	CodingVP8    CodingType = 9
	CodingHEVC   CodingType = 0x1000004
)

// String implements fmt.Stringer.
func (c CodingType) String() string {
	switch c {
	case CodingAVC:
		return "h264"
	case CodingMJPEG:
		return "mjpeg"
	case CodingVP8:
		return "vp8"
	case CodingHEVC:
		return "hevc"
	case CodingUnused:
		return "unused"
	default:
		return fmt.Sprintf("coding(%d)", int(c))
	}
}

// InterCoded reports whether the bitstream has predicted frames and thus a
// notion of keyframes.
func (c CodingType) InterCoded() bool {
	return c == CodingAVC || c == CodingHEVC
}

// OutputFourCC returns the frame container format for the bitstream.
func (c CodingType) OutputFourCC() uint32 {
	switch c {
	case CodingAVC:
		return frame.FormatH264
	case CodingHEVC:
		return frame.FormatHEVC
	case CodingMJPEG:
		return frame.FormatJPEG
	default:
		return 0
	}
}

// ParseCodingType accepts the names used in configuration files.
func ParseCodingType(s string) (CodingType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "h264", "avc":
		return CodingAVC, nil
	case "mjpeg", "jpeg":
		return CodingMJPEG, nil
	case "hevc", "h265":
		return CodingHEVC, nil
	case "vp8":
		return CodingVP8, nil
	default:
		return CodingUnused, fmt.Errorf("unknown coding type %q", s)
	}
}

// CodingFromFourCC maps a V4L2 output fourcc to a coding type.
func CodingFromFourCC(fourcc uint32) CodingType {
	switch fourcc {
	case frame.FormatMJPEG, frame.FormatJPEG:
		return CodingMJPEG
	case frame.FormatH264:
		return CodingAVC
	case frame.FormatHEVC:
		return CodingHEVC
	default:
		return CodingUnused
	}
}

// FrameFormat is the raw pixel layout fed to the encoder. The low 20 bits
// hold the base format, bits 20-23 the frame-buffer-compression variant.
type FrameFormat uint32

// Format masks.
const (
	FormatMask   FrameFormat = 0x000fffff
	FBCMask      FrameFormat = 0x00f00000
	FBCAFBCV1    FrameFormat = 0x00100000
	FBCAFBCV2    FrameFormat = 0x00200000
	formatRGBBit FrameFormat = 0x00010000
)

// Raw frame formats.
const (
	FmtYUV420SP     FrameFormat = 0
	FmtYUV420SP10   FrameFormat = 1
	FmtYUV422SP     FrameFormat = 2
	FmtYUV422SP10   FrameFormat = 3
	FmtYUV420P      FrameFormat = 4
	FmtYUV420SPVU   FrameFormat = 5
	FmtYUV422P      FrameFormat = 6
	FmtYUV422SPVU   FrameFormat = 7
	FmtYUV422YUYV   FrameFormat = 8
	FmtYUV422YVYU   FrameFormat = 9
	FmtYUV422UYVY   FrameFormat = 10
	FmtYUV422VYUY   FrameFormat = 11
	FmtYUV400       FrameFormat = 12
	FmtYUV440SP     FrameFormat = 13
	FmtYUV411SP     FrameFormat = 14
	FmtYUV444SP     FrameFormat = 15
	FmtYUV444P      FrameFormat = 16
	FmtRGB565       FrameFormat = formatRGBBit + 0
	FmtBGR565       FrameFormat = formatRGBBit + 1
	FmtRGB555       FrameFormat = formatRGBBit + 2
	FmtBGR555       FrameFormat = formatRGBBit + 3
	FmtRGB444       FrameFormat = formatRGBBit + 4
	FmtBGR444       FrameFormat = formatRGBBit + 5
	FmtRGB888       FrameFormat = formatRGBBit + 6
	FmtBGR888       FrameFormat = formatRGBBit + 7
	FmtRGB101010    FrameFormat = formatRGBBit + 8
	FmtBGR101010    FrameFormat = formatRGBBit + 9
	FmtARGB8888     FrameFormat = formatRGBBit + 10
	FmtABGR8888     FrameFormat = formatRGBBit + 11
	FmtBGRA8888     FrameFormat = formatRGBBit + 12
	FmtRGBA8888     FrameFormat = formatRGBBit + 13
	fmtFirstUnknown FrameFormat = formatRGBBit + 14
)

var formatNames = map[FrameFormat]string{
	FmtYUV420SP:   "nv12",
	FmtYUV420SP10: "nv12-10bit",
	FmtYUV422SP:   "nv16",
	FmtYUV422SP10: "nv16-10bit",
	FmtYUV420P:    "i420",
	FmtYUV420SPVU: "nv21",
	FmtYUV422P:    "i422",
	FmtYUV422SPVU: "nv61",
	FmtYUV422YUYV: "yuyv",
	FmtYUV422YVYU: "yvyu",
	FmtYUV422UYVY: "uyvy",
	FmtYUV422VYUY: "vyuy",
	FmtYUV400:     "gray",
	FmtYUV440SP:   "nv24-440",
	FmtYUV411SP:   "nv411",
	FmtYUV444SP:   "nv24",
	FmtYUV444P:    "i444",
	FmtRGB565:     "rgb565",
	FmtBGR565:     "bgr565",
	FmtRGB555:     "rgb555",
	FmtBGR555:     "bgr555",
	FmtRGB444:     "rgb444",
	FmtBGR444:     "bgr444",
	FmtRGB888:     "rgb24",
	FmtBGR888:     "bgr24",
	FmtRGB101010:  "rgb30",
	FmtBGR101010:  "bgr30",
	FmtARGB8888:   "argb",
	FmtABGR8888:   "abgr",
	FmtBGRA8888:   "bgra",
	FmtRGBA8888:   "rgba",
}

// Base strips the frame-buffer-compression bits.
func (f FrameFormat) Base() FrameFormat {
	return f & FormatMask
}

// IsFBC reports whether the format carries compressed frame-buffer headers.
func (f FrameFormat) IsFBC() bool {
	return f&FBCMask != 0
}

// FBC returns the frame-buffer-compression variant bits.
func (f FrameFormat) FBC() FrameFormat {
	return f & FBCMask
}

// Known reports whether the base format is one the hardware understands.
func (f FrameFormat) Known() bool {
	_, ok := formatNames[f.Base()]
	return ok
}

// String implements fmt.Stringer.
func (f FrameFormat) String() string {
	name, ok := formatNames[f.Base()]
	if !ok {
		name = fmt.Sprintf("format(%#x)", uint32(f.Base()))
	}
	switch f.FBC() {
	case FBCAFBCV1:
		name += "+afbc1"
	case FBCAFBCV2:
		name += "+afbc2"
	}
	return name
}

// ParseFrameFormat accepts the names produced by String, with an optional
// "+afbc1" or "+afbc2" suffix.
func ParseFrameFormat(s string) (FrameFormat, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	var fbc FrameFormat
	switch {
	case strings.HasSuffix(name, "+afbc1"):
		fbc = FBCAFBCV1
		name = strings.TrimSuffix(name, "+afbc1")
	case strings.HasSuffix(name, "+afbc2"):
		fbc = FBCAFBCV2
		name = strings.TrimSuffix(name, "+afbc2")
	}
	for f, n := range formatNames {
		if n == name {
			return f | fbc, nil
		}
	}
	return 0, fmt.Errorf("unknown frame format %q", s)
}

// FormatFromFourCC maps a V4L2 capture fourcc to an encoder input format.
func FormatFromFourCC(fourcc uint32) (FrameFormat, bool) {
	switch fourcc {
	case frame.FormatNV12:
		return FmtYUV420SP, true
	case frame.FormatNV16:
		return FmtYUV422SP, true
	case frame.FormatYUV420:
		return FmtYUV420P, true
	case frame.FormatYUYV:
		return FmtYUV422YUYV, true
	case frame.FormatUYVY:
		return FmtYUV422UYVY, true
	case frame.FormatRGB24:
		return FmtRGB888, true
	case frame.FormatBGR24:
		return FmtBGR888, true
	default:
		return 0, false
	}
}

// RCMode is the rate-control policy.
type RCMode string

// Rate-control modes.
const (
	RCModeVBR   RCMode = "vbr"
	RCModeCBR   RCMode = "cbr"
	RCModeFixQP RCMode = "fixqp"
	RCModeAVBR  RCMode = "avbr"
)

// SEIMode controls emission of encoder SEI messages.
type SEIMode string

// SEI modes.
const (
	SEIModeDisabled SEIMode = "disabled"
	SEIModeOneSeq   SEIMode = "one-seq"
	SEIModeOneFrame SEIMode = "one-frame"
)

// HeaderMode controls how often parameter-set headers are emitted.
type HeaderMode string

// Header modes.
const (
	HeaderModeDefault HeaderMode = "default"
	HeaderModeEachIDR HeaderMode = "each-idr"
)

// SplitMode selects slice splitting.
type SplitMode string

// Split modes.
const (
	SplitNone  SplitMode = "none"
	SplitBytes SplitMode = "bytes"
	SplitCTU   SplitMode = "ctu"
)

// DropMode controls frame dropping on bitrate overflow.
type DropMode string

// Drop modes.
const (
	DropDisabled DropMode = "disabled"
	DropNormal   DropMode = "normal"
	DropPSkip    DropMode = "pskip"
)
