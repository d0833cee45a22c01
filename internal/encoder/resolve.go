package encoder

import (
	"github.com/smazurov/hwvideo/internal/codec"
	"github.com/smazurov/hwvideo/internal/logging"
)

// Geometry is the buffer layout derived from a request. FrameSize is the
// hardware buffer size, padded to 64-pixel blocks; PictureSize is the
// length of one tightly packed picture at the resolved strides.
type Geometry struct {
	HorStride   int
	VerStride   int
	PictureSize int
	FrameSize   int
	HeaderSize  int
	MDInfoSize  int
}

// InputSize is the size of the input buffer: pixel data plus FBC header.
func (g Geometry) InputSize() int {
	return g.FrameSize + g.HeaderSize
}

// RatePlan is the rate-control half of the resolved configuration.
type RatePlan struct {
	RCMode        codec.RCMode
	FPSIn         codec.Fraction
	FPSOut        codec.Fraction
	GOP           int
	BpsTarget     int
	BpsMin        int
	BpsMax        int
	SetBounds     bool
	QP            *codec.QPRange
	JPEGQuant     *int
	MaxReencTimes int
	DropMode      codec.DropMode
	DropThreshold int
	DropGap       int
}

// CodecParams is the coding-specific half of the resolved configuration,
// including the controls applied after the main configuration call.
type CodecParams struct {
	Coding     codec.CodingType
	H264       *codec.H264Params
	SEIMode    codec.SEIMode
	HeaderMode codec.HeaderMode
	GOPMode    int
	Refs       *codec.RefConfig
	Split      codec.SplitMode
	SplitArg   int
	Rotation   int
	Mirroring  bool
}

const (
	defaultFPS      = 30
	dropThreshold   = 20
	maxReencTimes   = 1
	fbcHeaderAlign  = 4096
	defaultGOPSecs  = 2
	h264ProfileHigh = 100
	h264Level40     = 40
)

func align(v, a int) int {
	return (v + a - 1) &^ (a - 1)
}

// Resolve derives geometry, rate control and codec parameters from a
// request. It has no side effects besides logging and always returns the
// same result for the same request.
func Resolve(req Request) (Geometry, RatePlan, CodecParams, error) {
	if err := validate(req); err != nil {
		return Geometry{}, RatePlan{}, CodecParams{}, err
	}

	geo := resolveGeometry(req)
	rate, err := resolveRate(req)
	if err != nil {
		return Geometry{}, RatePlan{}, CodecParams{}, err
	}
	params, err := resolveCodec(req, rate)
	if err != nil {
		return Geometry{}, RatePlan{}, CodecParams{}, err
	}
	return geo, rate, params, nil
}

func validate(req Request) error {
	if req.Width <= 0 || req.Height <= 0 {
		return invalidConfig("invalid dimensions %dx%d", req.Width, req.Height)
	}
	if req.HorStride < 0 || req.VerStride < 0 {
		return invalidConfig("negative stride %d/%d", req.HorStride, req.VerStride)
	}
	if req.HorStride != 0 && req.HorStride < req.Width {
		return invalidConfig("horizontal stride %d below width %d", req.HorStride, req.Width)
	}
	if req.VerStride != 0 && req.VerStride < req.Height {
		return invalidConfig("vertical stride %d below height %d", req.VerStride, req.Height)
	}
	if !req.Format.Known() {
		return invalidConfig("unknown pixel format %#x", uint32(req.Format))
	}
	if req.Coding == codec.CodingUnused {
		return invalidConfig("no output coding")
	}
	if !formatSupported(req.Format, req.Coding) {
		return invalidConfig("%s input is not supported for %s", req.Format, req.Coding)
	}
	return nil
}

// formatSupported rejects combinations the hardware encoders cannot take:
// compressed input is only accepted by the H.264 and HEVC cores, and 10-bit
// input by HEVC.
func formatSupported(f codec.FrameFormat, c codec.CodingType) bool {
	if f.IsFBC() && !c.InterCoded() {
		return false
	}
	switch f.Base() {
	case codec.FmtYUV420SP10, codec.FmtYUV422SP10, codec.FmtRGB101010, codec.FmtBGR101010:
		return c == codec.CodingHEVC
	}
	return true
}

func resolveGeometry(req Request) Geometry {
	g := Geometry{
		HorStride: req.HorStride,
		VerStride: req.VerStride,
	}
	if g.HorStride == 0 {
		g.HorStride = align(req.Width, 16)
	}
	if g.VerStride == 0 {
		g.VerStride = align(req.Height, 16)
	}

	g.PictureSize = pictureBytes(req.Format, g.HorStride*g.VerStride)
	g.FrameSize = pictureBytes(req.Format, align(g.HorStride, 64)*align(g.VerStride, 64))

	if req.Format.IsFBC() {
		g.HeaderSize = align(req.Width, 16) * align(req.Height, 16) / 16
		if req.Format.FBC() == codec.FBCAFBCV1 {
			g.HeaderSize = align(g.HeaderSize, fbcHeaderAlign)
		}
	}

	if req.Coding == codec.CodingHEVC {
		g.MDInfoSize = (align(g.HorStride, 32) >> 5) * (align(g.VerStride, 32) >> 5) * 16
	} else {
		g.MDInfoSize = (align(g.HorStride, 64) >> 6) * (align(g.VerStride, 16) >> 4) * 16
	}
	return g
}

// pictureBytes sizes a picture of area pixels. Packed 24-bit RGB takes
// three bytes per pixel; unlisted formats are sized as 32-bit.
func pictureBytes(f codec.FrameFormat, area int) int {
	switch f.Base() {
	case codec.FmtYUV420SP, codec.FmtYUV420P, codec.FmtYUV420SPVU:
		return area * 3 / 2
	case codec.FmtYUV422SP, codec.FmtYUV422P, codec.FmtYUV422SPVU,
		codec.FmtYUV422YUYV, codec.FmtYUV422YVYU, codec.FmtYUV422UYVY, codec.FmtYUV422VYUY,
		codec.FmtRGB565, codec.FmtBGR565, codec.FmtRGB555, codec.FmtBGR555,
		codec.FmtRGB444, codec.FmtBGR444:
		return area * 2
	case codec.FmtRGB888, codec.FmtBGR888:
		return area * 3
	default:
		return area * 4
	}
}

func defaultFraction(f codec.Fraction) codec.Fraction {
	if f.Num == 0 {
		f.Num = defaultFPS
	}
	if f.Den == 0 {
		f.Den = 1
	}
	return f
}

func resolveRate(req Request) (RatePlan, error) {
	p := RatePlan{
		RCMode:        req.RCMode,
		FPSIn:         defaultFraction(req.FPSIn),
		FPSOut:        defaultFraction(req.FPSOut),
		MaxReencTimes: maxReencTimes,
		DropMode:      codec.DropDisabled,
		DropThreshold: dropThreshold,
		DropGap:       1,
	}
	if p.FPSIn.Num < 0 || p.FPSIn.Den < 0 || p.FPSOut.Num < 0 || p.FPSOut.Den < 0 {
		return RatePlan{}, invalidConfig("negative frame rate")
	}
	if p.RCMode == "" {
		p.RCMode = codec.RCModeCBR
	}

	fps := max(p.FPSOut.Num/p.FPSOut.Den, 1)
	p.GOP = req.GOP
	if p.GOP < 0 {
		return RatePlan{}, invalidConfig("negative gop %d", req.GOP)
	}
	if p.GOP == 0 {
		p.GOP = fps * defaultGOPSecs
	}

	p.BpsTarget = req.BpsTarget
	if p.BpsTarget <= 0 {
		p.BpsTarget = req.Width * req.Height / 8 * fps
	}

	switch p.RCMode {
	case codec.RCModeFixQP:
	case codec.RCModeCBR:
		p.SetBounds = true
		p.BpsMax = orDefault(req.BpsMax, p.BpsTarget*17/16)
		p.BpsMin = orDefault(req.BpsMin, p.BpsTarget*15/16)
	case codec.RCModeVBR, codec.RCModeAVBR:
		p.SetBounds = true
		p.BpsMax = orDefault(req.BpsMax, p.BpsTarget*17/16)
		p.BpsMin = orDefault(req.BpsMin, p.BpsTarget/16)
	default:
		return RatePlan{}, invalidConfig("unknown rate control mode %q", p.RCMode)
	}
	if p.SetBounds && (p.BpsMin > p.BpsTarget || p.BpsMax < p.BpsTarget) {
		return RatePlan{}, invalidConfig("bitrate bounds %d..%d do not bracket target %d",
			p.BpsMin, p.BpsMax, p.BpsTarget)
	}

	p.QP = qpFor(req.Coding, p.RCMode)
	if req.Coding == codec.CodingMJPEG {
		quality := DefaultQuality
		if req.Quality != nil {
			quality = *req.Quality
		}
		q := jpegQuant(quality)
		p.JPEGQuant = &q
	}
	return p, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func resolveCodec(req Request, rate RatePlan) (CodecParams, error) {
	t := req.Tuning
	p := CodecParams{
		Coding:    req.Coding,
		Split:     t.Split,
		SplitArg:  t.SplitArg,
		Rotation:  t.Rotation,
		Mirroring: t.Mirroring,
		GOPMode:   req.GOPMode,
	}
	if t.GOPModeOverride != nil {
		p.GOPMode = *t.GOPModeOverride
	}
	if p.GOPMode < 0 {
		return CodecParams{}, invalidConfig("negative gop mode %d", p.GOPMode)
	}
	switch p.Rotation {
	case 0, 90, 180, 270:
	default:
		return CodecParams{}, invalidConfig("rotation %d is not a multiple of 90", p.Rotation)
	}
	switch p.Split {
	case "", codec.SplitNone:
		p.Split = codec.SplitNone
		p.SplitArg = 0
	case codec.SplitBytes, codec.SplitCTU:
	default:
		return CodecParams{}, invalidConfig("unknown split mode %q", p.Split)
	}

	switch req.Coding {
	case codec.CodingAVC:
		p.H264 = &codec.H264Params{
			Profile:       h264ProfileHigh,
			Level:         h264Level40,
			CABAC:         true,
			CABACIdc:      0,
			Transform8x8:  true,
			ConstraintSet: t.ConstraintSet,
		}
		fallthrough
	case codec.CodingHEVC:
		p.SEIMode = t.SEIMode
		if p.SEIMode == "" {
			p.SEIMode = codec.SEIModeOneFrame
		}
		p.HeaderMode = codec.HeaderModeEachIDR
	case codec.CodingMJPEG:
		p.HeaderMode = codec.HeaderModeDefault
	case codec.CodingVP8:
	default:
		logging.GetLogger("encoder").Warn("Unsupported coding type, no codec tuning applied",
			"coding", req.Coding.String())
	}

	if p.GOPMode != GOPModeNone {
		if req.Coding.InterCoded() {
			p.Refs = refConfig(p.GOPMode, rate.GOP, req.VirtualIntraLen)
		} else {
			logging.GetLogger("encoder").Warn("Reference structure ignored for intra-only coding",
				"coding", req.Coding.String(), "gop_mode", p.GOPMode)
		}
	}
	return p, nil
}

// buildConfig assembles the single configuration call applied at open.
func buildConfig(req Request, g Geometry, r RatePlan, c CodecParams) *codec.Config {
	return &codec.Config{
		Coding:        c.Coding,
		Width:         req.Width,
		Height:        req.Height,
		HorStride:     g.HorStride,
		VerStride:     g.VerStride,
		Format:        req.Format,
		Rotation:      c.Rotation,
		Mirroring:     c.Mirroring,
		RCMode:        r.RCMode,
		MaxReencTimes: r.MaxReencTimes,
		FPSIn:         r.FPSIn,
		FPSOut:        r.FPSOut,
		GOP:           r.GOP,
		DropMode:      r.DropMode,
		DropThreshold: r.DropThreshold,
		DropGap:       r.DropGap,
		BpsTarget:     r.BpsTarget,
		BpsMax:        r.BpsMax,
		BpsMin:        r.BpsMin,
		SetBounds:     r.SetBounds,
		QP:            r.QP,
		H264:          c.H264,
		JPEGQuant:     r.JPEGQuant,
		Split:         c.Split,
		SplitArg:      c.SplitArg,
	}
}
