package codec

// Fraction is a frame rate numerator/denominator pair. Flex marks a
// variable input rate.
type Fraction struct {
	Num  int
	Den  int
	Flex bool
}

// QPRange holds quantizer bounds for rate-controlled codecs.
type QPRange struct {
	Init int
	Max  int
	Min  int
	MaxI int
	MinI int
	IP   int
}

// H264Params holds AVC-specific syntax settings.
type H264Params struct {
	Profile       int
	Level         int
	CABAC         bool
	CABACIdc      int
	Transform8x8  bool
	ConstraintSet uint32
}

// Config is the complete encoder configuration applied in a single call.
type Config struct {
	Coding CodingType

	// prep
	Width     int
	Height    int
	HorStride int
	VerStride int
	Format    FrameFormat
	Rotation  int
	Mirroring bool

	// rc
	RCMode        RCMode
	MaxReencTimes int
	FPSIn         Fraction
	FPSOut        Fraction
	GOP           int
	DropMode      DropMode
	DropThreshold int
	DropGap       int
	BpsTarget     int
	BpsMax        int
	BpsMin        int
	SetBounds     bool
	QP            *QPRange

	// codec
	H264      *H264Params
	JPEGQuant *int

	// split
	Split    SplitMode
	SplitArg int
}

// Field is one named configuration entry.
type Field struct {
	Key   string
	Value int64
}

// Fields flattens the configuration into the vendor key space in the order
// it is applied. Optional sections are skipped when unset.
func (c *Config) Fields() []Field {
	f := []Field{
		{"prep:width", int64(c.Width)},
		{"prep:height", int64(c.Height)},
		{"prep:hor_stride", int64(c.HorStride)},
		{"prep:ver_stride", int64(c.VerStride)},
		{"prep:format", int64(c.Format)},
		{"rc:mode", int64(rcModeValue(c.RCMode))},
		{"rc:max_reenc_times", int64(c.MaxReencTimes)},
		{"rc:fps_in_flex", boolValue(c.FPSIn.Flex)},
		{"rc:fps_in_num", int64(c.FPSIn.Num)},
		{"rc:fps_in_denorm", int64(c.FPSIn.Den)},
		{"rc:fps_out_flex", boolValue(c.FPSOut.Flex)},
		{"rc:fps_out_num", int64(c.FPSOut.Num)},
		{"rc:fps_out_denorm", int64(c.FPSOut.Den)},
		{"rc:gop", int64(c.GOP)},
		{"rc:drop_mode", int64(dropModeValue(c.DropMode))},
		{"rc:drop_thd", int64(c.DropThreshold)},
		{"rc:drop_gap", int64(c.DropGap)},
		{"rc:bps_target", int64(c.BpsTarget)},
	}
	if c.SetBounds {
		f = append(f,
			Field{"rc:bps_max", int64(c.BpsMax)},
			Field{"rc:bps_min", int64(c.BpsMin)},
		)
	}
	if c.QP != nil {
		f = append(f,
			Field{"rc:qp_init", int64(c.QP.Init)},
			Field{"rc:qp_max", int64(c.QP.Max)},
			Field{"rc:qp_min", int64(c.QP.Min)},
			Field{"rc:qp_max_i", int64(c.QP.MaxI)},
			Field{"rc:qp_min_i", int64(c.QP.MinI)},
			Field{"rc:qp_ip", int64(c.QP.IP)},
		)
	}
	if c.JPEGQuant != nil {
		f = append(f, Field{"jpeg:quant", int64(*c.JPEGQuant)})
	}
	f = append(f, Field{"codec:type", int64(c.Coding)})
	if h := c.H264; h != nil {
		f = append(f,
			Field{"h264:profile", int64(h.Profile)},
			Field{"h264:level", int64(h.Level)},
			Field{"h264:cabac_en", boolValue(h.CABAC)},
			Field{"h264:cabac_idc", int64(h.CABACIdc)},
			Field{"h264:trans8x8", boolValue(h.Transform8x8)},
		)
		if h.ConstraintSet&0x3f0000 != 0 {
			f = append(f, Field{"h264:constraint_set", int64(h.ConstraintSet)})
		}
	}
	if c.Split != "" && c.Split != SplitNone {
		f = append(f,
			Field{"split:mode", int64(splitModeValue(c.Split))},
			Field{"split:arg", int64(c.SplitArg)},
		)
	}
	f = append(f,
		Field{"prep:mirroring", boolValue(c.Mirroring)},
		Field{"prep:rotation", int64(rotationValue(c.Rotation))},
	)
	return f
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func rcModeValue(m RCMode) int {
	switch m {
	case RCModeVBR:
		return 0
	case RCModeFixQP:
		return 2
	case RCModeAVBR:
		return 3
	default:
		return 1
	}
}

func dropModeValue(m DropMode) int {
	switch m {
	case DropNormal:
		return 1
	case DropPSkip:
		return 2
	default:
		return 0
	}
}

func splitModeValue(m SplitMode) int {
	switch m {
	case SplitBytes:
		return 1
	case SplitCTU:
		return 2
	default:
		return 0
	}
}

// rotationValue maps degrees to the hardware rotation enum.
func rotationValue(deg int) int {
	switch deg {
	case 90:
		return 1
	case 180:
		return 2
	case 270:
		return 3
	default:
		return 0
	}
}

// SEIModeValue returns the vendor enum for an SEI mode.
func SEIModeValue(m SEIMode) int {
	switch m {
	case SEIModeOneSeq:
		return 1
	case SEIModeOneFrame:
		return 2
	default:
		return 0
	}
}

// HeaderModeValue returns the vendor enum for a header mode.
func HeaderModeValue(m HeaderMode) int {
	if m == HeaderModeEachIDR {
		return 1
	}
	return 0
}

// RefMode selects which frame a reference-structure entry predicts from.
type RefMode int

// Reference modes.
const (
	RefToPrevRefFrame RefMode = iota
	RefToPrevSTRef
	RefToPrevLTRef
	RefToPrevIntra
	RefToLTRefIdx
	RefToSTPrevNRef
	RefToTemporalLayer
)

// LongTermRef describes one long-term reference slot.
type LongTermRef struct {
	Index      int
	TemporalID int
	Mode       RefMode
	Arg        int
	Gap        int
	Delay      int
}

// ShortTermRef describes one entry of the repeating short-term pattern.
type ShortTermRef struct {
	NonRef     bool
	TemporalID int
	Mode       RefMode
	Arg        int
	Repeat     int
}

// RefConfig is a GOP reference structure.
type RefConfig struct {
	LongTerm  []LongTermRef
	ShortTerm []ShortTermRef
}

// Empty reports whether the structure has no entries.
func (r *RefConfig) Empty() bool {
	return r == nil || (len(r.LongTerm) == 0 && len(r.ShortTerm) == 0)
}
