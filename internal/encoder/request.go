package encoder

import "github.com/smazurov/hwvideo/internal/codec"

// DefaultQuality is used for MJPEG when Request.Quality is nil.
const DefaultQuality = 80

// Request describes what the caller wants encoded. It is never modified
// after being passed to Resolve or Open.
type Request struct {
	Width  int
	Height int
	Format codec.FrameFormat
	Coding codec.CodingType

	// GOP is the keyframe interval in frames. Zero selects two seconds of
	// output frames.
	GOP int
	// Quality is the MJPEG quality in 0..100. Nil selects DefaultQuality.
	Quality *int

	// Bitrates in bits per second. Zero target derives one from the
	// geometry and output rate; zero bounds derive from the target.
	BpsTarget int
	BpsMin    int
	BpsMax    int
	RCMode    codec.RCMode

	FPSIn  codec.Fraction
	FPSOut codec.Fraction

	// Explicit strides override the 16-aligned defaults.
	HorStride int
	VerStride int

	// GOPMode selects the reference structure: 0 none, 1-3 temporal
	// layer patterns, 4 and above smart GOP with VirtualIntraLen.
	GOPMode         int
	VirtualIntraLen int

	Tuning Tuning
}

// Tuning holds the optional hardware knobs. Zero values select defaults.
type Tuning struct {
	Split    codec.SplitMode
	SplitArg int
	// Rotation in degrees: 0, 90, 180 or 270.
	Rotation  int
	Mirroring bool
	// SEIMode applies to H.264 and HEVC only. Empty means one-frame.
	SEIMode codec.SEIMode
	// GOPModeOverride replaces Request.GOPMode when set.
	GOPModeOverride *int
	// ConstraintSet is forwarded for H.264 when any of bits 16-21 are set.
	ConstraintSet uint32

	// Recorded for diagnostics; the session does not act on them.
	OSDEnable      bool
	OSDMode        int
	ROIEnable      bool
	UserDataEnable bool
}
