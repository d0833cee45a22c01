package encoder

import "github.com/smazurov/hwvideo/internal/codec"

// Reference structure modes.
const (
	GOPModeNone  = 0
	GOPModeTSVC2 = 1
	GOPModeTSVC3 = 2
	GOPModeTSVC4 = 3
	GOPModeSmart = 4
)

func st(nonRef bool, tid int, mode codec.RefMode, arg int) codec.ShortTermRef {
	return codec.ShortTermRef{NonRef: nonRef, TemporalID: tid, Mode: mode, Arg: arg}
}

// refConfig builds the reference structure for a GOP mode. Mode 0 returns
// nil.
func refConfig(mode, gopLen, viLen int) *codec.RefConfig {
	switch {
	case mode <= GOPModeNone:
		return nil
	case mode == GOPModeTSVC2:
		// P0 -> P2, P1 non-ref on layer 1
		return &codec.RefConfig{ShortTerm: []codec.ShortTermRef{
			st(false, 0, codec.RefToTemporalLayer, 0),
			st(true, 1, codec.RefToTemporalLayer, 0),
			st(false, 0, codec.RefToTemporalLayer, 0),
		}}
	case mode == GOPModeTSVC3:
		return &codec.RefConfig{ShortTerm: []codec.ShortTermRef{
			st(false, 0, codec.RefToTemporalLayer, 0),
			st(true, 2, codec.RefToPrevRefFrame, 0),
			st(false, 1, codec.RefToTemporalLayer, 0),
			st(true, 2, codec.RefToTemporalLayer, 1),
			st(false, 0, codec.RefToTemporalLayer, 0),
		}}
	case mode == GOPModeTSVC4:
		// layer 0 is anchored on a long-term reference refreshed every 8
		return &codec.RefConfig{
			LongTerm: []codec.LongTermRef{
				{Index: 0, TemporalID: 0, Mode: codec.RefToPrevLTRef, Gap: 8},
			},
			ShortTerm: []codec.ShortTermRef{
				st(false, 0, codec.RefToPrevLTRef, 0),
				st(true, 3, codec.RefToPrevRefFrame, 0),
				st(false, 2, codec.RefToPrevRefFrame, 0),
				st(true, 3, codec.RefToPrevRefFrame, 0),
				st(false, 1, codec.RefToPrevLTRef, 0),
				st(true, 3, codec.RefToPrevRefFrame, 0),
				st(false, 2, codec.RefToPrevRefFrame, 0),
				st(true, 3, codec.RefToPrevRefFrame, 0),
				st(false, 0, codec.RefToPrevLTRef, 0),
			},
		}
	default:
		return smartGOP(gopLen, viLen)
	}
}

// smartGOP refreshes a long-term reference every gopLen frames and inserts a
// virtual intra frame every viLen frames.
func smartGOP(gopLen, viLen int) *codec.RefConfig {
	ref := &codec.RefConfig{
		LongTerm: []codec.LongTermRef{
			{Index: 0, TemporalID: 0, Mode: codec.RefToPrevLTRef, Gap: gopLen},
		},
	}
	ref.ShortTerm = append(ref.ShortTerm, st(false, 0, codec.RefToPrevIntra, 0))
	if viLen > 1 {
		p := st(false, 0, codec.RefToPrevRefFrame, 0)
		p.Repeat = viLen - 2
		ref.ShortTerm = append(ref.ShortTerm, p)
	}
	ref.ShortTerm = append(ref.ShortTerm, st(false, 0, codec.RefToPrevIntra, 0))
	return ref
}
