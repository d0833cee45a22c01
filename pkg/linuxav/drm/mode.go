package drm

import "fmt"

const (
	modeFlagInterlace = 1 << 4
	modeTypePreferred = 1 << 3
)

// Mode is a display timing advertised by a connector.
type Mode struct {
	Clock      uint32
	HDisplay   uint16
	HSyncStart uint16
	HSyncEnd   uint16
	HTotal     uint16
	HSkew      uint16
	VDisplay   uint16
	VSyncStart uint16
	VSyncEnd   uint16
	VTotal     uint16
	VScan      uint16
	VRefresh   uint32
	Flags      uint32
	Type       uint32
	Name       string
}

// Interlaced reports whether the mode scans alternate fields.
func (m Mode) Interlaced() bool {
	return m.Flags&modeFlagInterlace != 0
}

// Preferred reports whether the connector marks this mode as preferred.
func (m Mode) Preferred() bool {
	return m.Type&modeTypePreferred != 0
}

// String renders the mode as WxH[i]@Hz.
func (m Mode) String() string {
	scan := ""
	if m.Interlaced() {
		scan = "i"
	}
	return fmt.Sprintf("%dx%d%s@%d", m.HDisplay, m.VDisplay, scan, m.VRefresh)
}

// FindMode returns the first mode whose active area is exactly width x height.
func FindMode(modes []Mode, width, height int) (Mode, bool) {
	for _, m := range modes {
		if int(m.HDisplay) == width && int(m.VDisplay) == height {
			return m, true
		}
	}
	return Mode{}, false
}
