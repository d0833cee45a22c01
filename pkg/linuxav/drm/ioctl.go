//go:build linux

package drm

import (
	"bytes"
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl retries on EINTR and EAGAIN the same way libdrm's drmIoctl does.
func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
		if errno == 0 {
			return nil
		}
		if errors.Is(errno, unix.EINTR) || errors.Is(errno, unix.EAGAIN) {
			continue
		}
		return errno
	}
}

// Compile-time struct size assertions. DRM uses fixed-width fields and
// 64-bit user pointers, so the layout is identical on every architecture.
var (
	_ [16]byte  = [unsafe.Sizeof(getCap{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(cardRes{})]byte{}
	_ [68]byte  = [unsafe.Sizeof(modeInfo{})]byte{}
	_ [104]byte = [unsafe.Sizeof(modeCrtc{})]byte{}
	_ [80]byte  = [unsafe.Sizeof(getConnector{})]byte{}
	_ [16]byte  = [unsafe.Sizeof(getPlaneRes{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(setPlane{})]byte{}
	_ [32]byte  = [unsafe.Sizeof(createDumb{})]byte{}
	_ [16]byte  = [unsafe.Sizeof(mapDumb{})]byte{}
	_ [4]byte   = [unsafe.Sizeof(destroyDumb{})]byte{}
	_ [104]byte = [unsafe.Sizeof(fbCmd2{})]byte{}
)

// IOCTL request numbers ('d' magic).
const (
	ioctlGetCap           = 0xC010640C
	ioctlSetClientCap     = 0x4010640D
	ioctlModeGetResources = 0xC04064A0
	ioctlModeSetCrtc      = 0xC06864A2
	ioctlModeGetConnector = 0xC05064A7
	ioctlModeRmFB         = 0xC00464AF
	ioctlModeCreateDumb   = 0xC02064B2
	ioctlModeMapDumb      = 0xC01064B3
	ioctlModeDestroyDumb  = 0xC00464B4
	ioctlModeGetPlaneRes  = 0xC01064B5
	ioctlModeSetPlane     = 0xC03064B7
	ioctlModeAddFB2       = 0xC06864B8
)

// getCap is struct drm_get_cap and struct drm_set_client_cap.
type getCap struct {
	capability uint64
	value      uint64
}

// cardRes is struct drm_mode_card_res.
type cardRes struct {
	fbIDPtr         uint64
	crtcIDPtr       uint64
	connectorIDPtr  uint64
	encoderIDPtr    uint64
	countFbs        uint32
	countCrtcs      uint32
	countConnectors uint32
	countEncoders   uint32
	minWidth        uint32
	maxWidth        uint32
	minHeight       uint32
	maxHeight       uint32
}

// modeInfo is struct drm_mode_modeinfo.
type modeInfo struct {
	clock      uint32
	hdisplay   uint16
	hsyncStart uint16
	hsyncEnd   uint16
	htotal     uint16
	hskew      uint16
	vdisplay   uint16
	vsyncStart uint16
	vsyncEnd   uint16
	vtotal     uint16
	vscan      uint16
	vrefresh   uint32
	flags      uint32
	typ        uint32
	name       [32]byte
}

// modeCrtc is struct drm_mode_crtc.
type modeCrtc struct {
	setConnectorsPtr uint64
	countConnectors  uint32
	crtcID           uint32
	fbID             uint32
	x                uint32
	y                uint32
	gammaSize        uint32
	modeValid        uint32
	mode             modeInfo
}

// getConnector is struct drm_mode_get_connector.
type getConnector struct {
	encodersPtr     uint64
	modesPtr        uint64
	propsPtr        uint64
	propValuesPtr   uint64
	countModes      uint32
	countProps      uint32
	countEncoders   uint32
	encoderID       uint32
	connectorID     uint32
	connectorType   uint32
	connectorTypeID uint32
	connection      uint32
	mmWidth         uint32
	mmHeight        uint32
	subpixel        uint32
	pad             uint32
}

// getPlaneRes is struct drm_mode_get_plane_res.
type getPlaneRes struct {
	planeIDPtr  uint64
	countPlanes uint32
	_           uint32
}

// setPlane is struct drm_mode_set_plane. Source coordinates are 16.16
// fixed point and the kernel orders src_h before src_w.
type setPlane struct {
	planeID uint32
	crtcID  uint32
	fbID    uint32
	flags   uint32
	crtcX   int32
	crtcY   int32
	crtcW   uint32
	crtcH   uint32
	srcX    uint32
	srcY    uint32
	srcH    uint32
	srcW    uint32
}

// createDumb is struct drm_mode_create_dumb.
type createDumb struct {
	height uint32
	width  uint32
	bpp    uint32
	flags  uint32
	handle uint32
	pitch  uint32
	size   uint64
}

// mapDumb is struct drm_mode_map_dumb.
type mapDumb struct {
	handle uint32
	pad    uint32
	offset uint64
}

// destroyDumb is struct drm_mode_destroy_dumb.
type destroyDumb struct {
	handle uint32
}

// fbCmd2 is struct drm_mode_fb_cmd2.
type fbCmd2 struct {
	fbID        uint32
	width       uint32
	height      uint32
	pixelFormat uint32
	flags       uint32
	handles     [4]uint32
	pitches     [4]uint32
	offsets     [4]uint32
	modifier    [4]uint64
}

func modeFromInfo(mi *modeInfo) Mode {
	return Mode{
		Clock:      mi.clock,
		HDisplay:   mi.hdisplay,
		HSyncStart: mi.hsyncStart,
		HSyncEnd:   mi.hsyncEnd,
		HTotal:     mi.htotal,
		HSkew:      mi.hskew,
		VDisplay:   mi.vdisplay,
		VSyncStart: mi.vsyncStart,
		VSyncEnd:   mi.vsyncEnd,
		VTotal:     mi.vtotal,
		VScan:      mi.vscan,
		VRefresh:   mi.vrefresh,
		Flags:      mi.flags,
		Type:       mi.typ,
		Name:       cstr(mi.name[:]),
	}
}

func (m Mode) info() modeInfo {
	mi := modeInfo{
		clock:      m.Clock,
		hdisplay:   m.HDisplay,
		hsyncStart: m.HSyncStart,
		hsyncEnd:   m.HSyncEnd,
		htotal:     m.HTotal,
		hskew:      m.HSkew,
		vdisplay:   m.VDisplay,
		vsyncStart: m.VSyncStart,
		vsyncEnd:   m.VSyncEnd,
		vtotal:     m.VTotal,
		vscan:      m.VScan,
		vrefresh:   m.VRefresh,
		flags:      m.Flags,
		typ:        m.Type,
	}
	copy(mi.name[:len(mi.name)-1], m.Name)
	return mi
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
