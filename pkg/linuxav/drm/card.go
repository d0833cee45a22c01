//go:build linux

package drm

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrResourcesChanged is returned when the kernel keeps reporting different
// object counts between the sizing and the fetching ioctl.
var ErrResourcesChanged = errors.New("drm: object counts changed while reading")

// Card is an open DRM device node.
type Card struct {
	fd   int
	path string
}

// Open opens a DRM device node such as /dev/dri/card0.
func Open(path string) (*Card, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Card{fd: fd, path: path}, nil
}

// Fd returns the underlying file descriptor.
func (c *Card) Fd() int { return c.fd }

// Path returns the device node path.
func (c *Card) Path() string { return c.path }

// Close closes the device node.
func (c *Card) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

// Capability queries a DRM_CAP_* value.
func (c *Card) Capability(capability uint64) (uint64, error) {
	arg := getCap{capability: capability}
	if err := ioctl(c.fd, ioctlGetCap, unsafe.Pointer(&arg)); err != nil {
		return 0, fmt.Errorf("get cap %#x: %w", capability, err)
	}
	return arg.value, nil
}

// SetClientCapability enables a DRM_CLIENT_CAP_* feature.
func (c *Card) SetClientCapability(capability, value uint64) error {
	arg := getCap{capability: capability, value: value}
	if err := ioctl(c.fd, ioctlSetClientCap, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("set client cap %#x: %w", capability, err)
	}
	return nil
}

// Resources reads the card's CRTC, connector and encoder ids.
func (c *Card) Resources() (*Resources, error) {
	for range maxProbeAttempts {
		var sizing cardRes
		if err := ioctl(c.fd, ioctlModeGetResources, unsafe.Pointer(&sizing)); err != nil {
			return nil, fmt.Errorf("get resources: %w", err)
		}

		res := &Resources{
			FBs:        make([]uint32, sizing.countFbs),
			CRTCs:      make([]uint32, sizing.countCrtcs),
			Connectors: make([]uint32, sizing.countConnectors),
			Encoders:   make([]uint32, sizing.countEncoders),
		}
		arg := cardRes{
			fbIDPtr:         slicePtr(res.FBs),
			crtcIDPtr:       slicePtr(res.CRTCs),
			connectorIDPtr:  slicePtr(res.Connectors),
			encoderIDPtr:    slicePtr(res.Encoders),
			countFbs:        sizing.countFbs,
			countCrtcs:      sizing.countCrtcs,
			countConnectors: sizing.countConnectors,
			countEncoders:   sizing.countEncoders,
		}
		err := ioctl(c.fd, ioctlModeGetResources, unsafe.Pointer(&arg))
		runtime.KeepAlive(res)
		if err != nil {
			return nil, fmt.Errorf("get resources: %w", err)
		}
		if arg.countFbs > sizing.countFbs || arg.countCrtcs > sizing.countCrtcs ||
			arg.countConnectors > sizing.countConnectors || arg.countEncoders > sizing.countEncoders {
			continue
		}

		res.FBs = res.FBs[:arg.countFbs]
		res.CRTCs = res.CRTCs[:arg.countCrtcs]
		res.Connectors = res.Connectors[:arg.countConnectors]
		res.Encoders = res.Encoders[:arg.countEncoders]
		res.MinWidth, res.MaxWidth = arg.minWidth, arg.maxWidth
		res.MinHeight, res.MaxHeight = arg.minHeight, arg.maxHeight
		return res, nil
	}
	return nil, ErrResourcesChanged
}

// Connector reads one connector. The kernel is asked twice: once for the
// counts and once with buffers of that size.
func (c *Card) Connector(id uint32) (*Connector, error) {
	for range maxProbeAttempts {
		sizing := getConnector{connectorID: id}
		if err := ioctl(c.fd, ioctlModeGetConnector, unsafe.Pointer(&sizing)); err != nil {
			return nil, fmt.Errorf("get connector %d: %w", id, err)
		}

		modes := make([]modeInfo, sizing.countModes)
		encoders := make([]uint32, sizing.countEncoders)
		props := make([]uint32, sizing.countProps)
		values := make([]uint64, sizing.countProps)
		arg := getConnector{
			connectorID:   id,
			countModes:    sizing.countModes,
			countEncoders: sizing.countEncoders,
			countProps:    sizing.countProps,
			modesPtr:      slicePtr(modes),
			encodersPtr:   slicePtr(encoders),
			propsPtr:      slicePtr(props),
			propValuesPtr: slicePtr(values),
		}
		err := ioctl(c.fd, ioctlModeGetConnector, unsafe.Pointer(&arg))
		runtime.KeepAlive(modes)
		runtime.KeepAlive(encoders)
		runtime.KeepAlive(props)
		runtime.KeepAlive(values)
		if err != nil {
			return nil, fmt.Errorf("get connector %d: %w", id, err)
		}
		if arg.countModes > sizing.countModes || arg.countEncoders > sizing.countEncoders ||
			arg.countProps > sizing.countProps {
			continue
		}

		conn := &Connector{
			ID:         arg.connectorID,
			EncoderID:  arg.encoderID,
			Type:       arg.connectorType,
			TypeID:     arg.connectorTypeID,
			Connection: Connection(arg.connection),
			WidthMM:    arg.mmWidth,
			HeightMM:   arg.mmHeight,
			Encoders:   encoders[:arg.countEncoders],
			Modes:      make([]Mode, 0, arg.countModes),
		}
		for i := range modes[:arg.countModes] {
			conn.Modes = append(conn.Modes, modeFromInfo(&modes[i]))
		}
		return conn, nil
	}
	return nil, ErrResourcesChanged
}

// PlaneResources lists plane ids. Overlay and primary planes are only
// included once ClientCapUniversalPlanes is set.
func (c *Card) PlaneResources() ([]uint32, error) {
	for range maxProbeAttempts {
		var sizing getPlaneRes
		if err := ioctl(c.fd, ioctlModeGetPlaneRes, unsafe.Pointer(&sizing)); err != nil {
			return nil, fmt.Errorf("get plane resources: %w", err)
		}
		planes := make([]uint32, sizing.countPlanes)
		arg := getPlaneRes{planeIDPtr: slicePtr(planes), countPlanes: sizing.countPlanes}
		err := ioctl(c.fd, ioctlModeGetPlaneRes, unsafe.Pointer(&arg))
		runtime.KeepAlive(planes)
		if err != nil {
			return nil, fmt.Errorf("get plane resources: %w", err)
		}
		if arg.countPlanes > sizing.countPlanes {
			continue
		}
		return planes[:arg.countPlanes], nil
	}
	return nil, ErrResourcesChanged
}

// CreateDumb allocates a dumb buffer of width x height at bpp bits per pixel.
func (c *Card) CreateDumb(width, height, bpp uint32) (*DumbBuffer, error) {
	arg := createDumb{width: width, height: height, bpp: bpp}
	if err := ioctl(c.fd, ioctlModeCreateDumb, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("create dumb %dx%d: %w", width, height, err)
	}
	return &DumbBuffer{Handle: arg.handle, Pitch: arg.pitch, Size: arg.size}, nil
}

// MapDumb returns the fake offset to pass to Mmap for a dumb buffer.
func (c *Card) MapDumb(handle uint32) (uint64, error) {
	arg := mapDumb{handle: handle}
	if err := ioctl(c.fd, ioctlModeMapDumb, unsafe.Pointer(&arg)); err != nil {
		return 0, fmt.Errorf("map dumb %d: %w", handle, err)
	}
	return arg.offset, nil
}

// DestroyDumb frees a dumb buffer.
func (c *Card) DestroyDumb(handle uint32) error {
	arg := destroyDumb{handle: handle}
	if err := ioctl(c.fd, ioctlModeDestroyDumb, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("destroy dumb %d: %w", handle, err)
	}
	return nil
}

// Mmap maps size bytes of the device at offset for reading and writing.
func (c *Card) Mmap(offset uint64, size int) ([]byte, error) {
	b, err := unix.Mmap(c.fd, int64(offset), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	return b, nil
}

// Munmap unmaps a region returned by Mmap.
func (c *Card) Munmap(b []byte) error {
	return unix.Munmap(b)
}

// AddFB2 registers a framebuffer object and returns its id.
func (c *Card) AddFB2(fb Framebuffer) (uint32, error) {
	arg := fbCmd2{
		width:       fb.Width,
		height:      fb.Height,
		pixelFormat: fb.PixelFormat,
	}
	arg.handles[0] = fb.Handle
	arg.pitches[0] = fb.Pitch
	arg.offsets[0] = fb.Offset
	if err := ioctl(c.fd, ioctlModeAddFB2, unsafe.Pointer(&arg)); err != nil {
		return 0, fmt.Errorf("add fb2: %w", err)
	}
	return arg.fbID, nil
}

// RmFB removes a framebuffer object.
func (c *Card) RmFB(id uint32) error {
	if err := ioctl(c.fd, ioctlModeRmFB, unsafe.Pointer(&id)); err != nil {
		return fmt.Errorf("rm fb %d: %w", id, err)
	}
	return nil
}

// SetCrtc programs a CRTC to scan out fb with mode on the given connectors.
func (c *Card) SetCrtc(crtcID, fbID uint32, x, y uint32, connectors []uint32, mode *Mode) error {
	arg := modeCrtc{
		crtcID:           crtcID,
		fbID:             fbID,
		x:                x,
		y:                y,
		setConnectorsPtr: slicePtr(connectors),
		countConnectors:  uint32(len(connectors)),
	}
	if mode != nil {
		arg.mode = mode.info()
		arg.modeValid = 1
	}
	err := ioctl(c.fd, ioctlModeSetCrtc, unsafe.Pointer(&arg))
	runtime.KeepAlive(connectors)
	if err != nil {
		return fmt.Errorf("set crtc %d: %w", crtcID, err)
	}
	return nil
}

// SetPlane programs a plane.
func (c *Card) SetPlane(p Plane) error {
	arg := setPlane{
		planeID: p.PlaneID,
		crtcID:  p.CRTCID,
		fbID:    p.FBID,
		crtcX:   p.CRTCX,
		crtcY:   p.CRTCY,
		crtcW:   p.CRTCW,
		crtcH:   p.CRTCH,
		srcX:    p.SrcX << 16,
		srcY:    p.SrcY << 16,
		srcW:    p.SrcW << 16,
		srcH:    p.SrcH << 16,
	}
	if err := ioctl(c.fd, ioctlModeSetPlane, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("set plane %d: %w", p.PlaneID, err)
	}
	return nil
}

const maxProbeAttempts = 3

func slicePtr[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}
