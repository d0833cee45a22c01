// Package display presents raw UYVY frames on a DRM/KMS plane.
//
// A Surface binds one connector, CRTC and plane to a single mapped dumb
// buffer. Present converts a frame into that buffer while holding an
// exclusive advisory lock on the device node; when another process holds
// the lock the frame is skipped and Present reports Busy.
package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/hwvideo/internal/display/rga"
	"github.com/smazurov/hwvideo/internal/events"
	"github.com/smazurov/hwvideo/internal/frame"
	"github.com/smazurov/hwvideo/internal/logging"
	"github.com/smazurov/hwvideo/internal/metrics"
	"github.com/smazurov/hwvideo/pkg/linuxav/drm"
)

// MaxFrameSize is the largest payload Present accepts.
const MaxFrameSize = 32 << 20

// DefaultDevice is the display device opened when Config.Device is empty.
const DefaultDevice = "/dev/dri/card0"

// FirstConnected selects the first connector reporting a connected sink.
const FirstConnected = -1

// Converter kinds accepted in Config.Converter.
const (
	ConverterAuto     = "auto"
	ConverterRGA      = "rga"
	ConverterSoftware = "software"
)

// Device is the part of a DRM card a Surface drives. *drm.Card implements it.
type Device interface {
	Fd() int
	Close() error
	Capability(capability uint64) (uint64, error)
	SetClientCapability(capability, value uint64) error
	Resources() (*drm.Resources, error)
	Connector(id uint32) (*drm.Connector, error)
	PlaneResources() ([]uint32, error)
	CreateDumb(width, height, bpp uint32) (*drm.DumbBuffer, error)
	MapDumb(handle uint32) (uint64, error)
	DestroyDumb(handle uint32) error
	Mmap(offset uint64, size int) ([]byte, error)
	Munmap(b []byte) error
	AddFB2(fb drm.Framebuffer) (uint32, error)
	RmFB(id uint32) error
	SetCrtc(crtcID, fbID, x, y uint32, connectors []uint32, mode *drm.Mode) error
	SetPlane(p drm.Plane) error
}

// Config selects the output and how frames reach it.
type Config struct {
	Device    string
	Width     int
	Height    int
	Connector int // index into the card's connectors, or FirstConnected
	CRTC      int // index into the card's CRTCs
	Plane     int // index into the plane list
	// LockTimeout bounds how long Present waits for the consumer. Zero
	// makes a single attempt.
	LockTimeout time.Duration
	Fill        byte
	Converter   string
}

// DefaultConfig returns the settings used for a plain /dev/dri/card0 setup.
func DefaultConfig() Config {
	return Config{
		Device:      DefaultDevice,
		Connector:   FirstConnected,
		CRTC:        0,
		Plane:       3,
		LockTimeout: time.Second,
		Fill:        0xff,
		Converter:   ConverterAuto,
	}
}

// Result is the outcome of a successful Present call.
type Result int

// Present outcomes.
const (
	Presented Result = iota
	Busy
)

// String implements fmt.Stringer.
func (r Result) String() string {
	if r == Busy {
		return "busy"
	}
	return "presented"
}

// Stats are the cumulative counters of a surface.
type Stats struct {
	Presented uint64
	Skipped   uint64
	Errors    uint64
}

// Option customizes a surface.
type Option func(*Surface)

// WithEventBus publishes surface events on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(s *Surface) { s.bus = bus }
}

// WithLogger replaces the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Surface) { s.logger = logger }
}

// WithConverter overrides the converter chosen from Config.Converter.
func WithConverter(c Converter) Option {
	return func(s *Surface) { s.conv = c }
}

// Surface is one bound display plane.
type Surface struct {
	cfg    Config
	name   string
	dev    Device
	conv   Converter
	bus    *events.Bus
	logger *slog.Logger

	connector uint32
	crtc      uint32
	plane     uint32
	mode      drm.Mode

	dumb *drm.DumbBuffer
	buf  []byte
	fbID uint32

	mu            sync.Mutex
	closed        bool
	lastID        uint64
	lastPresented time.Time
	stats         Stats
}

// Open opens cfg.Device and binds a plane to it.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Surface, error) {
	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}
	dev, err := openDevice(cfg.Device)
	if err != nil {
		return nil, newError(ErrCodeUnsupportedDevice, "open", cfg.Device, err)
	}
	return OpenDevice(ctx, dev, cfg, opts...)
}

// OpenDevice binds a plane on an already opened device. The surface takes
// ownership of dev and closes it on failure or in Close.
func OpenDevice(ctx context.Context, dev Device, cfg Config, opts ...Option) (*Surface, error) {
	s := &Surface{
		cfg:    cfg,
		name:   cfg.Device,
		dev:    dev,
		logger: logging.GetLogger("display"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.name == "" {
		s.name = DefaultDevice
	}
	s.logger = s.logger.With("device", s.name)

	var undo []func() error
	undo = append(undo, dev.Close)
	if err := s.setup(ctx, &undo); err != nil {
		var errs []error
		for i := len(undo) - 1; i >= 0; i-- {
			if uerr := undo[i](); uerr != nil {
				errs = append(errs, uerr)
			}
		}
		if len(errs) > 0 {
			s.logger.Warn("Cleanup after failed open was incomplete", "error", errors.Join(errs...))
		}
		s.logger.Error("Failed to open surface", "code", codeOf(err), "error", err)
		return nil, err
	}

	s.logger.Info("Surface ready",
		"connector", s.connector,
		"crtc", s.crtc,
		"plane", s.plane,
		"mode", s.mode.String(),
		"pitch", s.dumb.Pitch,
		"converter", s.conv.Name())
	s.bus.Publish(events.SurfaceOpenedEvent{
		Device:    s.name,
		Connector: s.connector,
		CRTC:      s.crtc,
		Plane:     s.plane,
		Mode:      s.mode.String(),
		Converter: s.conv.Name(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return s, nil
}

func (s *Surface) setup(ctx context.Context, undo *[]func() error) error {
	cfg := s.cfg
	if err := ctx.Err(); err != nil {
		return newError(ErrCodeSetupFailed, "open", "cancelled", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width%2 != 0 {
		return newError(ErrCodeNoMatchingMode, "open", fmt.Sprintf("invalid size %dx%d", cfg.Width, cfg.Height), nil)
	}

	hasDumb, err := s.dev.Capability(drm.CapDumbBuffer)
	if err != nil || hasDumb == 0 {
		return newError(ErrCodeUnsupportedDevice, "get_cap", "dumb buffers not supported", err)
	}
	if err := s.dev.SetClientCapability(drm.ClientCapUniversalPlanes, 1); err != nil {
		return newError(ErrCodeUnsupportedDevice, "set_client_cap", "universal planes not supported", err)
	}

	res, err := s.dev.Resources()
	if err != nil {
		return newError(ErrCodeSetupFailed, "get_resources", "", err)
	}
	planes, err := s.dev.PlaneResources()
	if err != nil {
		return newError(ErrCodeSetupFailed, "get_plane_resources", "", err)
	}
	conn, err := s.pickConnector(res)
	if err != nil {
		return err
	}
	if cfg.CRTC < 0 || cfg.CRTC >= len(res.CRTCs) {
		return newError(ErrCodeSetupFailed, "select_crtc", fmt.Sprintf("crtc index %d of %d", cfg.CRTC, len(res.CRTCs)), nil)
	}
	if cfg.Plane < 0 || cfg.Plane >= len(planes) {
		return newError(ErrCodeSetupFailed, "select_plane", fmt.Sprintf("plane index %d of %d", cfg.Plane, len(planes)), nil)
	}
	mode, ok := drm.FindMode(conn.Modes, cfg.Width, cfg.Height)
	if !ok {
		return newError(ErrCodeNoMatchingMode, "find_mode",
			fmt.Sprintf("%dx%d not advertised by %s", cfg.Width, cfg.Height, conn.Name()), nil)
	}
	s.connector, s.crtc, s.plane, s.mode = conn.ID, res.CRTCs[cfg.CRTC], planes[cfg.Plane], mode

	if s.conv == nil {
		conv, err := selectConverter(cfg.Converter)
		if err != nil {
			return newError(ErrCodeSetupFailed, "converter", cfg.Converter, err)
		}
		s.conv = conv
	}

	dumb, err := s.dev.CreateDumb(uint32(cfg.Width), uint32(cfg.Height), 32)
	if err != nil {
		return newError(ErrCodeSetupFailed, "create_dumb", "", err)
	}
	s.dumb = dumb
	*undo = append(*undo, func() error { return s.dev.DestroyDumb(dumb.Handle) })

	offset, err := s.dev.MapDumb(dumb.Handle)
	if err != nil {
		return newError(ErrCodeSetupFailed, "map_dumb", "", err)
	}
	buf, err := s.dev.Mmap(offset, int(dumb.Size))
	if err != nil {
		return newError(ErrCodeSetupFailed, "mmap", "", err)
	}
	s.buf = buf
	*undo = append(*undo, func() error { return s.dev.Munmap(buf) })
	for i := range buf {
		buf[i] = cfg.Fill
	}

	fbID, err := s.dev.AddFB2(drm.Framebuffer{
		Width:       uint32(cfg.Width),
		Height:      uint32(cfg.Height),
		PixelFormat: drm.FormatXRGB8888,
		Handle:      dumb.Handle,
		Pitch:       dumb.Pitch,
	})
	if err != nil {
		return newError(ErrCodeSetupFailed, "add_fb2", "", err)
	}
	s.fbID = fbID
	*undo = append(*undo, func() error { return s.dev.RmFB(fbID) })

	if err := s.dev.SetCrtc(s.crtc, fbID, 0, 0, []uint32{s.connector}, &mode); err != nil {
		return newError(ErrCodeSetupFailed, "set_crtc", "", err)
	}
	err = s.dev.SetPlane(drm.Plane{
		PlaneID: s.plane,
		CRTCID:  s.crtc,
		FBID:    fbID,
		CRTCW:   uint32(cfg.Width),
		CRTCH:   uint32(cfg.Height),
		SrcW:    uint32(cfg.Width),
		SrcH:    uint32(cfg.Height),
	})
	if err != nil {
		return newError(ErrCodeSetupFailed, "set_plane", "", err)
	}
	return nil
}

func (s *Surface) pickConnector(res *drm.Resources) (*drm.Connector, error) {
	if s.cfg.Connector != FirstConnected {
		if s.cfg.Connector < 0 || s.cfg.Connector >= len(res.Connectors) {
			return nil, newError(ErrCodeSetupFailed, "select_connector",
				fmt.Sprintf("connector index %d of %d", s.cfg.Connector, len(res.Connectors)), nil)
		}
		conn, err := s.dev.Connector(res.Connectors[s.cfg.Connector])
		if err != nil {
			return nil, newError(ErrCodeSetupFailed, "get_connector", "", err)
		}
		return conn, nil
	}
	for _, id := range res.Connectors {
		conn, err := s.dev.Connector(id)
		if err != nil {
			s.logger.Debug("Skipping unreadable connector", "id", id, "error", err)
			continue
		}
		if conn.Connection == drm.Connected {
			return conn, nil
		}
	}
	return nil, newError(ErrCodeNoMatchingMode, "select_connector", "no connected connector", nil)
}

func selectConverter(kind string) (Converter, error) {
	switch kind {
	case "", ConverterAuto:
		if c, err := rga.New(); err == nil {
			return c, nil
		}
		return NewSoftwareConverter(), nil
	case ConverterRGA:
		c, err := rga.New()
		if err != nil {
			return nil, err
		}
		return c, nil
	case ConverterSoftware:
		return NewSoftwareConverter(), nil
	default:
		return nil, fmt.Errorf("unknown converter %q", kind)
	}
}

// Present converts f into the scanout buffer. Busy means the consumer held
// the lock for the whole timeout and the buffer was not touched.
func (s *Surface) Present(f *frame.Frame) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Presented, newError(ErrCodeClosed, "present", "surface closed", nil)
	}
	if f == nil {
		return Presented, s.presentError(newError(ErrCodeInvalidFrame, "present", "nil frame", nil))
	}
	if f.Used() > MaxFrameSize {
		return Presented, s.presentError(newError(ErrCodeFrameTooLarge, "present",
			fmt.Sprintf("%d > %d bytes", f.Used(), MaxFrameSize), nil))
	}

	start := time.Now()
	fd := s.dev.Fd()
	ok, err := tryLock(fd, s.cfg.LockTimeout)
	if err != nil {
		return Presented, s.presentError(newError(ErrCodeLockFailed, "flock", "", err))
	}
	if !ok {
		s.stats.Skipped++
		metrics.IncSkipped(s.name)
		s.bus.Publish(events.FrameSkippedEvent{Device: s.name})
		s.logger.Debug("Display buffer busy, frame skipped")
		return Busy, nil
	}

	convErr := s.conv.Convert(s.buf, int(s.dumb.Pitch), f.Data, s.cfg.Width, s.cfg.Height)
	if convErr == nil {
		s.lastID++
		s.lastPresented = time.Now()
	}
	if err := unlock(fd); err != nil {
		return Presented, s.presentError(newError(ErrCodeLockFailed, "unlock", "", err))
	}
	if convErr != nil {
		return Presented, s.presentError(newError(ErrCodeConvertFailed, "convert", s.conv.Name(), convErr))
	}

	elapsed := time.Since(start)
	s.stats.Presented++
	metrics.RecordPresented(s.name, elapsed)
	s.bus.Publish(events.FramePresentedEvent{
		Device:   s.name,
		ID:       s.lastID,
		Duration: elapsed.Microseconds(),
	})
	return Presented, nil
}

func (s *Surface) presentError(err *Error) error {
	s.stats.Errors++
	metrics.IncPresentError(s.name, err.Code)
	s.bus.Publish(events.PresentErrorEvent{Device: s.name, Code: err.Code, Error: err.Error()})
	s.logger.Error("Present failed", "code", err.Code, "op", err.Op, "error", err)
	return err
}

// Close unbinds the framebuffer, unmaps and frees the buffer and closes
// the device. Calling it again is a no-op.
func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.fbID != 0 {
		if err := s.dev.RmFB(s.fbID); err != nil {
			errs = append(errs, err)
		}
		s.fbID = 0
	}
	if s.buf != nil {
		if err := s.dev.Munmap(s.buf); err != nil {
			errs = append(errs, err)
		}
		s.buf = nil
	}
	if s.dumb != nil {
		if err := s.dev.DestroyDumb(s.dumb.Handle); err != nil {
			errs = append(errs, err)
		}
		s.dumb = nil
	}
	if err := s.dev.Close(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info("Surface closed", "presented", s.stats.Presented, "skipped", s.stats.Skipped)
	s.bus.Publish(events.SurfaceClosedEvent{
		Device:    s.name,
		Presented: s.stats.Presented,
		Skipped:   s.stats.Skipped,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	metrics.DeleteDisplayMetrics(s.name)
	return errors.Join(errs...)
}

// Mode returns the programmed display mode.
func (s *Surface) Mode() drm.Mode { return s.mode }

// ConverterName reports which converter fills the buffer.
func (s *Surface) ConverterName() string { return s.conv.Name() }

// LastID returns the id of the last presented frame. Ids start at 1 and
// increase by one per presented frame.
func (s *Surface) LastID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// LastPresented returns when the last frame was presented.
func (s *Surface) LastPresented() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPresented
}

// Stats returns a snapshot of the counters.
func (s *Surface) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func codeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
