package display

import (
	"bytes"
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/hwvideo/internal/events"
	"github.com/smazurov/hwvideo/internal/frame"
	"github.com/smazurov/hwvideo/pkg/linuxav/drm"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Device = "fake-card"
	cfg.Width = 64
	cfg.Height = 32
	cfg.LockTimeout = 5 * time.Millisecond
	cfg.Converter = ConverterSoftware
	return cfg
}

func openFake(t *testing.T, dev *fakeDevice, cfg Config, opts ...Option) *Surface {
	t.Helper()
	s, err := OpenDevice(context.Background(), dev, cfg, opts...)
	if err != nil {
		t.Fatalf("OpenDevice: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func uyvyFrame(w, h int, u, y, v byte) *frame.Frame {
	data := bytes.Repeat([]byte{u, y, v, y}, w/2*h)
	return &frame.Frame{Data: data, Width: w, Height: h, Format: frame.FormatUYVY}
}

// holdLock takes the advisory lock through a second open file description,
// the way an external display consumer would.
func holdLock(t *testing.T, path string) func() {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		t.Fatalf("flock: %v", err)
	}
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}
}

func TestOpenBindsFirstConnectedOutput(t *testing.T) {
	dev := newFakeDevice(t)
	s := openFake(t, dev, testConfig())

	want := []string{
		"get_cap", "set_client_cap", "resources", "plane_resources",
		"connector", "connector",
		"create_dumb", "map_dumb", "mmap", "add_fb2", "set_crtc", "set_plane",
	}
	if !reflect.DeepEqual(dev.calls, want) {
		t.Errorf("calls = %v\nwant %v", dev.calls, want)
	}
	if s.connector != 41 || s.crtc != 31 || s.plane != 53 {
		t.Errorf("binding = conn %d crtc %d plane %d", s.connector, s.crtc, s.plane)
	}
	if m := s.Mode(); m.HDisplay != 64 || m.VDisplay != 32 || m.VRefresh != 60 {
		t.Errorf("mode = %v, want first 64x32 entry", m)
	}
	if dev.crtcMode == nil || dev.crtcMode.VRefresh != 60 || !reflect.DeepEqual(dev.crtcConn, []uint32{41}) {
		t.Errorf("set_crtc got mode %v connectors %v", dev.crtcMode, dev.crtcConn)
	}
	if dev.plane.FBID != 99 || dev.plane.SrcW != 64 || dev.plane.SrcH != 32 || dev.plane.CRTCW != 64 {
		t.Errorf("set_plane = %+v", dev.plane)
	}
	if !bytes.Equal(dev.mem, bytes.Repeat([]byte{0xff}, len(dev.mem))) {
		t.Error("scanout buffer not filled")
	}
	if s.ConverterName() != "software" {
		t.Errorf("converter = %q", s.ConverterName())
	}
}

func TestOpenExplicitIndices(t *testing.T) {
	dev := newFakeDevice(t)
	dev.conns[40].Modes = dev.conns[41].Modes
	cfg := testConfig()
	cfg.Connector, cfg.CRTC, cfg.Plane = 0, 1, 0
	s := openFake(t, dev, cfg)
	if s.connector != 40 || s.crtc != 32 || s.plane != 50 {
		t.Errorf("binding = conn %d crtc %d plane %d", s.connector, s.crtc, s.plane)
	}
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeDevice, *Config)
		want   error
	}{
		{"no dumb buffers", func(d *fakeDevice, _ *Config) { d.dumbCap = 0 }, ErrUnsupportedDevice},
		{"cap query fails", func(d *fakeDevice, _ *Config) { d.failOn = "get_cap" }, ErrUnsupportedDevice},
		{"no universal planes", func(d *fakeDevice, _ *Config) { d.failOn = "set_client_cap" }, ErrUnsupportedDevice},
		{"mode not advertised", func(_ *fakeDevice, c *Config) { c.Width, c.Height = 800, 600 }, ErrNoMatchingMode},
		{"odd width", func(_ *fakeDevice, c *Config) { c.Width = 63 }, ErrNoMatchingMode},
		{"nothing connected", func(d *fakeDevice, _ *Config) { d.conns[41].Connection = drm.Disconnected }, ErrNoMatchingMode},
		{"plane index", func(_ *fakeDevice, c *Config) { c.Plane = 9 }, ErrSetupFailed},
		{"crtc index", func(_ *fakeDevice, c *Config) { c.CRTC = -1 }, ErrSetupFailed},
		{"unknown converter", func(_ *fakeDevice, c *Config) { c.Converter = "gpu" }, ErrSetupFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice(t)
			cfg := testConfig()
			tt.mutate(dev, &cfg)

			s, err := OpenDevice(context.Background(), dev, cfg)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if s != nil {
				t.Error("surface returned on failure")
			}
			if dev.closed != 1 {
				t.Errorf("device closed %d times, want 1", dev.closed)
			}
			if dev.destroyed != 0 || dev.unmapped != 0 {
				t.Error("buffer released although none was allocated")
			}
		})
	}
}

func TestOpenUnwindsPartialSetup(t *testing.T) {
	tests := []struct {
		failOn                      string
		destroyed, unmapped, remove int
	}{
		{"create_dumb", 0, 0, 0},
		{"map_dumb", 1, 0, 0},
		{"mmap", 1, 0, 0},
		{"add_fb2", 1, 1, 0},
		{"set_crtc", 1, 1, 1},
		{"set_plane", 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.failOn, func(t *testing.T) {
			dev := newFakeDevice(t)
			dev.failOn = tt.failOn

			_, err := OpenDevice(context.Background(), dev, testConfig())
			if !errors.Is(err, ErrSetupFailed) || !errors.Is(err, errInjected) {
				t.Fatalf("error = %v", err)
			}
			if dev.destroyed != tt.destroyed || dev.unmapped != tt.unmapped || dev.removed != tt.remove || dev.closed != 1 {
				t.Errorf("released destroy=%d unmap=%d rmfb=%d close=%d", dev.destroyed, dev.unmapped, dev.removed, dev.closed)
			}
			n := len(dev.calls)
			if dev.calls[n-1] != "close" {
				t.Errorf("device not closed last: %v", dev.calls)
			}
		})
	}
}

func TestOpenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dev := newFakeDevice(t)
	if _, err := OpenDevice(ctx, dev, testConfig()); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v", err)
	}
	if dev.closed != 1 {
		t.Error("device not closed")
	}
}

func TestPresentConvertsIntoScanout(t *testing.T) {
	dev := newFakeDevice(t)
	s := openFake(t, dev, testConfig())

	res, err := s.Present(uyvyFrame(64, 32, 128, 90, 128))
	if err != nil || res != Presented {
		t.Fatalf("Present = %v, %v", res, err)
	}
	pitch := 64*4 + int(dev.pad)
	for row := range 32 {
		line := dev.mem[row*pitch : (row+1)*pitch]
		if !bytes.Equal(line[:8], []byte{90, 90, 90, 0, 90, 90, 90, 0}) {
			t.Fatalf("row %d starts with %v", row, line[:8])
		}
		if line[pitch-1] != 0xff {
			t.Fatalf("row %d padding overwritten", row)
		}
	}
	if s.LastID() != 1 || s.LastPresented().IsZero() {
		t.Errorf("LastID = %d, LastPresented = %v", s.LastID(), s.LastPresented())
	}

	if _, err := s.Present(uyvyFrame(64, 32, 128, 91, 128)); err != nil {
		t.Fatal(err)
	}
	if s.LastID() != 2 {
		t.Errorf("LastID = %d after second frame", s.LastID())
	}
	if st := s.Stats(); st.Presented != 2 || st.Skipped != 0 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestPresentBusyLeavesBufferUntouched(t *testing.T) {
	dev := newFakeDevice(t)
	s := openFake(t, dev, testConfig())
	if _, err := s.Present(uyvyFrame(64, 32, 128, 40, 128)); err != nil {
		t.Fatal(err)
	}
	before := bytes.Clone(dev.mem)

	release := holdLock(t, dev.path)
	res, err := s.Present(uyvyFrame(64, 32, 128, 200, 128))
	release()

	if err != nil || res != Busy {
		t.Fatalf("Present = %v, %v; want busy", res, err)
	}
	if !bytes.Equal(before, dev.mem) {
		t.Error("scanout buffer changed while the consumer held the lock")
	}
	if s.LastID() != 1 {
		t.Errorf("LastID advanced to %d on a skipped frame", s.LastID())
	}
	if st := s.Stats(); st.Skipped != 1 || st.Presented != 1 {
		t.Errorf("Stats = %+v", st)
	}

	res, err = s.Present(uyvyFrame(64, 32, 128, 200, 128))
	if err != nil || res != Presented {
		t.Fatalf("Present after release = %v, %v", res, err)
	}
}

func TestPresentZeroTimeoutTriesOnce(t *testing.T) {
	dev := newFakeDevice(t)
	cfg := testConfig()
	cfg.LockTimeout = 0
	s := openFake(t, dev, cfg)

	release := holdLock(t, dev.path)
	defer release()

	start := time.Now()
	res, err := s.Present(uyvyFrame(64, 32, 128, 128, 128))
	if err != nil || res != Busy {
		t.Fatalf("Present = %v, %v", res, err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("zero timeout waited for the lock")
	}
}

func TestPresentFrameTooLarge(t *testing.T) {
	dev := newFakeDevice(t)
	s := openFake(t, dev, testConfig())
	before := bytes.Clone(dev.mem)

	big := &frame.Frame{Data: make([]byte, MaxFrameSize+1)}
	if _, err := s.Present(big); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("error = %v", err)
	}
	if !bytes.Equal(before, dev.mem) {
		t.Error("oversized frame touched the buffer")
	}
	if _, err := s.Present(uyvyFrame(64, 32, 128, 128, 128)); err != nil {
		t.Errorf("surface unusable after oversized frame: %v", err)
	}
}

func TestPresentLockFailed(t *testing.T) {
	dev := newFakeDevice(t)
	s := openFake(t, dev, testConfig())
	dev.fd = -1

	if _, err := s.Present(uyvyFrame(64, 32, 128, 128, 128)); !errors.Is(err, ErrLockFailed) {
		t.Fatalf("error = %v", err)
	}
	if st := s.Stats(); st.Errors != 1 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestCloseReleasesInOrder(t *testing.T) {
	dev := newFakeDevice(t)
	s, err := OpenDevice(context.Background(), dev, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	dev.calls = nil

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	want := []string{"rm_fb", "munmap", "destroy_dumb", "close"}
	if !reflect.DeepEqual(dev.calls, want) {
		t.Errorf("calls = %v, want %v", dev.calls, want)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if dev.closed != 1 {
		t.Errorf("device closed %d times", dev.closed)
	}
	if _, err := s.Present(uyvyFrame(64, 32, 128, 128, 128)); !errors.Is(err, ErrClosed) {
		t.Errorf("Present after Close = %v", err)
	}
}

func TestSurfaceEvents(t *testing.T) {
	bus := events.New()
	opened := make(chan events.SurfaceOpenedEvent, 1)
	skipped := make(chan events.FrameSkippedEvent, 1)
	presented := make(chan events.FramePresentedEvent, 1)
	defer events.SubscribeToChannel[events.SurfaceOpenedEvent](bus, opened)()
	defer events.SubscribeToChannel[events.FrameSkippedEvent](bus, skipped)()
	defer events.SubscribeToChannel[events.FramePresentedEvent](bus, presented)()

	dev := newFakeDevice(t)
	s := openFake(t, dev, testConfig(), WithEventBus(bus))
	if _, err := s.Present(uyvyFrame(64, 32, 128, 128, 128)); err != nil {
		t.Fatal(err)
	}
	release := holdLock(t, dev.path)
	_, _ = s.Present(uyvyFrame(64, 32, 128, 128, 128))
	release()

	select {
	case ev := <-opened:
		if ev.Mode != "64x32@60" || ev.Plane != 53 || ev.Converter != "software" {
			t.Errorf("opened event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Error("no opened event")
	}
	select {
	case ev := <-presented:
		if ev.ID != 1 || ev.Device != "fake-card" {
			t.Errorf("presented event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Error("no presented event")
	}
	select {
	case <-skipped:
	case <-time.After(time.Second):
		t.Error("no skipped event")
	}
}

func TestResultString(t *testing.T) {
	if Presented.String() != "presented" || Busy.String() != "busy" {
		t.Error("Result.String mismatch")
	}
}
