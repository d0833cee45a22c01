package display

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smazurov/hwvideo/pkg/linuxav/drm"
)

var errInjected = errors.New("injected failure")

// fakeDevice models a card with two connectors, two CRTCs and four planes.
// Its lock fd is a real temp file so flock behaves as on a device node.
type fakeDevice struct {
	file   *os.File
	path   string
	fd     int
	calls  []string
	failOn string

	dumbCap uint64
	res     *drm.Resources
	planes  []uint32
	conns   map[uint32]*drm.Connector
	pad     uint32

	mem      []byte
	crtcMode *drm.Mode
	crtcConn []uint32
	plane    drm.Plane

	closed    int
	unmapped  int
	destroyed int
	removed   int
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	path := filepath.Join(t.TempDir(), "card0")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })

	return &fakeDevice{
		file:    f,
		path:    path,
		fd:      int(f.Fd()),
		dumbCap: 1,
		res: &drm.Resources{
			CRTCs:      []uint32{31, 32},
			Connectors: []uint32{40, 41},
		},
		planes: []uint32{50, 51, 52, 53},
		conns: map[uint32]*drm.Connector{
			40: {ID: 40, Type: 10, TypeID: 1, Connection: drm.Disconnected},
			41: {ID: 41, Type: 11, TypeID: 1, Connection: drm.Connected, Modes: []drm.Mode{
				{HDisplay: 1920, VDisplay: 1080, VRefresh: 60},
				{HDisplay: 64, VDisplay: 32, VRefresh: 60},
				{HDisplay: 64, VDisplay: 32, VRefresh: 30},
			}},
		},
		pad: 16,
	}
}

func (d *fakeDevice) record(name string) error {
	d.calls = append(d.calls, name)
	if d.failOn == name {
		return errInjected
	}
	return nil
}

func (d *fakeDevice) Fd() int { return d.fd }

func (d *fakeDevice) Close() error {
	d.closed++
	return d.record("close")
}

func (d *fakeDevice) Capability(uint64) (uint64, error) {
	return d.dumbCap, d.record("get_cap")
}

func (d *fakeDevice) SetClientCapability(uint64, uint64) error {
	return d.record("set_client_cap")
}

func (d *fakeDevice) Resources() (*drm.Resources, error) {
	if err := d.record("resources"); err != nil {
		return nil, err
	}
	return d.res, nil
}

func (d *fakeDevice) Connector(id uint32) (*drm.Connector, error) {
	if err := d.record("connector"); err != nil {
		return nil, err
	}
	c, ok := d.conns[id]
	if !ok {
		return nil, errInjected
	}
	return c, nil
}

func (d *fakeDevice) PlaneResources() ([]uint32, error) {
	if err := d.record("plane_resources"); err != nil {
		return nil, err
	}
	return d.planes, nil
}

func (d *fakeDevice) CreateDumb(width, height, bpp uint32) (*drm.DumbBuffer, error) {
	if err := d.record("create_dumb"); err != nil {
		return nil, err
	}
	pitch := width*bpp/8 + d.pad
	return &drm.DumbBuffer{Handle: 7, Pitch: pitch, Size: uint64(pitch * height)}, nil
}

func (d *fakeDevice) MapDumb(uint32) (uint64, error) {
	return 0x1000, d.record("map_dumb")
}

func (d *fakeDevice) DestroyDumb(uint32) error {
	d.destroyed++
	return d.record("destroy_dumb")
}

func (d *fakeDevice) Mmap(_ uint64, size int) ([]byte, error) {
	if err := d.record("mmap"); err != nil {
		return nil, err
	}
	d.mem = make([]byte, size)
	return d.mem, nil
}

func (d *fakeDevice) Munmap([]byte) error {
	d.unmapped++
	return d.record("munmap")
}

func (d *fakeDevice) AddFB2(drm.Framebuffer) (uint32, error) {
	if err := d.record("add_fb2"); err != nil {
		return 0, err
	}
	return 99, nil
}

func (d *fakeDevice) RmFB(uint32) error {
	d.removed++
	return d.record("rm_fb")
}

func (d *fakeDevice) SetCrtc(_, _, _, _ uint32, connectors []uint32, mode *drm.Mode) error {
	d.crtcMode = mode
	d.crtcConn = connectors
	return d.record("set_crtc")
}

func (d *fakeDevice) SetPlane(p drm.Plane) error {
	d.plane = p
	return d.record("set_plane")
}
