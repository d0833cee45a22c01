package encoder

import (
	"errors"
	"fmt"

	"github.com/smazurov/hwvideo/internal/codec"
)

var errInjected = errors.New("injected failure")

type fakeBuffer struct {
	data     []byte
	released int
}

func (b *fakeBuffer) Bytes() []byte { return b.data }

func (b *fakeBuffer) Release() error {
	b.released++
	return nil
}

type fakeGroup struct {
	failAt  int // 1-based Get call that fails, 0 never
	gets    int
	closed  int
	buffers []*fakeBuffer
}

func (g *fakeGroup) Get(size int) (codec.Buffer, error) {
	g.gets++
	if g.gets == g.failAt {
		return nil, errInjected
	}
	b := &fakeBuffer{data: make([]byte, size)}
	g.buffers = append(g.buffers, b)
	return b, nil
}

func (g *fakeGroup) Close() error {
	g.closed++
	return nil
}

// fakeEncoder records every call and replays packets produced by encode.
type fakeEncoder struct {
	calls  []string
	failOn string

	cfg    *codec.Config
	sei    codec.SEIMode
	header codec.HeaderMode
	refs   *codec.RefConfig
	idr    int
	frames int

	encode  func(pic *codec.Picture) []*codec.Packet
	block   chan struct{}
	entered chan struct{}
	queue   []*codec.Packet

	reset  int
	closed int
}

func (e *fakeEncoder) record(name string) error {
	e.calls = append(e.calls, name)
	if e.failOn == name {
		return &codec.StatusError{Op: name, Status: -1}
	}
	return nil
}

func (e *fakeEncoder) SetConfig(cfg *codec.Config) error {
	e.cfg = cfg
	return e.record("set_cfg")
}

func (e *fakeEncoder) SetSEIMode(mode codec.SEIMode) error {
	e.sei = mode
	return e.record("set_sei")
}

func (e *fakeEncoder) SetHeaderMode(mode codec.HeaderMode) error {
	e.header = mode
	return e.record("set_header")
}

func (e *fakeEncoder) SetRefConfig(ref *codec.RefConfig) error {
	e.refs = ref
	return e.record("set_ref")
}

func (e *fakeEncoder) RequestIDR() error {
	e.idr++
	return e.record("idr")
}

func (e *fakeEncoder) PutFrame(pic *codec.Picture) error {
	if err := e.record("put_frame"); err != nil {
		return err
	}
	if e.block != nil {
		e.entered <- struct{}{}
		<-e.block
	}
	e.frames++
	if e.encode != nil {
		e.queue = append(e.queue, e.encode(pic)...)
	} else {
		e.queue = append(e.queue, &codec.Packet{Data: []byte{byte(e.frames)}})
	}
	return nil
}

func (e *fakeEncoder) GetPacket() (*codec.Packet, error) {
	if err := e.record("get_packet"); err != nil {
		return nil, err
	}
	if len(e.queue) == 0 {
		return nil, fmt.Errorf("no packet queued")
	}
	p := e.queue[0]
	e.queue = e.queue[1:]
	return p, nil
}

func (e *fakeEncoder) Reset() error {
	e.reset++
	return e.record("reset")
}

func (e *fakeEncoder) Close() error {
	e.closed++
	return e.record("close")
}

type fakeBackend struct {
	group    *fakeGroup
	enc      *fakeEncoder
	groupErr error
	openErr  error
	opened   codec.CodingType
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{group: &fakeGroup{}, enc: &fakeEncoder{}}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) NewBufferGroup() (codec.BufferGroup, error) {
	if b.groupErr != nil {
		return nil, b.groupErr
	}
	return b.group, nil
}

func (b *fakeBackend) Open(coding codec.CodingType) (codec.Encoder, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opened = coding
	return b.enc, nil
}

func intPtr(v int) *int { return &v }
