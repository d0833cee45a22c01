package cmd

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/smazurov/hwvideo/internal/codec"
	"github.com/smazurov/hwvideo/internal/config"
	"github.com/smazurov/hwvideo/internal/display"
	"github.com/smazurov/hwvideo/internal/events"
	"github.com/smazurov/hwvideo/internal/frame"
)

type memBuffer struct{ data []byte }

func (b *memBuffer) Bytes() []byte  { return b.data }
func (b *memBuffer) Release() error { return nil }

type memGroup struct{}

func (memGroup) Get(size int) (codec.Buffer, error) { return &memBuffer{data: make([]byte, size)}, nil }
func (memGroup) Close() error                       { return nil }

// echoEncoder emits one packet per frame holding the first input byte.
type echoEncoder struct {
	pending []byte
	idr     int
	closed  bool
}

func (e *echoEncoder) SetConfig(*codec.Config) error        { return nil }
func (e *echoEncoder) SetSEIMode(codec.SEIMode) error       { return nil }
func (e *echoEncoder) SetHeaderMode(codec.HeaderMode) error { return nil }
func (e *echoEncoder) SetRefConfig(*codec.RefConfig) error  { return nil }
func (e *echoEncoder) RequestIDR() error                    { e.idr++; return nil }
func (e *echoEncoder) Reset() error                         { return nil }
func (e *echoEncoder) Close() error                         { e.closed = true; return nil }
func (e *echoEncoder) GetPacket() (*codec.Packet, error)    { return &codec.Packet{Data: e.pending}, nil }
func (e *echoEncoder) PutFrame(pic *codec.Picture) error {
	e.pending = []byte{pic.Input.Bytes()[0]}
	return nil
}

type echoBackend struct {
	opened  []*echoEncoder
	openErr error
}

func (b *echoBackend) Name() string                               { return "echo" }
func (b *echoBackend) NewBufferGroup() (codec.BufferGroup, error) { return memGroup{}, nil }
func (b *echoBackend) Open(codec.CodingType) (codec.Encoder, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	e := &echoEncoder{}
	b.opened = append(b.opened, e)
	return e, nil
}

var errRejected = errors.New("rejected")

func testApp() *app {
	p := config.DefaultPipeline()
	p.Encoder.Width = 64
	p.Encoder.Height = 32
	p.Metrics.MPPCollector = false
	return &app{
		opts:     Options{Config: "/nonexistent/hwvideo.toml"},
		pipeline: p,
		bus:      events.New(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// fakePresenter reports Busy for the frame numbers listed in busy.
type fakePresenter struct {
	busy   map[int]bool
	failAt int
	calls  int
	stats  display.Stats
	first  []byte
	closed int
	after  func(calls int)
}

func (p *fakePresenter) Present(f *frame.Frame) (display.Result, error) {
	p.calls++
	if p.calls == p.failAt {
		p.stats.Errors++
		return display.Presented, display.ErrLockFailed
	}
	if p.busy[p.calls] {
		p.stats.Skipped++
		return display.Busy, nil
	}
	p.first = append(p.first, f.Data[0])
	p.stats.Presented++
	if p.after != nil {
		p.after(p.calls)
	}
	return display.Presented, nil
}

func (p *fakePresenter) Stats() display.Stats { return p.stats }

func (p *fakePresenter) Close() error {
	p.closed++
	return nil
}

func writeTestFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func readTestFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
