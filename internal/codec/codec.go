// Package codec defines the boundary between the encoder session and a
// hardware codec implementation.
//
// A Backend hands out DMA buffer groups and opens codec contexts. The
// session owns the returned objects and releases them in reverse order of
// acquisition. The rkmpp subpackage implements Backend on top of the
// Rockchip Media Process Platform; tests use in-memory fakes.
package codec

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by backends that were not compiled in.
var ErrUnavailable = errors.New("codec backend not available in this build")

// StatusError carries a non-zero status code returned by the vendor library.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: status %d", e.Op, e.Status)
}

// Buffer is a CPU-mapped DMA buffer.
type Buffer interface {
	Bytes() []byte
	Release() error
}

// BufferGroup allocates buffers from one DMA heap.
type BufferGroup interface {
	Get(size int) (Buffer, error)
	Close() error
}

// Picture describes one raw input submission.
type Picture struct {
	Width     int
	Height    int
	HorStride int
	VerStride int
	Format    FrameFormat
	EOS       bool
	Input     Buffer
	// Output is the buffer the encoder writes packet data into.
	Output Buffer
}

// PacketMeta is optional per-packet telemetry. Negative values mean absent.
type PacketMeta struct {
	TemporalID   int
	LongTermIdx  int
	AverageQP    int
	HasTemporal  bool
	HasLongTerm  bool
	HasAverageQP bool
}

// Packet is one drained output fragment. Data is only valid until the next
// GetPacket call.
type Packet struct {
	Data []byte
	EOS  bool
	// Partition marks low-delay slice output; EOI is meaningful only then.
	Partition bool
	EOI       bool
	Meta      *PacketMeta
}

// EndOfImage reports whether this packet closes the current picture.
func (p *Packet) EndOfImage() bool {
	return !p.Partition || p.EOI
}

// Encoder is an open codec context. Methods block the calling goroutine.
type Encoder interface {
	// SetConfig applies every tuning field in one call.
	SetConfig(cfg *Config) error
	SetSEIMode(mode SEIMode) error
	SetHeaderMode(mode HeaderMode) error
	SetRefConfig(ref *RefConfig) error
	// RequestIDR makes the next submitted picture a keyframe.
	RequestIDR() error
	PutFrame(pic *Picture) error
	GetPacket() (*Packet, error)
	Reset() error
	// Close destroys the context and any configuration object it holds.
	Close() error
}

// Backend creates buffer groups and codec contexts.
type Backend interface {
	Name() string
	NewBufferGroup() (BufferGroup, error)
	Open(coding CodingType) (Encoder, error)
}
