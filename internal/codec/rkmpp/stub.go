//go:build !(linux && rkmpp)

package rkmpp

import "github.com/smazurov/hwvideo/internal/codec"

// Backend is a placeholder used when the vendor library is not compiled in.
type Backend struct{}

// New returns a backend that always fails with codec.ErrUnavailable.
func New() *Backend {
	return &Backend{}
}

// Available reports whether the hardware backend was compiled in.
func Available() bool { return false }

// Name implements codec.Backend.
func (b *Backend) Name() string { return Name }

// NewBufferGroup implements codec.Backend.
func (b *Backend) NewBufferGroup() (codec.BufferGroup, error) {
	return nil, codec.ErrUnavailable
}

// Open implements codec.Backend.
func (b *Backend) Open(codec.CodingType) (codec.Encoder, error) {
	return nil, codec.ErrUnavailable
}
