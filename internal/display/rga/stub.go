//go:build !(linux && rga)

package rga

// Converter is unusable without librga.
type Converter struct{}

// Available reports whether librga was compiled in.
func Available() bool { return false }

// New always fails with ErrUnavailable.
func New() (*Converter, error) {
	return nil, ErrUnavailable
}

// Name reports the converter kind.
func (c *Converter) Name() string { return "rga" }

// Convert always fails with ErrUnavailable.
func (c *Converter) Convert([]byte, int, []byte, int, int) error {
	return ErrUnavailable
}
