//go:build !linux

package drm

import "errors"

// ErrUnsupported is returned on platforms without DRM.
var ErrUnsupported = errors.New("drm: not supported on this platform")

// Probe is unavailable off Linux.
func Probe(string) ([]ConnectorInfo, error) {
	return nil, ErrUnsupported
}
