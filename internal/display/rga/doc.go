// Package rga converts UYVY frames to XRGB8888 with the Rockchip 2D raster
// graphic accelerator (librga). Build with the rga tag on linux to enable
// it; otherwise New reports ErrUnavailable.
package rga

import "errors"

// ErrUnavailable is returned by New when librga was not compiled in.
var ErrUnavailable = errors.New("rga: hardware blitter not available in this build")
