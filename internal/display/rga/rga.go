//go:build linux && rga

package rga

/*
#cgo pkg-config: librga
#include <string.h>
#include <rga/rga.h>
#include <rga/RgaApi.h>
#include <rga/RgaUtils.h>

static int hw_uyvy_to_bgrx(void *src, void *dst, int width, int height, int dst_stride) {
	rga_info_t s, d;
	memset(&s, 0, sizeof(s));
	memset(&d, 0, sizeof(d));
	s.fd = -1;
	d.fd = -1;
	s.mmuFlag = 1;
	d.mmuFlag = 1;
	s.virAddr = src;
	d.virAddr = dst;
	rga_set_rect(&s.rect, 0, 0, width, height, width, height, RK_FORMAT_UYVY_422);
	rga_set_rect(&d.rect, 0, 0, width, height, dst_stride, height, RK_FORMAT_BGRX_8888);
	return c_RkRgaBlit(&s, &d, NULL);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Converter blits through librga. Source and destination rectangles are
// passed per call, so one Converter can serve several surfaces.
type Converter struct{}

// Available reports whether librga was compiled in.
func Available() bool { return true }

// New initializes librga.
func New() (*Converter, error) {
	if ret := C.c_RkRgaInit(); ret != 0 {
		return nil, fmt.Errorf("rga init: status %d", int(ret))
	}
	return &Converter{}, nil
}

// Name reports the converter kind.
func (c *Converter) Name() string { return "rga" }

// Convert blits width x height UYVY pixels from src into dst.
func (c *Converter) Convert(dst []byte, pitch int, src []byte, width, height int) error {
	if len(src) < width*height*2 {
		return fmt.Errorf("rga: source has %d bytes, need %d", len(src), width*height*2)
	}
	if pitch%4 != 0 || len(dst) < pitch*height {
		return fmt.Errorf("rga: destination of %d bytes with pitch %d too small", len(dst), pitch)
	}
	ret := C.hw_uyvy_to_bgrx(unsafe.Pointer(&src[0]), unsafe.Pointer(&dst[0]),
		C.int(width), C.int(height), C.int(pitch/4))
	if ret != 0 {
		return fmt.Errorf("rga blit: status %d", int(ret))
	}
	return nil
}
