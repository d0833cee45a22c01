package display

import "fmt"

// Converter writes a packed UYVY picture into an XRGB8888 scanout buffer.
type Converter interface {
	Name() string
	// Convert reads width x height UYVY pixels from src and writes them to
	// dst, whose rows are pitch bytes apart.
	Convert(dst []byte, pitch int, src []byte, width, height int) error
}

// Fixed-point BT.601 chroma coefficients, scaled by 256.
const (
	coefCrR = 454
	coefCbB = 359
	coefCrG = 183
	coefCbG = 88
)

type yuvTables struct {
	crR [256]int32
	cbB [256]int32
	crG [256]int32
	cbG [256]int32
}

// tables are built once and only read afterwards.
var tables = newYUVTables()

func newYUVTables() *yuvTables {
	t := &yuvTables{}
	for i := range 256 {
		c := int32(i - 128)
		t.crR[i] = coefCrR * c
		t.cbB[i] = coefCbB * c
		t.crG[i] = coefCrG * c
		t.cbG[i] = coefCbG * c
	}
	return t
}

func clamp8(v int32) byte {
	switch {
	case v > 255:
		return 255
	case v < 0:
		return 0
	default:
		return byte(v)
	}
}

// SoftwareConverter does the conversion on the CPU with lookup tables.
type SoftwareConverter struct {
	t *yuvTables
}

// NewSoftwareConverter returns a converter sharing the package tables.
func NewSoftwareConverter() *SoftwareConverter {
	return &SoftwareConverter{t: tables}
}

// Name implements Converter.
func (c *SoftwareConverter) Name() string { return "software" }

// Convert implements Converter. Output bytes per pixel are B, G, R, 0.
// Rows missing from a short src are left untouched.
func (c *SoftwareConverter) Convert(dst []byte, pitch int, src []byte, width, height int) error {
	if width%2 != 0 {
		return fmt.Errorf("uyvy width %d is odd", width)
	}
	if pitch < width*4 {
		return fmt.Errorf("pitch %d too small for width %d", pitch, width)
	}
	srcStride := width * 2
	rows := min(height, len(src)/srcStride, len(dst)/pitch)

	t := c.t
	for y := range rows {
		in := src[y*srcStride : (y+1)*srcStride]
		out := dst[y*pitch : y*pitch+width*4]
		for x := 0; x < len(in); x += 4 {
			u, y1, v, y2 := in[x], int32(in[x+1])<<8, in[x+2], int32(in[x+3])<<8

			r := t.crR[v]
			g := t.crG[v] + t.cbG[u]
			b := t.cbB[u]

			o := out[x*2 : x*2+8]
			o[0] = clamp8((y1 + b) >> 8)
			o[1] = clamp8((y1 - g) >> 8)
			o[2] = clamp8((y1 + r) >> 8)
			o[3] = 0
			o[4] = clamp8((y2 + b) >> 8)
			o[5] = clamp8((y2 - g) >> 8)
			o[6] = clamp8((y2 + r) >> 8)
			o[7] = 0
		}
	}
	return nil
}
