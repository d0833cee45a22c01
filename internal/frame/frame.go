// Package frame defines the buffer container handed between capture, encoder and display.
package frame

import (
	"fmt"
	"time"
)

// Pixel formats, as V4L2 fourcc codes.
const (
	FormatYUYV   uint32 = 0x56595559 // 'YUYV'
	FormatUYVY   uint32 = 0x59565955 // 'UYVY'
	FormatNV12   uint32 = 0x3231564E // 'NV12'
	FormatNV16   uint32 = 0x3631564E // 'NV16'
	FormatYUV420 uint32 = 0x32315559 // 'YU12'
	FormatRGB24  uint32 = 0x33424752 // 'RGB3'
	FormatBGR24  uint32 = 0x33524742 // 'BGR3'
	FormatMJPEG  uint32 = 0x47504A4D // 'MJPG'
	FormatJPEG   uint32 = 0x4745504A // 'JPEG'
	FormatH264   uint32 = 0x34363248 // 'H264'
	FormatHEVC   uint32 = 0x43564548 // 'HEVC'
)

// Frame is a raw or compressed picture plus its metadata.
type Frame struct {
	Data   []byte
	Width  int
	Height int
	Format uint32
	Stride int

	// SourceID identifies the producer. A change between consecutive frames
	// is treated as a source switch by inter-coded encoders.
	SourceID int

	Key bool
	GOP int

	GrabTS        time.Time
	EncodeBeginTS time.Time
	EncodeEndTS   time.Time
}

// Used returns the number of payload bytes.
func (f *Frame) Used() int {
	return len(f.Data)
}

// Reset clears the payload while keeping the allocated capacity.
func (f *Frame) Reset() {
	f.Data = f.Data[:0]
	f.Key = false
}

// Append adds bytes to the payload.
func (f *Frame) Append(b []byte) {
	f.Data = append(f.Data, b...)
}

// EncodingBegin copies geometry from src and stamps the encode start.
func (f *Frame) EncodingBegin(src *Frame, format uint32) {
	f.Reset()
	f.Width = src.Width
	f.Height = src.Height
	f.Format = format
	f.Stride = 0
	f.SourceID = src.SourceID
	f.GrabTS = src.GrabTS
	f.EncodeBeginTS = time.Now()
}

// EncodingEnd stamps the encode completion.
func (f *Frame) EncodingEnd() {
	f.EncodeEndTS = time.Now()
}

// FourCC renders a fourcc code as its four-character string.
func FourCC(format uint32) string {
	return string([]byte{
		byte(format),
		byte(format >> 8),
		byte(format >> 16),
		byte(format >> 24),
	})
}

// String implements fmt.Stringer.
func (f *Frame) String() string {
	return fmt.Sprintf("%dx%d %s (%d bytes)", f.Width, f.Height, FourCC(f.Format), len(f.Data))
}
