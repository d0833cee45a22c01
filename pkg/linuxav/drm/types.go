package drm

import "fmt"

// Capability identifiers for Card.Capability and Card.SetClientCapability.
const (
	CapDumbBuffer            = 0x1
	ClientCapUniversalPlanes = 0x2
	ClientCapAtomic          = 0x3
)

// FormatXRGB8888 is the 32-bit little-endian B,G,R,X fourcc ('XR24').
const FormatXRGB8888 = 0x34325258

// Resources lists the mode-setting objects of a card.
type Resources struct {
	FBs        []uint32
	CRTCs      []uint32
	Connectors []uint32
	Encoders   []uint32
	MinWidth   uint32
	MaxWidth   uint32
	MinHeight  uint32
	MaxHeight  uint32
}

// Connection is the link state of a connector.
type Connection uint32

// Connection states.
const (
	Connected         Connection = 1
	Disconnected      Connection = 2
	UnknownConnection Connection = 3
)

// String implements fmt.Stringer.
func (c Connection) String() string {
	switch c {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var connectorTypeNames = []string{
	"Unknown", "VGA", "DVI-I", "DVI-D", "DVI-A", "Composite", "SVIDEO", "LVDS",
	"Component", "DIN", "DP", "HDMI-A", "HDMI-B", "TV", "eDP", "Virtual",
	"DSI", "DPI", "Writeback", "SPI", "USB",
}

// Connector is a display output and the modes its sink advertises.
type Connector struct {
	ID         uint32
	EncoderID  uint32
	Type       uint32
	TypeID     uint32
	Connection Connection
	WidthMM    uint32
	HeightMM   uint32
	Modes      []Mode
	Encoders   []uint32
}

// Name returns the kernel-style connector name, e.g. HDMI-A-1.
func (c *Connector) Name() string {
	typ := "Unknown"
	if int(c.Type) < len(connectorTypeNames) {
		typ = connectorTypeNames[c.Type]
	}
	return fmt.Sprintf("%s-%d", typ, c.TypeID)
}

// DumbBuffer is a kernel-allocated scanout buffer.
type DumbBuffer struct {
	Handle uint32
	Pitch  uint32
	Size   uint64
}

// Framebuffer describes a single-planar framebuffer for AddFB2.
type Framebuffer struct {
	Width       uint32
	Height      uint32
	PixelFormat uint32
	Handle      uint32
	Pitch       uint32
	Offset      uint32
}

// Plane places a framebuffer region on a plane. Source values are in whole
// pixels; they are converted to 16.16 fixed point.
type Plane struct {
	PlaneID uint32
	CRTCID  uint32
	FBID    uint32
	CRTCX   int32
	CRTCY   int32
	CRTCW   uint32
	CRTCH   uint32
	SrcX    uint32
	SrcY    uint32
	SrcW    uint32
	SrcH    uint32
}

// ConnectorInfo summarizes one connector for listing.
type ConnectorInfo struct {
	Connector
	CRTCs  int
	Planes int
}
