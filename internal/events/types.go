package events

// Event type constants for kelindar/event.
const (
	TypeEncoderOpened uint32 = iota + 1
	TypeEncoderClosed
	TypeFrameEncoded
	TypeEncoderError
	TypeSurfaceOpened
	TypeSurfaceClosed
	TypeFramePresented
	TypeFrameSkipped
	TypePresentError
	TypeConfigReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// EncoderOpenedEvent is published once a session is ready to compress.
type EncoderOpenedEvent struct {
	SessionID string `json:"session_id"`
	Backend   string `json:"backend"`
	Coding    string `json:"coding"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	BpsTarget int    `json:"bps_target"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for EncoderOpenedEvent.
func (e EncoderOpenedEvent) Type() uint32 { return TypeEncoderOpened }

// EncoderClosedEvent carries the final counters of a session.
type EncoderClosedEvent struct {
	SessionID   string `json:"session_id"`
	Frames      uint64 `json:"frames"`
	StreamBytes uint64 `json:"stream_bytes"`
	Timestamp   string `json:"timestamp"`
}

// Type returns the event type identifier for EncoderClosedEvent.
func (e EncoderClosedEvent) Type() uint32 { return TypeEncoderClosed }

// FrameEncodedEvent is published after every successful compress call.
type FrameEncodedEvent struct {
	SessionID string `json:"session_id"`
	Bytes     int    `json:"bytes"`
	Packets   int    `json:"packets"`
	Key       bool   `json:"key"`
	Forced    bool   `json:"forced"`
	Duration  int64  `json:"duration_us"`
}

// Type returns the event type identifier for FrameEncodedEvent.
func (e FrameEncodedEvent) Type() uint32 { return TypeFrameEncoded }

// EncoderErrorEvent reports a failed open or compress.
type EncoderErrorEvent struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	Op        string `json:"op"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for EncoderErrorEvent.
func (e EncoderErrorEvent) Type() uint32 { return TypeEncoderError }

// SurfaceOpenedEvent is published when a display plane has been bound.
type SurfaceOpenedEvent struct {
	Device    string `json:"device"`
	Connector uint32 `json:"connector"`
	CRTC      uint32 `json:"crtc"`
	Plane     uint32 `json:"plane"`
	Mode      string `json:"mode"`
	Converter string `json:"converter"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for SurfaceOpenedEvent.
func (e SurfaceOpenedEvent) Type() uint32 { return TypeSurfaceOpened }

// SurfaceClosedEvent is published after a surface released its plane.
type SurfaceClosedEvent struct {
	Device    string `json:"device"`
	Presented uint64 `json:"presented"`
	Skipped   uint64 `json:"skipped"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for SurfaceClosedEvent.
func (e SurfaceClosedEvent) Type() uint32 { return TypeSurfaceClosed }

// FramePresentedEvent is published after a frame reached the scanout buffer.
type FramePresentedEvent struct {
	Device   string `json:"device"`
	ID       uint64 `json:"id"`
	Duration int64  `json:"duration_us"`
}

// Type returns the event type identifier for FramePresentedEvent.
func (e FramePresentedEvent) Type() uint32 { return TypeFramePresented }

// FrameSkippedEvent is published when the display consumer held the lock.
type FrameSkippedEvent struct {
	Device string `json:"device"`
}

// Type returns the event type identifier for FrameSkippedEvent.
func (e FrameSkippedEvent) Type() uint32 { return TypeFrameSkipped }

// PresentErrorEvent reports a failed present call.
type PresentErrorEvent struct {
	Device string `json:"device"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}

// Type returns the event type identifier for PresentErrorEvent.
func (e PresentErrorEvent) Type() uint32 { return TypePresentError }

// ConfigReloadedEvent is published when the pipeline file changed on disk.
type ConfigReloadedEvent struct {
	Path      string `json:"path"`
	Section   string `json:"section"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }
