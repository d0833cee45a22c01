package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/hwvideo/internal/codec"
	"github.com/smazurov/hwvideo/internal/events"
	"github.com/smazurov/hwvideo/internal/frame"
	"github.com/smazurov/hwvideo/internal/logging"
	"github.com/smazurov/hwvideo/internal/metrics"
)

// State is the lifecycle position of a session.
type State string

// Session states.
const (
	StateUninitialized State = "uninitialized" // Nothing acquired
	StateConfigured    State = "configured"    // Buffers and codec open, main config applied
	StateReady         State = "ready"         // Accepting frames
	StateCompressing   State = "compressing"   // Inside Compress
	StateDestroyed     State = "destroyed"     // Everything released
)

// Stats are the cumulative counters of a session.
type Stats struct {
	Frames           uint64
	StreamBytes      uint64
	Packets          uint64
	PartitionPackets uint64
	ForcedKeyframes  uint64
}

var sessionSeq atomic.Uint64

// Option customizes a session.
type Option func(*Session)

// WithName sets the identifier used in logs, metrics and events.
func WithName(name string) Option {
	return func(s *Session) {
		s.name = name
	}
}

// WithDumpPath writes the raw elementary stream to path. Disabled by default.
func WithDumpPath(path string) Option {
	return func(s *Session) {
		s.dumpPath = path
	}
}

// WithEventBus publishes session events on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(s *Session) {
		s.bus = bus
	}
}

// WithLogger replaces the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session drives one hardware encoder context. Compress calls must not
// overlap; an overlapping call fails with ErrInvalidState.
type Session struct {
	name     string
	dumpPath string
	bus      *events.Bus
	logger   *slog.Logger

	backend codec.Backend
	req     Request
	geo     Geometry
	rate    RatePlan
	params  CodecParams

	group  codec.BufferGroup
	input  codec.Buffer
	output codec.Buffer
	enc    codec.Encoder
	dump   *dumpSink

	mu         sync.Mutex
	state      State
	stats      Stats
	lastSource int
}

// Open resolves req, acquires buffers, opens the codec and applies the
// configuration. On any failure everything acquired so far is released.
func Open(ctx context.Context, backend codec.Backend, req Request, opts ...Option) (*Session, error) {
	s := &Session{
		backend: backend,
		req:     req,
		state:   StateUninitialized,
		logger:  logging.GetLogger("encoder"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.name == "" {
		s.name = fmt.Sprintf("enc-%d", sessionSeq.Add(1))
	}
	s.logger = s.logger.With("session", s.name)

	geo, rate, params, err := Resolve(req)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	s.geo, s.rate, s.params = geo, rate, params

	if err := s.init(ctx); err != nil {
		s.fail(err)
		_ = s.release()
		return nil, err
	}

	s.mu.Lock()
	s.state = StateReady
	s.mu.Unlock()

	s.logger.Info("Encoder ready",
		"backend", backend.Name(),
		"coding", req.Coding.String(),
		"width", req.Width,
		"height", req.Height,
		"format", req.Format.String(),
		"hor_stride", geo.HorStride,
		"ver_stride", geo.VerStride,
		"frame_size", geo.FrameSize,
		"picture_size", geo.PictureSize,
		"header_size", geo.HeaderSize,
		"rc_mode", string(rate.RCMode),
		"bps", rate.BpsTarget,
		"gop", rate.GOP,
		"gop_mode", params.GOPMode)
	s.bus.Publish(events.EncoderOpenedEvent{
		SessionID: s.name,
		Backend:   backend.Name(),
		Coding:    req.Coding.String(),
		Width:     req.Width,
		Height:    req.Height,
		Format:    req.Format.String(),
		BpsTarget: rate.BpsTarget,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return s, nil
}

func (s *Session) init(ctx context.Context) error {
	var err error

	if err = ctx.Err(); err != nil {
		return newError(ErrCodeOpenFailed, "open", "cancelled", err)
	}
	if s.group, err = s.backend.NewBufferGroup(); err != nil {
		return newError(ErrCodeBufferAllocFailed, "buffer_group", "failed to get buffer group", err)
	}
	if s.input, err = s.group.Get(s.geo.InputSize()); err != nil {
		return newError(ErrCodeBufferAllocFailed, "input_buffer",
			fmt.Sprintf("failed to get %d byte input buffer", s.geo.InputSize()), err)
	}
	if s.output, err = s.group.Get(s.geo.FrameSize); err != nil {
		return newError(ErrCodeBufferAllocFailed, "output_buffer",
			fmt.Sprintf("failed to get %d byte output buffer", s.geo.FrameSize), err)
	}

	if err = ctx.Err(); err != nil {
		return newError(ErrCodeOpenFailed, "open", "cancelled", err)
	}
	if s.enc, err = s.backend.Open(s.req.Coding); err != nil {
		return newError(ErrCodeOpenFailed, "codec_open", "failed to open codec context", err)
	}

	if err = s.enc.SetConfig(buildConfig(s.req, s.geo, s.rate, s.params)); err != nil {
		return newError(ErrCodeConfigRejected, "set_cfg", "codec rejected configuration", err)
	}
	s.mu.Lock()
	s.state = StateConfigured
	s.mu.Unlock()

	if s.params.SEIMode != "" {
		if err = s.enc.SetSEIMode(s.params.SEIMode); err != nil {
			return newError(ErrCodeConfigRejected, "set_sei", string(s.params.SEIMode), err)
		}
	}
	if s.params.HeaderMode != "" {
		if err = s.enc.SetHeaderMode(s.params.HeaderMode); err != nil {
			return newError(ErrCodeConfigRejected, "set_header_mode", string(s.params.HeaderMode), err)
		}
	}
	if !s.params.Refs.Empty() {
		if err = s.enc.SetRefConfig(s.params.Refs); err != nil {
			return newError(ErrCodeConfigRejected, "set_ref_cfg",
				fmt.Sprintf("gop mode %d", s.params.GOPMode), err)
		}
	}

	if t := s.req.Tuning; t.OSDEnable || t.ROIEnable || t.UserDataEnable {
		s.logger.Debug("Diagnostic tuning flags set",
			"osd", t.OSDEnable, "osd_mode", t.OSDMode, "roi", t.ROIEnable, "user_data", t.UserDataEnable)
	}

	if s.dumpPath != "" {
		if s.dump, err = openDump(s.dumpPath); err != nil {
			return newError(ErrCodeOpenFailed, "dump", s.dumpPath, err)
		}
		s.logger.Warn("Dumping elementary stream", "path", s.dumpPath)
	}
	return nil
}

// fail logs and publishes a fatal or per-call error.
func (s *Session) fail(err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = newError(ErrCodeDrainFailed, "", "", err)
	}
	args := []any{"code", e.Code, "op", e.Op, "error", err}
	var se *codec.StatusError
	if errors.As(err, &se) {
		args = append(args, "status", se.Status)
	}
	s.logger.Error("Encoder operation failed", args...)
	// Per-session series exist only for opened sessions; Close deletes them.
	if st := s.State(); st == StateReady || st == StateCompressing {
		metrics.IncEncoderError(s.name, e.Code)
	} else {
		metrics.IncEncoderOpenFailure(e.Code)
	}
	s.bus.Publish(events.EncoderErrorEvent{
		SessionID: s.name,
		Code:      e.Code,
		Op:        e.Op,
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Name returns the session identifier.
func (s *Session) Name() string {
	return s.name
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the cumulative counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Geometry returns the resolved buffer layout.
func (s *Session) Geometry() Geometry {
	return s.geo
}

// RatePlan returns the resolved rate control.
func (s *Session) RatePlan() RatePlan {
	return s.rate
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return newError(ErrCodeInvalidState, "compress", fmt.Sprintf("session is %s", s.state), nil)
	}
	s.state = StateCompressing
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.state = StateReady
	s.mu.Unlock()
}

// Compress encodes src into dest. dest is reset and receives the
// concatenation of every packet drained for the picture. A keyframe is
// forced for inter-coded streams when forceKey is set or src comes from a
// different source than the previous frame.
func (s *Session) Compress(src, dest *frame.Frame, forceKey bool) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	if src == nil || dest == nil {
		return newError(ErrCodeInvalidConfig, "compress", "nil frame", nil)
	}
	if limit := s.geo.FrameSize; src.Used() > limit {
		err := newError(ErrCodeFrameTooLarge, "compress",
			fmt.Sprintf("%d bytes exceeds %d byte frame", src.Used(), limit), nil)
		metrics.IncEncoderError(s.name, err.Code)
		return err
	}

	coding := s.req.Coding
	dest.EncodingBegin(src, coding.OutputFourCC())
	force := coding.InterCoded() && (forceKey || src.SourceID != s.lastSource)
	s.logger.Debug("Compressing new frame", "force_key", force, "bytes", src.Used())

	if force {
		if err := s.enc.RequestIDR(); err != nil {
			e := newError(ErrCodeConfigRejected, "set_idr", "keyframe request rejected", err)
			s.fail(e)
			return e
		}
		metrics.IncForcedKeyframes(s.name, coding.String())
	}

	copy(s.input.Bytes(), src.Data)
	pic := &codec.Picture{
		Width:     s.req.Width,
		Height:    s.req.Height,
		HorStride: s.geo.HorStride,
		VerStride: s.geo.VerStride,
		Format:    s.req.Format,
		Input:     s.input,
		Output:    s.output,
	}
	if err := s.enc.PutFrame(pic); err != nil {
		e := newError(ErrCodeDrainFailed, "put_frame", "encoder refused frame", err)
		s.fail(e)
		return e
	}

	packets, partitions, err := s.drain(dest)
	if err != nil {
		s.fail(err)
		return err
	}

	dest.Key = isKeyframe(coding, dest.Data)
	dest.GOP = s.rate.GOP
	dest.EncodingEnd()
	s.lastSource = src.SourceID

	s.mu.Lock()
	s.stats.Frames++
	s.stats.StreamBytes += uint64(dest.Used())
	s.stats.Packets += uint64(packets)
	s.stats.PartitionPackets += uint64(partitions)
	if force {
		s.stats.ForcedKeyframes++
	}
	s.mu.Unlock()

	elapsed := dest.EncodeEndTS.Sub(dest.EncodeBeginTS)
	metrics.RecordEncodedFrame(s.name, coding.String(), dest.Used(), partitions, elapsed)
	s.bus.Publish(events.FrameEncodedEvent{
		SessionID: s.name,
		Bytes:     dest.Used(),
		Packets:   packets,
		Key:       dest.Key,
		Forced:    force,
		Duration:  elapsed.Microseconds(),
	})
	return nil
}

// drain collects packets until one closes the picture.
func (s *Session) drain(dest *frame.Frame) (packets, partitions int, err error) {
	for {
		pkt, err := s.enc.GetPacket()
		if err != nil {
			return packets, partitions, newError(ErrCodeDrainFailed, "get_packet", "encoder get packet failed", err)
		}
		if pkt == nil {
			return packets, partitions, newError(ErrCodeDrainFailed, "get_packet", "no packet returned", nil)
		}
		packets++

		dest.Append(pkt.Data)
		if s.dump != nil {
			if _, err := s.dump.Write(pkt.Data); err != nil {
				s.logger.Warn("Failed to write stream dump", "error", err)
			}
		}
		if pkt.Partition {
			partitions++
		}
		if m := pkt.Meta; m != nil {
			s.logMeta(m)
		}
		if pkt.EOS {
			s.logger.Info("Found last packet")
		}
		if pkt.EndOfImage() || pkt.EOS {
			return packets, partitions, nil
		}
	}
}

func (s *Session) logMeta(m *codec.PacketMeta) {
	if m.HasTemporal {
		s.logger.Debug("Packet meta", "temporal_id", m.TemporalID)
	}
	if m.HasLongTerm {
		s.logger.Debug("Packet meta", "lt_idx", m.LongTermIdx)
	}
	if m.HasAverageQP {
		s.logger.Debug("Packet meta", "avg_qp", m.AverageQP)
	}
}

// Close releases the session. It is safe to call more than once; calling it
// while Compress is running returns ErrInvalidState.
func (s *Session) Close() error {
	s.mu.Lock()
	switch s.state {
	case StateDestroyed:
		s.mu.Unlock()
		return nil
	case StateCompressing:
		s.mu.Unlock()
		return newError(ErrCodeInvalidState, "close", "compress in progress", nil)
	}
	s.mu.Unlock()

	if s.logger == nil {
		s.logger = logging.GetLogger("encoder")
	}
	err := s.release()
	stats := s.Stats()
	s.logger.Info("Encoder closed", "frames", stats.Frames, "stream_bytes", stats.StreamBytes,
		"partition_packets", stats.PartitionPackets)
	s.bus.Publish(events.EncoderClosedEvent{
		SessionID:   s.name,
		Frames:      stats.Frames,
		StreamBytes: stats.StreamBytes,
		Timestamp:   time.Now().Format(time.RFC3339),
	})
	metrics.DeleteEncoderMetrics(s.name, s.req.Coding.String())
	return err
}

// release frees whatever has been acquired, codec first and buffer group
// last. Each handle is cleared after release so a second call is a no-op.
func (s *Session) release() error {
	var errs []error
	if s.enc != nil {
		if err := s.enc.Reset(); err != nil {
			errs = append(errs, fmt.Errorf("reset: %w", err))
		}
		if err := s.enc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("codec close: %w", err))
		}
		s.enc = nil
	}
	if s.dump != nil {
		if err := s.dump.Close(); err != nil {
			errs = append(errs, fmt.Errorf("dump close: %w", err))
		}
		s.dump = nil
	}
	if s.input != nil {
		if err := s.input.Release(); err != nil {
			errs = append(errs, fmt.Errorf("input buffer: %w", err))
		}
		s.input = nil
	}
	if s.output != nil {
		if err := s.output.Release(); err != nil {
			errs = append(errs, fmt.Errorf("output buffer: %w", err))
		}
		s.output = nil
	}
	if s.group != nil {
		if err := s.group.Close(); err != nil {
			errs = append(errs, fmt.Errorf("buffer group: %w", err))
		}
		s.group = nil
	}

	s.mu.Lock()
	s.state = StateDestroyed
	s.mu.Unlock()
	return errors.Join(errs...)
}
