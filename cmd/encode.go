package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/hwvideo/internal/codec"
	"github.com/smazurov/hwvideo/internal/codec/rkmpp"
	"github.com/smazurov/hwvideo/internal/config"
	"github.com/smazurov/hwvideo/internal/encoder"
	"github.com/smazurov/hwvideo/internal/events"
	"github.com/smazurov/hwvideo/internal/frame"
	"github.com/spf13/cobra"
)

type encodeFlags struct {
	input         string
	output        string
	frameBytes    int
	forceKeyEvery int
	dump          string
	name          string
}

func newEncodeCmd(a *app) *cobra.Command {
	var fl encodeFlags

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode raw frames with the hardware encoder",
		Long: `Reads fixed-size raw frames from --input, compresses each one and writes the
packets to --output. The frame size follows the [encoder] geometry unless
--frame-bytes is given. Changes to [encoder] in the pipeline file reopen the
encoder between frames.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return a.runEncode(ctx, rkmpp.New(), fl, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&fl.input, "input", "i", "-", "Raw frame file, - for stdin")
	cmd.Flags().StringVarP(&fl.output, "output", "o", "-", "Elementary stream output, - for stdout")
	cmd.Flags().IntVar(&fl.frameBytes, "frame-bytes", 0, "Bytes per input frame (default: derived from geometry)")
	cmd.Flags().IntVar(&fl.forceKeyEvery, "force-key-every", 0, "Force a keyframe every N frames")
	cmd.Flags().StringVar(&fl.dump, "dump", "", "Also copy the stream to this file")
	cmd.Flags().StringVar(&fl.name, "name", "", "Session name used in logs and metrics")
	return cmd
}

func (a *app) runEncode(ctx context.Context, backend codec.Backend, fl encodeFlags, stdin io.Reader, stdout, stderr io.Writer) error {
	if fl.frameBytes < 0 || fl.forceKeyEvery < 0 {
		return errors.New("--frame-bytes and --force-key-every must not be negative")
	}

	in, closeIn, err := openInput(fl.input, stdin)
	if err != nil {
		return err
	}
	defer closeIn()
	out, closeOut, err := openOutput(fl.output, stdout)
	if err != nil {
		return err
	}
	defer closeOut()

	stopMetrics, err := a.startMetrics(ctx)
	if err != nil {
		return err
	}
	defer stopMetrics()
	defer a.traceEvents(ctx)()

	loop := &encodeLoop{
		logger:        a.logger,
		frameBytes:    fl.frameBytes,
		forceKeyEvery: fl.forceKeyEvery,
		reload:        make(chan config.Pipeline, 1),
		open: func(p config.Pipeline) (*encoder.Session, error) {
			return a.openSession(ctx, backend, p, fl)
		},
	}

	sess, err := loop.open(a.pipeline)
	if err != nil {
		return err
	}
	loop.sess = sess
	loop.current = a.pipeline.Encoder

	stopWatch := a.watchPipeline(ctx, func(p config.Pipeline) {
		a.bus.Publish(events.ConfigReloadedEvent{
			Path:      a.opts.Config,
			Section:   "pipeline",
			Timestamp: time.Now().Format(time.RFC3339),
		})
		// Keep only the newest pending pipeline.
		select {
		case <-loop.reload:
		default:
		}
		loop.reload <- p
	})
	defer stopWatch()

	a.notify(daemon.SdNotifyReady)
	defer a.notify(daemon.SdNotifyStopping)

	w := bufio.NewWriter(out)
	runErr := loop.run(ctx, bufio.NewReader(in), w)
	if err := w.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("flush output: %w", err)
	}

	st := loop.sess.Stats()
	if err := loop.sess.Close(); err != nil && runErr == nil {
		runErr = err
	}
	total := loop.closed
	total.add(st)
	fmt.Fprintf(stderr, "encoded %d frames, %d bytes, %d packets (%d partitions), %d forced keyframes, %d reloads\n",
		total.Frames, total.StreamBytes, total.Packets, total.PartitionPackets, total.ForcedKeyframes, loop.reloads)
	return runErr
}

func (a *app) openSession(ctx context.Context, backend codec.Backend, p config.Pipeline, fl encodeFlags) (*encoder.Session, error) {
	req, err := p.EncoderRequest()
	if err != nil {
		return nil, err
	}

	name := fl.name
	if name == "" {
		name = p.Encoder.Name
	}
	dump := fl.dump
	if dump == "" {
		dump = p.Encoder.Dump
	}

	opts := []encoder.Option{encoder.WithEventBus(a.bus)}
	if name != "" {
		opts = append(opts, encoder.WithName(name))
	}
	if dump != "" {
		opts = append(opts, encoder.WithDumpPath(dump))
	}
	return encoder.Open(ctx, backend, req, opts...)
}

// totals accumulates the stats of sessions closed by reloads.
type totals encoder.Stats

func (t *totals) add(s encoder.Stats) {
	t.Frames += s.Frames
	t.StreamBytes += s.StreamBytes
	t.Packets += s.Packets
	t.PartitionPackets += s.PartitionPackets
	t.ForcedKeyframes += s.ForcedKeyframes
}

// encodeLoop reads frames until EOF and swaps the session when a reloaded
// pipeline changes the [encoder] section.
type encodeLoop struct {
	logger        *slog.Logger
	sess          *encoder.Session
	current       config.EncoderSection
	open          func(config.Pipeline) (*encoder.Session, error)
	reload        chan config.Pipeline
	frameBytes    int
	forceKeyEvery int

	frames  int
	reloads int
	closed  totals
}

func (l *encodeLoop) run(ctx context.Context, r io.Reader, w io.Writer) error {
	var (
		buf  []byte
		dest frame.Frame
	)

	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info("Encode interrupted", "frames", l.frames)
			return nil
		}
		l.maybeReload()

		size := l.frameBytes
		if size == 0 {
			size = l.sess.Geometry().PictureSize
		}
		if cap(buf) < size {
			buf = make([]byte, size)
		}
		buf = buf[:size]

		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				l.logger.Warn("Discarding truncated trailing frame", "frame_bytes", size)
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		src := frame.Frame{Data: buf, SourceID: 1, GrabTS: time.Now()}
		force := l.forceKeyEvery > 0 && l.frames > 0 && l.frames%l.forceKeyEvery == 0
		if err := l.sess.Compress(&src, &dest, force); err != nil {
			return err
		}
		l.frames++

		if _, err := w.Write(dest.Data); err != nil {
			return fmt.Errorf("write packet: %w", err)
		}
	}
}

// maybeReload applies a pending pipeline. The new session is opened before
// the old one is closed so a rejected change keeps the encoder running.
func (l *encodeLoop) maybeReload() {
	var p config.Pipeline
	select {
	case p = <-l.reload:
	default:
		return
	}
	if reflect.DeepEqual(p.Encoder, l.current) {
		l.logger.Debug("Pipeline reloaded, encoder unchanged")
		return
	}

	next, err := l.open(p)
	if err != nil {
		l.logger.Error("Failed to apply reloaded encoder settings, keeping current session", "error", err)
		return
	}
	st := l.sess.Stats()
	if err := l.sess.Close(); err != nil {
		l.logger.Warn("Failed to close previous session", "error", err)
	}
	l.closed.add(st)
	l.sess = next
	l.current = p.Encoder
	l.reloads++
	l.logger.Info("Encoder reopened with reloaded settings", "session", next.Name())
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "-" || path == "" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
