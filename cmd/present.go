package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/hwvideo/internal/display"
	"github.com/smazurov/hwvideo/internal/frame"
	"github.com/spf13/cobra"
)

type presentFlags struct {
	input  string
	fps    float64
	width  int
	height int
	loop   bool
}

func newPresentCmd(a *app) *cobra.Command {
	var fl presentFlags

	cmd := &cobra.Command{
		Use:   "present",
		Short: "Show raw UYVY frames on a DRM plane",
		Long: `Reads width*height*2 byte UYVY frames from --input and presents each one.
Frames arriving while the consumer holds the display lock are skipped and
counted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			cfg, err := a.displayConfig(fl)
			if err != nil {
				return err
			}
			surface, err := display.Open(ctx, cfg, display.WithEventBus(a.bus))
			if err != nil {
				return err
			}
			a.logger.Info("Presenting frames", "device", cfg.Device,
				"mode", surface.Mode().String(), "converter", surface.ConverterName())
			return a.runPresent(ctx, surface, fl, cmd.InOrStdin(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&fl.input, "input", "i", "-", "Raw UYVY file, - for stdin")
	cmd.Flags().Float64Var(&fl.fps, "fps", 30, "Presentation rate, 0 for as fast as possible")
	cmd.Flags().IntVar(&fl.width, "width", 0, "Frame width (default: [display] width)")
	cmd.Flags().IntVar(&fl.height, "height", 0, "Frame height (default: [display] height)")
	cmd.Flags().BoolVar(&fl.loop, "loop", false, "Rewind the input at EOF")
	return cmd
}

func (a *app) displayConfig(fl presentFlags) (display.Config, error) {
	cfg, err := a.pipeline.DisplayConfig()
	if err != nil {
		return cfg, err
	}
	if fl.width > 0 {
		cfg.Width = fl.width
	}
	if fl.height > 0 {
		cfg.Height = fl.height
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return cfg, errors.New("frame size required: set [display] width/height or --width/--height")
	}
	if fl.fps < 0 {
		return cfg, fmt.Errorf("--fps must not be negative, got %v", fl.fps)
	}
	return cfg, nil
}

// presenter is the part of a display.Surface the present loop uses.
type presenter interface {
	Present(f *frame.Frame) (display.Result, error)
	Stats() display.Stats
	Close() error
}

func (a *app) runPresent(ctx context.Context, s presenter, fl presentFlags, stdin io.Reader, stderr io.Writer) error {
	defer func() {
		if err := s.Close(); err != nil {
			a.logger.Warn("Failed to close display surface", "error", err)
		}
	}()

	in, closeIn, err := openInput(fl.input, stdin)
	if err != nil {
		return err
	}
	defer closeIn()

	stopMetrics, err := a.startMetrics(ctx)
	if err != nil {
		return err
	}
	defer stopMetrics()
	defer a.traceEvents(ctx)()

	cfg, err := a.displayConfig(fl)
	if err != nil {
		return err
	}
	size := cfg.Width * cfg.Height * 2

	a.notify(daemon.SdNotifyReady)
	defer a.notify(daemon.SdNotifyStopping)

	var tick <-chan time.Time
	if fl.fps > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / fl.fps))
		defer ticker.Stop()
		tick = ticker.C
	}

	r := bufio.NewReaderSize(in, size)
	buf := make([]byte, size)
	f := &frame.Frame{Width: cfg.Width, Height: cfg.Height, Format: frame.FormatUYVY, Stride: cfg.Width * 2}
	runErr := func() error {
		readSinceRewind := false
		for {
			if _, err := io.ReadFull(r, buf); err != nil {
				if errors.Is(err, io.EOF) && fl.loop && readSinceRewind && rewind(in) {
					r.Reset(in)
					readSinceRewind = false
					continue
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return nil
				}
				return fmt.Errorf("read frame: %w", err)
			}

			if tick != nil {
				select {
				case <-ctx.Done():
					return nil
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return nil
			}

			readSinceRewind = true

			f.Data = buf
			f.GrabTS = time.Now()
			if _, err := s.Present(f); err != nil {
				return err
			}
		}
	}()

	st := s.Stats()
	fmt.Fprintf(stderr, "presented %d frames, skipped %d, errors %d\n", st.Presented, st.Skipped, st.Errors)
	return runErr
}

// rewind seeks a file input back to the start. Pipes cannot be rewound.
func rewind(r io.Reader) bool {
	seeker, ok := r.(io.Seeker)
	if !ok {
		return false
	}
	_, err := seeker.Seek(0, io.SeekStart)
	return err == nil
}
