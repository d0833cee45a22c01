// Package cmd implements the hwvideo command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/hwvideo/internal/config"
	"github.com/smazurov/hwvideo/internal/events"
	"github.com/smazurov/hwvideo/internal/logging"
	"github.com/smazurov/hwvideo/internal/metrics/collectors"
	"github.com/smazurov/hwvideo/internal/metrics/exporters"
	"github.com/spf13/cobra"
)

// Options are the settings shared by every command. Flags win over
// HWVIDEO_* environment variables, which win over the pipeline file.
type Options struct {
	Config        string
	LoggingLevel  string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `toml:"logging.format" env:"LOGGING_FORMAT"`
	MetricsListen string `toml:"metrics.listen" env:"METRICS_LISTEN"`
	Device        string `toml:"display.device" env:"DISPLAY_DEVICE"`
}

// app is the state built once flags are parsed.
type app struct {
	opts     Options
	pipeline config.Pipeline
	bus      *events.Bus
	logger   *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "hwvideo",
		Short:         "Rockchip hardware encoding and DRM presentation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.opts.Config, "config", "c", "hwvideo.toml", "Pipeline configuration file")
	f.StringVar(&a.opts.LoggingLevel, "logging-level", "", "Global log level (debug, info, warn, error)")
	f.StringVar(&a.opts.LoggingFormat, "logging-format", "", "Log format (text, json)")
	f.StringVar(&a.opts.MetricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address, e.g. :9110")
	f.StringVar(&a.opts.Device, "device", "", "DRM device node")

	root.AddCommand(
		newEncodeCmd(a),
		newPresentCmd(a),
		newProbeCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadConfig(&a.opts, cmd); err != nil {
		return err
	}

	p, err := config.LoadPipeline(a.opts.Config)
	if err != nil {
		return err
	}
	a.applyOverrides(&p)
	a.pipeline = p

	logging.Initialize(p.Logging)
	a.logger = logging.GetLogger("cli")
	a.bus = events.New()
	return nil
}

// applyOverrides copies flag and env values into a pipeline so reloads keep
// them.
func (a *app) applyOverrides(p *config.Pipeline) {
	if a.opts.LoggingLevel != "" {
		p.Logging.Level = a.opts.LoggingLevel
	}
	if a.opts.LoggingFormat != "" {
		p.Logging.Format = a.opts.LoggingFormat
	}
	if a.opts.MetricsListen != "" {
		p.Metrics.Listen = a.opts.MetricsListen
	}
	if a.opts.Device != "" {
		p.Display.Device = a.opts.Device
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// startMetrics serves /metrics and polls MPP load when configured. The
// returned function stops both.
func (a *app) startMetrics(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	var stops []func()

	if addr := a.pipeline.Metrics.Listen; addr != "" {
		errc := make(chan error, 1)
		go func() { errc <- exporters.Serve(ctx, addr) }()
		stops = append(stops, func() {
			if err := <-errc; err != nil {
				a.logger.Warn("Metrics server stopped with error", "error", err)
			}
		})
		a.logger.Info("Serving metrics", "addr", addr)
	}

	if a.pipeline.Metrics.MPPCollector {
		interval, err := a.pipeline.MPPInterval()
		if err != nil {
			cancel()
			return nil, err
		}
		mpp := collectors.NewMPPCollector(
			collectors.WithProcPath(a.pipeline.Metrics.MPPLoadPath),
			collectors.WithInterval(interval),
		)
		if mpp.Available() {
			if err := mpp.Start(ctx); err != nil {
				cancel()
				return nil, err
			}
			stops = append(stops, func() { _ = mpp.Stop() })
		} else {
			a.logger.Debug("MPP load file not present, collector disabled", "path", a.pipeline.Metrics.MPPLoadPath)
		}
	}

	return func() {
		cancel()
		for _, stop := range stops {
			stop()
		}
	}, nil
}

// notify sends a readiness state to systemd when running as a notify unit.
func (a *app) notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		a.logger.Debug("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		a.logger.Debug("sd_notify sent", "state", state)
	}
}

// watchPipeline starts a watcher on the pipeline file. Logging changes are
// applied directly; onChange receives every successfully loaded pipeline.
// A missing watcher only disables hot reload.
func (a *app) watchPipeline(ctx context.Context, onChange func(config.Pipeline)) func() {
	if _, err := os.Stat(a.opts.Config); err != nil {
		a.logger.Debug("Pipeline file not found, hot reload disabled", "path", a.opts.Config)
		return func() {}
	}

	w := config.NewConfigWatcher(a.opts.Config, func(path string) (config.Pipeline, error) {
		p, err := config.LoadPipeline(path)
		if err != nil {
			return p, err
		}
		a.applyOverrides(&p)
		return p, nil
	}, logging.GetLogger("config"))

	w.OnReload(func(p config.Pipeline) {
		logging.Initialize(p.Logging)
		onChange(p)
	})
	if err := w.Start(ctx); err != nil {
		a.logger.Warn("Failed to start config watcher, hot reload disabled", "error", err)
		return func() {}
	}
	return func() {
		if err := w.Stop(); err != nil && !errors.Is(err, os.ErrClosed) {
			a.logger.Debug("Config watcher stop", "error", err)
		}
	}
}
