package cmd

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/smazurov/hwvideo/internal/events"
	"github.com/smazurov/hwvideo/internal/logging"
)

// skipReportInterval is how often skipped-frame totals are logged.
const skipReportInterval = 10 * time.Second

// traceEvents logs lifecycle events from the bus and summarizes skipped
// frames. The returned function unsubscribes and waits for the reporter.
func (a *app) traceEvents(ctx context.Context) func() {
	logger := logging.GetLogger("events")

	unsubs := []func(){
		a.bus.Subscribe(func(e events.EncoderOpenedEvent) {
			logger.Debug("Encoder opened", "session", e.SessionID, "coding", e.Coding,
				"width", e.Width, "height", e.Height, "bps", e.BpsTarget)
		}),
		a.bus.Subscribe(func(e events.EncoderClosedEvent) {
			logger.Debug("Encoder closed", "session", e.SessionID, "frames", e.Frames, "bytes", e.StreamBytes)
		}),
		a.bus.Subscribe(func(e events.SurfaceOpenedEvent) {
			logger.Debug("Surface opened", "device", e.Device, "mode", e.Mode, "converter", e.Converter)
		}),
		a.bus.Subscribe(func(e events.SurfaceClosedEvent) {
			logger.Debug("Surface closed", "device", e.Device, "presented", e.Presented, "skipped", e.Skipped)
		}),
		a.bus.Subscribe(func(e events.ConfigReloadedEvent) {
			logger.Info("Pipeline file reloaded", "path", e.Path, "section", e.Section)
		}),
	}

	skips := make(chan events.FrameSkippedEvent, 64)
	unsubs = append(unsubs, events.SubscribeToChannel(a.bus, skips))

	ctx, cancel := context.WithCancel(ctx)
	ticker := time.NewTicker(skipReportInterval)
	done := make(chan struct{})
	go func() {
		defer close(done)
		reportSkips(ctx, skips, ticker.C, logger)
	}()

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
		cancel()
		ticker.Stop()
		<-done
	}
}

// reportSkips counts skipped frames per device and logs the totals on each
// tick and once more on exit.
func reportSkips(ctx context.Context, skips <-chan events.FrameSkippedEvent, tick <-chan time.Time, logger *slog.Logger) {
	counts := make(map[string]int)
	flush := func() {
		devices := make([]string, 0, len(counts))
		for d := range counts {
			devices = append(devices, d)
		}
		sort.Strings(devices)
		for _, d := range devices {
			logger.Info("Frames skipped while the display consumer held the lock", "device", d, "skipped", counts[d])
		}
		clear(counts)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case e := <-skips:
			counts[e.Device]++
		case <-tick:
			flush()
		}
	}
}
