// Package collectors polls kernel statistics into the metrics registry.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/hwvideo/internal/logging"
	"github.com/smazurov/hwvideo/internal/metrics"
)

// DefaultMPPLoadPath is where the MPP service kernel driver reports
// per-core load.
const DefaultMPPLoadPath = "/proc/mpp_service/load"

// MPPCollector periodically reads MPP hardware load into gauges.
type MPPCollector struct {
	logger   *slog.Logger
	procPath string
	interval time.Duration

	mu      sync.Mutex
	seen    map[string]struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	warned  bool
	samples uint64
}

// MPPOption configures an MPPCollector.
type MPPOption func(*MPPCollector)

// WithProcPath reads load from path instead of DefaultMPPLoadPath.
func WithProcPath(path string) MPPOption {
	return func(m *MPPCollector) { m.procPath = path }
}

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) MPPOption {
	return func(m *MPPCollector) { m.interval = d }
}

// WithLogger replaces the module logger.
func WithLogger(logger *slog.Logger) MPPOption {
	return func(m *MPPCollector) { m.logger = logger }
}

// NewMPPCollector creates a collector polling every five seconds.
func NewMPPCollector(opts ...MPPOption) *MPPCollector {
	m := &MPPCollector{
		logger:   logging.GetLogger("mpp"),
		procPath: DefaultMPPLoadPath,
		interval: 5 * time.Second,
		seen:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Available reports whether the load file exists.
func (m *MPPCollector) Available() bool {
	_, err := os.Stat(m.procPath)
	return err == nil
}

// Start samples once and then keeps sampling until ctx is done or Stop
// is called.
func (m *MPPCollector) Start(ctx context.Context) error {
	if m.interval <= 0 {
		return fmt.Errorf("mpp collector: interval must be positive, got %s", m.interval)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return errors.New("mpp collector already started")
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx)
	return nil
}

// Stop ends collection and removes the gauges it published.
func (m *MPPCollector) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.seen {
		metrics.DeleteMPPMetrics(name)
	}
	clear(m.seen)
	return nil
}

// Samples returns how many successful reads were made.
func (m *MPPCollector) Samples() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples
}

func (m *MPPCollector) run(ctx context.Context) {
	defer close(m.done)
	m.logger.Info("Starting MPP metrics collection", "path", m.procPath, "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collect()
		}
	}
}

func (m *MPPCollector) collect() {
	file, err := os.Open(m.procPath)
	if err != nil {
		metrics.IncMPPPoll(metrics.MPPPollMissing)
		m.mu.Lock()
		first := !m.warned
		m.warned = true
		m.mu.Unlock()
		// The file is absent on non-Rockchip kernels; say so once.
		if first {
			m.logger.Warn("Failed to open MPP proc file", "error", err)
		} else {
			m.logger.Debug("Failed to open MPP proc file", "error", err)
		}
		return
	}
	defer file.Close()

	if err := m.collectFrom(file); err != nil {
		metrics.IncMPPPoll(metrics.MPPPollInvalid)
		m.logger.Warn("Failed to parse MPP metrics", "error", err)
		return
	}
	metrics.IncMPPPoll(metrics.MPPPollOK)
}

// collectFrom publishes the devices found in r and drops gauges for
// devices that disappeared.
func (m *MPPCollector) collectFrom(r io.Reader) error {
	devices, err := parseContent(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		metrics.ObserveMPPCore(d.Name, d.Load, d.Utilization)
		current[d.Name] = struct{}{}
	}
	for name := range m.seen {
		if _, ok := current[name]; !ok {
			metrics.DeleteMPPMetrics(name)
		}
	}
	m.seen = current
	m.samples++
	return nil
}

type mppDevice struct {
	Name        string
	Load        float64
	Utilization float64
}

func parseContent(r io.Reader) ([]mppDevice, error) {
	var devices []mppDevice
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		device, err := parseLine(line)
		if err != nil {
			continue
		}
		devices = append(devices, device)
	}

	return devices, scanner.Err()
}

// parseLine reads "<device>[:] load: N% utilization: N%". The labels may
// carry the number directly ("load:12.5%") on some kernels.
func parseLine(line string) (mppDevice, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return mppDevice{}, errors.New("insufficient fields")
	}

	d := mppDevice{Name: strings.TrimSuffix(fields[0], ":")}
	var haveLoad, haveUtil bool
	for i := 1; i < len(fields); i++ {
		key, value, _ := strings.Cut(fields[i], ":")
		if value == "" && i+1 < len(fields) {
			value = fields[i+1]
		}
		var dst *float64
		switch key {
		case "load":
			dst, haveLoad = &d.Load, true
		case "utilization":
			dst, haveUtil = &d.Utilization, true
		default:
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return mppDevice{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = v
	}

	if !haveLoad || !haveUtil {
		return mppDevice{}, errors.New("missing load or utilization")
	}
	return d, nil
}
