package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/hwvideo/internal/codec"
	"github.com/smazurov/hwvideo/internal/display"
	"github.com/smazurov/hwvideo/internal/encoder"
	"github.com/smazurov/hwvideo/internal/logging"
)

// Pipeline is the on-disk description of an encode or present pipeline.
//
//	[encoder]
//	codec = "h264"
//	format = "nv12"
//	width = 1920
//	height = 1080
//	fps_in = "30"
//	rc_mode = "cbr"
//
//	[encoder.tuning]
//	sei = "disabled"
//
//	[display]
//	connector = -1
//	lock_timeout = "500ms"
type Pipeline struct {
	Encoder EncoderSection `toml:"encoder"`
	Display DisplaySection `toml:"display"`
	Logging logging.Config `toml:"logging"`
	Metrics MetricsSection `toml:"metrics"`
}

// EncoderSection maps onto encoder.Request.
type EncoderSection struct {
	Name    string `toml:"name"`
	Codec   string `toml:"codec"`
	Format  string `toml:"format"`
	Width   int    `toml:"width"`
	Height  int    `toml:"height"`
	GOP     int    `toml:"gop"`
	Quality *int   `toml:"quality"`

	Bitrate    int    `toml:"bitrate"`
	BitrateMin int    `toml:"bitrate_min"`
	BitrateMax int    `toml:"bitrate_max"`
	RCMode     string `toml:"rc_mode"`

	// Rates are "N", "N/D" or either with a "~" prefix for a flexible rate.
	FPSIn  string `toml:"fps_in"`
	FPSOut string `toml:"fps_out"`

	HorStride       int `toml:"hor_stride"`
	VerStride       int `toml:"ver_stride"`
	GOPMode         int `toml:"gop_mode"`
	VirtualIntraLen int `toml:"virtual_intra_len"`

	// Dump is a file receiving a copy of every packet. Empty disables it.
	Dump string `toml:"dump"`

	Tuning TuningSection `toml:"tuning"`
}

// TuningSection maps onto encoder.Tuning.
type TuningSection struct {
	Split           string `toml:"split"`
	SplitArg        int    `toml:"split_arg"`
	Rotation        int    `toml:"rotation"`
	Mirroring       bool   `toml:"mirroring"`
	SEI             string `toml:"sei"`
	GOPModeOverride *int   `toml:"gop_mode_override"`
	ConstraintSet   uint32 `toml:"constraint_set"`
	OSDEnable       bool   `toml:"osd_enable"`
	OSDMode         int    `toml:"osd_mode"`
	ROIEnable       bool   `toml:"roi_enable"`
	UserDataEnable  bool   `toml:"user_data_enable"`
}

// DisplaySection maps onto display.Config.
type DisplaySection struct {
	Device      string `toml:"device"`
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	Connector   int    `toml:"connector"`
	CRTC        int    `toml:"crtc"`
	Plane       int    `toml:"plane"`
	LockTimeout string `toml:"lock_timeout"`
	Fill        int    `toml:"fill"`
	Converter   string `toml:"converter"`
}

// MetricsSection configures the Prometheus endpoint and the MPP load
// collector.
type MetricsSection struct {
	Listen       string `toml:"listen"`
	MPPLoadPath  string `toml:"mpp_load_path"`
	MPPInterval  string `toml:"mpp_interval"`
	MPPCollector bool   `toml:"mpp_collector"`
}

// DefaultPipeline returns the values used for keys absent from the file.
func DefaultPipeline() Pipeline {
	d := display.DefaultConfig()
	return Pipeline{
		Encoder: EncoderSection{
			Codec:  "h264",
			Format: "nv12",
			RCMode: string(codec.RCModeCBR),
			FPSIn:  "30",
		},
		Display: DisplaySection{
			Device:      d.Device,
			Connector:   d.Connector,
			CRTC:        d.CRTC,
			Plane:       d.Plane,
			LockTimeout: d.LockTimeout.String(),
			Fill:        int(d.Fill),
			Converter:   d.Converter,
		},
		Logging: logging.Config{
			Level:   "info",
			Format:  "text",
			Modules: make(map[string]string),
		},
		Metrics: MetricsSection{
			MPPLoadPath:  "/proc/mpp_service/load",
			MPPInterval:  "5s",
			MPPCollector: true,
		},
	}
}

// LoadPipeline reads a pipeline file on top of DefaultPipeline. A missing
// path yields the defaults.
func LoadPipeline(path string) (Pipeline, error) {
	p := DefaultPipeline()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read pipeline %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse TOML pipeline: %w", err)
	}
	if p.Logging.Modules == nil {
		p.Logging.Modules = make(map[string]string)
	}
	return p, nil
}

// EncoderRequest converts the [encoder] section. Only the names are
// validated here; encoder.Resolve checks the values.
func (p *Pipeline) EncoderRequest() (encoder.Request, error) {
	s := p.Encoder

	coding, err := codec.ParseCodingType(s.Codec)
	if err != nil {
		return encoder.Request{}, fmt.Errorf("encoder.codec: %w", err)
	}
	format, err := codec.ParseFrameFormat(s.Format)
	if err != nil {
		return encoder.Request{}, fmt.Errorf("encoder.format: %w", err)
	}
	fpsIn, err := ParseFraction(s.FPSIn)
	if err != nil {
		return encoder.Request{}, fmt.Errorf("encoder.fps_in: %w", err)
	}
	fpsOut := fpsIn
	if s.FPSOut != "" {
		if fpsOut, err = ParseFraction(s.FPSOut); err != nil {
			return encoder.Request{}, fmt.Errorf("encoder.fps_out: %w", err)
		}
	}

	return encoder.Request{
		Width:           s.Width,
		Height:          s.Height,
		Format:          format,
		Coding:          coding,
		GOP:             s.GOP,
		Quality:         s.Quality,
		BpsTarget:       s.Bitrate,
		BpsMin:          s.BitrateMin,
		BpsMax:          s.BitrateMax,
		RCMode:          codec.RCMode(strings.ToLower(s.RCMode)),
		FPSIn:           fpsIn,
		FPSOut:          fpsOut,
		HorStride:       s.HorStride,
		VerStride:       s.VerStride,
		GOPMode:         s.GOPMode,
		VirtualIntraLen: s.VirtualIntraLen,
		Tuning: encoder.Tuning{
			Split:           codec.SplitMode(strings.ToLower(s.Tuning.Split)),
			SplitArg:        s.Tuning.SplitArg,
			Rotation:        s.Tuning.Rotation,
			Mirroring:       s.Tuning.Mirroring,
			SEIMode:         codec.SEIMode(strings.ToLower(s.Tuning.SEI)),
			GOPModeOverride: s.Tuning.GOPModeOverride,
			ConstraintSet:   s.Tuning.ConstraintSet,
			OSDEnable:       s.Tuning.OSDEnable,
			OSDMode:         s.Tuning.OSDMode,
			ROIEnable:       s.Tuning.ROIEnable,
			UserDataEnable:  s.Tuning.UserDataEnable,
		},
	}, nil
}

// DisplayConfig converts the [display] section.
func (p *Pipeline) DisplayConfig() (display.Config, error) {
	s := p.Display
	cfg := display.DefaultConfig()

	if s.Device != "" {
		cfg.Device = s.Device
	}
	cfg.Width = s.Width
	cfg.Height = s.Height
	cfg.Connector = s.Connector
	cfg.CRTC = s.CRTC
	cfg.Plane = s.Plane

	if s.LockTimeout != "" {
		d, err := time.ParseDuration(s.LockTimeout)
		if err != nil {
			return cfg, fmt.Errorf("display.lock_timeout: %w", err)
		}
		if d < 0 {
			return cfg, fmt.Errorf("display.lock_timeout: negative duration %s", d)
		}
		cfg.LockTimeout = d
	}
	if s.Fill < 0 || s.Fill > 0xff {
		return cfg, fmt.Errorf("display.fill: %d out of byte range", s.Fill)
	}
	cfg.Fill = byte(s.Fill)

	switch conv := strings.ToLower(s.Converter); conv {
	case "":
	case display.ConverterAuto, display.ConverterRGA, display.ConverterSoftware:
		cfg.Converter = conv
	default:
		return cfg, fmt.Errorf("display.converter: unknown converter %q", s.Converter)
	}
	return cfg, nil
}

// MPPInterval parses metrics.mpp_interval.
func (p *Pipeline) MPPInterval() (time.Duration, error) {
	d, err := time.ParseDuration(p.Metrics.MPPInterval)
	if err != nil {
		return 0, fmt.Errorf("metrics.mpp_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("metrics.mpp_interval: must be positive, got %s", d)
	}
	return d, nil
}

// ParseFraction parses "30", "30000/1001" or "~30" into a frame rate. The
// "~" prefix marks the rate as flexible.
func ParseFraction(s string) (codec.Fraction, error) {
	s = strings.TrimSpace(s)
	var f codec.Fraction
	if rest, ok := strings.CutPrefix(s, "~"); ok {
		f.Flex = true
		s = rest
	}

	num, den, hasDen := strings.Cut(s, "/")
	n, err := strconv.Atoi(num)
	if err != nil {
		return codec.Fraction{}, fmt.Errorf("invalid rate %q", s)
	}
	d := 1
	if hasDen {
		if d, err = strconv.Atoi(den); err != nil {
			return codec.Fraction{}, fmt.Errorf("invalid rate %q", s)
		}
	}
	if n <= 0 || d <= 0 {
		return codec.Fraction{}, fmt.Errorf("rate %q must be positive", s)
	}
	f.Num, f.Den = n, d
	return f, nil
}
