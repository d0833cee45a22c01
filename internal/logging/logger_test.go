package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	moduleFormats = make(map[string]string)
	isInitialized = false
	globalConfig = Config{}
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"encoder": "debug",
			"display": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"encoder", true, true, true},
		{"display", false, false, true},
		{"drm", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()

			if got := handler.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(context.Background(), slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(context.Background(), slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	before := GetLogger("rkmpp")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"rkmpp": "debug"},
	})

	after := GetLogger("rkmpp")
	if before != after {
		t.Error("logger should stay cached when the format is unchanged")
	}
	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("cached logger should follow the new module level")
	}
}

func TestInitializeFormatChangeRebuilds(t *testing.T) {
	resetState()

	Initialize(Config{Level: "info", Format: "text"})
	text := GetLogger("cli")

	Initialize(Config{Level: "info", Format: "json"})
	if GetLogger("cli") == text {
		t.Error("switching to json should rebuild the module logger")
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetState()
	Initialize(Config{Level: "warn"})

	logger := GetLogger("display")
	if logger.Handler().Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn")
	}

	if err := SetModuleLevel("display", "debug"); err != nil {
		t.Fatalf("SetModuleLevel: %v", err)
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after SetModuleLevel")
	}

	// Loggers created later see the override too.
	if err := SetModuleLevel("late", "error"); err != nil {
		t.Fatalf("SetModuleLevel: %v", err)
	}
	if GetLogger("late").Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("late module should be at error")
	}

	if err := SetModuleLevel("display", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("expected 1 debug message, got %d. Output: %s", count, output)
	}
	if !strings.Contains(output, "module=test") {
		t.Errorf("module attribute missing. Output: %s", output)
	}
}

func TestJournalHandlerFollowsLevelVar(t *testing.T) {
	levelVar := &slog.LevelVar{}
	levelVar.Set(slog.LevelWarn)
	h := NewJournalHandler(levelVar)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn")
	}
	levelVar.Set(slog.LevelDebug)
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be enabled after lowering the level")
	}
}

func TestJournalRecordFields(t *testing.T) {
	var h slog.Handler = NewJournalHandler(slog.LevelInfo)
	h = h.WithAttrs([]slog.Attr{slog.String("module", "display")})
	h = h.WithGroup("surface")
	h = h.WithAttrs([]slog.Attr{slog.String("device", "/dev/dri/card0")})

	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "Frame presented", 0)
	r.AddAttrs(
		slog.Int("frames", 12),
		slog.Group("rc", slog.Int("bps", 4000), slog.Float64("ratio", 0.5)),
		slog.Duration("lock-wait", 3*time.Millisecond),
		slog.Any("error", errors.New("device busy")),
	)
	fields := h.(*JournalHandler).recordFields(r)

	want := map[string]string{
		"MODULE":            "display",
		"SURFACE_DEVICE":    "/dev/dri/card0",
		"SURFACE_FRAMES":    "12",
		"SURFACE_RC_BPS":    "4000",
		"SURFACE_RC_RATIO":  "0.5",
		"SURFACE_LOCK_WAIT": "3ms",
		"SURFACE_ERROR":     "device busy",
		"SYSLOG_IDENTIFIER": Identifier,
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %q, want %q", k, fields[k], v)
		}
	}
	if len(fields) != len(want) {
		t.Errorf("got %d fields, want %d: %v", len(fields), len(want), fields)
	}
}

func TestJoinField(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "session", "SESSION"},
		{"", "hor.stride", "HOR_STRIDE"},
		{"", "_private", "PRIVATE"},
		{"", "3d", "F3D"},
		{"RC", "qp-max", "RC_QP_MAX"},
	}
	for _, tt := range tests {
		if got := joinField(tt.prefix, tt.key); got != tt.want {
			t.Errorf("joinField(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
		}
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if tt.isNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
