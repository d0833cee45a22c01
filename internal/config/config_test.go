package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string

	StringField   string        `toml:"test.string_field" env:"STRING_FIELD"`
	BoolField     bool          `toml:"test.bool_field" env:"BOOL_FIELD"`
	IntField      int           `toml:"test.int_field" env:"INT_FIELD"`
	FloatField    float64       `toml:"test.float_field" env:"FLOAT_FIELD"`
	DurationField time.Duration `toml:"test.duration_field" env:"DURATION_FIELD"`
	SliceField    []string      `toml:"test.slice_field" env:"SLICE_FIELD"`

	NestedString string `toml:"nested.value" env:"NESTED_VALUE"`
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hwvideo.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeFile(t, `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
float_field = 29.97
duration_field = "250ms"
slice_field = ["item1", "item2", "item3"]

[nested]
value = "nested value"
`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := testOptions{
		Config:        path,
		StringField:   "hello world",
		BoolField:     true,
		IntField:      42,
		FloatField:    29.97,
		DurationField: 250 * time.Millisecond,
		SliceField:    []string{"item1", "item2", "item3"},
		NestedString:  "nested value",
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("got %+v, want %+v", *opts, want)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("HWVIDEO_STRING_FIELD", "env string")
	t.Setenv("HWVIDEO_BOOL_FIELD", "false")
	t.Setenv("HWVIDEO_INT_FIELD", "123")
	t.Setenv("HWVIDEO_DURATION_FIELD", "2s")
	t.Setenv("HWVIDEO_SLICE_FIELD", " a , b ,c")
	t.Setenv("HWVIDEO_NESTED_VALUE", "env nested")

	opts := &testOptions{BoolField: true}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.StringField != "env string" || opts.BoolField || opts.IntField != 123 {
		t.Errorf("scalar fields not applied: %+v", *opts)
	}
	if opts.DurationField != 2*time.Second {
		t.Errorf("DurationField = %v, want 2s", opts.DurationField)
	}
	if !reflect.DeepEqual(opts.SliceField, []string{"a", "b", "c"}) {
		t.Errorf("SliceField = %v", opts.SliceField)
	}
	if opts.NestedString != "env nested" {
		t.Errorf("NestedString = %q", opts.NestedString)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeFile(t, `
[test]
string_field = "toml value"
int_field = 100
slice_field = ["toml1", "toml2"]
`)
	t.Setenv("HWVIDEO_STRING_FIELD", "env override")
	t.Setenv("HWVIDEO_INT_FIELD", "200")

	opts := &testOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&opts.IntField, "int-field", 0, "")
	if err := cmd.Flags().Parse([]string{"--int-field=7"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.StringField != "env override" {
		t.Errorf("env should override file, got %q", opts.StringField)
	}
	if opts.IntField != 7 {
		t.Errorf("flag should override env and file, got %d", opts.IntField)
	}
	if !reflect.DeepEqual(opts.SliceField, []string{"toml1", "toml2"}) {
		t.Errorf("file value should apply when nothing overrides it, got %v", opts.SliceField)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "invalid toml", file: "[test\ninvalid toml syntax\n"},
		{name: "duration not a string", file: "[test]\nduration_field = 5\n"},
		{name: "bad env int", env: map[string]string{"HWVIDEO_INT_FIELD": "many"}},
		{name: "bad env duration", env: map[string]string{"HWVIDEO_DURATION_FIELD": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			opts := &testOptions{}
			if tt.file != "" {
				opts.Config = writeFile(t, tt.file)
			}
			if err := LoadConfig(opts, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), IntField: 3}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
	if opts.IntField != 3 {
		t.Errorf("defaults should survive, got %d", opts.IntField)
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"display": map[string]any{
			"lock": map[string]any{
				"timeout": "1s",
			},
			"device": "/dev/dri/card0",
		},
		"root": "root_value",
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"root", "root_value"},
		{"display.device", "/dev/dri/card0"},
		{"display.lock.timeout", "1s"},
		{"nonexistent", nil},
		{"display.nonexistent", nil},
		{"root.child", nil},
	}

	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.expected {
			t.Errorf("getNestedValue(%q) = %v, expected %v", tt.path, got, tt.expected)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Device":        "device",
		"MetricsListen": "metrics-listen",
		"ForceKeyEvery": "force-key-every",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}
