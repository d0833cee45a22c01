package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/smazurov/hwvideo/internal/display"
)

func presentApp() *app {
	a := testApp()
	a.pipeline.Display.Width = 4
	a.pipeline.Display.Height = 2
	return a
}

func TestDisplayConfig(t *testing.T) {
	tests := []struct {
		name        string
		width       int
		height      int
		fl          presentFlags
		wantW       int
		wantH       int
		wantErr     bool
		lockTimeout string
	}{
		{name: "from pipeline", width: 640, height: 480, wantW: 640, wantH: 480},
		{name: "flags override", width: 640, height: 480, fl: presentFlags{width: 320, height: 240}, wantW: 320, wantH: 240},
		{name: "flags only", fl: presentFlags{width: 8, height: 8}, wantW: 8, wantH: 8},
		{name: "missing size", wantErr: true},
		{name: "negative fps", width: 4, height: 4, fl: presentFlags{fps: -1}, wantErr: true},
		{name: "bad lock timeout", width: 4, height: 4, lockTimeout: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testApp()
			a.pipeline.Display.Width = tt.width
			a.pipeline.Display.Height = tt.height
			if tt.lockTimeout != "" {
				a.pipeline.Display.LockTimeout = tt.lockTimeout
			}

			cfg, err := a.displayConfig(tt.fl)
			if (err != nil) != tt.wantErr {
				t.Fatalf("displayConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestRunPresent(t *testing.T) {
	const size = 4 * 2 * 2

	tests := []struct {
		name       string
		input      []byte
		fl         presentFlags
		busy       map[int]bool
		failAt     int
		wantFirst  []byte
		wantErr    bool
		wantStderr string
	}{
		{
			name:       "every frame presented",
			input:      rawFrames(3, size),
			wantFirst:  []byte{1, 2, 3},
			wantStderr: "presented 3 frames, skipped 0, errors 0\n",
		},
		{
			name:       "busy frames skipped",
			input:      rawFrames(4, size),
			busy:       map[int]bool{2: true, 3: true},
			wantFirst:  []byte{1, 4},
			wantStderr: "presented 2 frames, skipped 2, errors 0\n",
		},
		{
			name:       "present error stops",
			input:      rawFrames(3, size),
			failAt:     2,
			wantFirst:  []byte{1},
			wantErr:    true,
			wantStderr: "presented 1 frames, skipped 0, errors 1\n",
		},
		{
			name:       "partial frame ignored",
			input:      append(rawFrames(1, size), 9, 9),
			wantFirst:  []byte{1},
			wantStderr: "presented 1 frames, skipped 0, errors 0\n",
		},
		{
			name:       "loop on empty input ends",
			fl:         presentFlags{loop: true},
			wantStderr: "presented 0 frames, skipped 0, errors 0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := presentApp()
			p := &fakePresenter{busy: tt.busy, failAt: tt.failAt}
			fl := tt.fl
			fl.input = "-"
			var stderr bytes.Buffer

			err := a.runPresent(context.Background(), p, fl, bytes.NewReader(tt.input), &stderr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("runPresent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, display.ErrLockFailed) {
				t.Errorf("error = %v, want lock failure", err)
			}
			if !bytes.Equal(p.first, tt.wantFirst) {
				t.Errorf("presented frames = %v, want %v", p.first, tt.wantFirst)
			}
			if stderr.String() != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantStderr)
			}
			if p.closed != 1 {
				t.Errorf("Close called %d times, want 1", p.closed)
			}
		})
	}
}

func TestRunPresentLoopRewindsFile(t *testing.T) {
	const size = 4 * 2 * 2
	a := presentApp()
	path := t.TempDir() + "/frames.uyvy"
	writeTestFile(t, path, rawFrames(2, size))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &fakePresenter{after: func(calls int) {
		if calls == 5 {
			cancel()
		}
	}}

	err := a.runPresent(ctx, p, presentFlags{input: path, loop: true}, nil, io.Discard)
	if err != nil {
		t.Fatalf("runPresent() error = %v", err)
	}
	if want := []byte{1, 2, 1, 2, 1}; !bytes.Equal(p.first, want) {
		t.Errorf("presented frames = %v, want %v", p.first, want)
	}
}
