package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfoString(t *testing.T) {
	tests := []struct {
		name     string
		backends Backends
		want     string
	}{
		{"none", Backends{}, "backends: none)"},
		{"mpp only", Backends{MPP: true}, "backends: mpp)"},
		{"both", Backends{MPP: true, RGA: true}, "backends: mpp,rga)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Get()
			info.Backends = tt.backends
			got := info.String()
			if !strings.HasSuffix(got, tt.want) {
				t.Errorf("String() = %q, want suffix %q", got, tt.want)
			}
			if !strings.HasPrefix(got, "hwvideo "+Version) {
				t.Errorf("String() = %q, missing version", got)
			}
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q", info.GoVersion)
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", info.Platform)
	}
}
