// Package version reports build metadata set through -ldflags.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

var (
	// Version is the application version, set via ldflags during build.
	Version = "dev"
	// GitCommit is the git commit hash, set via ldflags during build.
	GitCommit = "unknown"
	// BuildDate is the build timestamp, set via ldflags during build.
	BuildDate = "unknown"
)

// Backends records which hardware libraries were linked in.
type Backends struct {
	MPP bool `json:"mpp"`
	RGA bool `json:"rga"`
}

// Info contains version and build metadata.
type Info struct {
	Version   string   `json:"version"`
	GitCommit string   `json:"git_commit"`
	BuildDate string   `json:"build_date"`
	GoVersion string   `json:"go_version"`
	Platform  string   `json:"platform"`
	Backends  Backends `json:"backends"`
}

// Get returns version and build information. Backends is left for the
// caller, which knows the build tags.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String formats i on one line.
func (i Info) String() string {
	var linked []string
	if i.Backends.MPP {
		linked = append(linked, "mpp")
	}
	if i.Backends.RGA {
		linked = append(linked, "rga")
	}
	backends := "none"
	if len(linked) > 0 {
		backends = strings.Join(linked, ",")
	}
	return fmt.Sprintf("hwvideo %s (commit %s, built %s, %s, %s, backends: %s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform, backends)
}
