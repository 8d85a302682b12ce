// Package version reports build metadata for the bundle2chart binary.
//
// Release builds inject version, gitCommit and buildDate with -ldflags.
// Binaries built with go install fall back to the module version and VCS
// stamps recorded by the Go toolchain.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time values injected via -ldflags.
var (
	version   = "dev"
	gitCommit = "none"
	buildDate = "unknown"
)

// helmModule is the module whose version is reported as HelmVersion.
const helmModule = "helm.sh/helm/v3"

// Info holds the build metadata for the binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`

	// HelmVersion is the Helm library charts are loaded and rendered with.
	HelmVersion string `json:"helmVersion,omitempty"`

	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo returns the current build information.
func GetInfo() Info {
	bi, _ := debug.ReadBuildInfo()
	return infoFrom(bi)
}

func infoFrom(bi *debug.BuildInfo) Info {
	info := Info{
		Version:   version,
		GitCommit: shortCommit(gitCommit),
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi != nil {
		stamp(&info, bi)
	}

	return info
}

// stamp fills the values -ldflags left at their defaults.
func stamp(info *Info, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	var dirty bool

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "none" {
				info.GitCommit = shortCommit(s.Value)
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}

	if dirty && info.GitCommit != "none" {
		info.GitCommit += "-dirty"
	}

	for _, dep := range bi.Deps {
		if dep.Path != helmModule {
			continue
		}

		info.HelmVersion = dep.Version
		if dep.Replace != nil {
			info.HelmVersion = dep.Replace.Version
		}
	}
}

// String returns a human-readable single-line version string.
func (i Info) String() string {
	s := fmt.Sprintf("bundle2chart %s (commit: %s, built: %s", i.Version, i.GitCommit, i.BuildDate)
	if i.HelmVersion != "" {
		s += ", helm: " + i.HelmVersion
	}

	return s + ", " + i.GoVersion + " " + i.Platform + ")"
}

// JSON returns the version info as indented JSON.
func (i Info) JSON() (string, error) {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling version info: %w", err)
	}

	return string(data), nil
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}

	return commit
}
