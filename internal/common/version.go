package common

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/thand-io/relay/internal/common.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// GetModuleBuildInfo prefers ldflags and falls back to the module build info
// embedded by go install.
func GetModuleBuildInfo() (version string, gitCommit string, ok bool) {
	if Version != "dev" {
		return Version, GitCommit, true
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", "", false
	}

	version = info.Main.Version
	gitCommit = GitCommit

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			gitCommit = setting.Value
			break
		}
	}

	return version, gitCommit, true
}

func GetVersion() string {
	version, gitCommit, ok := GetModuleBuildInfo()
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s (git: %s)", version, gitCommit)
}

// UserAgent identifies the relay to the cluster.
func UserAgent() string {
	version, _, ok := GetModuleBuildInfo()
	if !ok || len(version) == 0 {
		version = "dev"
	}
	return "thand-relay/" + version
}
