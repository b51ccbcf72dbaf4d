// Package version provides application version and build info.
//
//nolint:revive
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

var (
	// Version is the current version of the application.
	// It can be overridden by ldflags at build time.
	Version = "dev"
	// CommitHash is the git commit hash at build time.
	// It can be overridden by ldflags at build time.
	CommitHash = ""
	// BuildTime is the time when the application was built.
	// It can be overridden by ldflags at build time.
	BuildTime = ""

	readBuildInfo sync.Once
)

// GetInfo returns a formatted version string including the version and short commit hash.
func GetInfo() string {
	readBuildInfo.Do(fillFromBuildInfo)
	res := Version
	if CommitHash != "" {
		res += fmt.Sprintf(" (%s)", shortHash(CommitHash))
	}
	return res
}

// Details returns the version, commit and build time as one block for the CLI.
func Details() string {
	readBuildInfo.Do(fillFromBuildInfo)
	commit := CommitHash
	if commit == "" {
		commit = "unknown"
	}
	built := BuildTime
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf("chatbridge %s\ncommit: %s\nbuilt:  %s", Version, commit, built)
}

func fillFromBuildInfo() {
	if CommitHash != "" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			CommitHash = setting.Value
		case "vcs.time":
			BuildTime = setting.Value
		}
	}
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
