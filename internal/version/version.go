// Package version reports build information for the chaincache binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Build metadata, set at link time:
//
//	go build -ldflags "-X github.com/mrz1836/chaincache/internal/version.Version=v1.0.0"
//
//nolint:gochecknoglobals // set via -ldflags
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

const devVersion = "dev"

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information. Values missing from the link-time
// variables are filled from the module build info when available.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}
	return info
}

func fillFromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = shortCommit(s.Value)
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		}
	}
}

// String renders the info as "v1.2.3 (commit: abc1234, built: 2024-01-15)".
func (i Info) String() string {
	commit := i.Commit
	if commit == "" {
		commit = "unknown"
	}
	date := i.Date
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", FormatVersion(i.Version), commit, date)
}

// FormatVersion adds a "v" prefix to release versions. Empty versions and
// commit hashes are development builds.
func FormatVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || v == devVersion {
		return devVersion
	}
	if isCommitHash(v) {
		return devVersion + "-" + strings.TrimSuffix(v, "-dirty")
	}
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func shortCommit(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// isCommitHash checks if a string looks like a git commit hash: 7-40 hex
// characters with at least one letter, so "1234567" stays a version.
func isCommitHash(s string) bool {
	s = strings.TrimSuffix(s, "-dirty")
	if len(s) < 7 || len(s) > 40 {
		return false
	}

	hasLetter := false
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isHexLetter := (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
		if !isDigit && !isHexLetter {
			return false
		}
		if isHexLetter {
			hasLetter = true
		}
	}
	return hasLetter
}
