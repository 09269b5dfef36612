// Package version provides version information and build details for the application.
package version

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// Constants
const (
	// Name is the application name
	Name = "tzresolve"
	// ShortCommitHashLength defines the length for shortened commit hashes
	ShortCommitHashLength = 7
	// UnknownValue represents unknown build information
	UnknownValue = "unknown"
)

// Build-time variables set by linker flags
var (
	Version     = "dev"
	Commit      = "unknown"
	Date        = "unknown"
	BuiltBy     = "unknown"
	BuildNumber = "0"
)

// GetVersion returns the complete version string
func GetVersion() string {
	if BuildNumber != "0" && BuildNumber != "" {
		return fmt.Sprintf("%s (build %s)", Version, BuildNumber)
	}
	return Version
}

func known(s string) bool {
	return s != UnknownValue && s != ""
}

func shortCommit(commit string) string {
	if len(commit) > ShortCommitHashLength {
		return commit[:ShortCommitHashLength]
	}
	return commit
}

// GetFullVersionInfo returns detailed version information for --version
func GetFullVersionInfo() string {
	versionLine := fmt.Sprintf("%s %s", Name, GetVersion())
	if known(Commit) {
		versionLine += fmt.Sprintf(" (%s)", shortCommit(Commit))
	}

	var buildInfo []string
	if known(Date) {
		buildInfo = append(buildInfo, "built "+strings.ReplaceAll(Date, "_", " "))
	}
	if known(BuiltBy) {
		buildInfo = append(buildInfo, "by "+BuiltBy)
	}
	buildInfo = append(buildInfo,
		"with "+runtime.Version(),
		fmt.Sprintf("for %s/%s", runtime.GOOS, runtime.GOARCH))

	return versionLine + "\n" + strings.Join(buildInfo, " ")
}

// BuildInfo contains build information
type BuildInfo struct {
	Version   string
	Commit    string
	Date      string
	BuiltBy   string
	GoVersion string
	Platform  string
}

// Get returns the build information
func Get() *BuildInfo {
	return &BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		BuiltBy:   BuiltBy,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a formatted version string for the build info
func (bi *BuildInfo) String() string {
	return fmt.Sprintf("%s version %s (%s) built on %s by %s using %s for %s",
		Name, bi.Version, bi.Commit, bi.Date, bi.BuiltBy, bi.GoVersion, bi.Platform)
}

// LogValue implements slog.LogValuer
func (bi *BuildInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", bi.Version),
		slog.String("commit", shortCommit(bi.Commit)),
		slog.String("date", bi.Date),
		slog.String("go", bi.GoVersion),
		slog.String("platform", bi.Platform),
	)
}
