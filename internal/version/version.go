// Package version reports build metadata injected via ldflags, falling back
// to the VCS stamp Go embeds in the binary.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	tag       = "dev" // set via ldflags
	commit    = "123abc"
	buildTime = "now"
)

const releaseURL = "https://github.com/noot-app/foodscan-mcp-server/releases/tag/%s"

// buildInfoReader is swapped out in tests
var buildInfoReader = debug.ReadBuildInfo

// Info is the resolved build metadata
type Info struct {
	Tag       string `json:"tag"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	URL       string `json:"url"`
}

// Tag returns the release tag, "dev" for local builds
func Tag() string {
	return tag
}

// Get resolves build metadata. VCS settings only replace values that were not
// set through ldflags.
func Get() Info {
	info := Info{Tag: tag, Commit: commit, BuildTime: buildTime, URL: fmt.Sprintf(releaseURL, tag)}

	if bi, ok := buildInfoReader(); ok && bi != nil {
		for _, setting := range bi.Settings {
			switch {
			case setting.Key == "vcs.revision" && commit == "123abc":
				info.Commit = setting.Value
			case setting.Key == "vcs.time" && buildTime == "now":
				info.BuildTime = setting.Value
			}
		}
	}
	return info
}

// String renders Get for humans
func String() string {
	info := Get()
	return fmt.Sprintf("%s (%s) built at %s\n%s", info.Tag, info.Commit, info.BuildTime, info.URL)
}
