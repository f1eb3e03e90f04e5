package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	origTag, origCommit, origBuildTime, origReader := tag, commit, buildTime, buildInfoReader
	t.Cleanup(func() {
		tag, commit, buildTime, buildInfoReader = origTag, origCommit, origBuildTime, origReader
	})

	vcs := func(settings ...debug.BuildSetting) func() (*debug.BuildInfo, bool) {
		return func() (*debug.BuildInfo, bool) {
			return &debug.BuildInfo{Settings: settings}, true
		}
	}
	noInfo := func() (*debug.BuildInfo, bool) { return nil, false }

	tests := []struct {
		name      string
		tag       string
		commit    string
		buildTime string
		reader    func() (*debug.BuildInfo, bool)
		expected  string
	}{
		{
			name:      "ldflags values",
			tag:       "v1.0.0",
			commit:    "abc123",
			buildTime: "2025-04-15",
			reader:    noInfo,
			expected:  "v1.0.0 (abc123) built at 2025-04-15\nhttps://github.com/noot-app/foodscan-mcp-server/releases/tag/v1.0.0",
		},
		{
			name:      "vcs info fills sentinels",
			tag:       "dev",
			commit:    "123abc",
			buildTime: "now",
			reader: vcs(
				debug.BuildSetting{Key: "vcs.revision", Value: "mock-commit-hash"},
				debug.BuildSetting{Key: "vcs.time", Value: "mock-build-time"},
				debug.BuildSetting{Key: "other.key", Value: "other-value"},
			),
			expected: "dev (mock-commit-hash) built at mock-build-time\nhttps://github.com/noot-app/foodscan-mcp-server/releases/tag/dev",
		},
		{
			name:      "vcs info does not override ldflags",
			tag:       "v2.0.0",
			commit:    "ldflags-commit",
			buildTime: "ldflags-time",
			reader:    vcs(debug.BuildSetting{Key: "vcs.revision", Value: "vcs-commit"}),
			expected:  "v2.0.0 (ldflags-commit) built at ldflags-time\nhttps://github.com/noot-app/foodscan-mcp-server/releases/tag/v2.0.0",
		},
		{
			name:      "empty build settings",
			tag:       "dev",
			commit:    "unchanged-commit",
			buildTime: "unchanged-date",
			reader:    vcs(),
			expected:  "dev (unchanged-commit) built at unchanged-date\nhttps://github.com/noot-app/foodscan-mcp-server/releases/tag/dev",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, commit, buildTime, buildInfoReader = tt.tag, tt.commit, tt.buildTime, tt.reader
			assert.Equal(t, tt.expected, String())
			assert.Equal(t, tt.tag, Tag())
		})
	}
}
