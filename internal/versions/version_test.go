package versions

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionInfo(t *testing.T) {
	t.Parallel()

	noVCS := func() (string, string) { return "", "" }
	vcs := func() (string, string) { return "0123456789abcdef", "2025-01-15T10:30:00Z" }

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
		vcs       func() (string, string)
		want      VersionInfo
	}{
		{
			name:      "release build keeps ldflags values",
			version:   "v1.2.3",
			commit:    "abc123",
			buildDate: "2025-02-01T08:00:00Z",
			vcs:       vcs,
			want:      VersionInfo{Version: "v1.2.3", Commit: "abc123", BuildDate: "2025-02-01 08:00:00 UTC"},
		},
		{
			name:      "dev build reads vcs settings",
			version:   "dev",
			commit:    unknownStr,
			buildDate: unknownStr,
			vcs:       vcs,
			want:      VersionInfo{Version: "build-01234567", Commit: "0123456789abcdef", BuildDate: "2025-01-15 10:30:00 UTC"},
		},
		{
			name:      "dev build without vcs",
			version:   "dev",
			commit:    unknownStr,
			buildDate: unknownStr,
			vcs:       noVCS,
			want:      VersionInfo{Version: "build-unknown", Commit: unknownStr, BuildDate: unknownStr},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := versionInfo(tt.version, tt.commit, tt.buildDate, tt.vcs)
			tt.want.GoVersion = runtime.Version()
			tt.want.Platform = runtime.GOOS + "/" + runtime.GOARCH
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetVersionInfo(t *testing.T) {
	t.Parallel()
	info := GetVersionInfo()
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestAtLeast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version string
		minimum string
		want    bool
		wantErr bool
	}{
		{name: "newer major", version: "8.19.0", minimum: "8.0.0", want: true},
		{name: "equal", version: "8.0.0", minimum: "8.0.0", want: true},
		{name: "older major", version: "7.17.9", minimum: "8.0.0", want: false},
		{name: "prerelease is older than release", version: "8.0.0-rc1", minimum: "8.0.0", want: false},
		{name: "v prefix", version: "v8.1.0", minimum: "8.0.0", want: true},
		{name: "snapshot suffix", version: "9.0.0-SNAPSHOT", minimum: "8.0.0", want: true},
		{name: "invalid version", version: "latest", minimum: "8.0.0", wantErr: true},
		{name: "invalid minimum", version: "8.0.0", minimum: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := AtLeast(tt.version, tt.minimum)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
