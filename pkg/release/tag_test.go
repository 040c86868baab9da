package release

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/solo/pkg/errdefs"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag        string
		major      uint64
		minor      uint64
		patch      uint64
		prerelease string
		family     string
	}{
		{tag: "v0.42.5", major: 0, minor: 42, patch: 5, family: "v0.42"},
		{tag: "0.47.0", major: 0, minor: 47, patch: 0, family: "v0.47"},
		{tag: "v1.2.3-alpha.1", major: 1, minor: 2, patch: 3, prerelease: "alpha.1", family: "v1.2"},
		{tag: "v0.49.0-rc-2", major: 0, minor: 49, patch: 0, prerelease: "rc-2", family: "v0.49"},
		{tag: "v10.20.30.4", major: 10, minor: 20, patch: 30, family: "v10.20"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			tag, err := ParseTag(tt.tag)
			require.NoError(t, err)

			assert.Equal(t, tt.tag, tag.String())
			assert.Equal(t, tt.major, tag.Major)
			assert.Equal(t, tt.minor, tag.Minor)
			assert.Equal(t, tt.patch, tag.Patch)
			assert.Equal(t, tt.prerelease, tag.Prerelease)
			assert.Equal(t, tt.family, tag.Family())
		})
	}
}

func TestParseTagRoundTrip(t *testing.T) {
	for major := uint64(0); major < 3; major++ {
		for minor := uint64(0); minor < 60; minor += 7 {
			for patch := uint64(0); patch < 12; patch += 5 {
				raw := fmt.Sprintf("v%d.%d.%d", major, minor, patch)
				tag, err := ParseTag(raw)
				require.NoError(t, err, raw)

				again, err := ParseTag(fmt.Sprintf("v%d.%d.%d", tag.Major, tag.Minor, tag.Patch))
				require.NoError(t, err)
				assert.Equal(t, tag, again)
			}
		}
	}
}

func TestParseTagMalformed(t *testing.T) {
	tests := []string{
		"v0.42",
		"v1",
		"vx.y.z",
		"v0.-1.2",
		"v0.42.a",
		"v0.42.5-",
		"v0.42.5-rc/../../etc",
		"v0..5",
		"latest",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseTag(raw)
			require.Error(t, err)
			assert.True(t, errdefs.IsInvalidArgument(err), "got %v", err)
		})
	}
}

func TestParseTagEmpty(t *testing.T) {
	_, err := ParseTag("  ")
	assert.True(t, errdefs.IsMissingArgument(err))
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		tag        string
		constraint string
		want       bool
	}{
		{tag: "v0.42.5", constraint: ">= 0.42.0-0", want: true},
		{tag: "v0.41.9", constraint: ">= 0.42.0-0", want: false},
		{tag: "v0.47.0-alpha.0", constraint: ">= 0.42.0-0", want: true},
		{tag: "v0.47.0", constraint: "", want: true},
		{tag: "v1.0.0", constraint: "< 1.0.0", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.tag+" "+tt.constraint, func(t *testing.T) {
			tag, err := ParseTag(tt.tag)
			require.NoError(t, err)

			ok, err := Satisfies(tag, tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestSatisfiesBadConstraint(t *testing.T) {
	tag, err := ParseTag("v0.42.5")
	require.NoError(t, err)

	_, err = Satisfies(tag, ">>> nope")
	assert.True(t, errdefs.IsInvalidArgument(err))
}
