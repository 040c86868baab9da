package release

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cuemby/solo/pkg/errdefs"
	"github.com/cuemby/solo/pkg/types"
)

// ParseTag parses vMAJOR.MINOR.PATCH[-prerelease]. At least three numeric
// dot-separated fields must follow the optional leading "v".
func ParseTag(tag string) (types.ReleaseTag, error) {
	const op = "release.ParseTag"

	if strings.TrimSpace(tag) == "" {
		return types.ReleaseTag{}, errdefs.Missing(op, "release tag")
	}

	s := strings.TrimPrefix(tag, "v")
	core, pre, hasPre := strings.Cut(s, "-")
	if hasPre && pre == "" {
		return types.ReleaseTag{}, errdefs.New(errdefs.KindInvalidArgument, op, "malformed release tag %q: empty prerelease", tag)
	}
	// The raw tag ends up in URLs and cache paths
	for _, r := range pre {
		if !isPrereleaseRune(r) {
			return types.ReleaseTag{}, errdefs.New(errdefs.KindInvalidArgument, op, "malformed release tag %q: invalid prerelease character %q", tag, r)
		}
	}

	fields := strings.Split(core, ".")
	if len(fields) < 3 {
		return types.ReleaseTag{}, errdefs.New(errdefs.KindInvalidArgument, op, "malformed release tag %q: want vMAJOR.MINOR.PATCH", tag)
	}

	nums := make([]uint64, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return types.ReleaseTag{}, errdefs.New(errdefs.KindInvalidArgument, op, "malformed release tag %q: field %q is not a non-negative integer", tag, f)
		}
		nums[i] = n
	}

	return types.ReleaseTag{
		Raw:        tag,
		Major:      nums[0],
		Minor:      nums[1],
		Patch:      nums[2],
		Prerelease: pre,
	}, nil
}

// SemVer converts a tag into a semantic version for constraint checks
func SemVer(tag types.ReleaseTag) (*semver.Version, error) {
	s := fmt.Sprintf("%d.%d.%d", tag.Major, tag.Minor, tag.Patch)
	if tag.Prerelease != "" {
		s += "-" + tag.Prerelease
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindInvalidArgument, "release.SemVer", err, "release tag %q", tag.Raw)
	}
	return v, nil
}

// Satisfies reports whether tag matches a semver constraint such as
// ">= 0.42.0-0". An empty constraint accepts every tag.
func Satisfies(tag types.ReleaseTag, constraint string) (bool, error) {
	if strings.TrimSpace(constraint) == "" {
		return true, nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, errdefs.Wrap(errdefs.KindInvalidArgument, "release.Satisfies", err, "constraint %q", constraint)
	}

	v, err := SemVer(tag)
	if err != nil {
		return false, err
	}

	return c.Check(v), nil
}

func isPrereleaseRune(r rune) bool {
	return r == '.' || r == '-' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z')
}
