package versions

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// AtLeast reports whether version is greater than or equal to minimum.
// Both must be valid semantic versions; a leading "v" is accepted.
func AtLeast(version, minimum string) (bool, error) {
	got, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", version, err)
	}
	want, err := semver.NewVersion(minimum)
	if err != nil {
		return false, fmt.Errorf("invalid minimum version %q: %w", minimum, err)
	}
	return !got.LessThan(want), nil
}
