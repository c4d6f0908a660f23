package reconcile

import (
	"github.com/hashicorp/go-version"

	"github.com/leapstack-labs/sqgen/pkg/core"
)

// CompareVersions orders two version strings by their numeric segments:
// -1 if a < b, 0 if equal, 1 if a > b. Missing segments count as zero, so
// "2.0" equals "2.0.0", and pre-releases order before their release.
// A string that is not a version yields a *core.VersionParseError.
func CompareVersions(a, b string) (int, error) {
	va, err := parseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := parseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

func parseVersion(s string) (*version.Version, error) {
	v, err := version.NewVersion(s)
	if err != nil {
		return nil, &core.VersionParseError{Version: s, Err: err}
	}
	return v, nil
}
