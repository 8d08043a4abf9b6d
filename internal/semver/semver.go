// Package semver parses semantic versions and version ranges and orders
// version lists by semantic-version precedence.
package semver

import (
	"fmt"
	"sort"
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
)

// Version is a parsed, strictly valid semantic version.
type Version struct {
	v *mmsemver.Version
}

// Parse parses s as a strict semantic version (MAJOR.MINOR.PATCH with optional
// prerelease and build metadata). A leading "v", a missing component or
// surrounding whitespace is rejected.
func Parse(s string) (*Version, error) {
	v, err := mmsemver.StrictNewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return &Version{v: v}, nil
}

// IsValid reports whether s is a strict semantic version.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// String returns the version exactly as it was given.
func (v *Version) String() string {
	return v.v.Original()
}

// Compare returns -1, 0 or 1 when v is lower than, equal to, or higher than
// other under semantic-version precedence. Build metadata is ignored.
func (v *Version) Compare(other *Version) int {
	return v.v.Compare(other.v)
}

// Range is a parsed version range expression such as "^1.0.0",
// "~1.2.3", ">=1.0.0 <2.0.0", "1.x" or "1.0.0 - 1.4.0 || ^2.0.0".
type Range struct {
	c   *mmsemver.Constraints
	raw string
}

// ParseRange parses a range expression.
func ParseRange(s string) (*Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty version range")
	}
	c, err := mmsemver.NewConstraint(s)
	if err != nil {
		return nil, fmt.Errorf("invalid version range %q: %w", s, err)
	}
	return &Range{c: c, raw: s}, nil
}

// Contains reports whether v satisfies the range.
func (r *Range) Contains(v *Version) bool {
	return r.c.Check(v.v)
}

// String returns the range expression as given.
func (r *Range) String() string {
	return r.raw
}

// Compare compares two version strings. Unparseable strings sort below every
// valid version and compare equal to each other.
func Compare(a, b string) int {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}

// SortDescending returns the valid versions from versions ordered newest first.
// Versions of equal precedence (differing only in build metadata) are ordered
// by their string form, descending. Invalid entries are dropped. The input
// slice is not modified.
func SortDescending(versions []string) []string {
	parsed := make([]*Version, 0, len(versions))
	for _, s := range versions {
		v, err := Parse(s)
		if err != nil {
			continue
		}
		parsed = append(parsed, v)
	}

	sort.Slice(parsed, func(i, j int) bool {
		if c := parsed[i].Compare(parsed[j]); c != 0 {
			return c > 0
		}
		return parsed[i].String() > parsed[j].String()
	})

	out := make([]string, len(parsed))
	for i, v := range parsed {
		out[i] = v.String()
	}
	return out
}

// Latest returns the highest valid version in versions.
func Latest(versions []string) (string, bool) {
	sorted := SortDescending(versions)
	if len(sorted) == 0 {
		return "", false
	}
	return sorted[0], true
}

// Satisfying returns the highest version in versions that satisfies the range
// expression.
func Satisfying(expr string, versions []string) (string, bool, error) {
	r, err := ParseRange(expr)
	if err != nil {
		return "", false, err
	}
	for _, s := range SortDescending(versions) {
		v, _ := Parse(s)
		if r.Contains(v) {
			return s, true, nil
		}
	}
	return "", false, nil
}
