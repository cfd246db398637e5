package model

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var digitRun = regexp.MustCompile(`\d+`)

// SortVersions returns the versions sorted ascending, newest last.
// Versions containing digits compare by their integer runs positionally,
// so "1.0.10" sorts after "1.0.9" and "2024-02" after "2024-01".
// Versions with no digits at all fall back to lexicographic order and
// sort after numeric ones. The input slice is not modified.
func SortVersions(versions []string) []string {
	out := append([]string(nil), versions...)
	sort.SliceStable(out, func(i, j int) bool {
		return CompareVersions(out[i], out[j]) < 0
	})
	return out
}

// CompareVersions orders two version strings, returning a negative
// number when a is older than b, zero when they order equal, and a
// positive number otherwise. This comparator is the single definition
// of version ordering: the local registry's "latest" and the update
// scanner's baseline both use it, never filesystem timestamps.
func CompareVersions(a, b string) int {
	na, nb := digitRun.FindAllString(a, -1), digitRun.FindAllString(b, -1)

	switch {
	case len(na) > 0 && len(nb) > 0:
		for i := 0; i < len(na) && i < len(nb); i++ {
			if c := compareRuns(na[i], nb[i]); c != 0 {
				return c
			}
		}
		if len(na) != len(nb) {
			return len(na) - len(nb)
		}
		return strings.Compare(a, b)
	case len(na) > 0:
		return -1
	case len(nb) > 0:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// compareRuns compares two digit runs numerically. Runs too long for
// uint64 compare by trimmed length first, which preserves numeric order.
func compareRuns(a, b string) int {
	va, errA := strconv.ParseUint(a, 10, 64)
	vb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		default:
			return 0
		}
	}
	a, b = strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

// LatestVersion returns the highest version among versions by
// CompareVersions ordering, or "" for an empty input.
func LatestVersion(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	sorted := SortVersions(versions)
	return sorted[len(sorted)-1]
}
