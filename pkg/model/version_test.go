package model

import (
	"reflect"
	"testing"
)

func TestCompareVersions(t *testing.T) {
	tests := map[string]struct {
		a, b string
		want int
	}{
		"equal":                      {"1.0.0", "1.0.0", 0},
		"patch bump":                 {"1.0.1", "1.0.0", 1},
		"minor vs patch":             {"1.2.0", "1.1.9", 1},
		"double digits beat single":  {"1.10.0", "1.9.0", 1},
		"calendar versions":          {"2024.1", "2023.12", 1},
		"shorter prefix sorts first": {"1.0", "1.0.0", -1},
		"numeric before non-numeric": {"1.0.0", "snapshot", -1},
		"lexicographic fallback":     {"alpha", "beta", -1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := CompareVersions(tc.a, tc.b); sign(got) != tc.want {
				t.Errorf("CompareVersions(%q, %q) = %d, want sign %d", tc.a, tc.b, got, tc.want)
			}
			if got := CompareVersions(tc.b, tc.a); sign(got) != -tc.want {
				t.Errorf("CompareVersions(%q, %q) = %d, want sign %d", tc.b, tc.a, got, -tc.want)
			}
		})
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func TestSortVersions(t *testing.T) {
	tests := map[string]struct {
		input []string
		want  []string
	}{
		"semver": {
			input: []string{"1.10.0", "1.2.0", "1.9.1"},
			want:  []string{"1.2.0", "1.9.1", "1.10.0"},
		},
		"mixed numeric and named": {
			input: []string{"snapshot", "2.0", "1.0"},
			want:  []string{"1.0", "2.0", "snapshot"},
		},
		"empty": {
			input: nil,
			want:  nil,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := SortVersions(tc.input)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("SortVersions(%v) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestLatestVersion(t *testing.T) {
	if got := LatestVersion([]string{"1.2.0", "1.10.0", "1.9.1"}); got != "1.10.0" {
		t.Errorf("LatestVersion = %q, want %q", got, "1.10.0")
	}
	if got := LatestVersion(nil); got != "" {
		t.Errorf("LatestVersion(nil) = %q, want empty", got)
	}
}
