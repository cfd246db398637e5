package registry

import (
	"reflect"
	"testing"
)

func TestEditDistance(t *testing.T) {
	tests := map[string]struct {
		a, b string
		want int
	}{
		"equal":         {"abc", "abc", 0},
		"one insert":    {"abc", "abcd", 1},
		"one replace":   {"abc", "abd", 1},
		"empty to word": {"", "abc", 3},
		"both empty":    {"", "", 0},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := editDistance(tc.a, tc.b); got != tc.want {
				t.Errorf("editDistance(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestCloseMatches(t *testing.T) {
	candidates := []string{
		"met-no/weather/oslo-hourly",
		"met-no/weather/oslo-daily",
		"met-no/weather/bergen-hourly",
		"stats/finance/gdp-quarterly",
	}

	tests := map[string]struct {
		key  string
		want []string
	}{
		"scoped namespace uses looser cutoff": {
			key:  "met-no/weather/oslo",
			want: []string{"met-no/weather/oslo-daily", "met-no/weather/oslo-hourly", "met-no/weather/bergen-hourly"},
		},
		"global near miss": {
			key:  "stats/finance/gdp-quarterl",
			want: []string{"stats/finance/gdp-quarterly"},
		},
		"nothing close": {
			key:  "a/b/c",
			want: nil,
		},
		"at most three": {
			key:  "met-no/weather/x",
			want: []string{"met-no/weather/oslo-daily", "met-no/weather/oslo-hourly", "met-no/weather/bergen-hourly"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := closeMatches(tc.key, candidates)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("closeMatches(%q) = %v, want %v", tc.key, got, tc.want)
			}
		})
	}
}
