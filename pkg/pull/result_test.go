package pull

import (
	"errors"
	"fmt"
	"testing"

	"github.com/simkjels/datumhub-cli/pkg/fetch"
	"github.com/simkjels/datumhub-cli/pkg/registry"
)

func TestStatusOf(t *testing.T) {
	tests := map[string]struct {
		err  error
		want Status
	}{
		"nil": {
			err:  nil,
			want: StatusOK,
		},
		"network error": {
			err:  &fetch.NetworkError{URL: "https://example.org", Err: errors.New("dial refused")},
			want: StatusNetworkError,
		},
		"wrapped network error": {
			err:  fmt.Errorf("pulling: %w", &fetch.NetworkError{URL: "u", Err: errors.New("x")}),
			want: StatusNetworkError,
		},
		"unreachable registry": {
			err:  &registry.UnreachableError{URL: "https://example.org", Err: errors.New("timeout")},
			want: StatusNetworkError,
		},
		"integrity error": {
			err:  &fetch.IntegrityError{Filename: "f", Algorithm: "sha256"},
			want: StatusUserError,
		},
		"not found": {
			err:  registry.ErrNotFound,
			want: StatusUserError,
		},
		"plain error": {
			err:  errors.New("something else"),
			want: StatusUserError,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := StatusOf(tc.err); got != tc.want {
				t.Errorf("StatusOf(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	netErr := &fetch.NetworkError{URL: "u", Err: errors.New("x")}

	tests := map[string]struct {
		results []Result
		want    int
	}{
		"empty": {
			results: nil,
			want:    0,
		},
		"all ok": {
			results: []Result{{}, {}},
			want:    0,
		},
		"user error": {
			results: []Result{{}, {Err: registry.ErrNotFound}},
			want:    1,
		},
		"network beats user": {
			results: []Result{{Err: registry.ErrNotFound}, {Err: netErr}, {}},
			want:    2,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := ExitCode(tc.results); got != tc.want {
				t.Errorf("ExitCode = %d, want %d", got, tc.want)
			}
		})
	}
}
