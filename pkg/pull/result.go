package pull

import (
	"errors"

	"github.com/simkjels/datumhub-cli/pkg/fetch"
	"github.com/simkjels/datumhub-cli/pkg/registry"
)

// Status classifies a per-dataset outcome. Values double as process
// exit codes.
type Status int

const (
	StatusOK Status = 0

	// StatusUserError covers malformed identifiers, not-found datasets,
	// and integrity failures: the deliverable is wrong, not the
	// infrastructure.
	StatusUserError Status = 1

	// StatusNetworkError covers transport failures and unreachable
	// registries.
	StatusNetworkError Status = 2
)

// StatusOf maps an error to its outcome class.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var netErr *fetch.NetworkError
	var regErr *registry.UnreachableError
	if errors.As(err, &netErr) || errors.As(err, &regErr) {
		return StatusNetworkError
	}
	return StatusUserError
}

// Result is the per-dataset outcome reported to the CLI layer.
type Result struct {
	Identifier string
	ID         string
	Version    string
	Files      []string
	Err        error
}

// Status returns the result's outcome class.
func (r Result) Status() Status { return StatusOf(r.Err) }

// ExitCode returns the highest-severity status among results: 0 when
// every dataset succeeded, otherwise the worst failure's code.
func ExitCode(results []Result) int {
	code := 0
	for _, r := range results {
		if c := int(r.Status()); c > code {
			code = c
		}
	}
	return code
}
