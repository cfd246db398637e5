// Package update scans the cache for datasets with a newer version in
// the registry and drives the pull pipeline for any that are stale.
package update

import (
	"context"
	"errors"

	"github.com/simkjels/datumhub-cli/pkg/cache"
	"github.com/simkjels/datumhub-cli/pkg/pull"
	"github.com/simkjels/datumhub-cli/pkg/registry"
)

// Candidate is one cached dataset checked against the registry.
type Candidate struct {
	ID string

	// Current is the highest cached version by the version-ordering
	// comparator, or "" when nothing usable is cached.
	Current string

	// Latest is the registry's newest published version.
	Latest string

	// Stale reports whether a pull is needed: forced, or Latest absent
	// from the cached versions.
	Stale bool
}

// Outcome is the result of pulling one stale dataset.
type Outcome struct {
	ID   string
	From string
	To   string
	Err  error
}

// Scanner plans and applies updates.
type Scanner struct {
	Cache    *cache.Cache
	Registry registry.Registry
	Puller   *pull.Puller
}

// CachedIDs returns every dataset key present in the cache.
func (s *Scanner) CachedIDs() ([]string, error) {
	return s.Cache.DatasetIDs()
}

// Plan checks each id against the registry. Datasets absent from the
// registry are skipped silently: the registry may simply not have
// republished them. A candidate is stale when force is set or the
// registry's latest version is not among the cached versions.
// Comparison is by version identity against the cached set, never by
// file timestamps.
func (s *Scanner) Plan(ctx context.Context, ids []string, force bool) ([]Candidate, error) {
	var candidates []Candidate
	for _, id := range ids {
		latest, err := s.Registry.Latest(ctx, id)
		if errors.Is(err, registry.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		cached, err := s.Cache.Versions(id)
		if err != nil {
			return nil, err
		}
		var current string
		if len(cached) > 0 {
			current = cached[len(cached)-1]
		}

		candidates = append(candidates, Candidate{
			ID:      id,
			Current: current,
			Latest:  latest.Version,
			Stale:   force || !contains(cached, latest.Version),
		})
	}
	return candidates, nil
}

// Apply pulls every stale candidate pinned to its latest version,
// continuing past per-dataset failures: each dataset's outcome is
// independent and reported individually.
func (s *Scanner) Apply(ctx context.Context, candidates []Candidate, opts pull.Options) []Outcome {
	var outcomes []Outcome
	for _, c := range candidates {
		if !c.Stale {
			continue
		}
		outcome := Outcome{ID: c.ID, From: c.Current, To: c.Latest}

		pkg, err := s.Registry.Get(ctx, c.ID, c.Latest)
		if err != nil {
			outcome.Err = err
			outcomes = append(outcomes, outcome)
			continue
		}
		if _, err := s.Puller.Pull(ctx, pkg, opts); err != nil {
			outcome.Err = err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func contains(versions []string, v string) bool {
	for _, have := range versions {
		if have == v {
			return true
		}
	}
	return false
}
