// Package registry resolves dataset metadata. Two implementations share
// one interface: a local filesystem tree of JSON descriptors, and a
// remote HTTP registry speaking the same logical operations.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/simkjels/datumhub-cli/pkg/config"
	"github.com/simkjels/datumhub-cli/pkg/model"
)

var (
	// ErrNotFound reports that a dataset or version is absent from the
	// registry.
	ErrNotFound = errors.New("dataset not found in the registry")

	// ErrExists reports that a version is already published and
	// overwrite was not requested.
	ErrExists = errors.New("dataset version already published")

	// ErrUnauthorized reports missing or rejected credentials.
	ErrUnauthorized = errors.New("not authenticated: run `datum login`")
)

// UnreachableError wraps a transport failure talking to a remote
// registry. It maps to the network-error exit code, distinct from
// user errors like ErrNotFound.
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("registry %s unreachable: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Registry is the metadata resolver consumed by the pull and update
// pipelines. Returned descriptors are immutable: callers never modify
// them.
type Registry interface {
	// Get resolves an exact dataset version. Returns ErrNotFound when
	// absent.
	Get(ctx context.Context, id, version string) (*model.DataPackage, error)

	// Latest resolves the newest published version of a dataset.
	// Returns ErrNotFound when the dataset has no published versions.
	Latest(ctx context.Context, id string) (*model.DataPackage, error)

	// List returns all published packages, optionally filtered by a
	// search query.
	List(ctx context.Context, query string) ([]*model.DataPackage, error)

	// Suggest returns up to three dataset IDs close to key, for error
	// messages only. It never fails: an unreachable registry yields nil.
	Suggest(ctx context.Context, key string) []string

	// Publish stores a package descriptor. Returns ErrExists when the
	// version is already published and overwrite is false.
	Publish(ctx context.Context, pkg *model.DataPackage, overwrite bool) error

	// Unpublish removes one published version. The bool reports whether
	// anything was removed.
	Unpublish(ctx context.Context, id, version string) (bool, error)
}

// IsRemoteURL reports whether a registry setting names a remote HTTP
// registry rather than a local path.
func IsRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// New selects a registry from the resolved settings: an http(s) URL
// yields a remote registry (with credentials from cfg), anything else a
// local one rooted at the given path, defaulting to ~/.datum/registry.
func New(settings *config.Settings, cfg *config.Config) (Registry, error) {
	if IsRemoteURL(settings.Registry) {
		return NewRemote(settings.Registry, cfg), nil
	}
	root := settings.Registry
	if root == "" {
		var err error
		root, err = config.DefaultRegistryPath()
		if err != nil {
			return nil, err
		}
	}
	return NewLocal(root), nil
}
