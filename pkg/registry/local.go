package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/simkjels/datumhub-cli/pkg/model"
)

// Local is a registry backed by a directory tree:
// <root>/<publisher>/<namespace>/<dataset>/<version>.json
type Local struct {
	root string
}

// NewLocal returns a local registry rooted at root.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Root returns the registry root directory.
func (l *Local) Root() string { return l.root }

func (l *Local) pkgPath(id, version string) string {
	segs := strings.SplitN(id, "/", 3)
	return filepath.Join(append([]string{l.root}, append(segs, version+".json")...)...)
}

func (l *Local) Get(ctx context.Context, id, version string) (*model.DataPackage, error) {
	pkg, err := readPackage(l.pkgPath(id, version))
	if err != nil {
		return nil, ErrNotFound
	}
	return pkg, nil
}

// Latest picks the highest version by the version-ordering comparator,
// skipping files that fail to parse. Modification times are never
// consulted: copying a registry tree must not change which version is
// latest.
func (l *Local) Latest(ctx context.Context, id string) (*model.DataPackage, error) {
	segs := strings.SplitN(id, "/", 3)
	dir := filepath.Join(append([]string{l.root}, segs...)...)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ErrNotFound
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			versions = append(versions, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	versions = model.SortVersions(versions)

	for i := len(versions) - 1; i >= 0; i-- {
		if pkg, err := readPackage(l.pkgPath(id, versions[i])); err == nil {
			return pkg, nil
		}
	}
	return nil, ErrNotFound
}

// List walks the tree in sorted path order, skipping descriptors that
// fail to parse or validate.
func (l *Local) List(ctx context.Context, query string) ([]*model.DataPackage, error) {
	var paths []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(path, ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("walking registry: %w", err)
	}
	sort.Strings(paths)

	var pkgs []*model.DataPackage
	for _, p := range paths {
		pkg, err := readPackage(p)
		if err != nil {
			continue
		}
		if query == "" || Matches(pkg, query) {
			pkgs = append(pkgs, pkg)
		}
	}
	return pkgs, nil
}

func (l *Local) Suggest(ctx context.Context, key string) []string {
	pkgs, err := l.List(ctx, "")
	if err != nil {
		return nil
	}
	ids := make(map[string]struct{}, len(pkgs))
	for _, p := range pkgs {
		ids[p.ID] = struct{}{}
	}
	all := make([]string, 0, len(ids))
	for id := range ids {
		all = append(all, id)
	}
	return closeMatches(key, all)
}

func (l *Local) Publish(ctx context.Context, pkg *model.DataPackage, overwrite bool) error {
	path := l.pkgPath(pkg.ID, pkg.Version)
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%s@%s: %w", pkg.ID, pkg.Version, ErrExists)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", pkg.ID, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (l *Local) Unpublish(ctx context.Context, id, version string) (bool, error) {
	path := l.pkgPath(id, version)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("removing %s: %w", path, err)
	}
	return true, nil
}

var _ Registry = &Local{}

func readPackage(path string) (*model.DataPackage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pkg := &model.DataPackage{}
	if err := json.Unmarshal(data, pkg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := pkg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor %s: %w", path, err)
	}
	return pkg, nil
}

// Matches reports whether pkg matches a case-insensitive keyword query
// against id, title, description, tags, and publisher name.
func Matches(pkg *model.DataPackage, query string) bool {
	q := strings.ToLower(query)
	fields := []string{
		pkg.ID,
		pkg.Title,
		pkg.Publisher.Name,
		pkg.Description,
		strings.Join(pkg.Tags, " "),
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
