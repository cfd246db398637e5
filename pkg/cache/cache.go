// Package cache manages the local dataset cache, a directory tree laid
// out as <root>/<publisher>/<namespace>/<dataset>/<version>/<filename>.
// The layout is stable: existing caches must remain readable across
// versions of the tool.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/simkjels/datumhub-cli/pkg/model"
)

const (
	dirPerm = 0o755

	// stagingDirName holds per-pull scratch directories. It lives inside
	// the cache root so staged files share a filesystem with the cache,
	// and is skipped by every scan.
	stagingDirName = ".staging"
)

// Cache is a dataset cache rooted at a directory.
type Cache struct {
	root string
}

// New returns a Cache rooted at root. The directory is created lazily.
func New(root string) *Cache {
	return &Cache{root: root}
}

// Default returns the cache at ~/.datum/cache.
func Default() (*Cache, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}
	return New(filepath.Join(home, ".datum", "cache")), nil
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// VersionDir returns the directory holding the cached files for one
// exact dataset version. key must be a valid publisher/namespace/dataset
// key.
func (c *Cache) VersionDir(key, version string) string {
	segs := strings.SplitN(key, "/", 3)
	return filepath.Join(append([]string{c.root}, append(segs, version)...)...)
}

// FilePath returns the cache path for one file of a dataset version.
func (c *Cache) FilePath(key, version, filename string) string {
	return filepath.Join(c.VersionDir(key, version), filename)
}

// EnsureVersionDir creates the version directory, including parents.
func (c *Cache) EnsureVersionDir(key, version string) error {
	if err := os.MkdirAll(c.VersionDir(key, version), dirPerm); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	return nil
}

// DatasetIDs returns every unique publisher/namespace/dataset key that
// has at least one version directory in the cache, sorted.
func (c *Cache) DatasetIDs() ([]string, error) {
	var ids []string
	err := c.walkVersions(func(key, version string, files []string) {
		if len(ids) == 0 || ids[len(ids)-1] != key {
			ids = append(ids, key)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return dedupe(ids), nil
}

// Versions returns the cached versions for key, ascending by the
// version-ordering comparator (newest last). Missing datasets yield an
// empty slice.
func (c *Cache) Versions(key string) ([]string, error) {
	segs := strings.SplitN(key, "/", 3)
	dir := filepath.Join(append([]string{c.root}, segs...)...)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	return model.SortVersions(versions), nil
}

// Entry describes one cached dataset version.
type Entry struct {
	ID      string
	Version string
	Files   []string
}

// Size returns the total byte size of the entry's files.
func (e Entry) Size() int64 {
	var n int64
	for _, f := range e.Files {
		if info, err := os.Stat(f); err == nil {
			n += info.Size()
		}
	}
	return n
}

// Scan walks the cache and returns one entry per dataset version, in
// path order. An absent cache root yields no entries.
func (c *Cache) Scan() ([]Entry, error) {
	var entries []Entry
	err := c.walkVersions(func(key, version string, files []string) {
		entries = append(entries, Entry{ID: key, Version: version, Files: files})
	})
	return entries, err
}

// walkVersions visits every version directory as (key, version, files).
// Dot-directories (the staging area) are skipped at the top level.
func (c *Cache) walkVersions(visit func(key, version string, files []string)) error {
	pubs, err := os.ReadDir(c.root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cache root: %w", err)
	}
	for _, pub := range pubs {
		if !pub.IsDir() || strings.HasPrefix(pub.Name(), ".") {
			continue
		}
		nss, err := os.ReadDir(filepath.Join(c.root, pub.Name()))
		if err != nil {
			continue
		}
		for _, ns := range nss {
			if !ns.IsDir() {
				continue
			}
			dss, err := os.ReadDir(filepath.Join(c.root, pub.Name(), ns.Name()))
			if err != nil {
				continue
			}
			for _, ds := range dss {
				if !ds.IsDir() {
					continue
				}
				key := pub.Name() + "/" + ns.Name() + "/" + ds.Name()
				verDir := filepath.Join(c.root, pub.Name(), ns.Name(), ds.Name())
				vers, err := os.ReadDir(verDir)
				if err != nil {
					continue
				}
				for _, ver := range vers {
					if !ver.IsDir() {
						continue
					}
					dir := filepath.Join(verDir, ver.Name())
					var files []string
					if fs, err := os.ReadDir(dir); err == nil {
						for _, f := range fs {
							if !f.IsDir() {
								files = append(files, filepath.Join(dir, f.Name()))
							}
						}
					}
					visit(key, ver.Name(), files)
				}
			}
		}
	}
	return nil
}

// Clear removes the entire cache tree.
func (c *Cache) Clear() error {
	if err := os.RemoveAll(c.root); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// NewStaging allocates a scratch directory for one pull operation,
// inside the cache root so a staged file and its cache copy share a
// filesystem. The cleanup func removes the directory and is safe to
// call on every exit path.
func (c *Cache) NewStaging() (dir string, cleanup func(), err error) {
	parent := filepath.Join(c.root, stagingDirName)
	if err := os.MkdirAll(parent, dirPerm); err != nil {
		return "", nil, fmt.Errorf("creating staging area: %w", err)
	}
	dir, err = os.MkdirTemp(parent, "pull-")
	if err != nil {
		return "", nil, fmt.Errorf("creating staging area: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || sorted[i-1] != s {
			out = append(out, s)
		}
	}
	return out
}
