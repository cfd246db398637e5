// Package pull implements the dataset retrieval pipeline: tiered source
// resolution against destination and cache, streamed transfers with
// integrity verification, and an all-or-nothing staged commit into the
// destination directory.
package pull

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/simkjels/datumhub-cli/pkg/cache"
	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/fetch"
	"github.com/simkjels/datumhub-cli/pkg/model"
)

const (
	minParallelism = 1
	maxParallelism = 8
)

// Options configures one pull operation. It is threaded explicitly into
// Pull; the pipeline reads no global state.
type Options struct {
	// Force re-fetches every source from the network, bypassing both
	// the destination and the cache.
	Force bool

	// Parallelism bounds concurrent transfers, clamped to [1, 8].
	// 1 selects the serial path: files transfer in declared source
	// order.
	Parallelism int

	// Dest overrides the destination directory. Empty means
	// <dest root>/<dataset slug>.
	Dest string
}

// Puller drives pulls against one cache and one shared fetcher. The
// fetcher's connection pool is reused across every transfer of a pull.
type Puller struct {
	Cache    *cache.Cache
	Fetcher  *fetch.Fetcher
	DestRoot string
	Printer  *console.Printer
}

// transfer is one file's worth of work after tier classification.
type transfer struct {
	source    model.Source
	filename  string
	cachePath string
	stagePath string
	destPath  string
}

// Pull obtains every source of pkg, returning the final destination
// paths in declared source order. Either every file lands in the
// destination directory or none do: files are staged in a scratch
// directory and promoted only after the full set has been resolved.
// Files already present in the destination (and not forced) are left
// untouched and counted as obtained.
func (p *Puller) Pull(ctx context.Context, pkg *model.DataPackage, opts Options) ([]string, error) {
	parallelism := clampParallelism(opts.Parallelism)

	destDir := opts.Dest
	if destDir == "" {
		destDir = filepath.Join(p.DestRoot, pkg.DatasetSlug())
	}

	if err := p.Cache.EnsureVersionDir(pkg.ID, pkg.Version); err != nil {
		return nil, err
	}

	staging, cleanup, err := p.Cache.NewStaging()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	// Tier 1/2 resolution runs synchronously: it is local I/O and
	// digest work, not worth overlapping with network latency.
	var (
		pending []*transfer // Tier 3: needs the network
		staged  []*transfer // everything to promote at commit
		finals  = make([]string, len(pkg.Sources))
	)
	for i, src := range pkg.Sources {
		name := SourceFilename(src, i)
		t := &transfer{
			source:    src,
			filename:  name,
			cachePath: p.Cache.FilePath(pkg.ID, pkg.Version, name),
			stagePath: filepath.Join(staging, name),
			destPath:  filepath.Join(destDir, name),
		}
		finals[i] = t.destPath

		if !opts.Force {
			if fileExists(t.destPath) {
				p.Printer.Mutedf("skipped  %s", name)
				continue
			}
			if fileExists(t.cachePath) && p.cacheHit(t) {
				if err := copyFile(t.cachePath, t.stagePath); err != nil {
					return nil, err
				}
				p.Printer.Mutedf("cached  %s", name)
				staged = append(staged, t)
				continue
			}
		}

		pending = append(pending, t)
		staged = append(staged, t)
	}

	if err := p.runTransfers(ctx, pending, parallelism); err != nil {
		return nil, err
	}

	// Commit: every source resolved, promote the staged set.
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", destDir, err)
	}
	if err := commitStaged(staged); err != nil {
		return nil, err
	}

	return finals, nil
}

// cacheHit re-validates a cache file against its integrity token and
// reports whether it can be served. Sources without a token are
// trusted. A corrupt cache file is deleted so the caller falls through
// to a network fetch; the corruption is never surfaced as an error.
func (p *Puller) cacheHit(t *transfer) bool {
	if t.source.Checksum == "" {
		return true
	}
	if err := fetch.VerifyFile(t.cachePath, t.source.Checksum); err != nil {
		p.Printer.Verbosef("cache entry %s failed re-validation, re-fetching: %v\n", t.filename, err)
		os.Remove(t.cachePath)
		return false
	}
	return true
}

// runTransfers executes the Tier 3 set. Serial mode preserves declared
// source order; parallel mode bounds concurrency with an errgroup limit
// and cancels siblings on the first failure. Either way the first
// encountered error is surfaced and nothing is committed.
func (p *Puller) runTransfers(ctx context.Context, pending []*transfer, parallelism int) error {
	if len(pending) == 0 {
		return nil
	}

	if parallelism == 1 {
		for _, t := range pending {
			if err := p.fetchOne(ctx, t); err != nil {
				return err
			}
			p.Printer.Printf("  fetched  %s\n", t.filename)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, t := range pending {
		g.Go(func() error {
			return p.fetchOne(gctx, t)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, t := range pending {
		p.Printer.Printf("  fetched  %s\n", t.filename)
	}
	return nil
}

// fetchOne downloads into the cache, then stages a copy. The cache file
// becomes the durable copy for future pulls; the staged copy is what
// gets promoted.
func (p *Puller) fetchOne(ctx context.Context, t *transfer) error {
	if err := p.Fetcher.Download(ctx, t.source.URL, t.cachePath, t.source.Checksum); err != nil {
		return err
	}
	return copyFile(t.cachePath, t.stagePath)
}

// SourceFilename derives the target filename for a source: the final
// path segment of its URL, or a synthesized source_<index>.<format>
// name when the URL has no usable path. Dot segments are never usable:
// filenames join into the cache and staging trees, so "." or ".." would
// collide with or escape them.
func SourceFilename(src model.Source, index int) string {
	if u, err := url.Parse(src.URL); err == nil {
		trimmed := strings.TrimRight(u.Path, "/")
		if i := strings.LastIndex(trimmed, "/"); i >= 0 {
			trimmed = trimmed[i+1:]
		}
		if trimmed != "" && trimmed != "." && trimmed != ".." {
			return trimmed
		}
	}
	return fmt.Sprintf("source_%d.%s", index, src.Format)
}

func clampParallelism(n int) int {
	if n < minParallelism {
		return minParallelism
	}
	if n > maxParallelism {
		return maxParallelism
	}
	return n
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
