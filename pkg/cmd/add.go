package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/fetch"
	"github.com/simkjels/datumhub-cli/pkg/model"
)

func newAddCmd() *cobra.Command {
	var (
		file       string
		format     string
		noChecksum bool
		crawl      bool
		filter     string
	)

	cmd := &cobra.Command{
		Use:   "add <url>...",
		Short: "Add source URLs to a dataset descriptor",
		Long: `Add one or more source URLs to a datapackage.json.

Each file is streamed to compute its sha256 checksum and byte size.
With --crawl the URL is treated as a directory index and every data
file it lists is added.

Run from the dataset directory, or use --file to point at a specific
descriptor.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveDescriptorForAdd(file)
			if err != nil {
				printer.Errorf("%s\n\n  Run %s to create one.", err, console.Bold("datum init"))
				return exitWithCode(1)
			}
			pkg, err := loadDescriptor(path)
			if err != nil {
				printer.Errorf("%s", err)
				return exitWithCode(2)
			}

			fetcher := fetch.New()
			targets := args
			if crawl {
				targets, err = crawlTargets(cmd.Context(), fetcher, args, filter)
				if err != nil {
					return err
				}
			}

			existing := make(map[string]bool, len(pkg.Sources))
			for _, src := range pkg.Sources {
				existing[src.URL] = true
			}
			var fresh []string
			for _, u := range targets {
				if !existing[u] {
					fresh = append(fresh, u)
				}
			}
			skipped := len(targets) - len(fresh)

			if len(fresh) == 0 {
				if printer.Format == console.FormatJSON {
					printer.JSON(map[string]any{"added": 0, "skipped": skipped})
					return nil
				}
				printer.Mutedf("All URLs are already in sources; nothing to add.")
				return nil
			}

			added, failed := resolveSources(cmd.Context(), fetcher, fresh, format, noChecksum)
			if len(added) == 0 {
				if printer.Format == console.FormatJSON {
					printer.JSON(map[string]any{"added": 0, "skipped": skipped, "failed": failed})
				}
				return exitWithCode(2)
			}

			pkg.Sources = append(pkg.Sources, added...)
			if err := writeDescriptor(path, pkg); err != nil {
				return err
			}

			if printer.Format == console.FormatJSON {
				printer.JSON(map[string]any{
					"added":   len(added),
					"skipped": skipped,
					"failed":  len(failed),
					"sources": added,
				})
				return nil
			}

			printer.Printf("\n")
			printer.Successf("Added %s source(s) to %s",
				console.Bold(fmt.Sprint(len(added))), console.Bold(filepath.Base(path)))
			if skipped > 0 {
				printer.Mutedf("%d already present", skipped)
			}
			if len(failed) > 0 {
				printer.Warnf("%d URL(s) failed, see errors above", len(failed))
			}
			printer.Printf("\n")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to the descriptor (default: nearest datapackage.json)")
	cmd.Flags().StringVar(&format, "format", "", "override the detected file format (e.g. csv, parquet)")
	cmd.Flags().BoolVar(&noChecksum, "no-checksum", false, "skip checksum computation")
	cmd.Flags().BoolVar(&crawl, "crawl", false, "treat the URL as a directory index and discover data files")
	cmd.Flags().StringVar(&filter, "filter", "", "glob pattern narrowing crawled filenames (e.g. '*.csv')")

	return cmd
}

// resolveDescriptorForAdd returns the explicit descriptor path, or walks
// up from the working directory to the nearest datapackage.json.
func resolveDescriptorForAdd(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("descriptor %s: %w", explicit, err)
		}
		return explicit, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "datapackage.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no datapackage.json found in this directory or any parent")
		}
		dir = parent
	}
}

// crawlTargets expands a single directory-index URL into the data file
// URLs it lists.
func crawlTargets(ctx context.Context, fetcher *fetch.Fetcher, args []string, filter string) ([]string, error) {
	if len(args) != 1 {
		printer.Errorf("--crawl requires exactly one URL.")
		return nil, exitWithCode(1)
	}
	printer.Printf("\n  Crawling %s ...\n", console.Bold(args[0]))
	targets, err := fetcher.Crawl(ctx, args[0], filter)
	if err != nil {
		printer.Errorf("Could not crawl %s: %v", console.Bold(args[0]), err)
		return nil, exitWithCode(2)
	}
	if len(targets) == 0 {
		printer.Errorf("No data files found at %s.\n\n  Check the URL or narrow with %s.",
			console.Bold(args[0]), console.Bold("--filter '*.csv'"))
		return nil, exitWithCode(1)
	}
	printer.Printf("  Found %s file(s)\n", console.Bold(fmt.Sprint(len(targets))))
	return targets, nil
}

// resolveSources builds a Source per URL. Unless checksums are skipped,
// each file is streamed once to compute its sha256 digest and size;
// with --no-checksum only a HEAD request for the size is attempted,
// best effort. URLs that cannot be reached are reported and skipped.
func resolveSources(ctx context.Context, fetcher *fetch.Fetcher, urls []string, format string, noChecksum bool) (added []model.Source, failed []string) {
	for _, u := range urls {
		src := model.Source{URL: u, Format: strings.ToLower(strings.TrimSpace(format))}
		if src.Format == "" {
			src.Format = fetch.FormatOf(u)
		}

		if noChecksum {
			if size, err := fetcher.ContentLength(ctx, u); err == nil && size >= 0 {
				src.Size = &size
			}
			added = append(added, src)
			printer.Successf("%s  %s", filepath.Base(u), console.Muted("(no checksum)"))
			continue
		}

		token, size, err := fetcher.Digest(ctx, u)
		if err != nil {
			printer.Errorf("%v", err)
			failed = append(failed, u)
			continue
		}
		src.Checksum = token
		src.Size = &size
		added = append(added, src)
		printer.Successf("%s", filepath.Base(u))
	}
	return added, failed
}

// writeDescriptor rewrites a descriptor in the format its extension
// implies, matching how loadDescriptor reads it.
func writeDescriptor(path string, pkg *model.DataPackage) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(pkg)
	default:
		data, err = json.MarshalIndent(pkg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encoding descriptor: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing descriptor: %w", err)
	}
	return nil
}
