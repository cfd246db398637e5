package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simkjels/datumhub-cli/pkg/cache"
	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/fetch"
	"github.com/simkjels/datumhub-cli/pkg/model"
	"github.com/simkjels/datumhub-cli/pkg/pull"
	"github.com/simkjels/datumhub-cli/pkg/registry"
)

func newPullCmd() *cobra.Command {
	var (
		force    bool
		parallel int
		dest     string
	)

	cmd := &cobra.Command{
		Use:   "pull <identifier>...",
		Short: "Download datasets by identifier and verify their checksums",
		Long: `Download one or more datasets, verify checksums, and cache locally.

IDENTIFIER format: publisher/namespace/dataset:version
Omit :version to resolve the latest published version.

Exit codes: 0 success · 1 not found / bad identifier / checksum fail · 2 network error`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.New(Settings, Cfg)
			if err != nil {
				return err
			}
			puller, err := newPuller()
			if err != nil {
				return err
			}
			opts := pull.Options{Force: force, Parallelism: parallel, Dest: dest}

			results := make([]pull.Result, 0, len(args))
			for _, identifier := range args {
				results = append(results, pullOne(cmd.Context(), reg, puller, identifier, opts))
			}

			emitPullJSON(results)

			if code := pull.ExitCode(results); code != 0 {
				return exitWithCode(code)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-download even if already cached")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "concurrent transfers (1-8, default from config)")
	cmd.Flags().StringVar(&dest, "dest", "", "destination directory (default ./<dataset-slug>)")

	return cmd
}

// newPuller assembles the pull pipeline for the current invocation: one
// cache, one fetcher shared by every transfer, destination rooted at
// the working directory.
func newPuller() (*pull.Puller, error) {
	c, err := cache.Default()
	if err != nil {
		return nil, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return &pull.Puller{
		Cache:    c,
		Fetcher:  fetch.New(),
		DestRoot: wd,
		Printer:  printer,
	}, nil
}

// pullOne resolves and pulls a single identifier, rendering prose
// output as it goes. Every outcome is captured in the Result so batch
// reporting and exit codes work uniformly.
func pullOne(ctx context.Context, reg registry.Registry, puller *pull.Puller, identifier string, opts pull.Options) pull.Result {
	res := pull.Result{Identifier: identifier}
	if opts.Parallelism == 0 {
		opts.Parallelism = Settings.Parallelism
	}

	key, version := model.ParseIdentifier(identifier)
	if version == "" {
		version = "latest"
	}

	if !model.ValidKey(key) {
		res.Err = fmt.Errorf("invalid identifier format: %q", key)
		printer.Errorf("Invalid identifier: %s\n\n  Expected %s (three slash-separated slugs of lowercase letters, digits, and hyphens, e.g. met-no/weather/oslo-hourly)",
			console.Bold(key), console.Bold("publisher/namespace/dataset"))
		return res
	}

	var (
		pkg *model.DataPackage
		err error
	)
	if version == "latest" {
		pkg, err = reg.Latest(ctx, key)
	} else {
		pkg, err = reg.Get(ctx, key, version)
	}
	if err != nil {
		res.Err = err
		if errors.Is(err, registry.ErrNotFound) {
			label := key + ":" + version
			msg := fmt.Sprintf("Dataset %s not found in the registry.\n", console.Bold(label))
			if suggestions := reg.Suggest(ctx, key); len(suggestions) > 0 {
				msg += "\n  Did you mean?\n"
				for _, s := range suggestions {
					msg += "    " + s + "\n"
				}
			} else {
				msg += "\n  Use " + console.Bold("datum publish") + " to add it first."
			}
			printer.Errorf("%s", msg)
		} else {
			printer.Errorf("%v", err)
		}
		return res
	}

	res.ID, res.Version = pkg.ID, pkg.Version
	printer.Verbosef("resolved %s@%s (%d source(s))\n", pkg.ID, pkg.Version, len(pkg.Sources))

	files, err := puller.Pull(ctx, pkg, opts)
	if err != nil {
		res.Err = err
		renderPullError(pkg, err)
		return res
	}

	res.Files = files
	printer.Printf("\n")
	printer.Successf("Downloaded  %s  %s",
		console.Muted("·"), console.Bold(pkg.ID+"@"+pkg.Version))
	for _, f := range files {
		printer.Printf("  %s\n", f)
	}
	printer.Printf("\n")
	return res
}

func renderPullError(pkg *model.DataPackage, err error) {
	var integrity *fetch.IntegrityError
	var network *fetch.NetworkError
	switch {
	case errors.As(err, &integrity):
		printer.Errorf("Checksum mismatch for %s.\n\n  Expected:  %s\n  Got:       %s",
			console.Bold(integrity.Filename), integrity.Expected, integrity.Actual)
	case errors.As(err, &network):
		printer.Errorf("Network error downloading %s:\n  %v", console.Bold(network.URL), network.Err)
	default:
		printer.Errorf("Pulling %s failed: %v", console.Bold(pkg.ID+"@"+pkg.Version), err)
	}
}

// emitPullJSON renders the machine payload: a single object for one
// identifier, or an aggregate keyed by identifier for a batch.
func emitPullJSON(results []pull.Result) {
	if printer.Format != console.FormatJSON {
		return
	}
	if len(results) == 1 {
		printer.JSON(pullPayload(results[0]))
		return
	}
	batch := make(map[string]any, len(results))
	for _, r := range results {
		batch[r.Identifier] = pullPayload(r)
	}
	printer.JSON(batch)
}

func pullPayload(r pull.Result) map[string]any {
	payload := map[string]any{"downloaded": r.Err == nil}
	if r.ID != "" {
		payload["id"] = r.ID
	}
	if r.Version != "" {
		payload["version"] = r.Version
	}
	if r.Files != nil {
		payload["files"] = r.Files
	}
	if r.Err != nil {
		payload["error"] = strings.TrimSpace(r.Err.Error())
	}
	return payload
}
