package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simkjels/datumhub-cli/pkg/cache"
	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/model"
	"github.com/simkjels/datumhub-cli/pkg/pull"
	"github.com/simkjels/datumhub-cli/pkg/registry"
	"github.com/simkjels/datumhub-cli/pkg/update"
)

func newUpdateCmd() *cobra.Command {
	var (
		force bool
		check bool
	)

	cmd := &cobra.Command{
		Use:   "update [identifier]",
		Short: "Pull the latest version of one or all cached datasets",
		Long: `Pull the latest version of one or all cached datasets.

With no argument, checks every dataset in the local cache and pulls any
that have a newer version published in the registry.

Exit codes: 0 always (nothing to update is not an error)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			reg, err := registry.New(Settings, Cfg)
			if err != nil {
				return err
			}
			c, err := cache.Default()
			if err != nil {
				return err
			}
			puller, err := newPuller()
			if err != nil {
				return err
			}
			scanner := &update.Scanner{Cache: c, Registry: reg, Puller: puller}

			var ids []string
			if len(args) == 1 {
				key, _ := model.ParseIdentifier(args[0])
				if !model.ValidKey(key) {
					printer.Errorf("Invalid identifier: %s", console.Bold(key))
					if printer.Format == console.FormatJSON {
						printer.JSON(map[string]any{"error": fmt.Sprintf("invalid identifier: %q", key)})
					}
					return exitWithCode(1)
				}
				ids = []string{key}
			} else {
				ids, err = scanner.CachedIDs()
				if err != nil {
					return err
				}
			}

			if len(ids) == 0 {
				if printer.Format == console.FormatJSON {
					printer.JSON(map[string]any{"updated": []any{}, "message": "Nothing cached yet."})
				} else {
					printer.Mutedf("Nothing cached yet.")
				}
				return nil
			}

			candidates, err := scanner.Plan(ctx, ids, force)
			if err != nil {
				return err
			}

			if len(candidates) == 0 {
				if printer.Format == console.FormatJSON {
					printer.JSON(map[string]any{"updated": []any{}, "message": "No registry entries found for cached datasets."})
				} else {
					printer.Mutedf("No registry entries found.")
				}
				return nil
			}

			var stale []update.Candidate
			for _, c := range candidates {
				if c.Stale {
					stale = append(stale, c)
				}
			}

			if len(stale) == 0 {
				reportAllCurrent(candidates)
				return nil
			}

			if check {
				reportDryRun(stale)
				return nil
			}

			outcomes := scanner.Apply(ctx, stale, pull.Options{
				Force:       force,
				Parallelism: Settings.Parallelism,
			})
			reportOutcomes(outcomes)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-download even if already at latest version")
	cmd.Flags().BoolVar(&check, "check", false, "show what would be updated without downloading")

	return cmd
}

func reportAllCurrent(candidates []update.Candidate) {
	if printer.Format == console.FormatJSON {
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		printer.JSON(map[string]any{"updated": []any{}, "already_latest": ids})
		return
	}
	printer.Printf("\n")
	if len(candidates) == 1 {
		printer.Successf("%s is already at the latest version (%s).",
			console.Bold(candidates[0].ID), console.Bold(candidates[0].Latest))
	} else {
		printer.Successf("All %d datasets are up to date.", len(candidates))
	}
	printer.Printf("\n")
}

func reportDryRun(stale []update.Candidate) {
	if printer.Format == console.FormatJSON {
		items := make([]map[string]any, len(stale))
		for i, c := range stale {
			items[i] = map[string]any{"id": c.ID, "from": c.Current, "to": c.Latest}
		}
		printer.JSON(map[string]any{"would_update": items})
		return
	}
	printer.Printf("\n  %s dataset(s) would be updated:\n\n", console.Bold(fmt.Sprint(len(stale))))
	for _, c := range stale {
		printer.Printf("    %s  %s\n", c.ID, console.Muted(transitionLabel(c.Current, c.Latest)))
	}
	printer.Printf("\n")
}

func reportOutcomes(outcomes []update.Outcome) {
	var updated []map[string]any
	for _, o := range outcomes {
		if o.Err == nil {
			updated = append(updated, map[string]any{"id": o.ID, "from": o.From, "to": o.To})
			printer.Successf("Updated %s  %s", console.Bold(o.ID), console.Muted(transitionLabel(o.From, o.To)))
		} else {
			printer.Errorf("Updating %s failed: %v", console.Bold(o.ID), o.Err)
		}
	}
	if printer.Format == console.FormatJSON {
		if updated == nil {
			updated = []map[string]any{}
		}
		printer.JSON(map[string]any{"updated": updated})
	}
}

func transitionLabel(from, to string) string {
	if from != "" && from != to {
		return from + " → " + to
	}
	return to
}
