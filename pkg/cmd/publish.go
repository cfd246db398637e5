package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/registry"
)

func newPublishCmd() *cobra.Command {
	var (
		file      string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a dataset descriptor to the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := findDescriptor(file)
			if err != nil {
				printer.Errorf("%s", err)
				return exitWithCode(1)
			}
			pkg, err := loadDescriptor(path)
			if err != nil {
				printer.Errorf("%s", err)
				return exitWithCode(1)
			}

			if problems := pkg.Problems(); len(problems) > 0 {
				printer.Errorf("%s has %d problem(s); fix them before publishing:", path, len(problems))
				for _, p := range problems {
					printer.Printf("  %s %s  %s\n", console.Cross(), console.Bold(p.Field), p.Message)
				}
				return exitWithCode(1)
			}

			reg, err := registry.New(Settings, Cfg)
			if err != nil {
				return err
			}

			err = reg.Publish(cmd.Context(), pkg, overwrite)
			if err != nil {
				switch {
				case errors.Is(err, registry.ErrExists):
					printer.Errorf("%s is already published.\n\n  Pass %s to replace it.",
						console.Bold(pkg.ID+"@"+pkg.Version), console.Bold("--force"))
					return exitWithCode(1)
				case errors.Is(err, registry.ErrUnauthorized):
					printer.Errorf("%s", err)
					return exitWithCode(1)
				default:
					return renderRegistryError(err)
				}
			}

			if printer.Format == console.FormatJSON {
				printer.JSON(map[string]any{
					"published": true,
					"id":        pkg.ID,
					"version":   pkg.Version,
				})
				return nil
			}
			printer.Printf("\n")
			printer.Successf("Published  %s  %s", console.Muted("·"),
				console.Bold(pkg.ID+"@"+pkg.Version))
			printer.Printf("\n")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "descriptor path (default datapackage.json)")
	cmd.Flags().BoolVarP(&overwrite, "force", "f", false, "replace an already published version")

	return cmd
}

func newUnpublishCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "unpublish <publisher/namespace/dataset:version>",
		Short: "Remove one published version from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, version := parseExplicitVersion(args[0])
			if key == "" {
				return exitWithCode(1)
			}

			reg, err := registry.New(Settings, Cfg)
			if err != nil {
				return err
			}

			if !yes && printer.Prose() {
				confirmed, err := confirmPrompt("Unpublish " + key + ":" + version + "?")
				if err != nil {
					return err
				}
				if !confirmed {
					printer.Mutedf("Aborted.")
					return nil
				}
			}

			removed, err := reg.Unpublish(cmd.Context(), key, version)
			if err != nil {
				if errors.Is(err, registry.ErrUnauthorized) {
					printer.Errorf("%s", err)
					return exitWithCode(1)
				}
				return renderRegistryError(err)
			}

			if printer.Format == console.FormatJSON {
				printer.JSON(map[string]any{
					"unpublished": removed,
					"id":          key,
					"version":     version,
				})
				if !removed {
					return exitWithCode(1)
				}
				return nil
			}

			if !removed {
				printer.Errorf("%s is not published.", console.Bold(key+":"+version))
				return exitWithCode(1)
			}
			printer.Printf("\n")
			printer.Successf("Unpublished  %s  %s", console.Muted("·"),
				console.Bold(key+"@"+version))
			printer.Printf("\n")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")

	return cmd
}
