package cmd

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/model"
	"github.com/simkjels/datumhub-cli/pkg/pull"
	"github.com/simkjels/datumhub-cli/pkg/registry"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <identifier>",
		Short: "Show metadata for a dataset version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, version := model.ParseIdentifier(args[0])
			if version == "" {
				version = "latest"
			}
			if !model.ValidKey(key) {
				printer.Errorf("Invalid identifier: %s\n\n  Expected %s",
					console.Bold(key), console.Bold("publisher/namespace/dataset[:version]"))
				return exitWithCode(int(pull.StatusUserError))
			}

			reg, err := registry.New(Settings, Cfg)
			if err != nil {
				return err
			}

			var pkg *model.DataPackage
			if version == "latest" {
				pkg, err = reg.Latest(cmd.Context(), key)
			} else {
				pkg, err = reg.Get(cmd.Context(), key, version)
			}
			if err != nil {
				if errors.Is(err, registry.ErrNotFound) {
					msg := fmt.Sprintf("Dataset %s not found in the registry.\n",
						console.Bold(key+":"+version))
					if suggestions := reg.Suggest(cmd.Context(), key); len(suggestions) > 0 {
						msg += "\n  Did you mean?\n"
						for _, s := range suggestions {
							msg += "    " + s + "\n"
						}
					}
					printer.Errorf("%s", msg)
					return exitWithCode(int(pull.StatusUserError))
				}
				return renderRegistryError(err)
			}

			if printer.Format == console.FormatJSON {
				printer.JSON(pkg)
				return nil
			}
			renderPackageInfo(pkg)
			return nil
		},
	}
}

func renderPackageInfo(pkg *model.DataPackage) {
	printer.Printf("\n  %s  %s\n", console.Bold(pkg.ID), console.Muted("@"+pkg.Version))
	if pkg.Title != "" {
		printer.Printf("  %s\n", pkg.Title)
	}
	printer.Printf("\n")

	row := func(label, value string) {
		if value != "" {
			printer.Printf("  %-12s %s\n", label, value)
		}
	}
	row("Publisher:", pkg.Publisher.Name)
	row("URL:", pkg.Publisher.URL)
	row("License:", pkg.License)
	row("Created:", pkg.Created)
	row("Updated:", pkg.Updated)
	if len(pkg.Tags) > 0 {
		tags := ""
		for i, t := range pkg.Tags {
			if i > 0 {
				tags += ", "
			}
			tags += t
		}
		row("Tags:", tags)
	}

	printer.Printf("\n  %s\n", console.Bold(fmt.Sprintf("Sources (%d)", len(pkg.Sources))))
	for i, src := range pkg.Sources {
		size := console.Muted("size unknown")
		if src.Size != nil {
			size = humanize.Bytes(uint64(*src.Size))
		}
		checksum := console.Muted("no checksum")
		if src.Checksum != "" {
			checksum = src.Checksum
			if len(checksum) > 24 {
				checksum = checksum[:24] + "..."
			}
		}
		printer.Printf("  %d. %s  %s  %s\n", i+1, src.URL, size, checksum)
	}

	if pkg.Description != "" {
		printer.Printf("\n  %s\n", pkg.Description)
	}
	printer.Printf("\n")
}
