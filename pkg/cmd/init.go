package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/model"
)

func newInitCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a datapackage.json descriptor interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "accept defaults without prompting")
	return cmd
}

func runInit(yes bool) error {
	if _, err := os.Stat("datapackage.json"); err == nil {
		printer.Errorf("datapackage.json already exists in this directory.")
		return exitWithCode(1)
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	slug := inferDatasetSlug(wd)

	pkg := &model.DataPackage{
		ID:      "publisher/namespace/" + slug,
		Version: "1.0.0",
		Title:   slug,
		License: "CC-BY-4.0",
		Sources: []model.Source{{Format: "csv"}},
	}

	if !yes {
		var sourceURL string
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Dataset identifier").
				Description("publisher/namespace/dataset").
				Value(&pkg.ID).
				Validate(func(s string) error {
					if !model.ValidKey(s) {
						return fmt.Errorf("expected three slash-separated slugs")
					}
					return nil
				}),
			huh.NewInput().Title("Version").Value(&pkg.Version),
			huh.NewInput().Title("Title").Value(&pkg.Title),
			huh.NewInput().Title("License").Value(&pkg.License),
			huh.NewInput().Title("Publisher name").Value(&pkg.Publisher.Name),
			huh.NewInput().
				Title("First source URL").
				Description("leave blank to fill in later").
				Value(&sourceURL),
		))
		if err := form.Run(); err != nil {
			return fmt.Errorf("prompt failed: %w", err)
		}
		pkg.Sources[0].URL = sourceURL
	}

	pkg.Created = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding descriptor: %w", err)
	}
	if err := os.WriteFile("datapackage.json", append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing descriptor: %w", err)
	}

	printer.Printf("\n")
	printer.Successf("Created %s", console.Bold("datapackage.json"))
	printer.Mutedf("Edit the source URLs, then run `datum check` to validate.")
	printer.Printf("\n")
	return nil
}

// inferDatasetSlug derives a dataset slug from the directory name,
// lowercasing and replacing anything outside [a-z0-9-].
func inferDatasetSlug(dir string) string {
	base := strings.ToLower(filepath.Base(dir))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "my-dataset"
	}
	return slug
}
