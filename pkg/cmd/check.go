package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/model"
)

// descriptorNames are probed in order when no explicit path is given.
var descriptorNames = []string{"datapackage.json", "datapackage.yaml", "datapackage.yml"}

// loadDescriptor reads and parses a dataset descriptor. YAML descriptors
// are converted through sigs.k8s.io/yaml so the same json-tagged struct
// serves both formats.
func loadDescriptor(path string) (*model.DataPackage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}

	var pkg model.DataPackage
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &pkg)
	default:
		err = json.Unmarshal(data, &pkg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &pkg, nil
}

// findDescriptor resolves an optional explicit path to a descriptor
// file, probing the default names in the working directory otherwise.
func findDescriptor(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("descriptor %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, name := range descriptorNames {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("no descriptor found (looked for %s)", strings.Join(descriptorNames, ", "))
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a dataset descriptor against the schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			explicit := ""
			if len(args) == 1 {
				explicit = args[0]
			}
			path, err := findDescriptor(explicit)
			if err != nil {
				printer.Errorf("%s", err)
				return exitWithCode(2)
			}
			pkg, err := loadDescriptor(path)
			if err != nil {
				printer.Errorf("%s", err)
				return exitWithCode(2)
			}

			problems := pkg.Problems()

			if printer.Format == console.FormatJSON {
				printer.JSON(map[string]any{
					"file":     path,
					"valid":    len(problems) == 0,
					"problems": problems,
				})
				if len(problems) > 0 {
					return exitWithCode(1)
				}
				return nil
			}

			if len(problems) == 0 {
				printer.Printf("\n")
				printer.Successf("%s is valid  %s", path,
					console.Muted(fmt.Sprintf("(%s@%s, %d source(s))",
						pkg.ID, pkg.Version, len(pkg.Sources))))
				printer.Printf("\n")
				return nil
			}

			printer.Printf("\n")
			printer.Errorf("%s has %d problem(s):", path, len(problems))
			for _, p := range problems {
				printer.Printf("  %s %s  %s\n", console.Cross(),
					console.Bold(p.Field), p.Message)
			}
			printer.Printf("\n")
			return exitWithCode(1)
		},
	}
}
