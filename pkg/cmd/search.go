package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/model"
	"github.com/simkjels/datumhub-cli/pkg/pull"
	"github.com/simkjels/datumhub-cli/pkg/registry"
)

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the registry for datasets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.New(Settings, Cfg)
			if err != nil {
				return err
			}
			pkgs, err := reg.List(cmd.Context(), args[0])
			if err != nil {
				return renderRegistryError(err)
			}
			if printer.Format == console.FormatJSON {
				printer.JSON(searchPayload(pkgs))
				return nil
			}
			if len(pkgs) == 0 {
				printer.Printf("\n")
				printer.Mutedf("No datasets matched %q.", args[0])
				printer.Printf("\n")
				return nil
			}
			renderPackageTable(pkgs)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all datasets in the registry",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.New(Settings, Cfg)
			if err != nil {
				return err
			}
			pkgs, err := reg.List(cmd.Context(), "")
			if err != nil {
				return renderRegistryError(err)
			}
			if printer.Format == console.FormatJSON {
				printer.JSON(searchPayload(pkgs))
				return nil
			}
			if len(pkgs) == 0 {
				printer.Printf("\n")
				printer.Mutedf("Registry is empty.")
				printer.Mutedf("Publish a dataset with `datum publish`.")
				printer.Printf("\n")
				return nil
			}
			renderPackageTable(pkgs)
			return nil
		},
	}
	return cmd
}

func searchPayload(pkgs []*model.DataPackage) []map[string]any {
	payload := make([]map[string]any, 0, len(pkgs))
	for _, p := range pkgs {
		payload = append(payload, map[string]any{
			"id":        p.ID,
			"version":   p.Version,
			"title":     p.Title,
			"publisher": p.Publisher.Name,
			"license":   p.License,
		})
	}
	return payload
}

func renderPackageTable(pkgs []*model.DataPackage) {
	printer.Printf("\n  %s dataset(s)\n\n", console.Bold(fmt.Sprint(len(pkgs))))
	w := tabwriter.NewWriter(printer.Out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tVERSION\tTITLE\tLICENSE")
	for _, p := range pkgs {
		title := p.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", p.ID, p.Version, title, p.License)
	}
	w.Flush()
	printer.Printf("\n")
}

// renderRegistryError maps registry failures onto the shared exit
// codes: unreachable registries are network errors, everything else a
// user error.
func renderRegistryError(err error) error {
	printer.Errorf("%s", err)
	var unreachable *registry.UnreachableError
	if errors.As(err, &unreachable) {
		return exitWithCode(int(pull.StatusNetworkError))
	}
	return exitWithCode(int(pull.StatusUserError))
}
