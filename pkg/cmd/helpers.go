package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/model"
)

// parseExplicitVersion parses an identifier that must carry an explicit
// version. It prints the error itself and returns an empty key on
// failure.
func parseExplicitVersion(identifier string) (key, version string) {
	key, version = model.ParseIdentifier(identifier)
	if !model.ValidKey(key) {
		printer.Errorf("Invalid identifier: %s\n\n  Expected %s",
			console.Bold(key), console.Bold("publisher/namespace/dataset:version"))
		return "", ""
	}
	if version == "" || version == "latest" {
		printer.Errorf("An explicit version is required: %s",
			console.Bold(identifier+":<version>"))
		return "", ""
	}
	return key, version
}

func confirmPrompt(title string) (bool, error) {
	var confirmed bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&confirmed),
	)).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return confirmed, nil
}
