package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/registry"
)

func newRegisterCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "register [registry-url]",
		Short: "Create an account on a remote registry",
		Long: `Create a new account on a remote registry.

Prompts for a username and password, registers the account, then
fetches an API token so you are logged in immediately.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			explicit := ""
			if len(args) == 1 {
				explicit = args[0]
			}
			base, host, err := registryHost(explicit)
			if err != nil {
				printer.Errorf("%s", err)
				return exitWithCode(1)
			}

			printer.Printf("\n  Creating account on %s\n\n", console.Bold(base))

			var password, confirm string
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Username").Value(&username),
				huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
				huh.NewInput().Title("Confirm password").EchoMode(huh.EchoModePassword).Value(&confirm),
			))
			if err := form.Run(); err != nil {
				return fmt.Errorf("registration prompt failed: %w", err)
			}
			if password != confirm {
				printer.Errorf("Passwords do not match.")
				return exitWithCode(1)
			}

			if err := registry.RegisterAccount(cmd.Context(), base, username, password); err != nil {
				printer.Errorf("Registration failed: %v", err)
				var unreachable *registry.UnreachableError
				if errors.As(err, &unreachable) {
					return exitWithCode(2)
				}
				return exitWithCode(1)
			}

			// Log in with the fresh account. A failure here leaves the
			// account created but the user logged out, which is worth
			// reporting but not failing the command over.
			loggedIn := false
			if token, err := registry.FetchToken(cmd.Context(), base, username, password); err == nil {
				Cfg.SetAuth(host, token, username)
				if err := Cfg.Save(); err == nil {
					loggedIn = true
				}
			}

			if printer.Format == console.FormatJSON {
				printer.JSON(map[string]any{
					"registered": true,
					"username":   username,
					"logged_in":  loggedIn,
				})
				return nil
			}

			printer.Printf("\n")
			printer.Successf("Account %s created", console.Bold(username))
			if loggedIn {
				printer.Successf("Logged in to %s", console.Bold(host))
			} else {
				printer.Mutedf("Could not log in automatically; run datum login.")
			}
			printer.Printf("\n")
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "registry username")

	return cmd
}
