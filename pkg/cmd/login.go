package cmd

import (
	"fmt"
	"net/url"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/registry"
)

// registryHost resolves the registry base URL and its host, preferring
// an explicit URL over the configured one. Local-path registries take
// no credentials.
func registryHost(explicit string) (base, host string, err error) {
	base = explicit
	if base == "" {
		base = Settings.Registry
	}
	if !registry.IsRemoteURL(base) {
		return "", "", fmt.Errorf("registry %q is a local path; authentication applies to remote registries only", base)
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("invalid registry URL %q", base)
	}
	return base, u.Host, nil
}

func newLoginCmd() *cobra.Command {
	var (
		username string
		token    string
	)

	cmd := &cobra.Command{
		Use:   "login [registry-url]",
		Short: "Authenticate against a remote registry",
		Args:  cobra.MaximumNArgs(1),
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

			// A token supplied directly skips the password exchange.
			if token != "" {
				if username == "" {
					username = Cfg.Username(host)
				}
				Cfg.SetAuth(host, token, username)
				if err := Cfg.Save(); err != nil {
					return err
				}
				printer.Successf("Logged in to %s", console.Bold(host))
				return nil
			}

			var password string
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Username").Value(&username),
				huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
			))
			if err := form.Run(); err != nil {
				return fmt.Errorf("login prompt failed: %w", err)
			}

			fetched, err := registry.FetchToken(cmd.Context(), base, username, password)
			if err != nil {
				printer.Errorf("Login failed: %v", err)
				return exitWithCode(1)
			}

			Cfg.SetAuth(host, fetched, username)
			if err := Cfg.Save(); err != nil {
				return err
			}

			printer.Printf("\n")
			printer.Successf("Logged in to %s as %s", console.Bold(host), console.Bold(username))
			printer.Printf("\n")
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "registry username")
	cmd.Flags().StringVar(&token, "token", "", "use an existing API token instead of a password")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget stored credentials for the configured registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, host, err := registryHost("")
			if err != nil {
				printer.Errorf("%s", err)
				return exitWithCode(1)
			}
			if Cfg.Token(host) == "" {
				printer.Mutedf("Not logged in to %s.", host)
				return nil
			}
			Cfg.ClearAuth(host)
			if err := Cfg.Save(); err != nil {
				return err
			}
			printer.Successf("Logged out of %s", console.Bold(host))
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity used for the configured registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, host, err := registryHost("")
			if err != nil {
				printer.Errorf("%s", err)
				return exitWithCode(1)
			}
			username := Cfg.Username(host)
			loggedIn := Cfg.Token(host) != ""

			if printer.Format == console.FormatJSON {
				printer.JSON(map[string]any{
					"registry":  host,
					"username":  username,
					"logged_in": loggedIn,
				})
				return nil
			}
			if !loggedIn {
				printer.Mutedf("Not logged in to %s.", host)
				return exitWithCode(1)
			}
			if username == "" {
				username = "(token only)"
			}
			printer.Printf("%s\n", username)
			return nil
		},
	}
}
