package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simkjels/datumhub-cli/pkg/config"
	"github.com/simkjels/datumhub-cli/pkg/console"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View and edit persistent settings",
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := Cfg.Get(args[0])
			if err != nil {
				return configKeyError(err)
			}
			if printer.Format == console.FormatJSON {
				printer.JSON(map[string]string{args[0]: value})
				return nil
			}
			printer.Printf("%s\n", value)
			return nil
		},
	}

	var local bool
	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a setting and save it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if local {
				if err := setLocal(args[0], args[1]); err != nil {
					return err
				}
				printer.Successf("%s = %s  %s", args[0], args[1],
					console.Muted("("+config.LocalSettingsFile+")"))
				return nil
			}
			if err := Cfg.Set(args[0], args[1]); err != nil {
				return configKeyError(err)
			}
			if err := Cfg.Save(); err != nil {
				return err
			}
			printer.Successf("%s = %s", args[0], args[1])
			return nil
		},
	}
	setCmd.Flags().BoolVar(&local, "local", false, "write to "+config.LocalSettingsFile+" in the current directory")

	var unsetLocalFlag bool
	unsetCmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if unsetLocalFlag {
				if err := setLocal(args[0], ""); err != nil {
					return err
				}
				printer.Successf("Unset %s  %s", args[0],
					console.Muted("("+config.LocalSettingsFile+")"))
				return nil
			}
			if err := Cfg.Unset(args[0]); err != nil {
				return configKeyError(err)
			}
			if err := Cfg.Save(); err != nil {
				return err
			}
			printer.Successf("Unset %s", args[0])
			return nil
		},
	}
	unsetCmd.Flags().BoolVar(&unsetLocalFlag, "local", false, "write to "+config.LocalSettingsFile+" in the current directory")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]string, 0, len(config.KnownKeys))
			for key := range config.KnownKeys {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			values := map[string]string{}
			for _, key := range keys {
				v, err := Cfg.Get(key)
				if err != nil {
					continue
				}
				values[key] = v
			}
			if printer.Format == console.FormatJSON {
				printer.JSON(values)
				return nil
			}
			path, _ := config.Path()
			printer.Printf("\n  %s  %s\n\n", console.Bold("Config:"), path)
			for _, key := range keys {
				v := values[key]
				if v == "" {
					v = console.Muted("(unset)")
				}
				printer.Printf("  %-10s %s  %s\n", key, v,
					console.Muted(config.KnownKeys[key]))
			}
			printer.Printf("\n")
			return nil
		},
	}

	configCmd.AddCommand(getCmd, setCmd, unsetCmd, listCmd)
	return configCmd
}

// setLocal updates one key in the project-local settings file. An empty
// value clears the key.
func setLocal(key, value string) error {
	s, err := config.LoadLocalSettings(config.LocalSettingsFile)
	if err != nil {
		return err
	}
	switch key {
	case "registry":
		s.Registry = value
	case "output":
		s.Output = value
	case "parallelism":
		if value == "" {
			s.Parallelism = 0
			break
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			printer.Errorf("parallelism must be an integer, got %q", value)
			return exitWithCode(1)
		}
		s.Parallelism = n
	default:
		return configKeyError(fmt.Errorf("unknown config key %q", key))
	}
	return config.SaveLocalSettings(config.LocalSettingsFile, s)
}

func configKeyError(err error) error {
	keys := make([]string, 0, len(config.KnownKeys))
	for k := range config.KnownKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	printer.Errorf("%s", err)
	printer.Mutedf("Known keys: %s", strings.Join(keys, ", "))
	return exitWithCode(1)
}
