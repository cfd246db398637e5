package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/simkjels/datumhub-cli/pkg/cache"
	"github.com/simkjels/datumhub-cli/pkg/console"
)

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local dataset cache",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all cached datasets",
		RunE:  runCacheList,
	}

	sizeCmd := &cobra.Command{
		Use:   "size",
		Short: "Show total disk usage of the local cache",
		RunE:  runCacheSize,
	}

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClear(yes)
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")

	cacheCmd.AddCommand(listCmd, sizeCmd, clearCmd)
	return cacheCmd
}

func runCacheList(cmd *cobra.Command, args []string) error {
	c, err := cache.Default()
	if err != nil {
		return err
	}
	entries, err := c.Scan()
	if err != nil {
		return err
	}

	if printer.Format == console.FormatJSON {
		payload := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			payload = append(payload, map[string]any{
				"id":      e.ID,
				"version": e.Version,
				"files":   e.Files,
				"size":    e.Size(),
			})
		}
		printer.JSON(payload)
		return nil
	}

	if len(entries) == 0 {
		printer.Printf("\n")
		printer.Mutedf("Cache is empty.")
		printer.Mutedf("%s", c.Root())
		printer.Printf("\n")
		return nil
	}

	var totalSize int64
	totalFiles := 0
	for _, e := range entries {
		totalSize += e.Size()
		totalFiles += len(e.Files)
	}

	printer.Printf("\n  %s cached version(s)  %s  %s  %s  %s\n\n",
		console.Bold(fmt.Sprint(len(entries))), console.Muted("·"),
		humanize.Bytes(uint64(totalSize)), console.Muted("·"), c.Root())

	if printer.Prose() {
		w := tabwriter.NewWriter(printer.Out, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  DATASET\tVERSION\tFILES\tSIZE")
		for _, e := range entries {
			fmt.Fprintf(w, "  %s\t%s\t%d\t%s\n",
				e.ID, e.Version, len(e.Files), humanize.Bytes(uint64(e.Size())))
		}
		w.Flush()
	}
	printer.Printf("\n")
	return nil
}

func runCacheSize(cmd *cobra.Command, args []string) error {
	c, err := cache.Default()
	if err != nil {
		return err
	}
	entries, err := c.Scan()
	if err != nil {
		return err
	}

	var totalSize int64
	totalFiles := 0
	for _, e := range entries {
		totalSize += e.Size()
		totalFiles += len(e.Files)
	}

	if printer.Format == console.FormatJSON {
		printer.JSON(map[string]any{"size_bytes": totalSize, "files": totalFiles})
		return nil
	}

	printer.Printf("\n  %s  %s\n", console.Bold("Cache:"), c.Root())
	printer.Printf("  %s  %s  %s\n\n", console.Bold("Total:"),
		humanize.Bytes(uint64(totalSize)),
		console.Muted(fmt.Sprintf("(%d file(s))", totalFiles)))
	return nil
}

func runCacheClear(yes bool) error {
	c, err := cache.Default()
	if err != nil {
		return err
	}
	entries, err := c.Scan()
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		printer.Printf("\n")
		printer.Mutedf("Cache is already empty.")
		printer.Printf("\n")
		return nil
	}

	var totalSize int64
	totalFiles := 0
	for _, e := range entries {
		totalSize += e.Size()
		totalFiles += len(e.Files)
	}

	if !yes {
		confirmed, err := confirmPrompt(fmt.Sprintf("Clear %s (%d file(s)) from cache?",
			humanize.Bytes(uint64(totalSize)), totalFiles))
		if err != nil {
			return err
		}
		if !confirmed {
			printer.Mutedf("Aborted.")
			return nil
		}
	}

	if err := c.Clear(); err != nil {
		return err
	}

	printer.Printf("\n")
	printer.Successf("Cache cleared  %s",
		console.Muted(fmt.Sprintf("(%s freed)", humanize.Bytes(uint64(totalSize)))))
	printer.Printf("\n")
	return nil
}
