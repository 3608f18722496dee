package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jinterop/internal/browse"
)

var browseAll bool

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse classes, methods and fields interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTarget(cmd.Context())
		if err != nil {
			return err
		}
		defer t.Close()

		classes, err := t.dumpClasses(cmd.Context(), browseAll)
		if err != nil {
			return err
		}
		if len(classes) == 0 {
			return fmt.Errorf("no classes found in %s", cfg)
		}

		entries := browse.Entries(classes, t.names())
		title := fmt.Sprintf("jinterop · %s · %d classes · %s", cfg, len(entries), cfg.Mode)
		if err := browse.Run(title, entries); err != nil {
			return fmt.Errorf("unable to start TUI: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
	browseCmd.Flags().BoolVarP(&browseAll, "all", "a", false, "Include JDK packages")
}
