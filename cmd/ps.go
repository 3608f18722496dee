package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jinterop/internal/discovery"
	"github.com/mabhi256/jinterop/utils"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List running Java processes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		processes, err := discovery.Processes(cmd.Context(), nil)
		if err != nil {
			return fmt.Errorf("failed to discover processes: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(processes) == 0 {
			fmt.Fprintln(out, utils.MutedStyle.Render("No Java processes found"))
			return nil
		}

		sort.Slice(processes, func(i, j int) bool {
			return processes[i].PID < processes[j].PID
		})
		fmt.Fprintln(out, utils.InfoStyle.Render(utils.PadRight("PID", 8)+"MAIN CLASS"))
		for _, p := range processes {
			fmt.Fprintf(out, "%s%s %s\n",
				utils.PadRight(fmt.Sprint(p.PID), 8),
				p.MainClass,
				utils.MutedStyle.Render(utils.TruncateString(p.Args, 60)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(psCmd)
}
