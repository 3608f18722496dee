package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jinterop/internal/discovery"
	"github.com/mabhi256/jinterop/utils"
)

var dumpAll bool

var dumpCmd = &cobra.Command{
	Use:   "dump <pid> [file]",
	Short: "Capture a heap dump from a running JVM with jcmd",
	Long: `Capture an HPROF heap dump. Only live objects are written unless --all is
set. The file defaults to heap-<pid>.hprof in the current directory.

Examples:
  jinterop dump <TAB>
  jinterop dump 4120 game.hprof
  jinterop --heap game.hprof classes`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: completeJavaProcesses,
	RunE: func(cmd *cobra.Command, args []string) error {
		var pid int
		if _, err := fmt.Sscanf(args[0], "%d", &pid); err != nil || pid <= 0 {
			return fmt.Errorf("invalid PID '%s'", args[0])
		}
		file := fmt.Sprintf("heap-%d.hprof", pid)
		if len(args) > 1 {
			file = args[1]
		}

		fmt.Printf("📦 Dumping heap of PID %d...\n", pid)
		start := time.Now()
		path, err := discovery.HeapDump(cmd.Context(), nil, pid, file, dumpAll)
		if err != nil {
			return err
		}
		size := "unknown size"
		if info, err := os.Stat(path); err == nil {
			size = utils.MemorySize(info.Size()).String()
		}
		fmt.Printf("✅ Heap dump written to %s (%s in %s)\n", path, size, utils.FormatDuration(time.Since(start)))
		fmt.Printf("💡 Inspect it with: jinterop --heap %s classes\n", path)
		return nil
	},
}

func completeJavaProcesses(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// Already provided the PID, complete the output file
	if len(args) != 0 {
		return utils.CompleteFilesByExtension([]string{".hprof"}, false)(cmd, args, toComplete)
	}

	processes, err := discovery.Processes(cmd.Context(), nil)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	for _, proc := range processes {
		completions = append(completions, fmt.Sprintf("%d\t%s", proc.PID, proc.MainClass))
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().BoolVar(&dumpAll, "all", false, "Include unreachable objects")
}
