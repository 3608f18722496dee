package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jinterop/internal/host/jni"
)

var (
	// This will be set by goreleaser
	version = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number and the compiled-in hosts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		hosts := "memvm, heap dump, classpath"
		if jni.Available() {
			hosts += ", jni"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "jinterop version %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(cmd.OutOrStdout(), "hosts: %s\n", hosts)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
