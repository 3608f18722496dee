package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jinterop/internal/descriptor"
)

var sigCmd = &cobra.Command{
	Use:   "sig <signature>...",
	Short: "Parse field and method descriptors",
	Long: `Parse JNI type descriptors and print them the way Java source spells them.

Examples:
  jinterop sig I '[Ljava/lang/String;'
  jinterop sig '(ILjava/lang/String;[J)V'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, sig := range args {
			if strings.HasPrefix(sig, "(") {
				ms, err := descriptor.ParseMethodSignature(sig)
				if err != nil {
					return fmt.Errorf("%s: %w", sig, err)
				}
				fmt.Fprintf(out, "%-40s %s  [%d args]\n", sig, ms.JavaString(), ms.ArgCount())
				continue
			}

			d, err := descriptor.ParseFieldSignature(sig)
			if err != nil {
				return fmt.Errorf("%s: %w", sig, err)
			}
			line := fmt.Sprintf("%-40s %s  [%s", sig, d.JavaName(), d.Kind)
			if dims := d.Dimensions(); dims > 0 {
				line += fmt.Sprintf(", %d dims", dims)
			}
			fmt.Fprintln(out, line+"]")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sigCmd)
}
