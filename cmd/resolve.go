package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	resolveField bool
	resolveSig   string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <class> [member]",
	Short: "Translate a logical class or member name to the runtime name",
	Long: `Resolve a logical name through the configured resolver. Members are
methods unless --field is set; --sig picks an overload by its logical
descriptor.

Examples:
  jinterop -m mapping.txt --heap app.hprof resolve net.example.Player
  jinterop -m mapping.txt --heap app.hprof resolve net.example.Player damage --sig '(F)V'
  jinterop -m mapping.txt --heap app.hprof resolve net.example.Player health --field`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTarget(cmd.Context())
		if err != nil {
			return err
		}
		defer t.Close()

		out := cmd.OutOrStdout()
		runtimeName := t.resolver.ResolveClassName(args[0])
		if runtimeName == "" {
			return fmt.Errorf("class %s: resolution is disabled", args[0])
		}
		fmt.Fprintf(out, "class   %s -> %s\n", args[0], runtimeName)
		if len(args) == 1 {
			return nil
		}

		cls, err := t.class(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		member := args[1]
		if resolveField {
			f := t.resolver.ResolveField(cls, member, resolveSig)
			if !f.Valid() {
				return fmt.Errorf("field %s.%s not found", args[0], member)
			}
			fmt.Fprintf(out, "field   %s -> %s %s\n", member, f.Name(false), f.Signature(false))
			return nil
		}

		m := t.resolver.ResolveMethod(cls, member, resolveSig)
		if !m.Valid() {
			return fmt.Errorf("method %s.%s not found", args[0], member)
		}
		fmt.Fprintf(out, "method  %s -> %s %s\n", member, m.Name(false), m.Signature(false))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().BoolVarP(&resolveField, "field", "f", false, "Resolve a field instead of a method")
	resolveCmd.Flags().StringVarP(&resolveSig, "sig", "s", "", "Logical descriptor of the member")
}
