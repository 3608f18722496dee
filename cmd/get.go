package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jinterop/internal/interop"
)

var (
	getInstance int
	getSig      string
)

var getCmd = &cobra.Command{
	Use:   "get <class> <field>",
	Short: "Read a field value",
	Long: `Read a static field, or with --instance an instance field of the N-th object
of the class in a heap dump. Names are logical and go through the resolver.

Examples:
  jinterop --heap app.hprof get net.example.Game players
  jinterop --heap app.hprof get net.example.Player health --instance 0`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTarget(cmd.Context())
		if err != nil {
			return err
		}
		defer t.Close()

		f, instance, err := t.field(cmd, args[0], args[1], getSig, getInstance)
		if err != nil {
			return err
		}
		if instance != nil {
			defer instance.Release()
		}

		value, err := readField(t.session, f, instance)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", f.Type().JavaName(), args[1], value)
		return nil
	},
}

// field resolves a logical field and, for n >= 0, the heap dump instance to
// read it from.
func (t *target) field(cmd *cobra.Command, class, name, sig string, n int) (*interop.Field, *interop.Ref, error) {
	cls, err := t.class(cmd.Context(), class)
	if err != nil {
		return nil, nil, err
	}
	f := t.resolver.ResolveField(cls, name, sig)
	if !f.Valid() {
		return nil, nil, fmt.Errorf("field %s.%s not found", class, name)
	}

	if n < 0 {
		if !f.IsStatic() {
			return nil, nil, fmt.Errorf("field %s.%s is not static; pick an object with --instance", class, name)
		}
		return f, nil, nil
	}
	if f.IsStatic() {
		return f, nil, nil
	}
	instance, err := t.instance(cls, n)
	if err != nil {
		return nil, nil, err
	}
	return f, instance, nil
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().IntVarP(&getInstance, "instance", "n", -1, "Read from the N-th instance in the heap dump")
	getCmd.Flags().StringVarP(&getSig, "sig", "s", "", "Logical field descriptor")
}
