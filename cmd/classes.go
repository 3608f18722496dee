package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jinterop/utils"
)

var classesAll bool

var classesCmd = &cobra.Command{
	Use:   "classes [prefix]",
	Short: "List the classes loaded in the runtime",
	Long: `List loaded classes, sorted by name. JDK packages are skipped unless --all
is set. With a mapping file the logical name is shown next to each class,
and the prefix matches either name.

Examples:
  jinterop --heap app.hprof classes net.example
  jinterop --classpath build/classes --all classes`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTarget(cmd.Context())
		if err != nil {
			return err
		}
		defer t.Close()

		classes, err := t.dumpClasses(cmd.Context(), classesAll)
		if err != nil {
			return err
		}

		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}

		out := cmd.OutOrStdout()
		shown := 0
		for _, cls := range classes {
			name := cls.FullName()
			logical := t.logicalName(name)
			if !strings.HasPrefix(name, prefix) && !strings.HasPrefix(logical, prefix) {
				continue
			}
			shown++

			line := utils.PadRight(name, 40)
			if logical != name {
				line += " " + utils.MutedStyle.Render(logical)
			}
			if cls.Err() != nil {
				line += " " + utils.WarningStyle.Render("(partial)")
			}
			fmt.Fprintln(out, line)
		}
		fmt.Fprintf(out, "\n%d of %d classes\n", shown, len(classes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classesCmd)
	classesCmd.Flags().BoolVarP(&classesAll, "all", "a", false, "Include JDK packages")
}
