package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jinterop/internal/browse"
	"github.com/mabhi256/jinterop/internal/interop"
	"github.com/mabhi256/jinterop/utils"
)

var describeCmd = &cobra.Command{
	Use:   "describe <class>",
	Short: "Show the methods and fields of a class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTarget(cmd.Context())
		if err != nil {
			return err
		}
		defer t.Close()

		cls, err := t.class(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		entries := browse.Entries([]*interop.Class{cls}, t.names())
		e := entries[0]

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, utils.TitleStyle.Render(e.Name))
		if e.Original != "" {
			fmt.Fprintln(out, utils.FormatKeyValue("mapped from", e.Original, 12))
		}
		if e.Err != nil {
			fmt.Fprintln(out, utils.WarningStyle.Render("partial: "+e.Err.Error()))
		}

		printMembers(cmd, "Fields", e.Fields, false)
		printMembers(cmd, "Methods", e.Methods, true)
		return nil
	},
}

func printMembers(cmd *cobra.Command, title string, members []browse.Member, method bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s (%d)\n", utils.InfoStyle.Render(title), len(members))
	for _, m := range members {
		fmt.Fprintf(out, "  %s  %s\n", m.Declaration(method), utils.MutedStyle.Render(m.Signature))
	}
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
