package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jinterop/internal/facade"
	"github.com/mabhi256/jinterop/utils"
)

var infoProperties = []string{"java.version", "java.vendor", "java.home", "os.name", "os.arch"}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show runtime properties and the calling thread",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTarget(cmd.Context())
		if err != nil {
			return err
		}
		defer t.Close()

		out := cmd.OutOrStdout()
		row := func(key, value string) {
			fmt.Fprintln(out, utils.FormatKeyValue(key, value, 14))
		}

		row("host", cfg.String())
		row("resolver", cfg.Mode.String())
		if tooling := t.session.Tooling(); tooling != nil {
			if classes, err := tooling.GetLoadedClasses(); err == nil {
				row("classes", fmt.Sprint(len(classes)))
				if env, err := t.session.Env(); err == nil {
					for _, c := range classes {
						env.DeleteLocalRef(c)
					}
				}
			}
		}

		sys := facade.NewSystem(t.runtime)
		for _, key := range infoProperties {
			value, ok, err := sys.Property(key)
			switch {
			case err != nil:
				logger.Debug("read property", "key", key, "err", err)
				row(key, utils.MutedStyle.Render("unavailable"))
			case !ok:
				row(key, utils.MutedStyle.Render("unset"))
			default:
				row(key, value)
			}
		}
		if millis, err := sys.CurrentTimeMillis(); err == nil {
			row("clock", time.UnixMilli(millis).Format(time.RFC3339))
		}

		thread, err := facade.CurrentThread(t.runtime)
		if err != nil {
			return fmt.Errorf("current thread: %w", err)
		}
		defer thread.Release()
		name, err := thread.Name()
		if err != nil {
			return err
		}
		daemon, err := thread.IsDaemon()
		if err != nil {
			return err
		}
		row("thread", fmt.Sprintf("%s (daemon=%t)", name, daemon))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
