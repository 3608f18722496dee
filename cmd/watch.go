package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jinterop/internal/poller"
	"github.com/mabhi256/jinterop/utils"
)

var (
	watchInterval int
	watchCount    int
	watchInstance int
	watchSig      string
	watchSummary  bool
)

// historySize is how many samples the sparkline keeps.
const historySize = 40

var watchCmd = &cobra.Command{
	Use:   "watch <class> <field>",
	Short: "Print a primitive field on every interval",
	Long: `Watch reads a primitive field from a background thread attached to the
runtime and prints each sample with a sparkline of recent values. Stop with
Ctrl+C or --count.

Examples:
  jinterop --jvm watch net.example.Game tick -i 500
  jinterop --heap app.hprof watch net.example.Player health -n 0 --count 3`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		t, err := openTarget(ctx)
		if err != nil {
			return err
		}
		defer t.Close()

		f, instance, err := t.field(cmd, args[0], args[1], watchSig, watchInstance)
		if err != nil {
			return err
		}
		if instance != nil {
			defer instance.Release()
		}
		if f.Type().Kind.IsReference() {
			return fmt.Errorf("watch needs a primitive field, %s is %s", args[1], f.Type().JavaName())
		}

		interval := cfg.GetInterval()
		if cmd.Flags().Changed("interval") {
			interval = time.Duration(watchInterval) * time.Millisecond
		}

		p := poller.New(t.session, interval, poller.FieldProbe(args[1], f, instance))
		if err := p.Start(ctx); err != nil {
			return err
		}
		defer p.Stop()

		return printSamples(ctx, cmd, p, args[1])
	},
}

func printSamples(ctx context.Context, cmd *cobra.Command, p *poller.Poller, name string) error {
	out := cmd.OutOrStdout()
	var history []float64
	var points []utils.TimePoint
	defer func() {
		if watchSummary {
			printSummary(cmd, name, utils.Summarize(points))
		}
	}()

	for n := 0; watchCount <= 0 || n < watchCount; {
		select {
		case <-ctx.Done():
			return nil
		case <-p.Done():
			return nil
		case snap := <-p.Updates():
			n++
			if err, failed := snap.Errors[name]; failed {
				fmt.Fprintf(out, "%s  %s\n", snap.Timestamp.Format(time.TimeOnly), utils.CriticalStyle.Render(err.Error()))
				continue
			}

			v := snap.Values[name]
			if x, ok := numeric(v); ok {
				points = append(points, utils.TimePoint{Time: snap.Timestamp, Value: x})
				history = append(history, x)
				if len(history) > historySize {
					history = history[1:]
				}
			}
			fmt.Fprintf(out, "%s  %s = %s  %s\n",
				snap.Timestamp.Format(time.TimeOnly),
				name,
				utils.PadRight(v.String(), 12),
				utils.InfoStyle.Render(utils.CreateSparkline(history, historySize)),
			)
		}
	}
	return nil
}

func printSummary(cmd *cobra.Command, name string, s utils.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, utils.TitleStyle.Render(fmt.Sprintf("%s over %s", name, utils.FormatDuration(s.Span))))
	if s.Count == 0 {
		fmt.Fprintln(out, utils.MutedStyle.Render("no samples"))
		return
	}
	rows := []string{
		utils.FormatKeyValue("samples", fmt.Sprintf("%d", s.Count), 10),
		utils.FormatKeyValue("min", fmt.Sprintf("%g", s.Min), 10),
		utils.FormatKeyValue("max", fmt.Sprintf("%g", s.Max), 10),
		utils.FormatKeyValue("mean", fmt.Sprintf("%.3f ± %.3f", s.Mean, s.StdDev), 10),
		utils.FormatKeyValue("trend", fmt.Sprintf("%+.3f/s (r=%.2f)", s.PerSecond, s.Correlation), 10),
	}
	for _, r := range rows {
		fmt.Fprintln(out, r)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().IntVarP(&watchInterval, "interval", "i", 1000, "Update interval in ms")
	watchCmd.Flags().IntVarP(&watchCount, "count", "c", 0, "Stop after this many samples")
	watchCmd.Flags().IntVarP(&watchInstance, "instance", "n", -1, "Watch the N-th instance in the heap dump")
	watchCmd.Flags().StringVarP(&watchSig, "sig", "s", "", "Logical field descriptor")
	watchCmd.Flags().BoolVar(&watchSummary, "summary", false, "Print min, max, mean and trend when the watch ends")
}
