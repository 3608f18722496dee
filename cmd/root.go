package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mabhi256/jinterop/internal/config"
	"github.com/mabhi256/jinterop/internal/report"
	"github.com/mabhi256/jinterop/internal/symbols"
	"github.com/mabhi256/jinterop/utils"
)

var (
	configPath string

	heapFlag      string
	classpathFlag []string
	jvmFlag       bool
	jvmOptions    []string
	mappingFlag   string
	modeFlag      = symbols.Direct
	reporterFlag  = report.Log
	logLevelFlag  string
	anchorFlag    string
	debugFlag     bool

	cfg      *config.Config
	logger   = slog.Default()
	reporter report.Reporter
)

var rootCmd = &cobra.Command{
	Use:   "jinterop",
	Short: "Inspect Java classes and objects through the JNI model",
	Long: `jinterop resolves classes, methods and fields in a Java runtime and reads
values through them. The runtime can be a heap dump, a classpath of compiled
classes, or an embedded JVM when built with -tags jni.

Logical names from a ProGuard mapping file are translated to the names the
runtime uses when --mode mapped is set.`,
	SilenceErrors: true,
	SilenceUsage:  true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}

		if cmd.Name() == "install" || cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		if !completionsExist(cmd.Root()) && isInPath() {
			if _, ok := completionTarget(cmd.Root(), detectShell()); ok {
				fmt.Println("🔧 First run detected, setting up jinterop...")
				if installCompletions(cmd.Root()) == nil {
					fmt.Println("✅ Shell completions installed")
				} else {
					fmt.Println("⚠️  Auto-setup failed. Run 'jinterop install' to try again.")
				}
			}
		}
		return nil
	},
}

// loadConfig layers the config file under the flags the user set and builds
// the logger and reporter from the result.
func loadConfig(cmd *cobra.Command) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("heap") {
		loaded.HeapDump = heapFlag
		loaded.Classpath, loaded.JVM = nil, false
	}
	if flags.Changed("classpath") {
		loaded.Classpath = splitPaths(classpathFlag)
		loaded.HeapDump, loaded.JVM = "", false
	}
	if flags.Changed("jvm") {
		loaded.JVM = jvmFlag
		if jvmFlag {
			loaded.HeapDump, loaded.Classpath = "", nil
		}
	}
	if flags.Changed("jvm-option") {
		loaded.JVMOptions = jvmOptions
	}
	if flags.Changed("mapping") {
		loaded.MappingFile = mappingFlag
		if !flags.Changed("mode") {
			loaded.Mode = symbols.Mapped
		}
	}
	if flags.Changed("mode") {
		loaded.Mode = modeFlag
	}
	if flags.Changed("reporter") {
		loaded.Reporter = reporterFlag
	}
	if flags.Changed("anchor") {
		loaded.Anchor = anchorFlag
	}
	if flags.Changed("log-level") {
		if err := loaded.LogLevel.UnmarshalText([]byte(logLevelFlag)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevelFlag, err)
		}
	}
	if flags.Changed("debug") {
		loaded.Debug = debugFlag
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	level := loaded.LogLevel
	if loaded.Debug {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	for _, w := range loaded.Warnings {
		logger.Warn("config", "warning", w)
	}

	cfg = loaded
	reporter = report.New(cfg.Reporter, report.WithLogger(logger))
	return nil
}

// splitPaths accepts repeated flags as well as PATH-style lists.
func splitPaths(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, string(os.PathListSeparator)) {
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if reporter != nil && report.Handle(err, reporter) {
			os.Exit(1)
		}
		fmt.Println(utils.CriticalStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default $JINTEROP_CONFIG or <config dir>/jinterop/config.toml)")
	pf.StringVar(&heapFlag, "heap", "", "Load an HPROF heap dump as the runtime")
	pf.StringSliceVar(&classpathFlag, "classpath", nil, "Load classes from directories, .jar or .class files")
	pf.BoolVar(&jvmFlag, "jvm", false, "Start an embedded JVM (needs a -tags jni build)")
	pf.StringArrayVar(&jvmOptions, "jvm-option", nil, "Option passed to the embedded JVM, repeatable")
	pf.StringVarP(&mappingFlag, "mapping", "m", "", "ProGuard mapping file; implies --mode mapped")
	pf.Var(&modeFlag, "mode", "Symbol resolution: direct, mapped or disabled")
	pf.Var(&reporterFlag, "reporter", "Error reporter: log, dialog, clipboard or exit")
	pf.StringVar(&anchorFlag, "anchor", "", "Class that must be loaded before classes are listed")
	pf.StringVar(&logLevelFlag, "log-level", "warn", "Log level: debug, info, warn or error")
	pf.BoolVarP(&debugFlag, "debug", "d", false, "Enable debug logging")

	_ = rootCmd.RegisterFlagCompletionFunc("heap", utils.CompleteFilesByExtension([]string{".hprof"}, false))
	_ = rootCmd.RegisterFlagCompletionFunc("classpath", utils.CompleteFilesByExtension([]string{".jar", ".zip", ".class"}, true))
	_ = rootCmd.RegisterFlagCompletionFunc("mapping", utils.CompleteFilesByExtension([]string{".txt", ".map", ".mapping"}, false))
	_ = rootCmd.RegisterFlagCompletionFunc("mode", fixedCompletions("direct", "mapped", "disabled"))
	_ = rootCmd.RegisterFlagCompletionFunc("reporter", fixedCompletions("log", "dialog", "clipboard", "exit"))
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", fixedCompletions("debug", "info", "warn", "error"))
}

func fixedCompletions(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}
