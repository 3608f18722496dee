package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install shell completions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isInPath() {
			printPathInstructions()
			return nil
		}

		shell := detectShell()
		if _, ok := completionTarget(cmd.Root(), shell); !ok {
			fmt.Printf("❌ Shell completion not supported for: %s\n", shell)
			fmt.Println("Supported shells: bash, zsh, fish, powershell")
			return nil
		}

		if completionsExist(cmd.Root()) {
			fmt.Println("✅ Already configured!")
			return nil
		}

		fmt.Println("📦 Installing completions...")
		if err := installCompletions(cmd.Root()); err != nil {
			return fmt.Errorf("install completions: %w", err)
		}
		fmt.Println("✅ Done! Restart your shell to enable tab completion.")
		return nil
	},
}

type completion struct {
	path     string
	generate func(io.Writer) error
	activate string
}

func completionTarget(root *cobra.Command, shell string) (completion, bool) {
	home, _ := os.UserHomeDir()
	name := root.Name()

	switch shell {
	case "bash":
		path := filepath.Join(home, ".local/share/bash-completion/completions", name)
		return completion{path, root.GenBashCompletion, "source " + path}, true
	case "zsh":
		dir := filepath.Join(home, ".zsh/completions")
		return completion{
			path:     filepath.Join(dir, "_"+name),
			generate: root.GenZshCompletion,
			activate: fmt.Sprintf("fpath=(%s $fpath) && autoload -U compinit && compinit", dir),
		}, true
	case "fish":
		return completion{
			path:     filepath.Join(home, ".config/fish/completions", name+".fish"),
			generate: func(w io.Writer) error { return root.GenFishCompletion(w, true) },
			activate: "complete --do-complete=" + name,
		}, true
	case "powershell":
		path := filepath.Join(home, name+"_completion.ps1")
		return completion{path, root.GenPowerShellCompletionWithDesc, ". " + path}, true
	}
	return completion{}, false
}

func detectShell() string {
	if runtime.GOOS == "windows" {
		return "powershell"
	}

	shell := filepath.Base(os.Getenv("SHELL"))
	if shell == "" || shell == "." {
		return "bash"
	}
	return shell
}

func completionsExist(root *cobra.Command) bool {
	target, ok := completionTarget(root, detectShell())
	if !ok {
		return false
	}
	_, err := os.Stat(target.path)
	return err == nil
}

func installCompletions(root *cobra.Command) error {
	shell := detectShell()
	target, ok := completionTarget(root, shell)
	if !ok {
		return fmt.Errorf("unsupported shell: %s", shell)
	}

	if err := os.MkdirAll(filepath.Dir(target.path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(target.path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := target.generate(file); err != nil {
		return err
	}

	fmt.Printf("🔄 Run this command to enable completions now:\n")
	fmt.Printf("   %s\n", target.activate)
	return nil
}

func isInPath() bool {
	execPath, err := os.Executable()
	if err != nil {
		return false
	}
	paths := strings.Split(os.Getenv("PATH"), string(os.PathListSeparator))
	return slices.Contains(paths, filepath.Dir(execPath))
}

func printPathInstructions() {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)

	fmt.Printf("❌ jinterop not in PATH. Binary location: %s\n\n", execPath)
	if runtime.GOOS == "windows" {
		fmt.Printf("Add to PATH: %s\n", execDir)
		return
	}
	fmt.Printf("Add to shell profile: export PATH=\"%s:$PATH\"\n", execDir)
	fmt.Printf("Or copy to: /usr/local/bin\n")
}

func init() {
	rootCmd.AddCommand(installCmd)
}
