// Package discovery finds local Java processes and captures heap dumps from
// them with the JDK command-line tools.
package discovery

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

type JavaProcess struct {
	PID       int
	MainClass string
	Args      string
}

func (p *JavaProcess) String() string {
	return fmt.Sprintf("%d %s", p.PID, p.MainClass)
}

// Runner executes a JDK tool and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Exec runs the tool from PATH, or from $JAVA_HOME/bin when set.
func Exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	if home := os.Getenv("JAVA_HOME"); home != "" {
		candidate := filepath.Join(home, "bin", name)
		if _, err := os.Stat(candidate); err == nil {
			name = candidate
		}
	}
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return out, fmt.Errorf("failed to run %s: %w (ensure Java development tools are installed)", filepath.Base(name), err)
	}
	return out, nil
}

// Processes lists running JVMs with jps, minus tool processes.
func Processes(ctx context.Context, run Runner) ([]*JavaProcess, error) {
	if run == nil {
		run = Exec
	}
	out, err := run(ctx, "jps", "-l", "-v")
	if err != nil {
		return nil, err
	}
	return ParseJPS(string(out)), nil
}

// ParseJPS reads `jps -l -v` output.
func ParseJPS(output string) []*JavaProcess {
	var processes []*JavaProcess
	scanner := bufio.NewScanner(strings.NewReader(output))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 2 {
			continue
		}
		pid, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		mainClass := parts[1]
		if shouldSkipProcess(mainClass) {
			continue
		}

		args := ""
		if len(parts) > 2 {
			args = parts[2]
		}

		processes = append(processes, &JavaProcess{
			PID:       pid,
			MainClass: strings.TrimSuffix(mainClass, ".jar"),
			Args:      args,
		})
	}
	return processes
}

func shouldSkipProcess(mainClass string) bool {
	mainClass = strings.TrimSpace(mainClass)
	if mainClass == "" || strings.HasPrefix(mainClass, "--") {
		return true
	}

	// VSCode language servers
	if strings.Contains(mainClass, ".vscode") && strings.Contains(mainClass, "extensions") {
		return true
	}

	skipPatterns := []string{
		"sun.tools.jps.Jps",
		"jdk.jcmd",
		"sun.tools.jcmd",
		"-- process information unavailable",
		"org.eclipse.equinox.launcher",
	}
	for _, pattern := range skipPatterns {
		if strings.Contains(mainClass, pattern) {
			return true
		}
	}
	return false
}

// HeapDump asks process pid to write an HPROF dump to file. Only live
// objects are dumped unless all is set.
func HeapDump(ctx context.Context, run Runner, pid int, file string, all bool) (string, error) {
	if run == nil {
		run = Exec
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}

	args := []string{strconv.Itoa(pid), "GC.heap_dump"}
	if all {
		args = append(args, "-all")
	}
	args = append(args, abs)

	out, err := run(ctx, "jcmd", args...)
	if err != nil {
		return "", err
	}
	text := string(out)
	if strings.Contains(text, "Exception") || strings.Contains(text, "Unable to") {
		return "", fmt.Errorf("jcmd %d GC.heap_dump: %s", pid, strings.TrimSpace(text))
	}
	return abs, nil
}
