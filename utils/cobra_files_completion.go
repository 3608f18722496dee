package utils

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// CompleteFilesByExtension completes directories and files ending in one of
// extensions. With pathList set, only the text after the last list separator
// is completed, so "a.jar:lib/" offers the entries of lib.
func CompleteFilesByExtension(extensions []string, pathList bool) func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		head := ""
		if pathList {
			if i := strings.LastIndexByte(toComplete, os.PathListSeparator); i >= 0 {
				head, toComplete = toComplete[:i+1], toComplete[i+1:]
			}
		}

		dir, prefix := filepath.Split(toComplete)
		files, err := os.ReadDir(orDot(dir))
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}

		var suggestions []string
		for _, file := range files {
			name := file.Name()
			if strings.HasPrefix(name, ".") || !strings.HasPrefix(name, prefix) {
				continue
			}

			switch {
			case file.IsDir():
				suggestions = append(suggestions, head+dir+name+"/")
			case hasExtension(name, extensions):
				suggestions = append(suggestions, head+dir+name)
			}
		}

		slices.Sort(suggestions)
		return suggestions, cobra.ShellCompDirectiveNoFileComp
	}
}

func orDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

func hasExtension(filename string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}
