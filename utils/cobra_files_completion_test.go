package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"app.jar", "app.txt", ".hidden.jar", "lib/core.jar"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	complete := CompleteFilesByExtension([]string{".jar"}, false)
	got, directive := complete(&cobra.Command{}, nil, dir+"/")
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
	assert.Equal(t, []string{dir + "/app.jar", dir + "/lib/"}, got)

	got, _ = complete(&cobra.Command{}, nil, dir+"/l")
	assert.Equal(t, []string{dir + "/lib/"}, got)

	list := CompleteFilesByExtension([]string{".jar"}, true)
	prefix := "first.jar" + string(os.PathListSeparator)
	got, _ = list(&cobra.Command{}, nil, prefix+dir+"/lib/")
	assert.Equal(t, []string{prefix + dir + "/lib/core.jar"}, got)

	_, directive = complete(&cobra.Command{}, nil, filepath.Join(dir, "missing")+"/")
	assert.Equal(t, cobra.ShellCompDirectiveError, directive)
}
