package discovery

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jpsOutput = `4120 org.example.game.Main -Xmx2g -Dgame.mode=hardcore
4177 sun.tools.jps.Jps -Dapplication.home=/usr/lib/jvm/java-21 -Xms8m
5001 /opt/server/server.jar nogui
5002 -- process information unavailable
5310 /home/u/.vscode/extensions/redhat.java/server/plugins/org.eclipse.equinox.launcher.jar
garbage line

6000 jdk.jcmd/sun.tools.jcmd.JCmd
`

func TestParseJPS(t *testing.T) {
	procs := ParseJPS(jpsOutput)
	require.Len(t, procs, 2)

	assert.Equal(t, 4120, procs[0].PID)
	assert.Equal(t, "org.example.game.Main", procs[0].MainClass)
	assert.Equal(t, "-Xmx2g -Dgame.mode=hardcore", procs[0].Args)

	assert.Equal(t, "/opt/server/server", procs[1].MainClass)
	assert.Equal(t, "nogui", procs[1].Args)
	assert.Equal(t, "5001 /opt/server/server", procs[1].String())
}

func TestProcesses(t *testing.T) {
	var gotName string
	var gotArgs []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(jpsOutput), nil
	}

	procs, err := Processes(context.Background(), run)
	require.NoError(t, err)
	assert.Len(t, procs, 2)
	assert.Equal(t, "jps", gotName)
	assert.Equal(t, []string{"-l", "-v"}, gotArgs)

	_, err = Processes(context.Background(), func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("jps missing")
	})
	assert.EqualError(t, err, "jps missing")
}

func TestHeapDump(t *testing.T) {
	var gotArgs []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("4120:\nDumping heap to /tmp/x.hprof ...\nHeap dump file created\n"), nil
	}

	path, err := HeapDump(context.Background(), run, 4120, "x.hprof", true)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, []string{"4120", "GC.heap_dump", "-all", path}, gotArgs)

	failing := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("4120:\njava.io.IOException: File exists\n"), nil
	}
	_, err = HeapDump(context.Background(), failing, 4120, "x.hprof", false)
	assert.ErrorContains(t, err, "File exists")
}
