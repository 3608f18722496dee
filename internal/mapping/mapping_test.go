package mapping

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jinterop/internal/symbols"
)

var (
	_ symbols.Table         = (*Mappings)(nil)
	_ symbols.OverloadTable = (*Mappings)(nil)
)

const sample = `# compiler: R8
# pg_map_id: 1a2b3c
net.example.Player -> a:
    float health -> b
    java.lang.String name -> c
    1:4:void <init>() -> <init>
    12:14:void damage(float) -> d
    15:15:void damage(float, java.lang.String):20:20 -> e
    int size() -> f
net.example.World -> b:
    java.util.List players -> a
    net.example.Player[] cache -> b
    3:3:net.example.Player find(java.lang.String) -> a
`

func TestParse(t *testing.T) {
	m, err := Parse(strings.NewReader(sample), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	assert.Equal(t, "a", m.ClassMapping("net.example.Player"))
	assert.Equal(t, "b", m.ClassMapping("net.example.World"))
	assert.Empty(t, m.ClassMapping("net.example.Missing"))

	assert.Equal(t, "net.example.Player", m.OriginalClassName("a"))
	assert.Equal(t, "java.lang.String", m.OriginalClassName("java.lang.String"))

	assert.Equal(t, "b", m.FieldMapping("net.example.Player", "health"))
	assert.Equal(t, "c", m.FieldMapping("net.example.Player", "name"))
	assert.Equal(t, "b", m.FieldMapping("net.example.World", "cache"))
	assert.Empty(t, m.FieldMapping("net.example.Player", "cache"))
	assert.Empty(t, m.FieldMapping("net.example.Missing", "health"))

	assert.Equal(t, "f", m.MethodMapping("net.example.Player", "size"))
	assert.Equal(t, "a", m.MethodMapping("net.example.World", "find"))
	assert.Equal(t, "<init>", m.MethodMapping("net.example.Player", "<init>"))
}

func TestReverseMembers(t *testing.T) {
	m, err := Parse(strings.NewReader(sample), nil)
	require.NoError(t, err)

	assert.Equal(t, "health", m.OriginalField("net.example.Player", "b"))
	assert.Equal(t, "players", m.OriginalField("net.example.World", "a"))
	assert.Empty(t, m.OriginalField("net.example.Player", "zz"))

	assert.Equal(t, "damage", m.OriginalMethod("net.example.Player", "d"))
	assert.Equal(t, "damage", m.OriginalMethod("net.example.Player", "e"))
	assert.Equal(t, "size", m.OriginalMethod("net.example.Player", "f"))
	assert.Empty(t, m.OriginalMethod("net.example.Missing", "f"))

	m.AddMethod("net.example.Manual", "tick", "t")
	assert.Equal(t, "tick", m.OriginalMethod("net.example.Manual", "t"))
}

func TestOverloads(t *testing.T) {
	m, err := Parse(strings.NewReader(sample), nil)
	require.NoError(t, err)

	// Name-only lookups keep the first overload.
	assert.Equal(t, "d", m.MethodMapping("net.example.Player", "damage"))
	assert.Equal(t, "d", m.MethodOverload("net.example.Player", "damage", "float"))
	assert.Equal(t, "e", m.MethodOverload("net.example.Player", "damage", "float, java.lang.String"))
	assert.Empty(t, m.MethodOverload("net.example.Player", "damage", "int"))
}

func TestParseSkipsMalformedLines(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	input := `orphan -> x
net.example.Player -> a:
    garbage without arrow
    health -> h
    1:2:brokenmethod( -> m
    float health -> b
`
	m, err := Parse(strings.NewReader(input), log)
	require.NoError(t, err)
	assert.Equal(t, "b", m.FieldMapping("net.example.Player", "health"))
	assert.Contains(t, logs.String(), "member mapping before any class")
	assert.Contains(t, logs.String(), "bad field mapping")
	assert.Contains(t, logs.String(), "bad method mapping")
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in, name, params string
		wantErr          bool
	}{
		{in: "void run()", name: "run"},
		{in: "12:14:int add(int,int)", name: "add", params: "int,int"},
		{in: "1:1:java.lang.String get(int, long):40:41", name: "get", params: "int,long"},
		{in: "run()", wantErr: true},
		{in: "12:", wantErr: true},
		{in: "void run(", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, params, err := parseMethod(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	m, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", m.ClassMapping("net.example.Player"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestManualOverrides(t *testing.T) {
	m := New()
	m.AddClass("net.example.Options", "q")
	m.AddField("net.example.Options", "gamma", "ce")
	m.AddMethod("net.example.Options", "save", "s")
	m.AddMethod("net.example.Options", "save", "t")

	assert.Equal(t, "net.example.Options", m.OriginalClassName("q"))
	assert.Equal(t, "ce", m.FieldMapping("net.example.Options", "gamma"))
	assert.Equal(t, "s", m.MethodMapping("net.example.Options", "save"))
}
