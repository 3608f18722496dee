package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jinterop/internal/report"
	"github.com/mabhi256/jinterop/internal/symbols"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, symbols.Direct, cfg.Mode)
	assert.Equal(t, time.Second, cfg.GetInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.GetPollInterval())
	assert.Equal(t, "No host specified", cfg.String())
}

func TestDecode(t *testing.T) {
	input := `
mode = "mapped"
mapping_file = "mappings.txt"
heap_dump = "app.hprof"
anchor = "net.example.Main"
exclude_packages = ["sun.", "jdk."]
poll_interval = 20
reporter = "clipboard"
log_level = "debug"
colour = "blue"

[mapping.classes]
"net.example.Player" = "a"

[mapping.fields."net.example.Player"]
health = "b"
`
	cfg, err := Decode(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, symbols.Mapped, cfg.Mode)
	assert.Equal(t, "mappings.txt", cfg.MappingFile)
	assert.Equal(t, "app.hprof", cfg.HeapDump)
	assert.Equal(t, "net.example.Main", cfg.Anchor)
	assert.Equal(t, []string{"sun.", "jdk."}, cfg.ExcludePackages)
	assert.Equal(t, 20*time.Millisecond, cfg.GetPollInterval())
	assert.Equal(t, 10*time.Second, cfg.GetPhaseTimeout())
	assert.Equal(t, report.Clipboard, cfg.Reporter)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "a", cfg.Overrides.Classes["net.example.Player"])
	assert.Equal(t, "b", cfg.Overrides.Fields["net.example.Player"]["health"])
	assert.Equal(t, []string{`unknown setting "colour"`}, cfg.Warnings)
	assert.Equal(t, "heap dump app.hprof", cfg.String())
}

func TestDecodeRejects(t *testing.T) {
	tests := map[string]string{
		"two hosts":       "heap_dump = \"a.hprof\"\njvm = true",
		"zero interval":   "interval = 0",
		"mapped no table": "mode = \"mapped\"",
		"bad mode":        "mode = \"obfuscated\"",
		"bad reporter":    "reporter = \"popup\"",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envConfig, filepath.Join(dir, "absent.toml"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(dir, "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("interval = 250\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.GetInterval())
}

func TestResolverFromOverrides(t *testing.T) {
	cfg := Default()
	cfg.Mode = symbols.Mapped
	cfg.Overrides = Overrides{
		Classes: map[string]string{"net.example.Player": "a"},
		Methods: map[string]map[string]string{"net.example.Player": {"damage": "d"}},
	}

	m, err := cfg.Mappings(nil)
	require.NoError(t, err)
	assert.Equal(t, "a", m.ClassMapping("net.example.Player"))
	assert.Equal(t, "d", m.MethodMapping("net.example.Player", "damage"))

	r, err := cfg.Resolver(nil)
	require.NoError(t, err)
	assert.Equal(t, symbols.Mapped, r.Mode())
	assert.Equal(t, "a", r.ResolveClassName("net.example.Player"))
}

func TestResolverMappingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.txt")
	require.NoError(t, os.WriteFile(path, []byte("net.example.Player -> a:\n    float health -> b\n"), 0o644))

	cfg := Default()
	cfg.Mode = symbols.Mapped
	cfg.MappingFile = path
	cfg.Overrides.Fields = map[string]map[string]string{"net.example.Player": {"health": "h"}}

	m, err := cfg.Mappings(nil)
	require.NoError(t, err)
	assert.Equal(t, "h", m.FieldMapping("net.example.Player", "health"))

	cfg.MappingFile = filepath.Join(t.TempDir(), "missing.txt")
	_, err = cfg.Resolver(nil)
	assert.Error(t, err)
}
