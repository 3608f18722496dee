// Package config holds jinterop settings. Values come from defaults, then an
// optional TOML file, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mabhi256/jinterop/internal/mapping"
	"github.com/mabhi256/jinterop/internal/report"
	"github.com/mabhi256/jinterop/internal/symbols"
)

const envConfig = "JINTEROP_CONFIG"

type Config struct {
	// Symbol resolution
	Mode        symbols.Mode `toml:"mode"`
	MappingFile string       `toml:"mapping_file"`
	Overrides   Overrides    `toml:"mapping"`

	// Host selection; at most one of these
	HeapDump   string   `toml:"heap_dump"`
	Classpath  []string `toml:"classpath"`
	JVM        bool     `toml:"jvm"`
	JVMOptions []string `toml:"jvm_options"`

	// Class dump
	Anchor          string   `toml:"anchor"`
	ExcludePackages []string `toml:"exclude_packages"`

	PhaseTimeout int `toml:"phase_timeout"` // ms
	DumpTimeout  int `toml:"dump_timeout"`  // ms
	PollInterval int `toml:"poll_interval"` // ms
	Interval     int `toml:"interval"`      // ms, watch loops

	Reporter report.Kind `toml:"reporter"`
	LogLevel slog.Level  `toml:"log_level"`
	Debug    bool        `toml:"debug"`

	// Warnings lists keys in the file that did not match any setting.
	Warnings []string `toml:"-"`
}

// Overrides are mapping entries written by hand in the config file. They are
// applied on top of the mapping file.
//
//	[mapping.classes]
//	"net.example.Player" = "a"
//	[mapping.fields."net.example.Player"]
//	health = "b"
type Overrides struct {
	Classes map[string]string            `toml:"classes"`
	Fields  map[string]map[string]string `toml:"fields"`
	Methods map[string]map[string]string `toml:"methods"`
}

func (o Overrides) Empty() bool {
	return len(o.Classes) == 0 && len(o.Fields) == 0 && len(o.Methods) == 0
}

// Apply adds the overrides to m.
func (o Overrides) Apply(m *mapping.Mappings) {
	for orig, obf := range o.Classes {
		m.AddClass(orig, obf)
	}
	for class, fields := range o.Fields {
		for name, obf := range fields {
			m.AddField(class, name, obf)
		}
	}
	for class, methods := range o.Methods {
		for name, obf := range methods {
			m.AddMethod(class, name, obf)
		}
	}
}

func Default() *Config {
	return &Config{
		Mode:            symbols.Direct,
		ExcludePackages: []string{"java.", "javax.", "jdk.", "sun.", "com.sun."},
		PhaseTimeout:    10_000,
		DumpTimeout:     30_000,
		PollInterval:    100,
		Interval:        1000,
		Reporter:        report.Log,
		LogLevel:        slog.LevelWarn,
	}
}

// Path returns the config file location: $JINTEROP_CONFIG, else
// <user config dir>/jinterop/config.toml.
func Path() (string, error) {
	if p := os.Getenv(envConfig); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "jinterop", "config.toml"), nil
}

// Load reads the config at path, or at Path() when path is empty. A missing
// default file yields the defaults; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads TOML over the defaults.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	meta, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, err
	}
	for _, key := range meta.Undecoded() {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown setting %q", key.String()))
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	hosts := 0
	if c.HeapDump != "" {
		hosts++
	}
	if len(c.Classpath) > 0 {
		hosts++
	}
	if c.JVM {
		hosts++
	}
	if hosts > 1 {
		return errors.New("choose one of heap_dump, classpath or jvm")
	}

	for name, v := range map[string]int{
		"phase_timeout": c.PhaseTimeout,
		"dump_timeout":  c.DumpTimeout,
		"poll_interval": c.PollInterval,
		"interval":      c.Interval,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}

	if c.Mode == symbols.Mapped && c.MappingFile == "" && c.Overrides.Empty() {
		return errors.New("mode mapped needs mapping_file or [mapping] entries")
	}
	return nil
}

// Mappings loads the mapping file and applies the overrides. It returns nil
// when neither is configured.
func (c *Config) Mappings(log *slog.Logger) (*mapping.Mappings, error) {
	if c.MappingFile == "" && c.Overrides.Empty() {
		return nil, nil
	}

	m := mapping.New()
	if c.MappingFile != "" {
		loaded, err := mapping.Load(c.MappingFile, log)
		if err != nil {
			return nil, err
		}
		m = loaded
	}
	c.Overrides.Apply(m)
	return m, nil
}

// Resolver builds the symbol resolver for the configured mode.
func (c *Config) Resolver(log *slog.Logger) (symbols.Resolver, error) {
	if c.Mode != symbols.Mapped {
		return symbols.New(c.Mode, nil)
	}
	m, err := c.Mappings(log)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return symbols.New(c.Mode, nil)
	}
	return symbols.New(c.Mode, m)
}

func (c *Config) GetInterval() time.Duration {
	return time.Duration(c.Interval) * time.Millisecond
}

func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

func (c *Config) GetPhaseTimeout() time.Duration {
	return time.Duration(c.PhaseTimeout) * time.Millisecond
}

func (c *Config) GetDumpTimeout() time.Duration {
	return time.Duration(c.DumpTimeout) * time.Millisecond
}

// String names the selected host.
func (c *Config) String() string {
	switch {
	case c.HeapDump != "":
		return "heap dump " + c.HeapDump
	case len(c.Classpath) > 0:
		return "classpath " + strings.Join(c.Classpath, string(os.PathListSeparator))
	case c.JVM:
		return "embedded JVM"
	default:
		return "No host specified"
	}
}
