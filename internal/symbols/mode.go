// Package symbols translates logical (deobfuscated) class and member names to
// the names a running JVM actually uses.
package symbols

import (
	"fmt"
	"strings"
)

// Mode selects the resolution strategy.
type Mode int

const (
	Disabled Mode = iota
	Direct
	Mapped
)

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case Direct:
		return "direct"
	case Mapped:
		return "mapped"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the names printed by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "off", "none":
		return Disabled, nil
	case "direct", "":
		return Direct, nil
	case "mapped":
		return Mapped, nil
	default:
		return Disabled, fmt.Errorf("unknown resolver mode %q (want direct, mapped or disabled)", s)
	}
}

// Set implements pflag.Value so a Mode can back a command-line flag.
func (m *Mode) Set(s string) error {
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m *Mode) Type() string {
	return "mode"
}

// UnmarshalText lets config files spell the mode by name.
func (m *Mode) UnmarshalText(text []byte) error {
	return m.Set(string(text))
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
