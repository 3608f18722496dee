// Package browse is an interactive class browser over a snapshot of the
// reflective type directory.
//
// The snapshot is plain data: interop references belong to the thread that
// made them, and bubbletea runs Update on its own goroutine.
package browse

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/interop"
)

// Member is one method or field as shown in the detail pane.
type Member struct {
	Name      string
	Mapped    string
	Signature string
	Static    bool
	Modifiers int32
}

// Entry is one class.
type Entry struct {
	Name     string
	Original string
	Methods  []Member
	Fields   []Member
	// Err is the enumeration failure that left the class partial.
	Err error
}

// Names maps runtime names back to logical ones. *mapping.Mappings
// implements it.
type Names interface {
	// OriginalClassName returns its argument when the class is unknown.
	OriginalClassName(runtime string) string
	OriginalField(class, runtime string) string
	OriginalMethod(class, runtime string) string
}

// Entries snapshots classes, sorted by runtime name. names may be nil. A
// member's mapped name comes from names when it knows the member, else from
// the name recorded on the member by an earlier resolution.
func Entries(classes []*interop.Class, names Names) []Entry {
	entries := make([]Entry, 0, len(classes))
	for _, cls := range classes {
		if cls == nil {
			continue
		}
		e := Entry{Name: cls.FullName(), Err: cls.Err()}
		logical := e.Name
		if names != nil {
			logical = names.OriginalClassName(e.Name)
			if logical != e.Name {
				e.Original = logical
			}
		}

		for _, m := range cls.Methods() {
			mapped := m.Name(true)
			if names != nil {
				mapped = orDefault(names.OriginalMethod(logical, m.Name(false)), mapped)
			}
			e.Methods = append(e.Methods, Member{
				Name:      m.Name(false),
				Mapped:    mappedName(m.Name(false), mapped),
				Signature: m.Signature(false),
				Static:    m.IsStatic(),
				Modifiers: m.Modifiers(),
			})
		}
		for _, f := range cls.Fields() {
			mapped := f.Name(true)
			if names != nil {
				mapped = orDefault(names.OriginalField(logical, f.Name(false)), mapped)
			}
			e.Fields = append(e.Fields, Member{
				Name:      f.Name(false),
				Mapped:    mappedName(f.Name(false), mapped),
				Signature: f.Signature(false),
				Static:    f.IsStatic(),
				Modifiers: f.Modifiers(),
			})
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func mappedName(name, mapped string) string {
	if mapped == name {
		return ""
	}
	return mapped
}

// Declaration renders the member as Java source would declare it. method
// selects how Signature is read.
func (m Member) Declaration(method bool) string {
	var sb strings.Builder
	sb.WriteString(modifierString(m.Modifiers, m.Static))

	name := m.Name
	if m.Mapped != "" {
		name = m.Mapped
	}

	switch {
	case !method:
		if d, err := descriptor.ParseFieldSignature(m.Signature); err == nil {
			fmt.Fprintf(&sb, "%s %s", d.JavaName(), name)
		} else {
			fmt.Fprintf(&sb, "%s %s", m.Signature, name)
		}
	default:
		sig, err := descriptor.ParseMethodSignature(m.Signature)
		if err != nil {
			fmt.Fprintf(&sb, "%s%s", name, m.Signature)
			break
		}
		args := make([]string, len(sig.Args))
		for i, a := range sig.Args {
			args[i] = a.JavaName()
		}
		fmt.Fprintf(&sb, "%s %s(%s)", sig.Return.JavaName(), name, strings.Join(args, ", "))
	}

	if m.Mapped != "" {
		fmt.Fprintf(&sb, " [%s]", m.Name)
	}
	return sb.String()
}

func modifierString(mods int32, static bool) string {
	var parts []string
	switch {
	case mods&host.AccPublic != 0:
		parts = append(parts, "public")
	case mods&host.AccProtected != 0:
		parts = append(parts, "protected")
	case mods&host.AccPrivate != 0:
		parts = append(parts, "private")
	}
	if static || mods&host.AccStatic != 0 {
		parts = append(parts, "static")
	}
	if mods&host.AccAbstract != 0 {
		parts = append(parts, "abstract")
	}
	if mods&host.AccFinal != 0 {
		parts = append(parts, "final")
	}
	if mods&host.AccNative != 0 {
		parts = append(parts, "native")
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + " "
}
