// Package mapping loads ProGuard/R8 style name mappings:
//
//	net.example.Player -> a:
//	    float health -> b
//	    12:14:void damage(float,java.lang.String) -> c
//	    int size() -> d
//
// Class lines map an original class to its obfuscated name; indented lines
// below map that class's fields and methods. Method lines may carry a
// "start:end:" line-number prefix.
package mapping

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const arrow = " -> "

// Mappings is a parsed mapping file. It is safe for concurrent reads once
// loading is done.
type Mappings struct {
	classes  map[string]string
	original map[string]string
	fields   map[string]map[string]string
	methods  map[string]map[string]string
	// overloads keys methods by "name(type,type)".
	overloads map[string]map[string]string
}

func New() *Mappings {
	return &Mappings{
		classes:   make(map[string]string),
		original:  make(map[string]string),
		fields:    make(map[string]map[string]string),
		methods:   make(map[string]map[string]string),
		overloads: make(map[string]map[string]string),
	}
}

// Load reads a mapping file from disk.
func Load(path string, log *slog.Logger) (*Mappings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file: %w", err)
	}
	defer f.Close()

	m, err := Parse(f, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse reads mappings from r. Lines it cannot make sense of are logged and
// skipped.
func Parse(r io.Reader, log *slog.Logger) (*Mappings, error) {
	if log == nil {
		log = slog.Default()
	}
	m := New()

	var current string
	skipped := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		left, target, ok := strings.Cut(line, arrow)
		if !ok {
			skipped++
			log.Debug("mapping line without arrow", "line", lineNo)
			continue
		}
		left = strings.TrimSpace(left)
		target = strings.TrimSpace(target)

		if strings.HasSuffix(target, ":") {
			current = left
			m.AddClass(left, strings.TrimSuffix(target, ":"))
			continue
		}
		if current == "" {
			skipped++
			log.Warn("member mapping before any class", "line", lineNo)
			continue
		}

		if strings.Contains(left, "(") {
			name, params, err := parseMethod(left)
			if err != nil {
				skipped++
				log.Warn("bad method mapping", "line", lineNo, "err", err)
				continue
			}
			m.addMethod(current, name, params, target)
			continue
		}

		fields := strings.Fields(left)
		if len(fields) < 2 {
			skipped++
			log.Warn("bad field mapping", "line", lineNo, "text", left)
			continue
		}
		m.AddField(current, fields[len(fields)-1], target)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading mappings: %w", err)
	}

	log.Debug("mappings loaded", "classes", len(m.classes), "skipped", skipped)
	return m, nil
}

// parseMethod splits "12:14:void damage(float,int):12:14" style text into the
// method name and its comma separated parameter list.
func parseMethod(s string) (name, params string, err error) {
	for s != "" && s[0] >= '0' && s[0] <= '9' {
		i := strings.IndexByte(s, ':')
		if i < 0 {
			return "", "", fmt.Errorf("line range without method in %q", s)
		}
		s = s[i+1:]
	}

	open := strings.IndexByte(s, '(')
	closing := strings.IndexByte(s, ')')
	if open < 0 || closing < open {
		return "", "", fmt.Errorf("unbalanced parameters in %q", s)
	}

	head := strings.Fields(s[:open])
	if len(head) < 2 {
		return "", "", fmt.Errorf("missing return type or name in %q", s)
	}
	return head[len(head)-1], strings.ReplaceAll(s[open+1:closing], " ", ""), nil
}

// AddClass maps original to obfuscated. Later calls for the same original
// class win.
func (m *Mappings) AddClass(original, obfuscated string) {
	m.classes[original] = obfuscated
	m.original[obfuscated] = original
}

func (m *Mappings) AddField(class, name, obfuscated string) {
	put(m.fields, class, name, obfuscated, true)
}

// AddMethod maps a method by name. The first mapping of a name is kept so
// that name-only lookups pick the first declared overload.
func (m *Mappings) AddMethod(class, name, obfuscated string) {
	put(m.methods, class, name, obfuscated, false)
}

func (m *Mappings) addMethod(class, name, params, obfuscated string) {
	m.AddMethod(class, name, obfuscated)
	put(m.overloads, class, name+"("+params+")", obfuscated, true)
}

func put(table map[string]map[string]string, class, key, value string, replace bool) {
	byName, ok := table[class]
	if !ok {
		byName = make(map[string]string)
		table[class] = byName
	}
	if _, exists := byName[key]; exists && !replace {
		return
	}
	byName[key] = value
}

// ClassMapping returns the obfuscated name of an original class, or "".
func (m *Mappings) ClassMapping(original string) string {
	return m.classes[original]
}

// OriginalClassName returns the original name of an obfuscated class, or the
// argument itself when it is not mapped.
func (m *Mappings) OriginalClassName(obfuscated string) string {
	if orig, ok := m.original[obfuscated]; ok {
		return orig
	}
	return obfuscated
}

func (m *Mappings) FieldMapping(class, field string) string {
	return m.fields[class][field]
}

func (m *Mappings) MethodMapping(class, method string) string {
	return m.methods[class][method]
}

// MethodOverload looks a method up by name and Java parameter list, e.g.
// "damage(float,java.lang.String)".
func (m *Mappings) MethodOverload(class, method, params string) string {
	return m.overloads[class][method+"("+strings.ReplaceAll(params, " ", "")+")"]
}

// OriginalField returns the original name of an obfuscated field of class,
// or "".
func (m *Mappings) OriginalField(class, obfuscated string) string {
	return reverse(m.fields[class], obfuscated)
}

// OriginalMethod is OriginalField for methods. Overloads sharing an
// obfuscated name resolve to the same original name.
func (m *Mappings) OriginalMethod(class, obfuscated string) string {
	if key := reverse(m.overloads[class], obfuscated); key != "" {
		name, _, _ := strings.Cut(key, "(")
		return name
	}
	return reverse(m.methods[class], obfuscated)
}

func reverse(byName map[string]string, obfuscated string) string {
	for name, obf := range byName {
		if obf == obfuscated {
			return name
		}
	}
	return ""
}

// Len is the number of mapped classes.
func (m *Mappings) Len() int {
	return len(m.classes)
}
