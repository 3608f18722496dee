// Package classpath reads compiled classes from directories and jar files and
// loads their declarations into an in-memory runtime. Method bodies are not
// executed: invoking one raises UnsupportedOperationException.
package classpath

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	parser "github.com/wreulicke/classfile-parser"
	"golang.org/x/sync/errgroup"

	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/host/memvm"
)

const unsupported = "java/lang/UnsupportedOperationException"

// Class is the declaration of one class file.
type Class struct {
	Name       string
	Super      string
	Interfaces []string
	Interface  bool
	Modifiers  int32
	Fields     []Member
	Methods    []Member
	// Source is the directory or archive the class came from.
	Source string
}

type Member struct {
	Name       string
	Descriptor string
	Modifiers  int32
}

// ParseClass decodes a class file.
func ParseClass(r io.Reader) (*Class, error) {
	cf, err := parser.New(r).Parse()
	if err != nil {
		return nil, fmt.Errorf("failed to parse class file: %w", err)
	}
	cp := cf.ConstantPool

	name, err := cf.ThisClassName()
	if err != nil {
		return nil, fmt.Errorf("class name: %w", err)
	}

	c := &Class{
		Name:      name,
		Interface: cf.AccessFlags.Is(0x0200),
		Modifiers: modifiers(cf.AccessFlags),
	}
	if cf.SuperClass != 0 {
		if c.Super, err = cf.SuperClassName(); err != nil {
			return nil, fmt.Errorf("%s: super class: %w", name, err)
		}
	}
	for _, idx := range cf.Interfaces {
		iface, err := cp.GetClassName(idx)
		if err != nil {
			return nil, fmt.Errorf("%s: interface: %w", name, err)
		}
		c.Interfaces = append(c.Interfaces, iface)
	}

	for _, f := range cf.Fields {
		fname, err := f.Name(cp)
		if err != nil {
			return nil, fmt.Errorf("%s: field name: %w", name, err)
		}
		desc, err := f.Descriptor(cp)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: descriptor: %w", name, fname, err)
		}
		c.Fields = append(c.Fields, Member{Name: fname, Descriptor: desc, Modifiers: modifiers(f.AccessFlags)})
	}
	for _, m := range cf.Methods {
		mname, err := m.Name(cp)
		if err != nil {
			return nil, fmt.Errorf("%s: method name: %w", name, err)
		}
		desc, err := m.Descriptor(cp)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: descriptor: %w", name, mname, err)
		}
		c.Methods = append(c.Methods, Member{Name: mname, Descriptor: desc, Modifiers: modifiers(m.AccessFlags)})
	}
	return c, nil
}

func modifiers(flags parser.AccessFlags) int32 {
	var mods int32
	if flags.Is(parser.ACC_PUBLIC) {
		mods |= host.AccPublic
	}
	if flags.Is(parser.ACC_PRIVATE) {
		mods |= host.AccPrivate
	}
	if flags.Is(parser.ACC_PROTECTED) {
		mods |= host.AccProtected
	}
	if flags.Is(parser.ACC_STATIC) {
		mods |= host.AccStatic
	}
	if flags.Is(parser.ACC_FINAL) {
		mods |= host.AccFinal
	}
	if flags.Is(parser.ACC_NATIVE) {
		mods |= host.AccNative
	}
	if flags.Is(parser.ACC_ABSTRACT) {
		mods |= host.AccAbstract
	}
	return mods
}

// entry is a class file waiting to be parsed.
type entry struct {
	source string
	path   string
	open   func() (io.ReadCloser, error)
}

// Scan parses every class under paths. Directories are walked; .jar and .zip
// files are read as archives.
func Scan(ctx context.Context, paths []string) ([]*Class, error) {
	var entries []entry
	var archives []*zip.ReadCloser
	defer func() {
		for _, a := range archives {
			a.Close()
		}
	}()

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		switch {
		case info.IsDir():
			found, err := walkDir(p)
			if err != nil {
				return nil, err
			}
			entries = append(entries, found...)
		case isArchive(p):
			z, err := zip.OpenReader(p)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", p, err)
			}
			archives = append(archives, z)
			entries = append(entries, archiveEntries(p, z)...)
		case strings.HasSuffix(p, ".class"):
			entries = append(entries, fileEntry(filepath.Dir(p), p))
		default:
			return nil, fmt.Errorf("%s: not a directory, archive or class file", p)
		}
	}

	var (
		mu      sync.Mutex
		classes = make([]*Class, 0, len(entries))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, e := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := e.parse()
			if err != nil {
				return err
			}
			mu.Lock()
			classes = append(classes, c)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes, nil
}

func (e entry) parse() (*Class, error) {
	rc, err := e.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	// The parser reads byte by byte; buffer the whole file first.
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.path, err)
	}
	c, err := ParseClass(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.path, err)
	}
	c.Source = e.source
	return c, nil
}

func isArchive(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jar" || ext == ".zip"
}

func skipClassFile(name string) bool {
	base := filepath.Base(name)
	return base == "module-info.class" || base == "package-info.class" ||
		strings.HasPrefix(name, "META-INF/")
}

func walkDir(root string) ([]entry, error) {
	var entries []entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".class") || skipClassFile(path) {
			return nil
		}
		entries = append(entries, fileEntry(root, path))
		return nil
	})
	return entries, err
}

func fileEntry(source, path string) entry {
	return entry{
		source: source,
		path:   path,
		open:   func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

func archiveEntries(source string, z *zip.ReadCloser) []entry {
	var entries []entry
	for _, f := range z.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".class") || skipClassFile(f.Name) {
			continue
		}
		entries = append(entries, entry{
			source: source,
			path:   source + "!/" + f.Name,
			open:   f.Open,
		})
	}
	return entries
}

// Image is a classpath loaded into a memvm.
type Image struct {
	VM      *memvm.VM
	Classes []*Class
}

// Open scans paths and loads the result.
func Open(ctx context.Context, paths []string, opts ...memvm.Option) (*Image, error) {
	classes, err := Scan(ctx, paths)
	if err != nil {
		return nil, err
	}
	vm := memvm.New(append([]memvm.Option{memvm.WithName("classpath")}, opts...)...)
	Define(vm, classes)
	slog.Debug("classpath loaded", "paths", paths, "classes", len(classes))
	return &Image{VM: vm, Classes: classes}, nil
}

// Define adds classes to vm, supertypes first. Classes already known to vm
// keep their existing members.
func Define(vm *memvm.VM, classes []*Class) {
	byName := make(map[string]*Class, len(classes))
	for _, c := range classes {
		if _, dup := byName[c.Name]; dup {
			slog.Debug("duplicate class on classpath", "class", c.Name, "source", c.Source)
			continue
		}
		byName[c.Name] = c
	}

	done := make(map[string]bool, len(classes))
	var define func(name string)
	define = func(name string) {
		c, ok := byName[name]
		if !ok || done[name] {
			return
		}
		done[name] = true

		define(c.Super)
		for _, iface := range c.Interfaces {
			define(iface)
		}

		var cls *memvm.Class
		if c.Interface {
			cls = vm.DefineInterface(c.Name, c.Interfaces...)
		} else {
			cls = vm.DefineClass(c.Name, c.Super, c.Interfaces...)
		}
		for _, f := range c.Fields {
			cls.AddField(f.Name, f.Descriptor, f.Modifiers)
		}
		for _, m := range c.Methods {
			cls.AddMethod(m.Name, m.Descriptor, m.Modifiers, noBody(c.Name, m))
		}
	}

	for _, c := range classes {
		define(c.Name)
	}
}

func noBody(class string, m Member) memvm.Native {
	return func(*memvm.Call) (host.Value, error) {
		return host.Value{}, memvm.Throwf(unsupported, "%s.%s%s is not executable in a classpath image",
			strings.ReplaceAll(class, "/", "."), m.Name, m.Descriptor)
	}
}
