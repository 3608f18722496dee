package symbols

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/interop"
)

var (
	ErrNoTable  = errors.New("mapped mode needs a mapping table")
	ErrDisabled = errors.New("symbol resolution is disabled")
)

// Table is a read-only mapping between logical and runtime names. Class
// names are dotted. Lookups that miss return "", except OriginalClassName,
// which returns its argument.
type Table interface {
	ClassMapping(logical string) string
	OriginalClassName(runtime string) string
	FieldMapping(logicalClass, logicalField string) string
	MethodMapping(logicalClass, logicalMethod string) string
}

// OverloadTable is implemented by tables that can also tell overloads apart
// by their Java parameter list, e.g. "int,java.lang.String".
type OverloadTable interface {
	MethodOverload(logicalClass, logicalMethod, params string) string
}

// Resolver finds runtime members by logical name. Misses return nil, which
// the interop package treats as the null member.
type Resolver interface {
	Mode() Mode
	ResolveMethod(cls *interop.Class, name, sig string) *interop.Method
	ResolveField(cls *interop.Class, name, sig string) *interop.Field
	// ResolveClassName returns the runtime class name in slashed form, or ""
	// when resolution is disabled.
	ResolveClassName(logical string) string
}

// New builds the resolver for mode. table is required for Mapped and
// ignored otherwise.
func New(mode Mode, table Table) (Resolver, error) {
	switch mode {
	case Direct:
		return direct{}, nil
	case Mapped:
		if table == nil {
			return nil, ErrNoTable
		}
		return &mapped{table: table}, nil
	case Disabled:
		return disabled{}, nil
	default:
		return nil, fmt.Errorf("resolver mode %s: %w", mode, ErrDisabled)
	}
}

// Class resolves a logical class name and returns its directory entry.
func Class(ctx context.Context, r Resolver, dir *interop.Directory, logical string) (*interop.Class, error) {
	name := r.ResolveClassName(logical)
	if name == "" {
		return nil, fmt.Errorf("class %s: %w", logical, ErrDisabled)
	}
	return dir.ForName(ctx, name)
}

func slashed(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

func dotted(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

type direct struct{}

func (direct) Mode() Mode { return Direct }

func (direct) ResolveMethod(cls *interop.Class, name, sig string) *interop.Method {
	return cls.Method(name, sig)
}

func (direct) ResolveField(cls *interop.Class, name, sig string) *interop.Field {
	return cls.Field(name, sig)
}

func (direct) ResolveClassName(logical string) string {
	return slashed(logical)
}

type disabled struct{}

func (disabled) Mode() Mode { return Disabled }

func (disabled) ResolveMethod(*interop.Class, string, string) *interop.Method {
	return nil
}

func (disabled) ResolveField(*interop.Class, string, string) *interop.Field {
	return nil
}

func (disabled) ResolveClassName(string) string { return "" }

type mapped struct {
	table Table
}

func (*mapped) Mode() Mode { return Mapped }

// logicalClass maps the entry's runtime name back through the table.
// Classes the table does not know (JDK classes, say) keep their own names and
// so do their members.
func (r *mapped) logicalClass(cls *interop.Class) (name string, known bool) {
	actual := cls.FullName()
	name = r.table.OriginalClassName(actual)
	return name, name != actual || r.table.ClassMapping(name) != ""
}

func (r *mapped) ResolveMethod(cls *interop.Class, name, sig string) *interop.Method {
	if cls == nil {
		return nil
	}
	owner, known := r.logicalClass(cls)

	target := name
	if known {
		target = r.methodMapping(owner, name, sig)
	}
	if target == "" {
		return nil
	}
	realSig, err := r.remapSignature(sig, true)
	if err != nil {
		return nil
	}

	m := cls.Method(target, realSig)
	if m.Valid() {
		m.SetMappings(name, sig)
	}
	return m
}

func (r *mapped) methodMapping(owner, name, sig string) string {
	if ot, ok := r.table.(OverloadTable); ok && sig != "" {
		if ms, err := descriptor.ParseMethodSignature(sig); err == nil {
			params := make([]string, len(ms.Args))
			for i, a := range ms.Args {
				params[i] = a.JavaName()
			}
			if target := ot.MethodOverload(owner, name, strings.Join(params, ",")); target != "" {
				return target
			}
		}
	}
	return r.table.MethodMapping(owner, name)
}

func (r *mapped) ResolveField(cls *interop.Class, name, sig string) *interop.Field {
	if cls == nil {
		return nil
	}
	owner, known := r.logicalClass(cls)

	target := name
	if known {
		target = r.table.FieldMapping(owner, name)
	}
	if target == "" {
		return nil
	}
	realSig, err := r.remapSignature(sig, false)
	if err != nil {
		return nil
	}

	f := cls.Field(target, realSig)
	if f.Valid() {
		f.SetMappings(name, sig)
	}
	return f
}

func (r *mapped) ResolveClassName(logical string) string {
	name := dotted(logical)
	if target := r.table.ClassMapping(name); target != "" {
		name = target
	}
	return slashed(name)
}

// remapSignature rewrites the class names in a logical signature to their
// runtime names. An empty signature stays empty.
func (r *mapped) remapSignature(sig string, method bool) (string, error) {
	if sig == "" {
		return "", nil
	}
	if !method {
		d, err := descriptor.ParseFieldSignature(sig)
		if err != nil {
			return "", err
		}
		return r.remap(d).Signature(), nil
	}

	ms, err := descriptor.ParseMethodSignature(sig)
	if err != nil {
		return "", err
	}
	for i, a := range ms.Args {
		ms.Args[i] = r.remap(a)
	}
	ms.Return = r.remap(ms.Return)
	return ms.String(), nil
}

func (r *mapped) remap(d descriptor.Descriptor) descriptor.Descriptor {
	switch d.Kind {
	case descriptor.KindObject:
		if target := r.table.ClassMapping(dotted(d.Name)); target != "" {
			return descriptor.Object(target)
		}
	case descriptor.KindArray:
		if d.Elem != nil {
			return descriptor.ArrayOf(r.remap(*d.Elem))
		}
	}
	return d
}
