package interop

import "github.com/mabhi256/jinterop/internal/host"

type memberKey struct {
	name string
	sig  string
}

// Class is a directory entry: a global class reference plus every method and
// field the runtime reported for it. Entries are immutable once built.
type Class struct {
	ref      *Ref
	name     string
	fullName string
	status   host.ClassStatus

	methods       map[memberKey]*Method
	methodsByName map[string]*Method
	methodOrder   []*Method

	fields       map[memberKey]*Field
	fieldsByName map[string]*Field
	fieldOrder   []*Field

	// err is the enumeration failure that left the entry partial, if any.
	err error
}

func newClass(ref *Ref) *Class {
	return &Class{
		ref:           ref,
		methods:       make(map[memberKey]*Method),
		methodsByName: make(map[string]*Method),
		fields:        make(map[memberKey]*Field),
		fieldsByName:  make(map[string]*Field),
	}
}

func (c *Class) addMethod(m *Method) {
	key := memberKey{m.name, m.sig}
	if _, ok := c.methods[key]; ok {
		_ = m.Release()
		return
	}
	c.methods[key] = m
	if _, ok := c.methodsByName[m.name]; !ok {
		c.methodsByName[m.name] = m
	}
	c.methodOrder = append(c.methodOrder, m)
}

func (c *Class) addField(f *Field) {
	key := memberKey{f.name, f.sig}
	if _, ok := c.fields[key]; ok {
		_ = f.Release()
		return
	}
	c.fields[key] = f
	if _, ok := c.fieldsByName[f.name]; !ok {
		c.fieldsByName[f.name] = f
	}
	c.fieldOrder = append(c.fieldOrder, f)
}

// Method looks up a method by runtime name and signature. With an empty sig
// the first method of that name is returned. A miss returns nil, which is a
// usable null Method.
func (c *Class) Method(name, sig string) *Method {
	if c == nil {
		return nil
	}
	if sig == "" {
		return c.methodsByName[name]
	}
	return c.methods[memberKey{name, sig}]
}

// Field is the field counterpart of Method.
func (c *Class) Field(name, sig string) *Field {
	if c == nil {
		return nil
	}
	if sig == "" {
		return c.fieldsByName[name]
	}
	return c.fields[memberKey{name, sig}]
}

// Methods lists methods in the order the runtime declared them.
func (c *Class) Methods() []*Method {
	if c == nil {
		return nil
	}
	return append([]*Method(nil), c.methodOrder...)
}

func (c *Class) Fields() []*Field {
	if c == nil {
		return nil
	}
	return append([]*Field(nil), c.fieldOrder...)
}

// Name is the simple class name.
func (c *Class) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// FullName is the dotted binary name, e.g. java.util.ArrayList.
func (c *Class) FullName() string {
	if c == nil {
		return ""
	}
	return c.fullName
}

// SlashedName is FullName in the runtime's internal form.
func (c *Class) SlashedName() string {
	return slashedName(c.FullName())
}

// Ref is the entry's global class reference. It is owned by the directory.
func (c *Class) Ref() *Ref {
	if c == nil {
		return nil
	}
	return c.ref
}

func (c *Class) Status() host.ClassStatus {
	if c == nil {
		return 0
	}
	return c.status
}

// Err reports why the entry is incomplete, or nil.
func (c *Class) Err() error {
	if c == nil {
		return nil
	}
	return c.err
}

func (c *Class) release() {
	for _, m := range c.methodOrder {
		_ = m.Release()
	}
	for _, f := range c.fieldOrder {
		_ = f.Release()
	}
	_ = c.ref.Release()
}
