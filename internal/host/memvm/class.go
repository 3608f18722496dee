package memvm

import (
	"fmt"
	"strings"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
)

// Native is a Go method body.
type Native func(c *Call) (host.Value, error)

// Call is the activation passed to a Native. This is 0 for static methods.
// Handles in This and Args are valid on Env's thread only.
type Call struct {
	Env    *Env
	Method *Method
	This   host.Object
	Args   []host.Value
}

// Class is a loaded class. Name is slashed (java/lang/String, [I).
type Class struct {
	vm *VM

	Name       string
	Super      *Class
	Interfaces []*Class
	Interface  bool
	Status     host.ClassStatus

	Methods []*Method
	Fields  []*Field

	statics map[*Field]cell
	mirror  *Instance
}

type Method struct {
	ID        host.MethodID
	Class     *Class
	Name      string
	Sig       string
	Modifiers int32
	Native    Native

	ret descriptor.Kind
}

func (m *Method) IsStatic() bool {
	return m.Modifiers&host.AccStatic != 0
}

func (m *Method) String() string {
	return fmt.Sprintf("%s.%s%s", m.Class.Name, m.Name, m.Sig)
}

type Field struct {
	ID        host.FieldID
	Class     *Class
	Name      string
	Sig       string
	Modifiers int32

	kind descriptor.Kind
}

func (f *Field) IsStatic() bool {
	return f.Modifiers&host.AccStatic != 0
}

// Kind is the field's value kind.
func (f *Field) Kind() descriptor.Kind {
	return f.kind
}

// Instance is an object on the memvm heap.
type Instance struct {
	class  *Class
	fields map[*Field]cell

	str   string
	isStr bool

	elems []cell
	elem  descriptor.Kind

	mirror *Class
	native any
	thread *threadState
	hash   int32
}

func (i *Instance) Class() *Class {
	return i.class
}

type threadState struct {
	name   string
	daemon bool
	loader *Instance
}

type cell struct {
	prim host.Value
	ref  *Instance
}

func primCell(v host.Value) cell {
	return cell{prim: v}
}

func refCell(inst *Instance) cell {
	return cell{ref: inst}
}

// DefineClass creates a class, or returns the existing one with that name.
// super may be empty only for java/lang/Object and interfaces.
func (vm *VM) DefineClass(name, super string, interfaces ...string) *Class {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.defineClassLocked(name, super, interfaces...)
}

// DefineInterface creates an interface type.
func (vm *VM) DefineInterface(name string, extends ...string) *Class {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	cls := vm.defineClassLocked(name, "", extends...)
	cls.Interface = true
	return cls
}

func (vm *VM) defineClassLocked(name, super string, interfaces ...string) *Class {
	name = strings.ReplaceAll(name, ".", "/")
	if cls, ok := vm.classes[name]; ok {
		if cls.Super == nil && super != "" {
			cls.Super = vm.classOrStubLocked(super)
		}
		return cls
	}

	cls := vm.newClassLocked(name)
	vm.classes[name] = cls
	vm.linkLocked(cls, super, interfaces...)
	return cls
}

// DefineLoaderClass creates a class that shares its name with an existing one
// but is a distinct class, as if defined by another class loader. Name
// lookups keep resolving to the first definition; enumeration sees both.
func (vm *VM) DefineLoaderClass(name, super string) *Class {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	name = strings.ReplaceAll(name, ".", "/")
	if _, ok := vm.classes[name]; !ok {
		return vm.defineClassLocked(name, super)
	}
	cls := vm.newClassLocked(name)
	vm.linkLocked(cls, super)
	return cls
}

func (vm *VM) newClassLocked(name string) *Class {
	cls := &Class{
		vm:      vm,
		Name:    name,
		Status:  host.ClassVerified | host.ClassPrepared | host.ClassInitialized,
		statics: make(map[*Field]cell),
	}
	if strings.HasPrefix(name, "[") {
		cls.Status |= host.ClassArray
	}
	return cls
}

// linkLocked resolves supertypes, records load order and creates the mirror.
// It runs after registration so java/lang/Class can be its own mirror's class.
func (vm *VM) linkLocked(cls *Class, super string, interfaces ...string) {
	if super != "" {
		cls.Super = vm.classOrStubLocked(super)
	}
	for _, iface := range interfaces {
		cls.Interfaces = append(cls.Interfaces, vm.classOrStubLocked(iface))
	}
	vm.order = append(vm.order, cls)
	cls.mirror = &Instance{class: vm.classes["java/lang/Class"], mirror: cls}
}

// classOrStubLocked resolves a referenced class, defining an empty placeholder
// extending java/lang/Object when it has not been seen yet.
func (vm *VM) classOrStubLocked(name string) *Class {
	name = strings.ReplaceAll(name, ".", "/")
	if cls, ok := vm.classes[name]; ok {
		return cls
	}
	super := "java/lang/Object"
	if name == super {
		super = ""
	}
	return vm.defineClassLocked(name, super)
}

// Class looks a class up by slashed or dotted name.
func (vm *VM) Class(name string) *Class {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.classes[strings.ReplaceAll(name, ".", "/")]
}

// Classes lists classes in definition order.
func (vm *VM) Classes() []*Class {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]*Class(nil), vm.order...)
}

// AddMethod declares a method. body may be nil for abstract or unloaded code.
func (c *Class) AddMethod(name, sig string, modifiers int32, body Native) *Method {
	c.vm.mu.Lock()
	defer c.vm.mu.Unlock()

	for _, m := range c.Methods {
		if m.Name == name && m.Sig == sig {
			if body != nil {
				m.Native = body
			}
			return m
		}
	}

	m := &Method{
		ID:        host.MethodID(c.vm.nextIDLocked()),
		Class:     c,
		Name:      name,
		Sig:       sig,
		Modifiers: modifiers,
		Native:    body,
		ret:       returnKind(sig),
	}
	c.Methods = append(c.Methods, m)
	c.vm.methods[m.ID] = m
	return m
}

// AddField declares a field.
func (c *Class) AddField(name, sig string, modifiers int32) *Field {
	c.vm.mu.Lock()
	defer c.vm.mu.Unlock()
	return c.addFieldLocked(name, sig, modifiers)
}

func (c *Class) addFieldLocked(name, sig string, modifiers int32) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}

	kind := descriptor.KindUnknown
	if d, err := descriptor.ParseFieldSignature(sig); err == nil {
		kind = d.Kind
	}

	f := &Field{
		ID:        host.FieldID(c.vm.nextIDLocked()),
		Class:     c,
		Name:      name,
		Sig:       sig,
		Modifiers: modifiers,
		kind:      kind,
	}
	c.Fields = append(c.Fields, f)
	c.vm.fields[f.ID] = f
	return f
}

// Field finds a field declared on c or a superclass.
func (c *Class) Field(name string) *Field {
	for cur := c; cur != nil; cur = cur.Super {
		for _, f := range cur.Fields {
			if f.Name == name {
				return f
			}
		}
	}
	return nil
}

// Method finds a method declared on c, a superclass, or an interface.
func (c *Class) Method(name, sig string) *Method {
	for cur := c; cur != nil; cur = cur.Super {
		for _, m := range cur.Methods {
			if m.Name == name && m.Sig == sig {
				return m
			}
		}
		for _, iface := range cur.Interfaces {
			if m := iface.Method(name, sig); m != nil {
				return m
			}
		}
	}
	return nil
}

// SetStatic stores a primitive static value.
func (c *Class) SetStatic(name string, v host.Value) {
	c.vm.mu.Lock()
	defer c.vm.mu.Unlock()
	if f := c.Field(name); f != nil {
		f.Class.statics[f] = primCell(v)
	}
}

// SetStaticRef stores a reference static value.
func (c *Class) SetStaticRef(name string, inst *Instance) {
	c.vm.mu.Lock()
	defer c.vm.mu.Unlock()
	if f := c.Field(name); f != nil {
		f.Class.statics[f] = refCell(inst)
	}
}

// Mirror is the java.lang.Class instance for c.
func (c *Class) Mirror() *Instance {
	return c.mirror
}

// IsSubclassOf reports whether c is other or inherits from or implements it.
func (c *Class) IsSubclassOf(other *Class) bool {
	if other == nil {
		return false
	}
	if other.Name == "java/lang/Object" {
		return true
	}
	for cur := c; cur != nil; cur = cur.Super {
		if cur == other {
			return true
		}
		for _, iface := range cur.Interfaces {
			if iface.IsSubclassOf(other) {
				return true
			}
		}
	}
	return false
}

// Signature is the JVMTI class signature: Lpkg/Name; or [I.
func (c *Class) Signature() string {
	if strings.HasPrefix(c.Name, "[") {
		return c.Name
	}
	return "L" + c.Name + ";"
}

// NewInstance allocates an object with zeroed fields.
func (vm *VM) NewInstance(cls *Class) *Instance {
	return &Instance{class: cls, fields: make(map[*Field]cell)}
}

// Set stores a primitive instance field value.
func (i *Instance) Set(name string, v host.Value) {
	if f := i.class.Field(name); f != nil {
		i.store(f, primCell(v))
	}
}

// SetRef stores a reference instance field value.
func (i *Instance) SetRef(name string, ref *Instance) {
	if f := i.class.Field(name); f != nil {
		i.store(f, refCell(ref))
	}
}

func (i *Instance) store(f *Field, c cell) {
	if i.fields == nil {
		i.fields = make(map[*Field]cell)
	}
	i.fields[f] = c
}

// Get reads a primitive instance field value.
func (i *Instance) Get(name string) host.Value {
	f := i.class.Field(name)
	if f == nil {
		return host.Zero(descriptor.KindUnknown)
	}
	if c, ok := i.fields[f]; ok {
		return c.prim
	}
	return host.Zero(f.kind)
}

// NewStringInstance allocates a java.lang.String.
func (vm *VM) NewStringInstance(s string) *Instance {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.newStringLocked(s)
}

func (vm *VM) newStringLocked(s string) *Instance {
	return &Instance{class: vm.classes["java/lang/String"], str: s, isStr: true}
}

// StringValue returns the Go string of a java.lang.String instance.
func (i *Instance) StringValue() (string, bool) {
	return i.str, i.isStr
}

// NewPrimitiveArray allocates a primitive array holding vals.
func (vm *VM) NewPrimitiveArray(elem descriptor.Kind, vals []host.Value) *Instance {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	arr := vm.newArrayLocked(elem, len(vals), nil)
	for i, v := range vals {
		arr.elems[i] = primCell(v)
	}
	return arr
}

// NewObjectArray allocates an object array of elemClass.
func (vm *VM) NewObjectArray(elemClass *Class, elems []*Instance) *Instance {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	arr := vm.newArrayLocked(descriptor.KindObject, len(elems), elemClass)
	for i, e := range elems {
		arr.elems[i] = refCell(e)
	}
	return arr
}

func (vm *VM) newArrayLocked(elem descriptor.Kind, length int, elemClass *Class) *Instance {
	var name string
	switch {
	case elem.IsPrimitive():
		name = "[" + string(elem.Code())
	case elemClass != nil && strings.HasPrefix(elemClass.Name, "["):
		name = "[" + elemClass.Name
	case elemClass != nil:
		name = "[L" + elemClass.Name + ";"
	default:
		name = "[Ljava/lang/Object;"
	}

	cls, ok := vm.classes[name]
	if !ok {
		cls = vm.defineClassLocked(name, "java/lang/Object")
	}

	if elem == descriptor.KindArray {
		elem = descriptor.KindObject
	}
	return &Instance{class: cls, elems: make([]cell, length), elem: elem}
}

// Len is the array length, or -1 for non-arrays.
func (i *Instance) Len() int {
	if i.elems == nil && !strings.HasPrefix(i.class.Name, "[") {
		return -1
	}
	return len(i.elems)
}

// SetElement stores a primitive array element. Out of range indexes are
// ignored.
func (i *Instance) SetElement(idx int, v host.Value) {
	if idx >= 0 && idx < len(i.elems) {
		i.elems[idx] = primCell(v)
	}
}

// SetElementRef stores an object array element.
func (i *Instance) SetElementRef(idx int, ref *Instance) {
	if idx >= 0 && idx < len(i.elems) {
		i.elems[idx] = refCell(ref)
	}
}

// AddThread registers a live thread with the given context class loader.
func (vm *VM) AddThread(name string, daemon bool, loader *Instance) *Instance {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	t := vm.newThreadLocked(name, daemon)
	t.thread.loader = loader
	return t
}

func (vm *VM) newThreadLocked(name string, daemon bool) *Instance {
	t := &Instance{
		class:  vm.classes["java/lang/Thread"],
		fields: make(map[*Field]cell),
		thread: &threadState{name: name, daemon: daemon},
	}
	vm.threads = append(vm.threads, t)
	return t
}

// SystemLoader is the application class loader instance.
func (vm *VM) SystemLoader() *Instance {
	return vm.loader
}

func returnKind(sig string) descriptor.Kind {
	parsed, err := descriptor.ParseMethodSignature(sig)
	if err != nil {
		return descriptor.KindUnknown
	}
	return parsed.Return.Kind
}
