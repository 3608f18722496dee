package interop

import (
	"fmt"
	"sync"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
)

// Field is an introspected field. Like Method, nil and the zero value are the
// "not found" sentinel; reads return zero values and writes do nothing.
type Field struct {
	s     *Session
	id    host.FieldID
	class *Ref

	className string
	name      string
	sig       string
	static    bool
	modifiers int32
	typ       descriptor.Descriptor

	mu         sync.RWMutex
	mappedName string
	mappedSig  string
}

// NewField introspects id on cls. The class is cloned and held as a global
// reference until Release.
func (s *Session) NewField(cls *Ref, id host.FieldID) (*Field, error) {
	if id == 0 || !cls.Valid() {
		return &Field{}, nil
	}
	if err := cls.checkThread(); err != nil {
		return nil, err
	}

	env, err := s.Env()
	if err != nil {
		return nil, err
	}
	owner, err := s.tooling.GetFieldDeclaringClass(cls.obj, id)
	if err != nil {
		return nil, raise(err, "NewField", "GetFieldDeclaringClass")
	}
	className, _, err := s.ClassName(owner)
	if err != nil {
		env.DeleteLocalRef(owner)
		return nil, raise(err, "NewField", "declaring class name")
	}
	return s.newField(env, id, s.adopt(owner, false, true), className)
}

// newField takes ownership of class, promoting it to global.
func (s *Session) newField(env host.Env, id host.FieldID, class *Ref, className string) (*Field, error) {
	name, sig, err := s.tooling.GetFieldName(class.obj, id)
	if err == nil && (name == "" || sig == "") {
		err = fmt.Errorf("empty name or signature")
	}
	if err != nil {
		_ = class.Release()
		return nil, raise(err, "NewField", "GetFieldName of %s", className)
	}
	mods, err := s.tooling.GetFieldModifiers(class.obj, id)
	if err != nil {
		_ = class.Release()
		return nil, raise(err, "NewField", "GetFieldModifiers of %s.%s", className, name)
	}
	typ, err := descriptor.ParseFieldSignature(sig)
	if err != nil {
		_ = class.Release()
		return nil, raise(err, "NewField", "%s.%s", className, name)
	}
	if err := class.MakeGlobal(); err != nil {
		_ = class.Release()
		return nil, err
	}

	return &Field{
		s:         s,
		id:        id,
		class:     class,
		className: className,
		name:      name,
		sig:       sig,
		static:    mods&host.AccStatic != 0,
		modifiers: mods,
		typ:       typ,
	}, nil
}

func (f *Field) Valid() bool {
	return f != nil && f.id != 0
}

func (f *Field) ID() host.FieldID {
	if f == nil {
		return 0
	}
	return f.id
}

func (f *Field) IsStatic() bool {
	return f.Valid() && f.static
}

func (f *Field) Modifiers() int32 {
	if f == nil {
		return 0
	}
	return f.modifiers
}

func (f *Field) DeclaringClass() string {
	if f == nil {
		return ""
	}
	return f.className
}

func (f *Field) Type() descriptor.Descriptor {
	if f == nil {
		return descriptor.Descriptor{Kind: descriptor.KindUnknown}
	}
	return f.typ
}

func (f *Field) Name(mapped bool) string {
	if f == nil {
		return ""
	}
	if mapped {
		f.mu.RLock()
		defer f.mu.RUnlock()
		return orDefault(f.mappedName, f.name)
	}
	return f.name
}

func (f *Field) Signature(mapped bool) string {
	if f == nil {
		return ""
	}
	if mapped {
		f.mu.RLock()
		defer f.mu.RUnlock()
		return orDefault(f.mappedSig, f.sig)
	}
	return f.sig
}

// SetMappedName records the logical name; empty restores the runtime name.
func (f *Field) SetMappedName(name string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappedName = orDefault(name, f.name)
}

// SetMappedSignature records the logical signature; empty restores the
// runtime signature.
func (f *Field) SetMappedSignature(sig string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappedSig = orDefault(sig, f.sig)
}

func (f *Field) SetMappings(name, sig string) {
	f.SetMappedName(name)
	f.SetMappedSignature(sig)
}

func (f *Field) String() string {
	if !f.Valid() {
		return "<null field>"
	}
	return fmt.Sprintf("%s.%s:%s", f.className, f.name, f.sig)
}

// Load reads the field. instance is ignored for static fields.
func (f *Field) Load(instance *Ref) (host.Value, error) {
	if !f.Valid() {
		return host.Value{}, nil
	}
	env, obj, err := f.target("Load", instance)
	if err != nil {
		return host.Value{}, err
	}

	var v host.Value
	if f.static {
		v = env.GetStaticField(f.class.obj, f.id, f.typ.Kind)
	} else {
		v = env.GetField(obj, f.id, f.typ.Kind)
	}
	if err := f.s.takeException(env); err != nil {
		return host.Value{}, fmt.Errorf("%s: %w", f, err)
	}
	return v, nil
}

// Store writes the field. v must carry the declared kind.
func (f *Field) Store(instance *Ref, v host.Value) error {
	if !f.Valid() {
		return nil
	}
	if v.Kind() != f.typ.Kind && !(v.Kind().IsReference() && f.typ.Kind.IsReference()) {
		return raise(ErrTypeMismatch, "Store", "%s holds %s, got %s", f.name, f.typ, v.Kind())
	}
	env, obj, err := f.target("Store", instance)
	if err != nil {
		return err
	}

	if f.static {
		env.SetStaticField(f.class.obj, f.id, v)
	} else {
		env.SetField(obj, f.id, v)
	}
	if err := f.s.takeException(env); err != nil {
		return fmt.Errorf("%s: %w", f, err)
	}
	return nil
}

func (f *Field) target(op string, instance *Ref) (host.Env, host.Object, error) {
	if !f.static && !instance.Valid() {
		return nil, 0, raise(ErrNoInstance, op, "No instance object passed to non-static field %s", f.name)
	}
	var obj host.Object
	if !f.static {
		h, err := instance.Handle()
		if err != nil {
			return nil, 0, err
		}
		obj = h
	}
	env, err := f.s.Env()
	if err != nil {
		return nil, 0, err
	}
	return env, obj, nil
}

// Get reads f as T. Reading a nil or invalid f returns the zero T.
func Get[T any](f *Field, instance *Ref) (T, error) {
	var zero T
	if !f.Valid() {
		return zero, nil
	}
	if !holds[T](f.typ.Kind) {
		return zero, raise(ErrTypeMismatch, "Get", "cannot read %s field %s as %T", f.typ, f.name, zero)
	}

	v, err := f.Load(instance)
	if err != nil {
		return zero, err
	}
	env, err := f.s.Env()
	if err != nil {
		return zero, err
	}
	return fromValue[T](f.s, env, v, f.typ)
}

// Set writes value, converted to the field's kind. Writing a nil or invalid f
// does nothing.
func Set[T any](f *Field, instance *Ref, value T) error {
	if !f.Valid() {
		return nil
	}
	env, err := f.s.Env()
	if err != nil {
		return err
	}

	var temps []host.Object
	defer func() {
		for _, h := range temps {
			env.DeleteLocalRef(h)
		}
	}()

	v, err := toValue(env, f.typ, value, &temps)
	if err != nil {
		return fmt.Errorf("%s: %w", f.name, err)
	}
	return f.Store(instance, v)
}

// Release drops the declaring class reference.
func (f *Field) Release() error {
	if f == nil || f.class == nil {
		return nil
	}
	return f.class.Release()
}
