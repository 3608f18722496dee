package interop

import (
	"fmt"
	"sync"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
)

// Method is an introspected method. The zero value and nil are the "not
// found" sentinel: Valid reports false and calls return zero values.
type Method struct {
	s     *Session
	id    host.MethodID
	class *Ref

	className string
	name      string
	sig       string
	static    bool
	modifiers int32

	args []descriptor.Descriptor
	ret  descriptor.Descriptor

	mu         sync.RWMutex
	mappedName string
	mappedSig  string
}

// NewMethod introspects id. The declaring class is held as a global
// reference until Release.
func (s *Session) NewMethod(id host.MethodID) (*Method, error) {
	if id == 0 {
		return &Method{}, nil
	}
	env, err := s.Env()
	if err != nil {
		return nil, err
	}

	cls, err := s.tooling.GetMethodDeclaringClass(id)
	if err != nil {
		return nil, raise(err, "NewMethod", "GetMethodDeclaringClass")
	}
	className, _, err := s.ClassName(cls)
	if err != nil {
		env.DeleteLocalRef(cls)
		return nil, raise(err, "NewMethod", "declaring class name")
	}
	return s.newMethod(env, id, s.adopt(cls, false, true), className)
}

// newMethod takes ownership of class, promoting it to global.
func (s *Session) newMethod(env host.Env, id host.MethodID, class *Ref, className string) (*Method, error) {
	name, sig, err := s.tooling.GetMethodName(id)
	if err == nil && (name == "" || sig == "") {
		err = fmt.Errorf("empty name or signature")
	}
	if err != nil {
		_ = class.Release()
		return nil, raise(err, "NewMethod", "GetMethodName of %s", className)
	}
	mods, err := s.tooling.GetMethodModifiers(id)
	if err != nil {
		_ = class.Release()
		return nil, raise(err, "NewMethod", "GetMethodModifiers of %s.%s", className, name)
	}
	parsed, err := descriptor.ParseMethodSignature(sig)
	if err != nil {
		_ = class.Release()
		return nil, raise(err, "NewMethod", "%s.%s", className, name)
	}
	if err := class.MakeGlobal(); err != nil {
		_ = class.Release()
		return nil, err
	}

	return &Method{
		s:         s,
		id:        id,
		class:     class,
		className: className,
		name:      name,
		sig:       sig,
		static:    mods&host.AccStatic != 0,
		modifiers: mods,
		args:      parsed.Args,
		ret:       parsed.Return,
	}, nil
}

func (m *Method) Valid() bool {
	return m != nil && m.id != 0
}

func (m *Method) ID() host.MethodID {
	if m == nil {
		return 0
	}
	return m.id
}

func (m *Method) IsStatic() bool {
	return m.Valid() && m.static
}

func (m *Method) Modifiers() int32 {
	if m == nil {
		return 0
	}
	return m.modifiers
}

// DeclaringClass is the dotted name of the declaring class.
func (m *Method) DeclaringClass() string {
	if m == nil {
		return ""
	}
	return m.className
}

// Class is the declaring class reference, owned by m.
func (m *Method) Class() *Ref {
	if m == nil {
		return nil
	}
	return m.class
}

// Name returns the runtime name, or with mapped set the mapped name if one
// was recorded.
func (m *Method) Name(mapped bool) string {
	if m == nil {
		return ""
	}
	if mapped {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return orDefault(m.mappedName, m.name)
	}
	return m.name
}

// Signature returns the runtime signature, or the mapped one when mapped is
// set.
func (m *Method) Signature(mapped bool) string {
	if m == nil {
		return ""
	}
	if mapped {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return orDefault(m.mappedSig, m.sig)
	}
	return m.sig
}

// SetMappedName records the logical name. An empty name restores the runtime
// name.
func (m *Method) SetMappedName(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappedName = orDefault(name, m.name)
}

// SetMappedSignature records the logical signature. An empty signature
// restores the runtime signature.
func (m *Method) SetMappedSignature(sig string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappedSig = orDefault(sig, m.sig)
}

func (m *Method) SetMappings(name, sig string) {
	m.SetMappedName(name)
	m.SetMappedSignature(sig)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (m *Method) Args() []descriptor.Descriptor {
	if m == nil {
		return nil
	}
	return append([]descriptor.Descriptor(nil), m.args...)
}

func (m *Method) Return() descriptor.Descriptor {
	if m == nil {
		return descriptor.Descriptor{Kind: descriptor.KindUnknown}
	}
	return m.ret
}

func (m *Method) ArgCount() int {
	if m == nil {
		return 0
	}
	return len(m.args)
}

func (m *Method) String() string {
	if !m.Valid() {
		return "<null method>"
	}
	return fmt.Sprintf("%s.%s%s", m.className, m.name, m.sig)
}

// Invoke calls the method. instance is ignored for static methods and
// required otherwise. args must already carry the declared kinds.
func (m *Method) Invoke(instance *Ref, args ...host.Value) (host.Value, error) {
	if !m.Valid() {
		return host.Value{}, nil
	}
	if len(args) != len(m.args) {
		return host.Value{}, raise(ErrArgCount, "Invoke",
			"Passed argument size does not match the expected argument size of %d at %s", len(m.args), m.name)
	}
	if !m.static && !instance.Valid() {
		return host.Value{}, raise(ErrNoInstance, "Invoke", "No instance object passed to non-static method %s", m.name)
	}
	for i, a := range args {
		want := m.args[i].Kind
		if a.Kind() != want && !(a.Kind().IsReference() && want.IsReference()) {
			return host.Value{}, raise(ErrTypeMismatch, "Invoke", "argument %d of %s is %s, want %s", i, m.name, a.Kind(), want)
		}
	}

	env, err := m.s.Env()
	if err != nil {
		return host.Value{}, err
	}

	var v host.Value
	if m.static {
		v = env.CallStaticMethod(m.class.obj, m.id, m.ret.Kind, args)
	} else {
		obj, err := instance.Handle()
		if err != nil {
			return host.Value{}, err
		}
		v = env.CallMethod(obj, m.id, m.ret.Kind, args)
	}
	if err := m.s.takeException(env); err != nil {
		return host.Value{}, fmt.Errorf("%s: %w", m, err)
	}
	return v, nil
}

// Call invokes m with Go arguments converted to the declared parameter kinds
// and converts the result to T. T must be able to hold every value of the
// declared return kind. A nil or invalid m returns the zero T.
func Call[T any](m *Method, instance *Ref, args ...any) (T, error) {
	var zero T
	if !m.Valid() {
		return zero, nil
	}
	if len(args) != len(m.args) {
		return zero, raise(ErrArgCount, "Call",
			"Passed argument size does not match the expected argument size of %d at %s", len(m.args), m.name)
	}

	env, err := m.s.Env()
	if err != nil {
		return zero, err
	}
	if !holds[T](m.ret.Kind) {
		return zero, raise(ErrTypeMismatch, "Call", "cannot read %s result of %s as %T", m.ret, m.name, zero)
	}

	var temps []host.Object
	defer func() {
		for _, h := range temps {
			env.DeleteLocalRef(h)
		}
	}()

	vals := make([]host.Value, len(args))
	for i, a := range args {
		v, err := toValue(env, m.args[i], a, &temps)
		if err != nil {
			return zero, fmt.Errorf("argument %d of %s: %w", i, m.name, err)
		}
		vals[i] = v
	}

	v, err := m.Invoke(instance, vals...)
	if err != nil {
		return zero, err
	}
	return fromValue[T](m.s, env, v, m.ret)
}

// CallVoid invokes m and discards any result.
func CallVoid(m *Method, instance *Ref, args ...any) error {
	_, err := Call[host.Value](m, instance, args...)
	return err
}

// Release drops the declaring class reference.
func (m *Method) Release() error {
	if m == nil || m.class == nil {
		return nil
	}
	return m.class.Release()
}
