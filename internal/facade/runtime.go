// Package facade builds typed Go wrappers over Java objects. A wrapper type
// declares its class and members once as package-level slots; a Runtime
// resolves each slot through the symbol resolver on first use and keeps the
// result.
package facade

import (
	"context"
	"sync"
	"time"

	"github.com/mabhi256/jinterop/internal/interop"
	"github.com/mabhi256/jinterop/internal/symbols"
)

// ClassSlot names a class by its logical (dotted) name.
type ClassSlot struct {
	Name string
}

// MethodSlot names a method of a ClassSlot. Sig may be empty to take the
// first method with that name.
type MethodSlot struct {
	Class *ClassSlot
	Name  string
	Sig   string
}

type FieldSlot struct {
	Class *ClassSlot
	Name  string
	Sig   string
}

func Class(name string) *ClassSlot {
	return &ClassSlot{Name: name}
}

func (c *ClassSlot) Method(name, sig string) *MethodSlot {
	return &MethodSlot{Class: c, Name: name, Sig: sig}
}

func (c *ClassSlot) Field(name, sig string) *FieldSlot {
	return &FieldSlot{Class: c, Name: name, Sig: sig}
}

// Runtime resolves slots against one session.
type Runtime struct {
	Session  *interop.Session
	Resolver symbols.Resolver
	timeout  time.Duration

	mu      sync.RWMutex
	classes map[*ClassSlot]*interop.Class
	methods map[*MethodSlot]*interop.Method
	fields  map[*FieldSlot]*interop.Field
}

// New returns a Runtime. timeout bounds each class resolution, including the
// wait for the live phase.
func New(s *interop.Session, r symbols.Resolver, timeout time.Duration) *Runtime {
	return &Runtime{
		Session:  s,
		Resolver: r,
		timeout:  timeout,
		classes:  make(map[*ClassSlot]*interop.Class),
		methods:  make(map[*MethodSlot]*interop.Method),
		fields:   make(map[*FieldSlot]*interop.Field),
	}
}

func (rt *Runtime) context() (context.Context, context.CancelFunc) {
	if rt.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), rt.timeout)
}

// Class returns the directory entry for slot. Failures are not cached.
func (rt *Runtime) Class(slot *ClassSlot) (*interop.Class, error) {
	rt.mu.RLock()
	cls, ok := rt.classes[slot]
	rt.mu.RUnlock()
	if ok {
		return cls, nil
	}

	ctx, cancel := rt.context()
	defer cancel()
	cls, err := symbols.Class(ctx, rt.Resolver, rt.Session.Directory(), slot.Name)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if prev, ok := rt.classes[slot]; ok {
		return prev, nil
	}
	rt.classes[slot] = cls
	return cls, nil
}

// Method resolves slot once. A member the class does not have resolves to
// nil, the null method, and stays that way.
func (rt *Runtime) Method(slot *MethodSlot) (*interop.Method, error) {
	rt.mu.RLock()
	m, ok := rt.methods[slot]
	rt.mu.RUnlock()
	if ok {
		return m, nil
	}

	cls, err := rt.Class(slot.Class)
	if err != nil {
		return nil, err
	}
	m = rt.Resolver.ResolveMethod(cls, slot.Name, slot.Sig)
	if !m.Valid() {
		rt.Session.Logger().Debug("method not found", "class", slot.Class.Name, "method", slot.Name, "sig", slot.Sig)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if prev, ok := rt.methods[slot]; ok {
		return prev, nil
	}
	rt.methods[slot] = m
	return m, nil
}

func (rt *Runtime) Field(slot *FieldSlot) (*interop.Field, error) {
	rt.mu.RLock()
	f, ok := rt.fields[slot]
	rt.mu.RUnlock()
	if ok {
		return f, nil
	}

	cls, err := rt.Class(slot.Class)
	if err != nil {
		return nil, err
	}
	f = rt.Resolver.ResolveField(cls, slot.Name, slot.Sig)
	if !f.Valid() {
		rt.Session.Logger().Debug("field not found", "class", slot.Class.Name, "field", slot.Name, "sig", slot.Sig)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if prev, ok := rt.fields[slot]; ok {
		return prev, nil
	}
	rt.fields[slot] = f
	return f, nil
}

// CallStatic invokes a static method slot.
func CallStatic[T any](rt *Runtime, slot *MethodSlot, args ...any) (T, error) {
	m, err := rt.Method(slot)
	if err != nil {
		var zero T
		return zero, err
	}
	return interop.Call[T](m, nil, args...)
}

// GetStatic reads a static field slot.
func GetStatic[T any](rt *Runtime, slot *FieldSlot) (T, error) {
	f, err := rt.Field(slot)
	if err != nil {
		var zero T
		return zero, err
	}
	return interop.Get[T](f, nil)
}

func SetStatic[T any](rt *Runtime, slot *FieldSlot, value T) error {
	f, err := rt.Field(slot)
	if err != nil {
		return err
	}
	return interop.Set(f, nil, value)
}
