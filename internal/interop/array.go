package interop

import (
	"fmt"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
)

// Array is a Java array reference together with its element descriptor.
type Array struct {
	ref  *Ref
	elem descriptor.Descriptor
}

// NewArray allocates an array of n elements as a local reference.
func (s *Session) NewArray(elem descriptor.Descriptor, n int) (*Array, error) {
	if !elem.Kind.IsPrimitive() && !elem.Kind.IsReference() {
		return nil, raise(ErrTypeMismatch, "NewArray", "no arrays of %s", elem)
	}
	env, err := s.Env()
	if err != nil {
		return nil, err
	}

	var elemClass host.Object
	switch elem.Kind {
	case descriptor.KindObject:
		elemClass = env.FindClass(elem.Name)
	case descriptor.KindArray:
		elemClass = env.FindClass(elem.Signature())
	}
	if err := s.takeException(env); err != nil {
		return nil, fmt.Errorf("element class %s: %w", elem, err)
	}
	if elemClass != 0 {
		defer env.DeleteLocalRef(elemClass)
	}

	h := env.NewArray(elem.Kind, n, elemClass)
	if err := s.takeException(env); err != nil {
		return nil, err
	}
	return &Array{ref: s.adopt(h, false, false), elem: elem}, nil
}

// ArrayFrom views r as an array, reading the element type from its runtime
// class. r keeps ownership of the reference.
func (s *Session) ArrayFrom(r *Ref) (*Array, error) {
	if err := r.checkInstance("ArrayFrom"); err != nil {
		return nil, err
	}
	env, err := s.Env()
	if err != nil {
		return nil, err
	}

	cls := env.GetObjectClass(r.obj)
	defer env.DeleteLocalRef(cls)

	sig, err := s.tooling.GetClassSignature(cls)
	if err != nil {
		return nil, fmt.Errorf("array class: %w", err)
	}
	d, err := descriptor.ParseFieldSignature(sig)
	if err != nil {
		return nil, err
	}
	if d.Kind != descriptor.KindArray {
		return nil, raise(ErrTypeMismatch, "ArrayFrom", "%s is not an array", d)
	}
	return &Array{ref: r, elem: *d.Elem}, nil
}

func (a *Array) Ref() *Ref {
	if a == nil {
		return nil
	}
	return a.ref
}

func (a *Array) Valid() bool {
	return a != nil && a.ref.Valid()
}

// Elem is the element descriptor.
func (a *Array) Elem() descriptor.Descriptor {
	if a == nil {
		return descriptor.Descriptor{Kind: descriptor.KindUnknown}
	}
	return a.elem
}

// ComponentClass is the element class name in dotted form, or the primitive
// kind name.
func (a *Array) ComponentClass() string {
	if a == nil {
		return ""
	}
	return a.elem.JavaName()
}

func (a *Array) Len() (int, error) {
	env, h, err := a.handle()
	if err != nil || h == 0 {
		return 0, err
	}
	return env.GetArrayLength(h), nil
}

// Get reads element i. Reference elements come back as local references the
// caller owns.
func (a *Array) Get(i int) (host.Value, error) {
	env, h, err := a.handle()
	if err != nil || h == 0 {
		return host.Zero(a.Elem().Kind), err
	}
	if n := env.GetArrayLength(h); i < 0 || i >= n {
		return host.Zero(a.elem.Kind), raise(ErrIndexOutOfRange, "Array.Get", "index %d out of range [0,%d)", i, n)
	}

	v := env.GetArrayElement(h, a.elem.Kind, i)
	if err := a.ref.s.takeException(env); err != nil {
		return host.Zero(a.elem.Kind), err
	}
	return v, nil
}

// Set stores v, converted to the element kind, at index i.
func (a *Array) Set(i int, v any) error {
	env, h, err := a.handle()
	if err != nil || h == 0 {
		return err
	}
	if n := env.GetArrayLength(h); i < 0 || i >= n {
		return raise(ErrIndexOutOfRange, "Array.Set", "index %d out of range [0,%d)", i, n)
	}

	var temps []host.Object
	defer func() {
		for _, t := range temps {
			env.DeleteLocalRef(t)
		}
	}()

	val, err := toValue(env, a.elem, v, &temps)
	if err != nil {
		return err
	}
	env.SetArrayElement(h, a.elem.Kind, i, val)
	return a.ref.s.takeException(env)
}

// Values reads every element.
func (a *Array) Values() ([]host.Value, error) {
	n, err := a.Len()
	if err != nil {
		return nil, err
	}
	out := make([]host.Value, 0, n)
	for i := range n {
		v, err := a.Get(i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (a *Array) Release() error {
	return a.Ref().Release()
}

func (a *Array) handle() (host.Env, host.Object, error) {
	if !a.Valid() {
		return nil, 0, nil
	}
	h, err := a.ref.Handle()
	if err != nil {
		return nil, 0, err
	}
	env, err := a.ref.s.Env()
	if err != nil {
		return nil, 0, err
	}
	return env, h, nil
}

// Slice converts every element of a to T.
func Slice[T any](a *Array) ([]T, error) {
	if !a.Valid() {
		return nil, nil
	}
	if !holds[T](a.elem.Kind) {
		var zero T
		return nil, raise(ErrTypeMismatch, "Slice", "cannot read %s elements as %T", a.elem, zero)
	}

	env, err := a.ref.s.Env()
	if err != nil {
		return nil, err
	}
	vals, err := a.Values()
	if err != nil {
		return nil, err
	}

	out := make([]T, len(vals))
	for i, v := range vals {
		if out[i], err = fromValue[T](a.ref.s, env, v, a.elem); err != nil {
			return nil, err
		}
	}
	return out, nil
}
