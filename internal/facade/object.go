package facade

import (
	"context"
	"fmt"

	"github.com/mabhi256/jinterop/internal/interop"
)

// Object is the base of every wrapper: one retained global reference plus
// the Runtime used to reach its members.
type Object struct {
	rt  *Runtime
	ref *interop.Ref
}

// Wrap takes ownership of ref and promotes it to global so the wrapper can
// cross goroutines. A null ref gives a null Object.
func Wrap(rt *Runtime, ref *interop.Ref) (*Object, error) {
	if err := ref.MakeGlobal(); err != nil {
		return nil, fmt.Errorf("wrap: %w", err)
	}
	return &Object{rt: rt, ref: ref}, nil
}

func (o *Object) Ref() *interop.Ref {
	if o == nil {
		return nil
	}
	return o.ref
}

func (o *Object) Runtime() *Runtime {
	return o.rt
}

func (o *Object) Valid() bool {
	return o != nil && o.ref.Valid()
}

func (o *Object) Release() error {
	if o == nil {
		return nil
	}
	return o.ref.Release()
}

// Class returns the directory entry of the object's runtime class.
func (o *Object) Class(ctx context.Context) (*interop.Class, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("class of null object: %w", interop.ErrInvalidReference)
	}
	cls, err := o.ref.Class()
	if err != nil {
		return nil, err
	}
	defer cls.Release()
	return o.rt.Session.Directory().Get(ctx, cls)
}

// Method resolves a member of the object's runtime class by logical name.
// Unlike slots the result is not cached beyond the directory entry.
func (o *Object) Method(name, sig string) (*interop.Method, error) {
	ctx, cancel := o.rt.context()
	defer cancel()
	cls, err := o.Class(ctx)
	if err != nil {
		return nil, err
	}
	return o.rt.Resolver.ResolveMethod(cls, name, sig), nil
}

func (o *Object) Field(name, sig string) (*interop.Field, error) {
	ctx, cancel := o.rt.context()
	defer cancel()
	cls, err := o.Class(ctx)
	if err != nil {
		return nil, err
	}
	return o.rt.Resolver.ResolveField(cls, name, sig), nil
}

// IsInstance reports whether the object is an instance of slot's class.
func (o *Object) IsInstance(slot *ClassSlot) (bool, error) {
	cls, err := o.rt.Class(slot)
	if err != nil {
		return false, err
	}
	return o.ref.IsInstanceOf(cls.Ref())
}

// String calls toString. A null object prints as "null".
func (o *Object) String() string {
	if !o.Valid() {
		return "null"
	}
	s, err := Invoke[string](o, objectToString)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return s
}

var (
	objectClass    = Class("java.lang.Object")
	objectToString = objectClass.Method("toString", "()Ljava/lang/String;")
	objectHashCode = objectClass.Method("hashCode", "()I")
	objectEquals   = objectClass.Method("equals", "(Ljava/lang/Object;)Z")
)

func (o *Object) HashCode() (int32, error) {
	return Invoke[int32](o, objectHashCode)
}

func (o *Object) Equals(other *Object) (bool, error) {
	return Invoke[bool](o, objectEquals, other.Ref())
}

// Invoke calls an instance method slot on o. A null o yields the zero value.
func Invoke[T any](o *Object, slot *MethodSlot, args ...any) (T, error) {
	var zero T
	if !o.Valid() {
		return zero, nil
	}
	m, err := o.rt.Method(slot)
	if err != nil {
		return zero, err
	}
	return interop.Call[T](m, o.ref, args...)
}

// Get reads an instance field slot of o. A null o yields the zero value.
func Get[T any](o *Object, slot *FieldSlot) (T, error) {
	var zero T
	if !o.Valid() {
		return zero, nil
	}
	f, err := o.rt.Field(slot)
	if err != nil {
		return zero, err
	}
	return interop.Get[T](f, o.ref)
}

// Set writes an instance field slot of o. Writes to a null o are dropped.
func Set[T any](o *Object, slot *FieldSlot, value T) error {
	if !o.Valid() {
		return nil
	}
	f, err := o.rt.Field(slot)
	if err != nil {
		return err
	}
	return interop.Set(f, o.ref, value)
}

// wrapResult wraps a reference returned by a call, releasing it on failure.
func wrapResult(rt *Runtime, ref *interop.Ref, err error) (*Object, error) {
	if err != nil {
		return nil, err
	}
	obj, err := Wrap(rt, ref)
	if err != nil {
		_ = ref.Release()
		return nil, err
	}
	return obj, nil
}
