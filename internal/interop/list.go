package interop

import (
	"context"
	"fmt"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
)

// List is a java.util.List reference. Primitive Go values are boxed on the
// way in; Element unboxes on the way out.
type List struct {
	ref *Ref

	size *Method
	add  *Method
	get  *Method
	set  *Method
}

// ListFrom views r as a List. r keeps ownership of the reference.
func (s *Session) ListFrom(ctx context.Context, r *Ref) (*List, error) {
	coll, err := s.dir.ForName(ctx, "java.util.Collection")
	if err != nil {
		return nil, err
	}
	list, err := s.dir.ForName(ctx, "java.util.List")
	if err != nil {
		return nil, err
	}

	l := &List{
		ref:  r,
		size: coll.Method("size", "()I"),
		add:  coll.Method("add", "(Ljava/lang/Object;)Z"),
		get:  list.Method("get", "(I)Ljava/lang/Object;"),
		set:  list.Method("set", "(ILjava/lang/Object;)Ljava/lang/Object;"),
	}
	if !l.size.Valid() || !l.get.Valid() {
		return nil, fmt.Errorf("java.util.List: %w", ErrInvalidReference)
	}
	return l, nil
}

// NewArrayList constructs an empty java.util.ArrayList as a local reference.
func (s *Session) NewArrayList(ctx context.Context, capacity int) (*List, error) {
	cls, err := s.dir.ForName(ctx, "java.util.ArrayList")
	if err != nil {
		return nil, err
	}
	ctor := cls.Method("<init>", "(I)V")
	if !ctor.Valid() {
		return nil, fmt.Errorf("java.util.ArrayList.<init>(I)V: %w", ErrInvalidReference)
	}

	env, err := s.Env()
	if err != nil {
		return nil, err
	}
	h := env.NewObject(cls.Ref().obj, ctor.ID(), []host.Value{host.Int(int32(capacity))})
	if err := s.takeException(env); err != nil {
		return nil, fmt.Errorf("new ArrayList: %w", err)
	}
	return s.ListFrom(ctx, s.adopt(h, false, false))
}

func (l *List) Ref() *Ref {
	if l == nil {
		return nil
	}
	return l.ref
}

func (l *List) Size() (int, error) {
	n, err := Call[int32](l.size, l.ref)
	return int(n), err
}

// Add appends v, boxing primitives.
func (l *List) Add(v any) error {
	obj, release, err := l.box(v)
	if err != nil {
		return err
	}
	defer release()
	_, err = Call[bool](l.add, l.ref, obj)
	return err
}

// Set replaces element i and releases the previous element.
func (l *List) Set(i int, v any) error {
	obj, release, err := l.box(v)
	if err != nil {
		return err
	}
	defer release()

	prev, err := Call[*Ref](l.set, l.ref, int32(i), obj)
	if err != nil {
		return err
	}
	return prev.Release()
}

// Get returns element i as a local reference owned by the caller.
func (l *List) Get(i int) (*Ref, error) {
	return Call[*Ref](l.get, l.ref, int32(i))
}

// Values returns every element; the caller releases them.
func (l *List) Values() ([]*Ref, error) {
	n, err := l.Size()
	if err != nil {
		return nil, err
	}
	out := make([]*Ref, 0, n)
	for i := range n {
		r, err := l.Get(i)
		if err != nil {
			for _, prev := range out {
				_ = prev.Release()
			}
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (l *List) Release() error {
	return l.Ref().Release()
}

// Element reads element i of l and unboxes it to T. Reference types are
// returned as they are.
func Element[T any](l *List, i int) (T, error) {
	var zero T
	r, err := l.Get(i)
	if err != nil || !r.Valid() {
		return zero, err
	}

	kind, primitive := kindOf[T]()
	if !primitive {
		env, err := r.s.Env()
		if err == nil && !holds[T](descriptor.KindObject) {
			err = raise(ErrTypeMismatch, "Element", "cannot read an element as %T", zero)
		}
		if err != nil {
			_ = r.Release()
			return zero, err
		}
		return fromValue[T](r.s, env, host.Ref(r.obj), descriptor.Object("java/lang/Object"))
	}
	defer r.Release()
	return unbox[T](r, kind)
}

func unbox[T any](r *Ref, kind descriptor.Kind) (T, error) {
	var zero T
	s := r.s
	env, err := s.Env()
	if err != nil {
		return zero, err
	}

	cls := env.GetObjectClass(r.obj)
	defer env.DeleteLocalRef(cls)

	name := kind.String() + "Value"
	mid := env.GetMethodID(cls, name, "()"+string(kind.Code()))
	if mid == 0 {
		env.ExceptionClear()
		return zero, raise(ErrTypeMismatch, "unbox", "element has no %s()", name)
	}
	v := env.CallMethod(r.obj, mid, kind, nil)
	if err := s.takeException(env); err != nil {
		return zero, err
	}
	return fromValue[T](s, env, v, descriptor.Descriptor{Kind: kind})
}

// box converts v to an object reference. release frees whatever box created.
func (l *List) box(v any) (any, func(), error) {
	noop := func() {}
	switch v.(type) {
	case nil, *Ref, *String, *Array, string:
		return v, noop, nil
	}

	kind, ok := goKind(v)
	if !ok {
		return nil, noop, raise(ErrTypeMismatch, "box", "cannot box %T", v)
	}

	s := l.ref.s
	env, err := s.Env()
	if err != nil {
		return nil, noop, err
	}
	cls, err := s.FindClass(kind.Box())
	if err != nil {
		return nil, noop, err
	}
	mid := env.GetStaticMethodID(cls.obj, "valueOf", "("+string(kind.Code())+")L"+kind.Box()+";")
	if mid == 0 {
		env.ExceptionClear()
		return nil, noop, raise(ErrTypeMismatch, "box", "%s has no valueOf", kind.Box())
	}

	var temps []host.Object
	arg, err := toValue(env, descriptor.Descriptor{Kind: kind}, v, &temps)
	if err != nil {
		return nil, noop, err
	}
	res := env.CallStaticMethod(cls.obj, mid, descriptor.KindObject, []host.Value{arg})
	if err := s.takeException(env); err != nil {
		return nil, noop, err
	}
	boxed := s.adopt(res.Object(), false, false)
	return boxed, func() { _ = boxed.Release() }, nil
}

// goKind is the primitive kind a Go value boxes to.
func goKind(v any) (descriptor.Kind, bool) {
	switch v.(type) {
	case bool:
		return descriptor.KindBoolean, true
	case int8:
		return descriptor.KindByte, true
	case uint16:
		return descriptor.KindChar, true
	case int16:
		return descriptor.KindShort, true
	case int32, int:
		return descriptor.KindInt, true
	case int64:
		return descriptor.KindLong, true
	case float32:
		return descriptor.KindFloat, true
	case float64:
		return descriptor.KindDouble, true
	}
	return descriptor.KindUnknown, false
}

func kindOf[T any]() (descriptor.Kind, bool) {
	var zero T
	return goKind(any(zero))
}
