package facade

import (
	"fmt"
	"strings"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/interop"
)

var (
	threadClass         = Class("java.lang.Thread")
	threadCurrent       = threadClass.Method("currentThread", "()Ljava/lang/Thread;")
	threadGetName       = threadClass.Method("getName", "()Ljava/lang/String;")
	threadIsDaemon      = threadClass.Method("isDaemon", "()Z")
	threadContextLoader = threadClass.Method("getContextClassLoader", "()Ljava/lang/ClassLoader;")
)

// Thread wraps java.lang.Thread.
type Thread struct {
	*Object
}

// CurrentThread returns the Java thread of the calling OS thread.
func CurrentThread(rt *Runtime) (*Thread, error) {
	ref, err := CallStatic[*interop.Ref](rt, threadCurrent)
	obj, err := wrapResult(rt, ref, err)
	if err != nil {
		return nil, err
	}
	return &Thread{obj}, nil
}

func (t *Thread) Name() (string, error) {
	return Invoke[string](t.Object, threadGetName)
}

func (t *Thread) IsDaemon() (bool, error) {
	return Invoke[bool](t.Object, threadIsDaemon)
}

// ContextClassLoader returns the thread's context loader, which may be a
// null Object.
func (t *Thread) ContextClassLoader() (*Object, error) {
	ref, err := Invoke[*interop.Ref](t.Object, threadContextLoader)
	return wrapResult(t.rt, ref, err)
}

var (
	systemClass      = Class("java.lang.System")
	systemMillis     = systemClass.Method("currentTimeMillis", "()J")
	systemNanos      = systemClass.Method("nanoTime", "()J")
	systemProperty   = systemClass.Method("getProperty", "(Ljava/lang/String;)Ljava/lang/String;")
	systemIdentityOf = systemClass.Method("identityHashCode", "(Ljava/lang/Object;)I")
)

// System exposes the static helpers of java.lang.System.
type System struct {
	rt *Runtime
}

func NewSystem(rt *Runtime) System {
	return System{rt: rt}
}

func (s System) CurrentTimeMillis() (int64, error) {
	return CallStatic[int64](s.rt, systemMillis)
}

func (s System) NanoTime() (int64, error) {
	return CallStatic[int64](s.rt, systemNanos)
}

// Property returns a system property; ok is false when it is unset.
func (s System) Property(key string) (value string, ok bool, err error) {
	ref, err := CallStatic[*interop.Ref](s.rt, systemProperty, key)
	if err != nil || !ref.Valid() {
		return "", false, err
	}
	str := interop.AsString(ref)
	defer str.Release()
	value, err = str.Value()
	return value, err == nil, err
}

func (s System) IdentityHashCode(o *Object) (int32, error) {
	return CallStatic[int32](s.rt, systemIdentityOf, o.Ref())
}

type boxSlots struct {
	class   *ClassSlot
	valueOf *MethodSlot
	value   *MethodSlot
}

var numberClass = Class("java.lang.Number")

// boxes holds the slots of each box class. Numeric boxes read their value
// through java.lang.Number.
var boxes = func() map[descriptor.Kind]boxSlots {
	out := make(map[descriptor.Kind]boxSlots)
	for _, k := range []descriptor.Kind{
		descriptor.KindBoolean, descriptor.KindByte, descriptor.KindChar, descriptor.KindShort,
		descriptor.KindInt, descriptor.KindLong, descriptor.KindFloat, descriptor.KindDouble,
	} {
		code := string(k.Code())
		cls := Class(strings.ReplaceAll(k.Box(), "/", "."))
		reader := cls
		if k != descriptor.KindBoolean && k != descriptor.KindChar {
			reader = numberClass
		}
		out[k] = boxSlots{
			class:   cls,
			valueOf: cls.Method("valueOf", "("+code+")L"+k.Box()+";"),
			value:   reader.Method(k.String()+"Value", "()"+code),
		}
	}
	return out
}()

// Boxed wraps a java.lang box such as Integer or Double.
type Boxed struct {
	*Object
	Kind descriptor.Kind
}

// Box boxes v through the box class's valueOf. T picks the box: int32 gives
// Integer, float64 gives Double and so on.
func Box[T bool | int8 | uint16 | int16 | int32 | int64 | float32 | float64](rt *Runtime, v T) (*Boxed, error) {
	kind := primitiveKind(any(v))
	ref, err := CallStatic[*interop.Ref](rt, boxes[kind].valueOf, v)
	obj, err := wrapResult(rt, ref, err)
	if err != nil {
		return nil, err
	}
	return &Boxed{Object: obj, Kind: kind}, nil
}

// Unbox reads the primitive value back. T must hold the box's kind.
func Unbox[T any](b *Boxed) (T, error) {
	slots, ok := boxes[b.Kind]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unbox %s: %w", b.Kind, interop.ErrTypeMismatch)
	}
	return Invoke[T](b.Object, slots.value)
}

// AsBoxed identifies the box class of o, if any.
func AsBoxed(o *Object) (*Boxed, bool, error) {
	for kind, slots := range boxes {
		ok, err := o.IsInstance(slots.class)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return &Boxed{Object: o, Kind: kind}, true, nil
		}
	}
	return nil, false, nil
}

func primitiveKind(v any) descriptor.Kind {
	switch v.(type) {
	case bool:
		return descriptor.KindBoolean
	case int8:
		return descriptor.KindByte
	case uint16:
		return descriptor.KindChar
	case int16:
		return descriptor.KindShort
	case int32:
		return descriptor.KindInt
	case int64:
		return descriptor.KindLong
	case float32:
		return descriptor.KindFloat
	default:
		return descriptor.KindDouble
	}
}
