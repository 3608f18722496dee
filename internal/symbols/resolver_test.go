package symbols

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/host/memvm"
	"github.com/mabhi256/jinterop/internal/interop"
)

type fakeTable struct {
	classes   map[string]string
	fields    map[string]map[string]string
	methods   map[string]map[string]string
	overloads map[string]map[string]string
}

func (f fakeTable) ClassMapping(logical string) string { return f.classes[logical] }

func (f fakeTable) OriginalClassName(name string) string {
	for logical, obf := range f.classes {
		if obf == name {
			return logical
		}
	}
	return name
}

func (f fakeTable) FieldMapping(class, field string) string { return f.fields[class][field] }
func (f fakeTable) MethodMapping(class, method string) string { return f.methods[class][method] }

func (f fakeTable) MethodOverload(class, method, params string) string {
	return f.overloads[class][method+"("+params+")"]
}

var table = fakeTable{
	classes: map[string]string{
		"pkg.Foo":   "a",
		"pkg.Other": "z",
	},
	fields: map[string]map[string]string{
		"pkg.Foo": {"bar": "b", "other": "o"},
	},
	methods: map[string]map[string]string{
		"pkg.Foo": {"twice": "d", "put": "f"},
	},
	overloads: map[string]map[string]string{
		"pkg.Foo": {"put(int)": "f", "put(long)": "g"},
	},
}

func newFoo(t *testing.T) (*interop.Session, *interop.Class) {
	t.Helper()
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)

	vm := memvm.New()
	pubStatic := host.AccPublic | host.AccStatic

	vm.DefineClass("z", "java/lang/Object")
	foo := vm.DefineClass("a", "java/lang/Object")
	foo.AddField("b", "I", pubStatic)
	foo.AddField("bar", "I", pubStatic)
	foo.AddField("o", "Lz;", pubStatic)
	foo.SetStatic("b", host.Int(42))
	foo.AddMethod("d", "(I)I", pubStatic, func(c *memvm.Call) (host.Value, error) {
		return host.Int(c.Args[0].Int() * 2), nil
	})
	foo.AddMethod("f", "(I)V", pubStatic, nil)
	foo.AddMethod("g", "(J)V", pubStatic, nil)

	s, err := interop.Initialize(vm.Locator())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Destroy() })

	cls, err := s.Directory().ForName(context.Background(), "a")
	require.NoError(t, err)
	return s, cls
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"direct":   Direct,
		"":         Direct,
		"Mapped":   Mapped,
		"disabled": Disabled,
		"off":      Disabled,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("obfuscated")
	assert.Error(t, err)

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("mapped")))
	assert.Equal(t, Mapped, m)
	text, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "mapped", string(text))
}

func TestNewRequiresTableForMapped(t *testing.T) {
	_, err := New(Mapped, nil)
	assert.ErrorIs(t, err, ErrNoTable)

	r, err := New(Direct, nil)
	require.NoError(t, err)
	assert.Equal(t, Direct, r.Mode())
}

func TestMappedFieldResolution(t *testing.T) {
	_, cls := newFoo(t)
	r, err := New(Mapped, table)
	require.NoError(t, err)

	f := r.ResolveField(cls, "bar", "")
	require.True(t, f.Valid())
	assert.Equal(t, "b", f.Name(false))
	assert.Equal(t, "bar", f.Name(true))

	v, err := interop.Get[int32](f, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	// The logical signature names pkg.Other, which the runtime calls z.
	o := r.ResolveField(cls, "other", "Lpkg/Other;")
	require.True(t, o.Valid())
	assert.Equal(t, "Lz;", o.Signature(false))
	assert.Equal(t, "Lpkg/Other;", o.Signature(true))

	assert.False(t, r.ResolveField(cls, "missing", "").Valid())
}

func TestMappedMethodResolution(t *testing.T) {
	_, cls := newFoo(t)
	r, err := New(Mapped, table)
	require.NoError(t, err)

	m := r.ResolveMethod(cls, "twice", "(I)I")
	require.True(t, m.Valid())
	assert.Equal(t, "d", m.Name(false))
	assert.Equal(t, "twice", m.Name(true))

	n, err := interop.Call[int32](m, nil, 21)
	require.NoError(t, err)
	assert.Equal(t, int32(42), n)

	assert.Equal(t, "f", r.ResolveMethod(cls, "put", "(I)V").Name(false))
	assert.Equal(t, "g", r.ResolveMethod(cls, "put", "(J)V").Name(false))
	assert.Equal(t, "f", r.ResolveMethod(cls, "put", "").Name(false))

	assert.Nil(t, r.ResolveMethod(cls, "unknown", ""))
	assert.Nil(t, r.ResolveMethod(nil, "twice", ""))
}

func TestDirectResolution(t *testing.T) {
	_, cls := newFoo(t)
	r, err := New(Direct, nil)
	require.NoError(t, err)

	assert.Equal(t, "b", r.ResolveField(cls, "b", "I").Name(false))
	assert.Equal(t, "bar", r.ResolveField(cls, "bar", "").Name(false))
	assert.False(t, r.ResolveMethod(cls, "twice", "").Valid())
	assert.Equal(t, "java/lang/String", r.ResolveClassName("java.lang.String"))
}

func TestDisabledResolution(t *testing.T) {
	_, cls := newFoo(t)
	r, err := New(Disabled, nil)
	require.NoError(t, err)

	assert.Nil(t, r.ResolveField(cls, "b", ""))
	assert.Nil(t, r.ResolveMethod(cls, "d", ""))
	assert.Empty(t, r.ResolveClassName("pkg.Foo"))
}

func TestResolveClassName(t *testing.T) {
	r, err := New(Mapped, table)
	require.NoError(t, err)

	assert.Equal(t, "a", r.ResolveClassName("pkg.Foo"))
	assert.Equal(t, "a", r.ResolveClassName("pkg/Foo"))
	assert.Equal(t, "java/util/List", r.ResolveClassName("java.util.List"))
}

func TestClassHelper(t *testing.T) {
	s, cls := newFoo(t)
	r, err := New(Mapped, table)
	require.NoError(t, err)

	got, err := Class(context.Background(), r, s.Directory(), "pkg.Foo")
	require.NoError(t, err)
	assert.Same(t, cls, got)

	// Unmapped JDK classes resolve to themselves, members included.
	list, err := Class(context.Background(), r, s.Directory(), "java.util.ArrayList")
	require.NoError(t, err)
	assert.True(t, r.ResolveMethod(list, "size", "()I").Valid())

	disabled, err := New(Disabled, nil)
	require.NoError(t, err)
	_, err = Class(context.Background(), disabled, s.Directory(), "pkg.Foo")
	assert.ErrorIs(t, err, ErrDisabled)
}
