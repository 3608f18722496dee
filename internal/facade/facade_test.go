package facade

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/host/memvm"
	"github.com/mabhi256/jinterop/internal/interop"
	"github.com/mabhi256/jinterop/internal/mapping"
	"github.com/mabhi256/jinterop/internal/symbols"
)

// The obfuscated build names net.example.Player "q" and its members
// single letters.
func defineGame(vm *memvm.VM) *memvm.Class {
	pub := host.AccPublic
	pubStatic := host.AccPublic | host.AccStatic

	player := vm.DefineClass("q", "java/lang/Object")
	player.AddField("a", "F", pub)
	player.AddField("b", "I", pubStatic)
	player.SetStatic("b", host.Int(7))
	player.AddMethod("<init>", "()V", pub, func(c *memvm.Call) (host.Value, error) {
		c.Env.Instance(c.This).Set("a", host.Float(20))
		return host.Void(), nil
	})
	player.AddMethod("c", "(F)V", pub, func(c *memvm.Call) (host.Value, error) {
		inst := c.Env.Instance(c.This)
		inst.Set("a", host.Float(inst.Get("a").Float()-c.Args[0].Float()))
		return host.Void(), nil
	})
	player.AddMethod("toString", "()Ljava/lang/String;", pub, func(c *memvm.Call) (host.Value, error) {
		return host.Ref(c.Env.NewString("Player")), nil
	})
	return player
}

func gameMappings() *mapping.Mappings {
	m := mapping.New()
	m.AddClass("net.example.Player", "q")
	m.AddField("net.example.Player", "health", "a")
	m.AddField("net.example.Player", "online", "b")
	m.AddMethod("net.example.Player", "damage", "c")
	return m
}

var (
	playerClass  = Class("net.example.Player")
	playerHealth = playerClass.Field("health", "F")
	playerOnline = playerClass.Field("online", "I")
	playerDamage = playerClass.Method("damage", "(F)V")
	playerHeal   = playerClass.Method("heal", "(F)V")
)

func newRuntime(t *testing.T, mode symbols.Mode) (*Runtime, *memvm.VM) {
	t.Helper()
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)

	vm := memvm.New(memvm.WithProperties(map[string]string{"game.mode": "hardcore"}))
	defineGame(vm)

	s, err := interop.Initialize(vm.Locator(), interop.WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Destroy() })

	var table symbols.Table
	if mode == symbols.Mapped {
		table = gameMappings()
	}
	r, err := symbols.New(mode, table)
	require.NoError(t, err)
	return New(s, r, time.Second), vm
}

func newPlayer(t *testing.T, rt *Runtime) *Object {
	t.Helper()
	cls, err := rt.Class(playerClass)
	require.NoError(t, err)
	ctor := cls.Method("<init>", "()V")
	require.True(t, ctor.Valid())

	env, err := rt.Session.Env()
	require.NoError(t, err)
	clsObj, err := cls.Ref().Handle()
	require.NoError(t, err)
	local := env.NewObject(clsObj, ctor.ID(), nil)
	ref, err := rt.Session.NewRef(local)
	require.NoError(t, err)
	env.DeleteLocalRef(local)

	obj, err := Wrap(rt, ref)
	require.NoError(t, err)
	t.Cleanup(func() { _ = obj.Release() })
	return obj
}

func TestSlotsResolveOnce(t *testing.T) {
	rt, _ := newRuntime(t, symbols.Mapped)

	c1, err := rt.Class(playerClass)
	require.NoError(t, err)
	c2, err := rt.Class(playerClass)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, "q", c1.FullName())

	m1, err := rt.Method(playerDamage)
	require.NoError(t, err)
	m2, err := rt.Method(playerDamage)
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, "c", m1.Name(false))
	assert.Equal(t, "damage", m1.Name(true))

	missing, err := rt.Method(playerHeal)
	require.NoError(t, err)
	assert.False(t, missing.Valid())
}

func TestStaticSlots(t *testing.T) {
	rt, _ := newRuntime(t, symbols.Mapped)

	online, err := GetStatic[int32](rt, playerOnline)
	require.NoError(t, err)
	assert.Equal(t, int32(7), online)

	require.NoError(t, SetStatic(rt, playerOnline, int32(9)))
	online, err = GetStatic[int32](rt, playerOnline)
	require.NoError(t, err)
	assert.Equal(t, int32(9), online)

	_, err = rt.Class(Class("net.example.Missing"))
	assert.Error(t, err)
}

func TestObjectMembers(t *testing.T) {
	rt, _ := newRuntime(t, symbols.Mapped)
	p := newPlayer(t, rt)
	require.True(t, p.Ref().IsGlobal())

	health, err := Get[float32](p, playerHealth)
	require.NoError(t, err)
	assert.Equal(t, float32(20), health)

	_, err = Invoke[host.Value](p, playerDamage, float32(4.5))
	require.NoError(t, err)
	health, err = Get[float32](p, playerHealth)
	require.NoError(t, err)
	assert.Equal(t, float32(15.5), health)

	require.NoError(t, Set(p, playerHealth, float32(1)))
	health, err = Get[float32](p, playerHealth)
	require.NoError(t, err)
	assert.Equal(t, float32(1), health)

	// Missing members read as zero.
	_, err = Invoke[host.Value](p, playerHeal, float32(1))
	require.NoError(t, err)

	m, err := p.Method("damage", "(F)V")
	require.NoError(t, err)
	assert.Same(t, mustMethod(t, rt, playerDamage), m)

	f, err := p.Field("health", "")
	require.NoError(t, err)
	assert.Equal(t, "a", f.Name(false))

	assert.Equal(t, "Player", p.String())
	ok, err := p.IsInstance(playerClass)
	require.NoError(t, err)
	assert.True(t, ok)
}

func mustMethod(t *testing.T, rt *Runtime, slot *MethodSlot) *interop.Method {
	t.Helper()
	m, err := rt.Method(slot)
	require.NoError(t, err)
	return m
}

func TestNullObject(t *testing.T) {
	rt, _ := newRuntime(t, symbols.Direct)
	null, err := Wrap(rt, nil)
	require.NoError(t, err)

	assert.False(t, null.Valid())
	assert.Equal(t, "null", null.String())

	health, err := Get[float32](null, playerHealth)
	require.NoError(t, err)
	assert.Zero(t, health)

	hash, err := Invoke[int32](null, objectHashCode)
	require.NoError(t, err)
	assert.Zero(t, hash)

	require.NoError(t, Set[float32](null, playerHealth, 5))

	// Unwrapped calls still require an instance.
	_, err = interop.Call[int32](mustMethod(t, rt, objectHashCode), nil)
	assert.ErrorIs(t, err, interop.ErrNoInstance)
}

func TestThread(t *testing.T) {
	rt, _ := newRuntime(t, symbols.Direct)

	th, err := CurrentThread(rt)
	require.NoError(t, err)
	defer th.Release()

	name, err := th.Name()
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	daemon, err := th.IsDaemon()
	require.NoError(t, err)
	assert.False(t, daemon)

	loader, err := th.ContextClassLoader()
	require.NoError(t, err)
	defer loader.Release()

	hash, err := th.HashCode()
	require.NoError(t, err)
	same, err := th.Equals(th.Object)
	require.NoError(t, err)
	assert.True(t, same)

	ident, err := NewSystem(rt).IdentityHashCode(th.Object)
	require.NoError(t, err)
	assert.Equal(t, hash, ident)
}

func TestSystem(t *testing.T) {
	rt, _ := newRuntime(t, symbols.Direct)
	sys := NewSystem(rt)

	v, ok, err := sys.Property("game.mode")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hardcore", v)

	_, ok, err = sys.Property("game.unset")
	require.NoError(t, err)
	assert.False(t, ok)

	millis, err := sys.CurrentTimeMillis()
	require.NoError(t, err)
	assert.InDelta(t, time.Now().UnixMilli(), millis, 5000)

	n1, err := sys.NanoTime()
	require.NoError(t, err)
	n2, err := sys.NanoTime()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n2, n1)
}

func TestBoxing(t *testing.T) {
	rt, _ := newRuntime(t, symbols.Direct)

	i, err := Box(rt, int32(42))
	require.NoError(t, err)
	defer i.Release()
	assert.Equal(t, descriptor.KindInt, i.Kind)
	n, err := Unbox[int32](i)
	require.NoError(t, err)
	assert.Equal(t, int32(42), n)
	wide, err := Unbox[int64](i)
	require.NoError(t, err)
	assert.Equal(t, int64(42), wide)
	_, err = Unbox[bool](i)
	assert.ErrorIs(t, err, interop.ErrTypeMismatch)

	b, err := Box(rt, true)
	require.NoError(t, err)
	defer b.Release()
	yes, err := Unbox[bool](b)
	require.NoError(t, err)
	assert.True(t, yes)

	d, err := Box(rt, 2.5)
	require.NoError(t, err)
	defer d.Release()
	f, err := Unbox[float64](d)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	found, ok, err := AsBoxed(d.Object)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, descriptor.KindDouble, found.Kind)
}
