package memvm

import (
	"bytes"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
)

func attach(t *testing.T, vm *VM) *Env {
	t.Helper()
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)

	env, err := vm.AttachCurrentThread(false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vm.DetachCurrentThread() })
	return env.(*Env)
}

func pendingClass(t *testing.T, env *Env) string {
	t.Helper()
	require.True(t, env.ExceptionCheck())
	exc := env.Instance(env.ExceptionOccurred())
	require.NotNil(t, exc)
	env.ExceptionClear()
	return exc.Class().Name
}

func TestGetEnvRequiresAttach(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	vm := New()
	_, err := vm.GetEnv()
	assert.ErrorIs(t, err, host.ErrDetached)

	env, err := vm.AttachCurrentThread(true)
	require.NoError(t, err)
	again, err := vm.AttachCurrentThread(true)
	require.NoError(t, err)
	assert.Same(t, env, again)
	assert.Equal(t, 1, vm.AttachedThreads())

	require.NoError(t, vm.DetachCurrentThread())
	assert.Equal(t, 0, vm.AttachedThreads())
	assert.ErrorIs(t, vm.DetachCurrentThread(), host.ErrDetached)
}

func TestReferenceCounters(t *testing.T) {
	vm := New()
	env := attach(t, vm)

	str := env.NewString("hello")
	assert.Equal(t, host.RefLocal, env.GetObjectRefType(str))

	g := env.NewGlobalRef(str)
	assert.Equal(t, host.RefGlobal, env.GetObjectRefType(g))
	assert.True(t, env.IsSameObject(str, g))

	env.DeleteLocalRef(str)
	assert.Equal(t, host.RefInvalid, env.GetObjectRefType(str))
	assert.Equal(t, "hello", env.GetString(g))

	env.DeleteGlobalRef(g)
	env.DeleteGlobalRef(g)

	stats := vm.Stats()
	assert.Equal(t, 1, stats.NewGlobal)
	assert.Equal(t, 2, stats.DeleteGlobal)
	assert.Equal(t, 1, stats.DeleteLocal)
	assert.Equal(t, 1, stats.InvalidDeletes)
	assert.Equal(t, 0, stats.LiveGlobals)
}

func TestFindClassMissingRaises(t *testing.T) {
	vm := New()
	env := attach(t, vm)

	assert.Zero(t, env.FindClass("com/example/Missing"))
	assert.Equal(t, "java/lang/NoClassDefFoundError", pendingClass(t, env))
	assert.False(t, env.ExceptionCheck())

	assert.NotZero(t, env.FindClass("java/lang/String"))
	assert.False(t, env.ExceptionCheck())
}

func TestStringLengths(t *testing.T) {
	vm := New()
	env := attach(t, vm)

	s := env.NewString("héllo\x00")
	assert.Equal(t, 6, env.GetStringLength(s))
	assert.Equal(t, 8, env.GetStringUTFLength(s))

	cls := env.FindClass("java/lang/String")
	length := env.GetMethodID(cls, "length", "()I")
	require.NotZero(t, length)
	v := env.CallMethod(s, length, descriptor.KindInt, nil)
	assert.Equal(t, int32(6), v.Int())
}

func TestStaticFieldAndMethod(t *testing.T) {
	vm := New()
	counter := vm.DefineClass("com/example/Counter", "java/lang/Object")
	counter.AddField("count", "I", host.AccStatic)
	counter.SetStatic("count", host.Int(41))
	counter.AddMethod("next", "()I", host.AccStatic, func(c *Call) (host.Value, error) {
		cls := c.Env.FindClass("com/example/Counter")
		f := c.Env.GetStaticFieldID(cls, "count", "I")
		n := c.Env.GetStaticField(cls, f, descriptor.KindInt).Int() + 1
		c.Env.SetStaticField(cls, f, host.Int(n))
		return host.Int(n), nil
	})

	env := attach(t, vm)
	cls := env.FindClass("com/example/Counter")

	next := env.GetStaticMethodID(cls, "next", "()I")
	require.NotZero(t, next)
	assert.Equal(t, int32(42), env.CallStaticMethod(cls, next, descriptor.KindInt, nil).Int())
	assert.Equal(t, int32(43), env.CallStaticMethod(cls, next, descriptor.KindInt, nil).Int())

	assert.Zero(t, env.GetMethodID(cls, "next", "()I"))
	assert.Equal(t, "java/lang/NoSuchMethodError", pendingClass(t, env))

	assert.Zero(t, env.GetStaticFieldID(cls, "count", "J"))
	assert.Equal(t, "java/lang/NoSuchFieldError", pendingClass(t, env))
}

func TestVirtualDispatch(t *testing.T) {
	vm := New()
	base := vm.DefineClass("com/example/Shape", "java/lang/Object")
	base.AddMethod("sides", "()I", host.AccPublic, func(*Call) (host.Value, error) {
		return host.Int(0), nil
	})
	square := vm.DefineClass("com/example/Square", "com/example/Shape")
	square.AddMethod("sides", "()I", host.AccPublic, func(*Call) (host.Value, error) {
		return host.Int(4), nil
	})

	env := attach(t, vm)
	shapeCls := env.FindClass("com/example/Shape")
	squareCls := env.FindClass("com/example/Square")
	sides := env.GetMethodID(shapeCls, "sides", "()I")

	obj := env.NewObject(squareCls, env.GetMethodID(squareCls, "<init>", "()V"), nil)
	require.NotZero(t, obj)
	assert.True(t, env.IsInstanceOf(obj, shapeCls))
	assert.Equal(t, int32(4), env.CallMethod(obj, sides, descriptor.KindInt, nil).Int())
	assert.True(t, env.IsSameObject(shapeCls, env.GetSuperclass(squareCls)))
}

func TestNativeErrorsBecomeExceptions(t *testing.T) {
	var stderr bytes.Buffer
	vm := New(WithStderr(&stderr))
	cls := vm.DefineClass("com/example/Faulty", "java/lang/Object")
	cls.AddMethod("explode", "()V", host.AccStatic, func(*Call) (host.Value, error) {
		return host.Value{}, Throwf("java/lang/IllegalArgumentException", "bad %d", 7)
	})
	cls.AddMethod("plain", "()V", host.AccStatic, func(*Call) (host.Value, error) {
		return host.Value{}, errors.New("plain failure")
	})
	cls.AddMethod("abstract", "()V", host.AccStatic, nil)

	env := attach(t, vm)
	c := env.FindClass("com/example/Faulty")

	env.CallStaticMethod(c, env.GetStaticMethodID(c, "explode", "()V"), descriptor.KindVoid, nil)
	require.True(t, env.ExceptionCheck())
	env.ExceptionDescribe()
	assert.False(t, env.ExceptionCheck())
	assert.Contains(t, stderr.String(), "java.lang.IllegalArgumentException: bad 7")

	env.CallStaticMethod(c, env.GetStaticMethodID(c, "plain", "()V"), descriptor.KindVoid, nil)
	assert.Equal(t, "java/lang/RuntimeException", pendingClass(t, env))

	env.CallStaticMethod(c, env.GetStaticMethodID(c, "abstract", "()V"), descriptor.KindVoid, nil)
	assert.Equal(t, "java/lang/UnsupportedOperationException", pendingClass(t, env))
}

func TestArrays(t *testing.T) {
	vm := New()
	env := attach(t, vm)

	arr := env.NewArray(descriptor.KindInt, 3, 0)
	require.NotZero(t, arr)
	assert.Equal(t, 3, env.GetArrayLength(arr))

	env.SetArrayElement(arr, descriptor.KindInt, 1, host.Int(-9))
	assert.Equal(t, int32(-9), env.GetArrayElement(arr, descriptor.KindInt, 1).Int())

	env.GetArrayElement(arr, descriptor.KindInt, 3)
	assert.Equal(t, "java/lang/ArrayIndexOutOfBoundsException", pendingClass(t, env))

	assert.Zero(t, env.NewArray(descriptor.KindInt, -1, 0))
	assert.Equal(t, "java/lang/NegativeArraySizeException", pendingClass(t, env))

	strs := env.NewArray(descriptor.KindObject, 2, env.FindClass("java/lang/String"))
	env.SetArrayElement(strs, descriptor.KindObject, 0, host.Ref(env.NewString("a")))
	first := env.GetArrayElement(strs, descriptor.KindObject, 0)
	assert.Equal(t, "a", env.GetString(first.Object()))
	assert.True(t, env.GetArrayElement(strs, descriptor.KindObject, 1).IsNull())
	assert.Equal(t, "[Ljava/lang/String;", env.Instance(strs).Class().Name)
}

func TestLocalFrames(t *testing.T) {
	vm := New()
	env := attach(t, vm)

	base := env.LocalCount()
	require.NoError(t, env.PushLocalFrame(4))
	env.NewString("dropped")
	kept := env.NewString("kept")
	assert.Equal(t, base+2, env.LocalCount())

	result := env.PopLocalFrame(kept)
	assert.Equal(t, base+1, env.LocalCount())
	assert.Equal(t, "kept", env.GetString(result))
	assert.Equal(t, host.RefInvalid, env.GetObjectRefType(kept))
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	vm := New(ReadOnly())
	point := vm.DefineClass("com/example/Point", "java/lang/Object")
	point.AddField("x", "I", 0)

	env := attach(t, vm)
	inst := vm.NewInstance(point)
	inst.Set("x", host.Int(3))
	obj := env.NewLocal(inst)
	x := env.GetFieldID(env.FindClass("com/example/Point"), "x", "I")

	env.SetField(obj, x, host.Int(4))
	assert.Equal(t, "java/lang/IllegalAccessError", pendingClass(t, env))
	assert.Equal(t, int32(3), env.GetField(obj, x, descriptor.KindInt).Int())
}

func TestArrayListAndBoxes(t *testing.T) {
	vm := New()
	env := attach(t, vm)

	listCls := env.FindClass("java/util/ArrayList")
	list := env.NewObject(listCls, env.GetMethodID(listCls, "<init>", "()V"), nil)
	require.NotZero(t, list)

	iface := env.FindClass("java/util/List")
	assert.True(t, env.IsInstanceOf(list, iface))

	intCls := env.FindClass("java/lang/Integer")
	valueOf := env.GetStaticMethodID(intCls, "valueOf", "(I)Ljava/lang/Integer;")
	add := env.GetMethodID(iface, "add", "(Ljava/lang/Object;)Z")
	for _, n := range []int32{5, 8} {
		boxed := env.CallStaticMethod(intCls, valueOf, descriptor.KindObject, []host.Value{host.Int(n)})
		assert.True(t, env.CallMethod(list, add, descriptor.KindBoolean, []host.Value{boxed}).Bool())
	}

	size := env.GetMethodID(iface, "size", "()I")
	assert.Equal(t, int32(2), env.CallMethod(list, size, descriptor.KindInt, nil).Int())

	get := env.GetMethodID(iface, "get", "(I)Ljava/lang/Object;")
	second := env.CallMethod(list, get, descriptor.KindObject, []host.Value{host.Int(1)})
	longValue := env.GetMethodID(env.FindClass("java/lang/Number"), "longValue", "()J")
	assert.Equal(t, int64(8), env.CallMethod(second.Object(), longValue, descriptor.KindLong, nil).Long())

	env.CallMethod(list, get, descriptor.KindObject, []host.Value{host.Int(2)})
	assert.Equal(t, "java/lang/IndexOutOfBoundsException", pendingClass(t, env))
}

func TestLoaderFindsClasses(t *testing.T) {
	vm := New()
	vm.DefineClass("com/example/App", "java/lang/Object")
	env := attach(t, vm)

	loader := env.NewLocal(vm.SystemLoader())
	loadClass := env.GetMethodID(env.GetObjectClass(loader), "loadClass", "(Ljava/lang/String;)Ljava/lang/Class;")
	require.NotZero(t, loadClass)

	cls := env.CallMethod(loader, loadClass, descriptor.KindObject, []host.Value{host.Ref(env.NewString("com.example.App"))})
	require.False(t, env.ExceptionCheck())
	assert.True(t, env.IsSameObject(cls.Object(), env.FindClass("com/example/App")))

	env.CallMethod(loader, loadClass, descriptor.KindObject, []host.Value{host.Ref(env.NewString("com.example.Nope"))})
	assert.Equal(t, "java/lang/ClassNotFoundException", pendingClass(t, env))
}

func TestToolingThreadsAndClasses(t *testing.T) {
	vm := New()
	app := vm.DefineClass("com/example/App", "java/lang/Object")
	app.AddMethod("run", "()V", host.AccPublic, nil)
	app.AddField("id", "J", host.AccStatic|host.AccPrivate)
	env := attach(t, vm)

	ti, err := vm.Tooling()
	require.NoError(t, err)

	phase, err := ti.GetPhase()
	require.NoError(t, err)
	assert.Equal(t, host.PhaseLive, phase)

	threads, err := ti.GetAllThreads()
	require.NoError(t, err)
	var names []string
	var loader host.Object
	for _, th := range threads {
		info, err := ti.GetThreadInfo(th)
		require.NoError(t, err)
		names = append(names, info.Name)
		if info.Name == "main" {
			loader = info.ContextClassLoader
		}
	}
	assert.Contains(t, names, "main")
	assert.Contains(t, names, "Reference Handler")
	require.NotZero(t, loader)
	assert.Same(t, vm.SystemLoader(), env.Instance(loader))

	classes, err := ti.GetLoadedClasses()
	require.NoError(t, err)
	var appCls host.Object
	for _, c := range classes {
		sig, err := ti.GetClassSignature(c)
		require.NoError(t, err)
		if sig == "Lcom/example/App;" {
			appCls = c
		}
	}
	require.NotZero(t, appCls)

	methods, err := ti.GetClassMethods(appCls)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	name, sig, err := ti.GetMethodName(methods[0])
	require.NoError(t, err)
	assert.Equal(t, "run", name)
	assert.Equal(t, "()V", sig)

	fields, err := ti.GetClassFields(appCls)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	mods, err := ti.GetFieldModifiers(appCls, fields[0])
	require.NoError(t, err)
	assert.NotZero(t, mods&host.AccStatic)
}

func TestToolingPhaseAndFaults(t *testing.T) {
	vm := New(WithPhase(host.PhaseStart))
	vm.DefineClass("com/example/Broken", "java/lang/Object")
	env := attach(t, vm)
	ti, err := vm.Tooling()
	require.NoError(t, err)

	_, err = ti.GetLoadedClasses()
	assert.ErrorIs(t, err, ErrWrongPhase)

	vm.SetPhase(host.PhaseLive)
	boom := errors.New("boom")
	vm.SetFault(func(op, subject string) error {
		if op == "GetClassMethods" && subject == "com/example/Broken" {
			return boom
		}
		return nil
	})

	broken := env.FindClass("com/example/Broken")
	_, err = ti.GetClassMethods(broken)
	assert.ErrorIs(t, err, boom)
	_, err = ti.GetClassFields(broken)
	assert.NoError(t, err)
}

func TestToolingRequiresAttachedThread(t *testing.T) {
	vm := New()
	ti, err := vm.Tooling()
	require.NoError(t, err)

	done := make(chan error)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		_, err := ti.GetLoadedClasses()
		done <- err
	}()
	assert.ErrorIs(t, <-done, ErrUnattachedThread)

	_, err = New(WithoutTooling()).Tooling()
	assert.ErrorIs(t, err, host.ErrVersion)
}

func TestDetachDropsLocals(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	vm := New()
	env, err := vm.AttachCurrentThread(false)
	require.NoError(t, err)
	local := env.NewString("x")
	global := env.NewGlobalRef(local)

	require.NoError(t, vm.DetachCurrentThread())
	assert.Nil(t, vm.Resolve(local))
	assert.NotNil(t, vm.Resolve(global))
}

func TestDefineLoaderClass(t *testing.T) {
	vm := New()
	first := vm.DefineClass("com/example/Game", "java/lang/Object")
	second := vm.DefineLoaderClass("com.example.Game", "java/lang/Object")

	assert.NotSame(t, first, second)
	assert.Equal(t, first.Name, second.Name)
	assert.Same(t, first, vm.Class("com/example/Game"))
	assert.Same(t, second, second.Mirror().mirror)

	var named []*Class
	for _, c := range vm.Classes() {
		if c.Name == "com/example/Game" {
			named = append(named, c)
		}
	}
	assert.Equal(t, []*Class{first, second}, named)

	fresh := vm.DefineLoaderClass("com/example/Menu", "java/lang/Object")
	assert.Same(t, fresh, vm.Class("com/example/Menu"))
}
