package memvm

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
)

const (
	pub       = host.AccPublic
	pubStatic = host.AccPublic | host.AccStatic
)

// AppLoaderClass is the class of the application class loader instance.
const AppLoaderClass = "jdk/internal/loader/ClassLoaders$AppClassLoader"

var started = time.Now()

// bootstrap defines the slice of the JDK that the interop layer relies on.
func (vm *VM) bootstrap() {
	object := vm.DefineClass("java/lang/Object", "")
	class := vm.DefineClass("java/lang/Class", "java/lang/Object")

	vm.mu.Lock()
	for _, c := range vm.order {
		if c.mirror.class == nil {
			c.mirror.class = class
		}
	}
	vm.mu.Unlock()

	object.AddMethod("<init>", "()V", pub, func(*Call) (host.Value, error) {
		return host.Void(), nil
	})
	object.AddMethod("hashCode", "()I", pub, func(c *Call) (host.Value, error) {
		return host.Int(c.Env.vm.identityHash(c.Env.Instance(c.This))), nil
	})
	object.AddMethod("equals", "(Ljava/lang/Object;)Z", pub, func(c *Call) (host.Value, error) {
		return host.Bool(c.Env.IsSameObject(c.This, c.Args[0].Object())), nil
	})
	object.AddMethod("toString", "()Ljava/lang/String;", pub, func(c *Call) (host.Value, error) {
		inst := c.Env.Instance(c.This)
		s := fmt.Sprintf("%s@%x", dotted(inst.class.Name), c.Env.vm.identityHash(inst))
		return host.Ref(c.Env.NewString(s)), nil
	})
	object.AddMethod("getClass", "()Ljava/lang/Class;", pub|host.AccFinal, func(c *Call) (host.Value, error) {
		return host.Ref(c.Env.GetObjectClass(c.This)), nil
	})

	class.AddMethod("getName", "()Ljava/lang/String;", pub, func(c *Call) (host.Value, error) {
		return host.Ref(c.Env.NewString(dotted(c.Env.Instance(c.This).mirror.Name))), nil
	})
	class.AddMethod("getSimpleName", "()Ljava/lang/String;", pub, func(c *Call) (host.Value, error) {
		name := c.Env.Instance(c.This).mirror.Name
		if i := strings.LastIndexAny(name, "/$"); i >= 0 {
			name = name[i+1:]
		}
		return host.Ref(c.Env.NewString(name)), nil
	})
	class.AddMethod("isInterface", "()Z", pub, func(c *Call) (host.Value, error) {
		return host.Bool(c.Env.Instance(c.This).mirror.Interface), nil
	})

	vm.DefineInterface("java/lang/CharSequence")
	vm.DefineInterface("java/lang/Runnable")

	vm.defineString()
	vm.defineThrowables()
	vm.defineLoader()
	vm.defineThread()
	vm.defineBoxes()
	vm.defineCollections()
	vm.defineSystem()

	var loader *Instance
	if !vm.noLoader {
		loader = vm.loader
	}
	vm.AddThread("Reference Handler", true, nil)
	vm.AddThread("main", false, loader)
}

func dotted(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

func (vm *VM) identityHash(inst *Instance) int32 {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if inst.hash == 0 {
		vm.lastHash = vm.lastHash*1103515245 + 12345
		inst.hash = vm.lastHash&0x7fffffff | 1
	}
	return inst.hash
}

func stringArg(c *Call, i int) (string, error) {
	inst := c.Env.Instance(c.Args[i].Object())
	if inst == nil {
		return "", Throwf("java/lang/NullPointerException", "argument %d is null", i)
	}
	s, ok := inst.StringValue()
	if !ok {
		return "", Throwf("java/lang/ClassCastException", "%s cannot be cast to java.lang.String", dotted(inst.class.Name))
	}
	return s, nil
}

func (vm *VM) defineString() {
	str := vm.DefineClass("java/lang/String", "java/lang/Object", "java/lang/CharSequence")

	self := func(c *Call) string {
		return c.Env.Instance(c.This).str
	}

	str.AddMethod("length", "()I", pub, func(c *Call) (host.Value, error) {
		return host.Int(int32(len(utf16.Encode([]rune(self(c)))))), nil
	})
	str.AddMethod("isEmpty", "()Z", pub, func(c *Call) (host.Value, error) {
		return host.Bool(self(c) == ""), nil
	})
	str.AddMethod("charAt", "(I)C", pub, func(c *Call) (host.Value, error) {
		units := utf16.Encode([]rune(self(c)))
		i := int(c.Args[0].Int())
		if i < 0 || i >= len(units) {
			return host.Value{}, Throwf("java/lang/StringIndexOutOfBoundsException", "index %d, length %d", i, len(units))
		}
		return host.Char(units[i]), nil
	})
	str.AddMethod("equals", "(Ljava/lang/Object;)Z", pub, func(c *Call) (host.Value, error) {
		other := c.Env.Instance(c.Args[0].Object())
		return host.Bool(other != nil && other.isStr && other.str == self(c)), nil
	})
	str.AddMethod("hashCode", "()I", pub, func(c *Call) (host.Value, error) {
		var h int32
		for _, u := range utf16.Encode([]rune(self(c))) {
			h = 31*h + int32(u)
		}
		return host.Int(h), nil
	})
	str.AddMethod("toString", "()Ljava/lang/String;", pub, func(c *Call) (host.Value, error) {
		return host.Ref(c.Env.NewLocalRef(c.This)), nil
	})
	str.AddMethod("concat", "(Ljava/lang/String;)Ljava/lang/String;", pub, func(c *Call) (host.Value, error) {
		other, err := stringArg(c, 0)
		if err != nil {
			return host.Value{}, err
		}
		return host.Ref(c.Env.NewString(self(c) + other)), nil
	})
	str.AddMethod("valueOf", "(I)Ljava/lang/String;", pubStatic, func(c *Call) (host.Value, error) {
		return host.Ref(c.Env.NewString(strconv.Itoa(int(c.Args[0].Int())))), nil
	})
}

func (vm *VM) defineThrowables() {
	throwable := vm.DefineClass("java/lang/Throwable", "java/lang/Object")
	throwable.AddField("detailMessage", "Ljava/lang/String;", host.AccPrivate)

	throwable.AddMethod("<init>", "()V", pub, func(*Call) (host.Value, error) {
		return host.Void(), nil
	})
	throwable.AddMethod("<init>", "(Ljava/lang/String;)V", pub, func(c *Call) (host.Value, error) {
		c.Env.Instance(c.This).SetRef("detailMessage", c.Env.Instance(c.Args[0].Object()))
		return host.Void(), nil
	})
	throwable.AddMethod("getMessage", "()Ljava/lang/String;", pub, func(c *Call) (host.Value, error) {
		inst := c.Env.Instance(c.This)
		f := inst.class.Field("detailMessage")
		return host.Ref(c.Env.NewLocal(inst.fields[f].ref)), nil
	})
	throwable.AddMethod("toString", "()Ljava/lang/String;", pub, func(c *Call) (host.Value, error) {
		return host.Ref(c.Env.NewString(describeLocked(c.Env.Instance(c.This)))), nil
	})

	hierarchy := [][2]string{
		{"java/lang/Exception", "java/lang/Throwable"},
		{"java/lang/Error", "java/lang/Throwable"},
		{"java/lang/RuntimeException", "java/lang/Exception"},
		{"java/lang/ReflectiveOperationException", "java/lang/Exception"},
		{"java/lang/ClassNotFoundException", "java/lang/ReflectiveOperationException"},
		{"java/lang/InstantiationException", "java/lang/ReflectiveOperationException"},
		{"java/lang/NullPointerException", "java/lang/RuntimeException"},
		{"java/lang/ClassCastException", "java/lang/RuntimeException"},
		{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
		{"java/lang/UnsupportedOperationException", "java/lang/RuntimeException"},
		{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"},
		{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
		{"java/lang/StringIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
		{"java/lang/NegativeArraySizeException", "java/lang/RuntimeException"},
		{"java/lang/LinkageError", "java/lang/Error"},
		{"java/lang/NoClassDefFoundError", "java/lang/LinkageError"},
		{"java/lang/IncompatibleClassChangeError", "java/lang/LinkageError"},
		{"java/lang/NoSuchMethodError", "java/lang/IncompatibleClassChangeError"},
		{"java/lang/NoSuchFieldError", "java/lang/IncompatibleClassChangeError"},
		{"java/lang/IllegalAccessError", "java/lang/IncompatibleClassChangeError"},
	}
	for _, h := range hierarchy {
		vm.DefineClass(h[0], h[1])
	}
}

func (vm *VM) defineLoader() {
	loader := vm.DefineClass("java/lang/ClassLoader", "java/lang/Object")

	find := func(c *Call) (host.Value, error) {
		name, err := stringArg(c, 0)
		if err != nil {
			return host.Value{}, err
		}
		cls := c.Env.vm.Class(name)
		if cls == nil {
			return host.Value{}, &Throw{Class: "java/lang/ClassNotFoundException", Message: name}
		}
		return host.Ref(c.Env.NewLocal(cls.mirror)), nil
	}
	loader.AddMethod("loadClass", "(Ljava/lang/String;)Ljava/lang/Class;", pub, find)
	loader.AddMethod("findClass", "(Ljava/lang/String;)Ljava/lang/Class;", host.AccProtected, find)
	loader.AddMethod("getSystemClassLoader", "()Ljava/lang/ClassLoader;", pubStatic, func(c *Call) (host.Value, error) {
		return host.Ref(c.Env.NewLocal(c.Env.vm.loader)), nil
	})

	app := vm.DefineClass(AppLoaderClass, "java/lang/ClassLoader")
	vm.loader = vm.NewInstance(app)
}

func (vm *VM) defineThread() {
	thread := vm.DefineClass("java/lang/Thread", "java/lang/Object", "java/lang/Runnable")

	state := func(c *Call) *threadState {
		return c.Env.Instance(c.This).thread
	}

	thread.AddMethod("getName", "()Ljava/lang/String;", pub|host.AccFinal, func(c *Call) (host.Value, error) {
		return host.Ref(c.Env.NewString(state(c).name)), nil
	})
	thread.AddMethod("isDaemon", "()Z", pub|host.AccFinal, func(c *Call) (host.Value, error) {
		return host.Bool(state(c).daemon), nil
	})
	thread.AddMethod("getContextClassLoader", "()Ljava/lang/ClassLoader;", pub, func(c *Call) (host.Value, error) {
		return host.Ref(c.Env.NewLocal(state(c).loader)), nil
	})
	thread.AddMethod("setContextClassLoader", "(Ljava/lang/ClassLoader;)V", pub, func(c *Call) (host.Value, error) {
		state(c).loader = c.Env.Instance(c.Args[0].Object())
		return host.Void(), nil
	})
	thread.AddMethod("currentThread", "()Ljava/lang/Thread;", pubStatic|host.AccNative, func(c *Call) (host.Value, error) {
		return host.Ref(c.Env.NewLocal(c.Env.thread)), nil
	})
}

type box struct {
	kind  descriptor.Kind
	super string
}

var boxes = []box{
	{descriptor.KindBoolean, "java/lang/Object"},
	{descriptor.KindByte, "java/lang/Number"},
	{descriptor.KindChar, "java/lang/Object"},
	{descriptor.KindShort, "java/lang/Number"},
	{descriptor.KindInt, "java/lang/Number"},
	{descriptor.KindLong, "java/lang/Number"},
	{descriptor.KindFloat, "java/lang/Number"},
	{descriptor.KindDouble, "java/lang/Number"},
}

// convert applies Java's primitive widening and narrowing casts.
func convert(v host.Value, to descriptor.Kind) host.Value {
	if f, ok := v.Float64(); ok {
		switch to {
		case descriptor.KindFloat:
			return host.Float(float32(f))
		case descriptor.KindDouble:
			return host.Double(f)
		case descriptor.KindLong:
			return host.Long(int64(f))
		default:
			return host.FromBits(to, uint64(int64(int32(f))))
		}
	}

	i, _ := v.Int64()
	switch to {
	case descriptor.KindFloat:
		return host.Float(float32(i))
	case descriptor.KindDouble:
		return host.Double(float64(i))
	default:
		return host.FromBits(to, uint64(i))
	}
}

func (vm *VM) defineBoxes() {
	number := vm.DefineClass("java/lang/Number", "java/lang/Object")

	value := func(c *Call) host.Value {
		return c.Env.Instance(c.This).Get("value")
	}

	for _, k := range []descriptor.Kind{
		descriptor.KindByte, descriptor.KindShort, descriptor.KindInt,
		descriptor.KindLong, descriptor.KindFloat, descriptor.KindDouble,
	} {
		number.AddMethod(k.String()+"Value", "()"+string(k.Code()), pub, func(c *Call) (host.Value, error) {
			return convert(value(c), k), nil
		})
	}

	for _, b := range boxes {
		sig := string(b.kind.Code())
		cls := vm.DefineClass(b.kind.Box(), b.super)
		cls.AddField("value", sig, host.AccPrivate|host.AccFinal)

		cls.AddMethod("<init>", "("+sig+")V", pub, func(c *Call) (host.Value, error) {
			c.Env.Instance(c.This).Set("value", host.FromBits(b.kind, c.Args[0].Bits()))
			return host.Void(), nil
		})
		cls.AddMethod("valueOf", "("+sig+")L"+cls.Name+";", pubStatic, func(c *Call) (host.Value, error) {
			inst := c.Env.vm.NewInstance(cls)
			inst.Set("value", host.FromBits(b.kind, c.Args[0].Bits()))
			return host.Ref(c.Env.NewLocal(inst)), nil
		})
		if b.super != "java/lang/Number" {
			cls.AddMethod(b.kind.String()+"Value", "()"+sig, pub, func(c *Call) (host.Value, error) {
				return value(c), nil
			})
		}
		cls.AddMethod("toString", "()Ljava/lang/String;", pub, func(c *Call) (host.Value, error) {
			v := value(c)
			s := v.String()
			if b.kind == descriptor.KindChar {
				s = string(rune(v.Char()))
			}
			return host.Ref(c.Env.NewString(s)), nil
		})
		cls.AddMethod("equals", "(Ljava/lang/Object;)Z", pub, func(c *Call) (host.Value, error) {
			other := c.Env.Instance(c.Args[0].Object())
			if other == nil || other.class != cls {
				return host.Bool(false), nil
			}
			return host.Bool(other.Get("value").Bits() == value(c).Bits()), nil
		})
	}
}

func listOf(c *Call) *[]*Instance {
	inst := c.Env.Instance(c.This)
	c.Env.vm.mu.Lock()
	defer c.Env.vm.mu.Unlock()

	if inst.native == nil {
		inst.native = &[]*Instance{}
	}
	return inst.native.(*[]*Instance)
}

func listIndex(n int, i int32) error {
	if i < 0 || int(i) >= n {
		return Throwf("java/lang/IndexOutOfBoundsException", "Index %d out of bounds for length %d", i, n)
	}
	return nil
}

func (vm *VM) defineCollections() {
	vm.DefineInterface("java/lang/Iterable")
	collection := vm.DefineInterface("java/util/Collection", "java/lang/Iterable")
	list := vm.DefineInterface("java/util/List", "java/util/Collection")

	abstract := pub | host.AccAbstract
	collection.AddMethod("size", "()I", abstract, nil)
	collection.AddMethod("isEmpty", "()Z", abstract, nil)
	collection.AddMethod("add", "(Ljava/lang/Object;)Z", abstract, nil)
	collection.AddMethod("clear", "()V", abstract, nil)
	list.AddMethod("get", "(I)Ljava/lang/Object;", abstract, nil)
	list.AddMethod("set", "(ILjava/lang/Object;)Ljava/lang/Object;", abstract, nil)

	arrayList := vm.DefineClass("java/util/ArrayList", "java/lang/Object", "java/util/List")

	arrayList.AddMethod("<init>", "()V", pub, func(c *Call) (host.Value, error) {
		listOf(c)
		return host.Void(), nil
	})
	arrayList.AddMethod("<init>", "(I)V", pub, func(c *Call) (host.Value, error) {
		if c.Args[0].Int() < 0 {
			return host.Value{}, Throwf("java/lang/IllegalArgumentException", "Illegal Capacity: %d", c.Args[0].Int())
		}
		elems := listOf(c)
		*elems = make([]*Instance, 0, c.Args[0].Int())
		return host.Void(), nil
	})
	arrayList.AddMethod("size", "()I", pub, func(c *Call) (host.Value, error) {
		return host.Int(int32(len(*listOf(c)))), nil
	})
	arrayList.AddMethod("isEmpty", "()Z", pub, func(c *Call) (host.Value, error) {
		return host.Bool(len(*listOf(c)) == 0), nil
	})
	arrayList.AddMethod("add", "(Ljava/lang/Object;)Z", pub, func(c *Call) (host.Value, error) {
		elems := listOf(c)
		*elems = append(*elems, c.Env.Instance(c.Args[0].Object()))
		return host.Bool(true), nil
	})
	arrayList.AddMethod("get", "(I)Ljava/lang/Object;", pub, func(c *Call) (host.Value, error) {
		elems := *listOf(c)
		i := c.Args[0].Int()
		if err := listIndex(len(elems), i); err != nil {
			return host.Value{}, err
		}
		return host.Ref(c.Env.NewLocal(elems[i])), nil
	})
	arrayList.AddMethod("set", "(ILjava/lang/Object;)Ljava/lang/Object;", pub, func(c *Call) (host.Value, error) {
		elems := *listOf(c)
		i := c.Args[0].Int()
		if err := listIndex(len(elems), i); err != nil {
			return host.Value{}, err
		}
		prev := elems[i]
		elems[i] = c.Env.Instance(c.Args[1].Object())
		return host.Ref(c.Env.NewLocal(prev)), nil
	})
	arrayList.AddMethod("clear", "()V", pub, func(c *Call) (host.Value, error) {
		elems := listOf(c)
		*elems = (*elems)[:0]
		return host.Void(), nil
	})
}

func (vm *VM) defineSystem() {
	system := vm.DefineClass("java/lang/System", "java/lang/Object")
	system.AddField("out", "Ljava/io/PrintStream;", pubStatic|host.AccFinal)

	system.AddMethod("currentTimeMillis", "()J", pubStatic|host.AccNative, func(*Call) (host.Value, error) {
		return host.Long(time.Now().UnixMilli()), nil
	})
	system.AddMethod("nanoTime", "()J", pubStatic|host.AccNative, func(*Call) (host.Value, error) {
		return host.Long(int64(time.Since(started))), nil
	})
	system.AddMethod("getProperty", "(Ljava/lang/String;)Ljava/lang/String;", pubStatic, func(c *Call) (host.Value, error) {
		key, err := stringArg(c, 0)
		if err != nil {
			return host.Value{}, err
		}
		c.Env.vm.mu.Lock()
		v, ok := c.Env.vm.props[key]
		c.Env.vm.mu.Unlock()
		if !ok {
			return host.Ref(0), nil
		}
		return host.Ref(c.Env.NewString(v)), nil
	})
	system.AddMethod("identityHashCode", "(Ljava/lang/Object;)I", pubStatic|host.AccNative, func(c *Call) (host.Value, error) {
		inst := c.Env.Instance(c.Args[0].Object())
		if inst == nil {
			return host.Int(0), nil
		}
		return host.Int(c.Env.vm.identityHash(inst)), nil
	})
}
