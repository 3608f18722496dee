package memvm

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/osthread"
)

// Throw is an error a Native returns to raise a specific Java exception.
type Throw struct {
	Class   string
	Message string
}

func (t *Throw) Error() string {
	return fmt.Sprintf("%s: %s", strings.ReplaceAll(t.Class, "/", "."), t.Message)
}

// Throwf builds a Throw.
func Throwf(class, format string, args ...any) *Throw {
	return &Throw{Class: class, Message: fmt.Sprintf(format, args...)}
}

// Env is the per-thread environment of a memvm VM.
type Env struct {
	vm      *VM
	tid     osthread.ID
	frames  [][]host.Object
	thread  *Instance
	pending *Instance
}

var _ host.Env = (*Env)(nil)

// VM returns the owning VM.
func (e *Env) VM() *VM {
	return e.vm
}

// Instance resolves a handle for Native bodies.
func (e *Env) Instance(obj host.Object) *Instance {
	return e.vm.Resolve(obj)
}

// NewLocal hands an instance to Java code as a local reference.
func (e *Env) NewLocal(inst *Instance) host.Object {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	return e.localLocked(inst)
}

// Throw raises an exception on this thread.
func (e *Env) Throw(class, message string) {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	e.throwLocked(class, message)
}

func (e *Env) localLocked(inst *Instance) host.Object {
	h := e.vm.newHandleLocked(inst, host.RefLocal, e.tid)
	if h != 0 {
		top := len(e.frames) - 1
		e.frames[top] = append(e.frames[top], h)
	}
	return h
}

func (e *Env) dropLocalLocked(obj host.Object) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		frame := e.frames[i]
		for j, h := range frame {
			if h == obj {
				e.frames[i] = append(frame[:j], frame[j+1:]...)
				return
			}
		}
	}
}

func (e *Env) throwLocked(class, message string) {
	cls, ok := e.vm.classes[class]
	if !ok {
		cls = e.vm.classes["java/lang/RuntimeException"]
		message = strings.ReplaceAll(class, "/", ".") + ": " + message
	}
	exc := &Instance{class: cls, fields: make(map[*Field]cell)}
	if f := cls.Field("detailMessage"); f != nil {
		exc.fields[f] = refCell(e.vm.newStringLocked(message))
	}
	e.pending = exc
}

func (e *Env) classOfLocked(cls host.Object) *Class {
	inst := e.vm.derefLocked(cls)
	if inst == nil {
		return nil
	}
	return inst.mirror
}

func (e *Env) loadLocked(c cell, kind descriptor.Kind) host.Value {
	switch {
	case kind == descriptor.KindArray:
		return host.Array(e.localLocked(c.ref))
	case kind == descriptor.KindObject:
		return host.Ref(e.localLocked(c.ref))
	default:
		return host.FromBits(kind, c.prim.Bits())
	}
}

func (e *Env) cellLocked(v host.Value) cell {
	if v.Kind().IsReference() {
		return refCell(e.vm.derefLocked(v.Object()))
	}
	return primCell(v)
}

func (e *Env) NewLocalRef(obj host.Object) host.Object {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	e.vm.stats.NewLocal++
	return e.localLocked(e.vm.derefLocked(obj))
}

func (e *Env) DeleteLocalRef(obj host.Object) {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	e.vm.stats.DeleteLocal++
	h, ok := e.vm.handles[obj]
	if !ok || h.kind != host.RefLocal {
		e.vm.stats.InvalidDeletes++
		return
	}
	delete(e.vm.handles, obj)
	e.dropLocalLocked(obj)
}

func (e *Env) NewGlobalRef(obj host.Object) host.Object {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	e.vm.stats.NewGlobal++
	return e.vm.newHandleLocked(e.vm.derefLocked(obj), host.RefGlobal, 0)
}

func (e *Env) DeleteGlobalRef(obj host.Object) {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	e.vm.stats.DeleteGlobal++
	h, ok := e.vm.handles[obj]
	if !ok || h.kind != host.RefGlobal {
		e.vm.stats.InvalidDeletes++
		return
	}
	delete(e.vm.handles, obj)
}

func (e *Env) GetObjectRefType(obj host.Object) host.RefType {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	h, ok := e.vm.handles[obj]
	if !ok {
		return host.RefInvalid
	}
	return h.kind
}

func (e *Env) IsSameObject(a, b host.Object) bool {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	return e.vm.derefLocked(a) == e.vm.derefLocked(b)
}

func (e *Env) IsInstanceOf(obj, cls host.Object) bool {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	inst := e.vm.derefLocked(obj)
	if inst == nil {
		return true
	}
	target := e.classOfLocked(cls)
	if target == nil {
		return false
	}
	return inst.class.IsSubclassOf(target)
}

func (e *Env) FindClass(name string) host.Object {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	cls, ok := e.vm.classes[name]
	if !ok {
		e.throwLocked("java/lang/NoClassDefFoundError", name)
		return 0
	}
	return e.localLocked(cls.mirror)
}

func (e *Env) GetObjectClass(obj host.Object) host.Object {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	inst := e.vm.derefLocked(obj)
	if inst == nil {
		e.throwLocked("java/lang/NullPointerException", "GetObjectClass on null")
		return 0
	}
	return e.localLocked(inst.class.mirror)
}

func (e *Env) GetSuperclass(cls host.Object) host.Object {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	c := e.classOfLocked(cls)
	if c == nil || c.Super == nil || c.Interface {
		return 0
	}
	return e.localLocked(c.Super.mirror)
}

func (e *Env) lookupMethod(cls host.Object, name, sig string, static bool) host.MethodID {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	c := e.classOfLocked(cls)
	if c == nil {
		e.throwLocked("java/lang/NullPointerException", "method lookup on null class")
		return 0
	}
	m := c.Method(name, sig)
	if m == nil || m.IsStatic() != static {
		e.throwLocked("java/lang/NoSuchMethodError", name)
		return 0
	}
	return m.ID
}

func (e *Env) GetMethodID(cls host.Object, name, sig string) host.MethodID {
	return e.lookupMethod(cls, name, sig, false)
}

func (e *Env) GetStaticMethodID(cls host.Object, name, sig string) host.MethodID {
	return e.lookupMethod(cls, name, sig, true)
}

func (e *Env) lookupField(cls host.Object, name, sig string, static bool) host.FieldID {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	c := e.classOfLocked(cls)
	if c == nil {
		e.throwLocked("java/lang/NullPointerException", "field lookup on null class")
		return 0
	}
	f := c.Field(name)
	if f == nil || f.Sig != sig || f.IsStatic() != static {
		e.throwLocked("java/lang/NoSuchFieldError", name)
		return 0
	}
	return f.ID
}

func (e *Env) GetFieldID(cls host.Object, name, sig string) host.FieldID {
	return e.lookupField(cls, name, sig, false)
}

func (e *Env) GetStaticFieldID(cls host.Object, name, sig string) host.FieldID {
	return e.lookupField(cls, name, sig, true)
}

// dispatchLocked picks the most derived implementation of m for cls.
func dispatchLocked(cls *Class, m *Method) *Method {
	if m.Name == "<init>" || m.Modifiers&host.AccPrivate != 0 {
		return m
	}
	for cur := cls; cur != nil; cur = cur.Super {
		for _, cand := range cur.Methods {
			if cand.Name == m.Name && cand.Sig == m.Sig && cand.Native != nil {
				return cand
			}
		}
	}
	return m
}

func (e *Env) CallMethod(obj host.Object, mid host.MethodID, ret descriptor.Kind, args []host.Value) host.Value {
	e.vm.mu.Lock()
	inst := e.vm.derefLocked(obj)
	m := e.vm.methods[mid]
	switch {
	case inst == nil:
		e.throwLocked("java/lang/NullPointerException", "method call on null")
		e.vm.mu.Unlock()
		return host.Zero(ret)
	case m == nil:
		e.throwLocked("java/lang/NoSuchMethodError", fmt.Sprintf("method id 0x%x", uintptr(mid)))
		e.vm.mu.Unlock()
		return host.Zero(ret)
	}
	target := dispatchLocked(inst.class, m)
	e.vm.mu.Unlock()

	return e.invoke(target, obj, args, ret)
}

func (e *Env) CallStaticMethod(cls host.Object, mid host.MethodID, ret descriptor.Kind, args []host.Value) host.Value {
	e.vm.mu.Lock()
	m := e.vm.methods[mid]
	if m == nil {
		e.throwLocked("java/lang/NoSuchMethodError", fmt.Sprintf("method id 0x%x", uintptr(mid)))
		e.vm.mu.Unlock()
		return host.Zero(ret)
	}
	e.vm.mu.Unlock()

	return e.invoke(m, 0, args, ret)
}

func (e *Env) invoke(m *Method, this host.Object, args []host.Value, ret descriptor.Kind) host.Value {
	if m.Native == nil {
		e.Throw("java/lang/UnsupportedOperationException", m.String()+" has no body in this VM")
		return host.Zero(ret)
	}

	v, err := m.Native(&Call{Env: e, Method: m, This: this, Args: args})
	if err != nil {
		var t *Throw
		if errors.As(err, &t) {
			e.Throw(t.Class, t.Message)
		} else {
			e.Throw("java/lang/RuntimeException", err.Error())
		}
		return host.Zero(ret)
	}
	if e.ExceptionCheck() {
		return host.Zero(ret)
	}

	switch ret {
	case descriptor.KindVoid:
		return host.Void()
	case descriptor.KindUnknown:
		return v
	default:
		return host.FromBits(ret, v.Bits())
	}
}

func (e *Env) NewObject(cls host.Object, ctor host.MethodID, args []host.Value) host.Object {
	e.vm.mu.Lock()
	c := e.classOfLocked(cls)
	if c == nil {
		e.throwLocked("java/lang/NullPointerException", "NewObject on null class")
		e.vm.mu.Unlock()
		return 0
	}
	if c.Interface {
		e.throwLocked("java/lang/InstantiationException", c.Name)
		e.vm.mu.Unlock()
		return 0
	}
	obj := e.localLocked(&Instance{class: c, fields: make(map[*Field]cell)})
	m := e.vm.methods[ctor]
	e.vm.mu.Unlock()

	if m != nil && m.Native != nil {
		e.invoke(m, obj, args, descriptor.KindVoid)
		if e.ExceptionCheck() {
			return 0
		}
	}
	return obj
}

func (e *Env) GetField(obj host.Object, fid host.FieldID, kind descriptor.Kind) host.Value {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	inst := e.vm.derefLocked(obj)
	f := e.vm.fields[fid]
	if inst == nil || f == nil {
		e.throwLocked("java/lang/NullPointerException", "field read on null")
		return host.Zero(kind)
	}
	return e.loadLocked(inst.fields[f], kind)
}

func (e *Env) SetField(obj host.Object, fid host.FieldID, v host.Value) {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	inst := e.vm.derefLocked(obj)
	f := e.vm.fields[fid]
	switch {
	case inst == nil || f == nil:
		e.throwLocked("java/lang/NullPointerException", "field write on null")
	case e.vm.readOnly:
		e.throwLocked("java/lang/IllegalAccessError", "snapshot is read-only")
	default:
		inst.store(f, e.cellLocked(v))
	}
}

func (e *Env) GetStaticField(cls host.Object, fid host.FieldID, kind descriptor.Kind) host.Value {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	f := e.vm.fields[fid]
	if f == nil {
		e.throwLocked("java/lang/NoSuchFieldError", fmt.Sprintf("field id 0x%x", uintptr(fid)))
		return host.Zero(kind)
	}
	return e.loadLocked(f.Class.statics[f], kind)
}

func (e *Env) SetStaticField(cls host.Object, fid host.FieldID, v host.Value) {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	f := e.vm.fields[fid]
	switch {
	case f == nil:
		e.throwLocked("java/lang/NoSuchFieldError", fmt.Sprintf("field id 0x%x", uintptr(fid)))
	case e.vm.readOnly:
		e.throwLocked("java/lang/IllegalAccessError", "snapshot is read-only")
	default:
		f.Class.statics[f] = e.cellLocked(v)
	}
}

func (e *Env) NewString(s string) host.Object {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	return e.localLocked(e.vm.newStringLocked(s))
}

func (e *Env) stringLocked(str host.Object) (string, bool) {
	inst := e.vm.derefLocked(str)
	if inst == nil || !inst.isStr {
		e.throwLocked("java/lang/NullPointerException", "not a string")
		return "", false
	}
	return inst.str, true
}

func (e *Env) GetString(str host.Object) string {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	s, _ := e.stringLocked(str)
	return s
}

func (e *Env) GetStringLength(str host.Object) int {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	s, _ := e.stringLocked(str)
	return len(utf16.Encode([]rune(s)))
}

func (e *Env) GetStringUTFLength(str host.Object) int {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	s, _ := e.stringLocked(str)
	return modifiedUTF8Len(s)
}

// modifiedUTF8Len counts bytes in the JVM's modified UTF-8: NUL takes two
// bytes and supplementary characters are encoded as surrogate pairs.
func modifiedUTF8Len(s string) int {
	n := 0
	for _, r := range s {
		switch {
		case r == 0:
			n += 2
		case r < 0x80:
			n++
		case r < 0x800:
			n += 2
		case r < 0x10000:
			n += 3
		default:
			n += 6
		}
	}
	return n
}

func (e *Env) arrayLocked(arr host.Object) *Instance {
	inst := e.vm.derefLocked(arr)
	if inst == nil || !strings.HasPrefix(inst.class.Name, "[") {
		e.throwLocked("java/lang/NullPointerException", "not an array")
		return nil
	}
	return inst
}

func (e *Env) GetArrayLength(arr host.Object) int {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	inst := e.arrayLocked(arr)
	if inst == nil {
		return 0
	}
	return len(inst.elems)
}

func (e *Env) NewArray(elem descriptor.Kind, length int, elemClass host.Object) host.Object {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	if length < 0 {
		e.throwLocked("java/lang/NegativeArraySizeException", fmt.Sprint(length))
		return 0
	}
	return e.localLocked(e.vm.newArrayLocked(elem, length, e.classOfLocked(elemClass)))
}

func (e *Env) GetArrayElement(arr host.Object, elem descriptor.Kind, index int) host.Value {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	inst := e.arrayLocked(arr)
	if inst == nil {
		return host.Zero(elem)
	}
	if index < 0 || index >= len(inst.elems) {
		e.throwLocked("java/lang/ArrayIndexOutOfBoundsException",
			fmt.Sprintf("Index %d out of bounds for length %d", index, len(inst.elems)))
		return host.Zero(elem)
	}
	return e.loadLocked(inst.elems[index], elem)
}

func (e *Env) SetArrayElement(arr host.Object, elem descriptor.Kind, index int, v host.Value) {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	inst := e.arrayLocked(arr)
	switch {
	case inst == nil:
	case index < 0 || index >= len(inst.elems):
		e.throwLocked("java/lang/ArrayIndexOutOfBoundsException",
			fmt.Sprintf("Index %d out of bounds for length %d", index, len(inst.elems)))
	case e.vm.readOnly:
		e.throwLocked("java/lang/IllegalAccessError", "snapshot is read-only")
	default:
		inst.elems[index] = e.cellLocked(v)
	}
}

func (e *Env) PushLocalFrame(capacity int) error {
	if capacity < 0 {
		return fmt.Errorf("negative local frame capacity %d", capacity)
	}

	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	e.frames = append(e.frames, make([]host.Object, 0, capacity))
	return nil
}

func (e *Env) PopLocalFrame(result host.Object) host.Object {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	target := e.vm.derefLocked(result)
	if len(e.frames) > 1 {
		top := e.frames[len(e.frames)-1]
		for _, h := range top {
			delete(e.vm.handles, h)
		}
		e.frames = e.frames[:len(e.frames)-1]
	}
	return e.localLocked(target)
}

// LocalCount is the number of live local references on this thread.
func (e *Env) LocalCount() int {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	n := 0
	for _, f := range e.frames {
		n += len(f)
	}
	return n
}

func (e *Env) ExceptionCheck() bool {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	return e.pending != nil
}

func (e *Env) ExceptionOccurred() host.Object {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	return e.localLocked(e.pending)
}

func (e *Env) ExceptionDescribe() {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()

	if e.pending == nil {
		return
	}
	fmt.Fprintf(e.vm.stderr, "Exception in thread %q %s\n", e.thread.thread.name, describeLocked(e.pending))
	e.pending = nil
}

func (e *Env) ExceptionClear() {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	e.pending = nil
}

// describeLocked renders Throwable.toString for an exception instance.
func describeLocked(exc *Instance) string {
	name := strings.ReplaceAll(exc.class.Name, "/", ".")
	f := exc.class.Field("detailMessage")
	if f == nil {
		return name
	}
	msg := exc.fields[f].ref
	if msg == nil {
		return name
	}
	return name + ": " + msg.str
}
