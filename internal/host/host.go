// Package host describes the invocation and introspection boundary of a
// running JVM: the subset of JNI and JVMTI the interop layer calls through.
// Implementations live in subpackages (memvm, jni).
package host

import (
	"errors"
	"fmt"

	"github.com/mabhi256/jinterop/internal/descriptor"
)

// Object is an opaque runtime handle (jobject, jclass, jstring, jarray...).
// The zero value is the null reference.
type Object uintptr

// MethodID and FieldID identify resolved members; 0 means not found.
type MethodID uintptr
type FieldID uintptr

var (
	ErrDetached    = errors.New("thread is not attached to the VM")
	ErrVersion     = errors.New("interface version not supported")
	ErrUnsupported = errors.New("operation not supported by this host")
)

type RefType int

const (
	RefInvalid RefType = iota
	RefLocal
	RefGlobal
	RefWeakGlobal
)

func (r RefType) String() string {
	switch r {
	case RefInvalid:
		return "invalid"
	case RefLocal:
		return "local"
	case RefGlobal:
		return "global"
	case RefWeakGlobal:
		return "weak-global"
	default:
		return fmt.Sprintf("RefType(%d)", int(r))
	}
}

// Phase mirrors jvmtiPhase.
type Phase int

const (
	PhaseOnLoad     Phase = 1
	PhasePrimordial Phase = 2
	PhaseStart      Phase = 6
	PhaseLive       Phase = 4
	PhaseDead       Phase = 8
)

func (p Phase) String() string {
	switch p {
	case PhaseOnLoad:
		return "onload"
	case PhasePrimordial:
		return "primordial"
	case PhaseStart:
		return "start"
	case PhaseLive:
		return "live"
	case PhaseDead:
		return "dead"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ClassStatus mirrors the JVMTI_CLASS_STATUS_* bit set.
type ClassStatus int32

const (
	ClassVerified    ClassStatus = 1
	ClassPrepared    ClassStatus = 2
	ClassInitialized ClassStatus = 4
	ClassError       ClassStatus = 8
	ClassArray       ClassStatus = 16
	ClassPrimitive   ClassStatus = 32
)

func (s ClassStatus) Has(bit ClassStatus) bool {
	return s&bit != 0
}

func (s ClassStatus) String() string {
	switch {
	case s.Has(ClassError):
		return "error"
	case s.Has(ClassArray):
		return "array"
	case s.Has(ClassPrimitive):
		return "primitive"
	case s.Has(ClassInitialized):
		return "initialized"
	case s.Has(ClassPrepared):
		return "prepared"
	case s.Has(ClassVerified):
		return "verified"
	default:
		return "loaded"
	}
}

// Access flags as reported by GetMethodModifiers / GetFieldModifiers.
const (
	AccPublic    int32 = 0x0001
	AccPrivate   int32 = 0x0002
	AccProtected int32 = 0x0004
	AccStatic    int32 = 0x0008
	AccFinal     int32 = 0x0010
	AccNative    int32 = 0x0100
	AccAbstract  int32 = 0x0400
)

// ThreadInfo is the part of jvmtiThreadInfo the session uses.
type ThreadInfo struct {
	Name               string
	Priority           int32
	Daemon             bool
	ContextClassLoader Object
}

// VM is one JavaVM instance.
type VM interface {
	// GetEnv returns the calling OS thread's Env, or ErrDetached.
	GetEnv() (Env, error)
	AttachCurrentThread(daemon bool) (Env, error)
	DetachCurrentThread() error
	// Tooling returns the introspection interface, or ErrVersion.
	Tooling() (Tooling, error)
}

// Locator finds VMs already created in (or started by) this process.
type Locator interface {
	CreatedVMs() ([]VM, error)
}

// Env is a per-thread JNIEnv. Methods follow JNI semantics: failures leave a
// pending exception which callers observe through ExceptionCheck.
type Env interface {
	NewLocalRef(obj Object) Object
	DeleteLocalRef(obj Object)
	NewGlobalRef(obj Object) Object
	DeleteGlobalRef(obj Object)
	GetObjectRefType(obj Object) RefType
	IsSameObject(a, b Object) bool
	IsInstanceOf(obj, cls Object) bool

	FindClass(name string) Object
	GetObjectClass(obj Object) Object
	GetSuperclass(cls Object) Object

	GetMethodID(cls Object, name, sig string) MethodID
	GetStaticMethodID(cls Object, name, sig string) MethodID
	GetFieldID(cls Object, name, sig string) FieldID
	GetStaticFieldID(cls Object, name, sig string) FieldID

	CallMethod(obj Object, m MethodID, ret descriptor.Kind, args []Value) Value
	CallStaticMethod(cls Object, m MethodID, ret descriptor.Kind, args []Value) Value
	NewObject(cls Object, ctor MethodID, args []Value) Object

	GetField(obj Object, f FieldID, kind descriptor.Kind) Value
	SetField(obj Object, f FieldID, v Value)
	GetStaticField(cls Object, f FieldID, kind descriptor.Kind) Value
	SetStaticField(cls Object, f FieldID, v Value)

	NewString(s string) Object
	GetString(str Object) string
	GetStringLength(str Object) int
	GetStringUTFLength(str Object) int

	GetArrayLength(arr Object) int
	NewArray(elem descriptor.Kind, length int, elemClass Object) Object
	GetArrayElement(arr Object, elem descriptor.Kind, index int) Value
	SetArrayElement(arr Object, elem descriptor.Kind, index int, v Value)

	PushLocalFrame(capacity int) error
	PopLocalFrame(result Object) Object

	ExceptionCheck() bool
	// ExceptionOccurred returns a local reference to the pending throwable.
	ExceptionOccurred() Object
	ExceptionDescribe()
	ExceptionClear()
}

// Tooling is the JVMTI subset used for reflection sweeps. Objects it returns
// are local references owned by the calling thread.
type Tooling interface {
	GetPhase() (Phase, error)
	GetAllThreads() ([]Object, error)
	GetThreadInfo(thread Object) (ThreadInfo, error)
	GetLoadedClasses() ([]Object, error)
	GetClassSignature(cls Object) (string, error)
	GetClassStatus(cls Object) (ClassStatus, error)
	GetClassMethods(cls Object) ([]MethodID, error)
	GetClassFields(cls Object) ([]FieldID, error)

	GetMethodDeclaringClass(m MethodID) (Object, error)
	GetMethodName(m MethodID) (name, sig string, err error)
	GetMethodModifiers(m MethodID) (int32, error)

	GetFieldDeclaringClass(cls Object, f FieldID) (Object, error)
	GetFieldName(cls Object, f FieldID) (name, sig string, err error)
	GetFieldModifiers(cls Object, f FieldID) (int32, error)

	Dispose() error
}
