//go:build jni && cgo

package jni

/*
#cgo LDFLAGS: -ljvm
#include <jni.h>
#include <jvmti.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

#define VM(x)  ((JavaVM*)(x))
#define ENV(x) ((JNIEnv*)(x))
#define TI(x)  ((jvmtiEnv*)(x))
#define OBJ(x) ((jobject)(uintptr_t)(x))

static jvalue jh_value(char kind, uint64_t bits) {
	jvalue v;
	memset(&v, 0, sizeof v);
	switch (kind) {
	case 'Z': v.z = (jboolean)bits; break;
	case 'B': v.b = (jbyte)bits; break;
	case 'C': v.c = (jchar)bits; break;
	case 'S': v.s = (jshort)bits; break;
	case 'I': v.i = (jint)bits; break;
	case 'J': v.j = (jlong)bits; break;
	case 'F': { uint32_t u = (uint32_t)bits; memcpy(&v.f, &u, 4); break; }
	case 'D': memcpy(&v.d, &bits, 8); break;
	default:  v.l = OBJ(bits); break;
	}
	return v;
}

static uint64_t jh_bits(char kind, jvalue v) {
	switch (kind) {
	case 'Z': return v.z;
	case 'B': return (uint8_t)v.b;
	case 'C': return v.c;
	case 'S': return (uint16_t)v.s;
	case 'I': return (uint32_t)v.i;
	case 'J': return (uint64_t)v.j;
	case 'F': { uint32_t u; memcpy(&u, &v.f, 4); return u; }
	case 'D': { uint64_t u; memcpy(&u, &v.d, 8); return u; }
	case 'V': return 0;
	default:  return (uint64_t)(uintptr_t)v.l;
	}
}

static jint jh_created_vms(uintptr_t* out, jsize max, jsize* n) {
	JavaVM** vms = calloc(max > 0 ? max : 1, sizeof(JavaVM*));
	jint rc = JNI_GetCreatedJavaVMs(vms, max, n);
	for (jsize i = 0; rc == JNI_OK && i < *n && i < max; i++) out[i] = (uintptr_t)vms[i];
	free(vms);
	return rc;
}

static jint jh_create_vm(char** opts, int n, uintptr_t* vm) {
	JavaVMOption* o = calloc(n > 0 ? n : 1, sizeof(JavaVMOption));
	for (int i = 0; i < n; i++) o[i].optionString = opts[i];
	JavaVMInitArgs args;
	args.version = JNI_VERSION_1_8;
	args.nOptions = n;
	args.options = o;
	args.ignoreUnrecognized = JNI_FALSE;
	JavaVM* jvm = NULL;
	JNIEnv* env = NULL;
	jint rc = JNI_CreateJavaVM(&jvm, (void**)&env, &args);
	free(o);
	*vm = (uintptr_t)jvm;
	return rc;
}

static jint jh_get_env(uintptr_t vm, uintptr_t* env) {
	JNIEnv* e = NULL;
	jint rc = (*VM(vm))->GetEnv(VM(vm), (void**)&e, JNI_VERSION_1_8);
	*env = (uintptr_t)e;
	return rc;
}

static jint jh_attach(uintptr_t vm, int daemon, uintptr_t* env) {
	JNIEnv* e = NULL;
	jint rc = daemon
		? (*VM(vm))->AttachCurrentThreadAsDaemon(VM(vm), (void**)&e, NULL)
		: (*VM(vm))->AttachCurrentThread(VM(vm), (void**)&e, NULL);
	*env = (uintptr_t)e;
	return rc;
}

static jint jh_detach(uintptr_t vm) {
	return (*VM(vm))->DetachCurrentThread(VM(vm));
}

static jint jh_tooling(uintptr_t vm, uintptr_t* ti) {
	jvmtiEnv* t = NULL;
	jint rc = (*VM(vm))->GetEnv(VM(vm), (void**)&t, JVMTI_VERSION_1_2);
	*ti = (uintptr_t)t;
	return rc;
}

static uintptr_t jh_new_local(uintptr_t e, uintptr_t o) { return (uintptr_t)(*ENV(e))->NewLocalRef(ENV(e), OBJ(o)); }
static void jh_delete_local(uintptr_t e, uintptr_t o) { (*ENV(e))->DeleteLocalRef(ENV(e), OBJ(o)); }
static uintptr_t jh_new_global(uintptr_t e, uintptr_t o) { return (uintptr_t)(*ENV(e))->NewGlobalRef(ENV(e), OBJ(o)); }
static void jh_delete_global(uintptr_t e, uintptr_t o) { (*ENV(e))->DeleteGlobalRef(ENV(e), OBJ(o)); }
static int jh_ref_type(uintptr_t e, uintptr_t o) { return (int)(*ENV(e))->GetObjectRefType(ENV(e), OBJ(o)); }
static int jh_same(uintptr_t e, uintptr_t a, uintptr_t b) { return (*ENV(e))->IsSameObject(ENV(e), OBJ(a), OBJ(b)); }
static int jh_instance_of(uintptr_t e, uintptr_t o, uintptr_t c) { return (*ENV(e))->IsInstanceOf(ENV(e), OBJ(o), (jclass)OBJ(c)); }

static uintptr_t jh_find_class(uintptr_t e, const char* name) { return (uintptr_t)(*ENV(e))->FindClass(ENV(e), name); }
static uintptr_t jh_object_class(uintptr_t e, uintptr_t o) { return (uintptr_t)(*ENV(e))->GetObjectClass(ENV(e), OBJ(o)); }
static uintptr_t jh_superclass(uintptr_t e, uintptr_t c) { return (uintptr_t)(*ENV(e))->GetSuperclass(ENV(e), (jclass)OBJ(c)); }

static uintptr_t jh_method_id(uintptr_t e, uintptr_t c, const char* name, const char* sig, int isStatic) {
	JNIEnv* env = ENV(e);
	return isStatic
		? (uintptr_t)(*env)->GetStaticMethodID(env, (jclass)OBJ(c), name, sig)
		: (uintptr_t)(*env)->GetMethodID(env, (jclass)OBJ(c), name, sig);
}

static uintptr_t jh_field_id(uintptr_t e, uintptr_t c, const char* name, const char* sig, int isStatic) {
	JNIEnv* env = ENV(e);
	return isStatic
		? (uintptr_t)(*env)->GetStaticFieldID(env, (jclass)OBJ(c), name, sig)
		: (uintptr_t)(*env)->GetFieldID(env, (jclass)OBJ(c), name, sig);
}

#define CALL_CASES(prefix, recv) \
	case 'V': (*env)->prefix##VoidMethodA(env, recv, m, args); break; \
	case 'Z': r.z = (*env)->prefix##BooleanMethodA(env, recv, m, args); break; \
	case 'B': r.b = (*env)->prefix##ByteMethodA(env, recv, m, args); break; \
	case 'C': r.c = (*env)->prefix##CharMethodA(env, recv, m, args); break; \
	case 'S': r.s = (*env)->prefix##ShortMethodA(env, recv, m, args); break; \
	case 'I': r.i = (*env)->prefix##IntMethodA(env, recv, m, args); break; \
	case 'J': r.j = (*env)->prefix##LongMethodA(env, recv, m, args); break; \
	case 'F': r.f = (*env)->prefix##FloatMethodA(env, recv, m, args); break; \
	case 'D': r.d = (*env)->prefix##DoubleMethodA(env, recv, m, args); break; \
	default:  r.l = (*env)->prefix##ObjectMethodA(env, recv, m, args); break;

static uint64_t jh_call(uintptr_t e, uintptr_t target, uintptr_t mid, int isStatic, char ret,
                        const char* kinds, const uint64_t* bits, int n) {
	JNIEnv* env = ENV(e);
	jmethodID m = (jmethodID)mid;
	jvalue args[n > 0 ? n : 1];
	for (int i = 0; i < n; i++) args[i] = jh_value(kinds[i], bits[i]);
	jvalue r;
	memset(&r, 0, sizeof r);
	if (isStatic) {
		jclass c = (jclass)OBJ(target);
		switch (ret) { CALL_CASES(CallStatic, c) }
	} else {
		jobject o = OBJ(target);
		switch (ret) { CALL_CASES(Call, o) }
	}
	return jh_bits(ret, r);
}

static uintptr_t jh_new_object(uintptr_t e, uintptr_t c, uintptr_t ctor,
                               const char* kinds, const uint64_t* bits, int n) {
	JNIEnv* env = ENV(e);
	jvalue args[n > 0 ? n : 1];
	for (int i = 0; i < n; i++) args[i] = jh_value(kinds[i], bits[i]);
	return (uintptr_t)(*env)->NewObjectA(env, (jclass)OBJ(c), (jmethodID)ctor, args);
}

#define GET_CASES(prefix, recv) \
	case 'Z': r.z = (*env)->prefix##BooleanField(env, recv, f); break; \
	case 'B': r.b = (*env)->prefix##ByteField(env, recv, f); break; \
	case 'C': r.c = (*env)->prefix##CharField(env, recv, f); break; \
	case 'S': r.s = (*env)->prefix##ShortField(env, recv, f); break; \
	case 'I': r.i = (*env)->prefix##IntField(env, recv, f); break; \
	case 'J': r.j = (*env)->prefix##LongField(env, recv, f); break; \
	case 'F': r.f = (*env)->prefix##FloatField(env, recv, f); break; \
	case 'D': r.d = (*env)->prefix##DoubleField(env, recv, f); break; \
	default:  r.l = (*env)->prefix##ObjectField(env, recv, f); break;

static uint64_t jh_get_field(uintptr_t e, uintptr_t target, uintptr_t fid, int isStatic, char kind) {
	JNIEnv* env = ENV(e);
	jfieldID f = (jfieldID)fid;
	jvalue r;
	memset(&r, 0, sizeof r);
	if (isStatic) {
		jclass c = (jclass)OBJ(target);
		switch (kind) { GET_CASES(GetStatic, c) }
	} else {
		jobject o = OBJ(target);
		switch (kind) { GET_CASES(Get, o) }
	}
	return jh_bits(kind, r);
}

#define SET_CASES(prefix, recv) \
	case 'Z': (*env)->prefix##BooleanField(env, recv, f, v.z); break; \
	case 'B': (*env)->prefix##ByteField(env, recv, f, v.b); break; \
	case 'C': (*env)->prefix##CharField(env, recv, f, v.c); break; \
	case 'S': (*env)->prefix##ShortField(env, recv, f, v.s); break; \
	case 'I': (*env)->prefix##IntField(env, recv, f, v.i); break; \
	case 'J': (*env)->prefix##LongField(env, recv, f, v.j); break; \
	case 'F': (*env)->prefix##FloatField(env, recv, f, v.f); break; \
	case 'D': (*env)->prefix##DoubleField(env, recv, f, v.d); break; \
	default:  (*env)->prefix##ObjectField(env, recv, f, v.l); break;

static void jh_set_field(uintptr_t e, uintptr_t target, uintptr_t fid, int isStatic, char kind, uint64_t bits) {
	JNIEnv* env = ENV(e);
	jfieldID f = (jfieldID)fid;
	jvalue v = jh_value(kind, bits);
	if (isStatic) {
		jclass c = (jclass)OBJ(target);
		switch (kind) { SET_CASES(SetStatic, c) }
	} else {
		jobject o = OBJ(target);
		switch (kind) { SET_CASES(Set, o) }
	}
}

static uintptr_t jh_new_string(uintptr_t e, const jchar* chars, jsize n) {
	return (uintptr_t)(*ENV(e))->NewString(ENV(e), chars, n);
}
static jsize jh_string_length(uintptr_t e, uintptr_t s) { return (*ENV(e))->GetStringLength(ENV(e), (jstring)OBJ(s)); }
static jsize jh_string_utf_length(uintptr_t e, uintptr_t s) { return (*ENV(e))->GetStringUTFLength(ENV(e), (jstring)OBJ(s)); }
static void jh_string_region(uintptr_t e, uintptr_t s, jsize n, jchar* buf) {
	(*ENV(e))->GetStringRegion(ENV(e), (jstring)OBJ(s), 0, n, buf);
}

static jsize jh_array_length(uintptr_t e, uintptr_t a) { return (*ENV(e))->GetArrayLength(ENV(e), (jarray)OBJ(a)); }

static uintptr_t jh_new_array(uintptr_t e, char kind, jsize n, uintptr_t elemClass) {
	JNIEnv* env = ENV(e);
	switch (kind) {
	case 'Z': return (uintptr_t)(*env)->NewBooleanArray(env, n);
	case 'B': return (uintptr_t)(*env)->NewByteArray(env, n);
	case 'C': return (uintptr_t)(*env)->NewCharArray(env, n);
	case 'S': return (uintptr_t)(*env)->NewShortArray(env, n);
	case 'I': return (uintptr_t)(*env)->NewIntArray(env, n);
	case 'J': return (uintptr_t)(*env)->NewLongArray(env, n);
	case 'F': return (uintptr_t)(*env)->NewFloatArray(env, n);
	case 'D': return (uintptr_t)(*env)->NewDoubleArray(env, n);
	default:  return (uintptr_t)(*env)->NewObjectArray(env, n, (jclass)OBJ(elemClass), NULL);
	}
}

#define REGION_CASES(op) \
	case 'Z': (*env)->op##BooleanArrayRegion(env, (jbooleanArray)a, i, 1, &v.z); break; \
	case 'B': (*env)->op##ByteArrayRegion(env, (jbyteArray)a, i, 1, &v.b); break; \
	case 'C': (*env)->op##CharArrayRegion(env, (jcharArray)a, i, 1, &v.c); break; \
	case 'S': (*env)->op##ShortArrayRegion(env, (jshortArray)a, i, 1, &v.s); break; \
	case 'I': (*env)->op##IntArrayRegion(env, (jintArray)a, i, 1, &v.i); break; \
	case 'J': (*env)->op##LongArrayRegion(env, (jlongArray)a, i, 1, &v.j); break; \
	case 'F': (*env)->op##FloatArrayRegion(env, (jfloatArray)a, i, 1, &v.f); break; \
	case 'D': (*env)->op##DoubleArrayRegion(env, (jdoubleArray)a, i, 1, &v.d); break;

static uint64_t jh_get_element(uintptr_t e, uintptr_t arr, char kind, jsize i) {
	JNIEnv* env = ENV(e);
	jarray a = (jarray)OBJ(arr);
	jvalue v;
	memset(&v, 0, sizeof v);
	switch (kind) {
	REGION_CASES(Get)
	default: v.l = (*env)->GetObjectArrayElement(env, (jobjectArray)a, i); break;
	}
	return jh_bits(kind, v);
}

static void jh_set_element(uintptr_t e, uintptr_t arr, char kind, jsize i, uint64_t bits) {
	JNIEnv* env = ENV(e);
	jarray a = (jarray)OBJ(arr);
	jvalue v = jh_value(kind, bits);
	switch (kind) {
	REGION_CASES(Set)
	default: (*env)->SetObjectArrayElement(env, (jobjectArray)a, i, v.l); break;
	}
}

static jint jh_push_frame(uintptr_t e, jint capacity) { return (*ENV(e))->PushLocalFrame(ENV(e), capacity); }
static uintptr_t jh_pop_frame(uintptr_t e, uintptr_t result) { return (uintptr_t)(*ENV(e))->PopLocalFrame(ENV(e), OBJ(result)); }

static int jh_exception_check(uintptr_t e) { return (*ENV(e))->ExceptionCheck(ENV(e)); }
static uintptr_t jh_exception_occurred(uintptr_t e) { return (uintptr_t)(*ENV(e))->ExceptionOccurred(ENV(e)); }
static void jh_exception_describe(uintptr_t e) { (*ENV(e))->ExceptionDescribe(ENV(e)); }
static void jh_exception_clear(uintptr_t e) { (*ENV(e))->ExceptionClear(ENV(e)); }

static jint jh_phase(uintptr_t t, jint* phase) {
	jvmtiPhase p;
	jvmtiError err = (*TI(t))->GetPhase(TI(t), &p);
	*phase = (jint)p;
	return err;
}

static void jh_deallocate(uintptr_t t, void* p) {
	if (p != NULL) (*TI(t))->Deallocate(TI(t), (unsigned char*)p);
}

static jint jh_all_threads(uintptr_t t, jint* n, uintptr_t** out) {
	jthread* threads = NULL;
	jvmtiError err = (*TI(t))->GetAllThreads(TI(t), n, &threads);
	*out = (uintptr_t*)threads;
	return err;
}

static jint jh_thread_info(uintptr_t t, uintptr_t e, uintptr_t thread,
                           char** name, jint* priority, int* daemon, uintptr_t* loader) {
	jvmtiThreadInfo info;
	memset(&info, 0, sizeof info);
	jvmtiError err = (*TI(t))->GetThreadInfo(TI(t), (jthread)OBJ(thread), &info);
	if (err != JVMTI_ERROR_NONE) return err;
	*name = info.name;
	*priority = info.priority;
	*daemon = info.is_daemon;
	*loader = (uintptr_t)info.context_class_loader;
	if (info.thread_group != NULL) (*ENV(e))->DeleteLocalRef(ENV(e), info.thread_group);
	return err;
}

static jint jh_loaded_classes(uintptr_t t, jint* n, uintptr_t** out) {
	jclass* classes = NULL;
	jvmtiError err = (*TI(t))->GetLoadedClasses(TI(t), n, &classes);
	*out = (uintptr_t*)classes;
	return err;
}

static jint jh_class_signature(uintptr_t t, uintptr_t c, char** sig) {
	return (*TI(t))->GetClassSignature(TI(t), (jclass)OBJ(c), sig, NULL);
}

static jint jh_class_status(uintptr_t t, uintptr_t c, jint* status) {
	return (*TI(t))->GetClassStatus(TI(t), (jclass)OBJ(c), status);
}

static jint jh_class_methods(uintptr_t t, uintptr_t c, jint* n, uintptr_t** out) {
	jmethodID* methods = NULL;
	jvmtiError err = (*TI(t))->GetClassMethods(TI(t), (jclass)OBJ(c), n, &methods);
	*out = (uintptr_t*)methods;
	return err;
}

static jint jh_class_fields(uintptr_t t, uintptr_t c, jint* n, uintptr_t** out) {
	jfieldID* fields = NULL;
	jvmtiError err = (*TI(t))->GetClassFields(TI(t), (jclass)OBJ(c), n, &fields);
	*out = (uintptr_t*)fields;
	return err;
}

static jint jh_method_class(uintptr_t t, uintptr_t m, uintptr_t* c) {
	jclass decl = NULL;
	jvmtiError err = (*TI(t))->GetMethodDeclaringClass(TI(t), (jmethodID)m, &decl);
	*c = (uintptr_t)decl;
	return err;
}

static jint jh_method_name(uintptr_t t, uintptr_t m, char** name, char** sig) {
	return (*TI(t))->GetMethodName(TI(t), (jmethodID)m, name, sig, NULL);
}

static jint jh_method_modifiers(uintptr_t t, uintptr_t m, jint* mods) {
	return (*TI(t))->GetMethodModifiers(TI(t), (jmethodID)m, mods);
}

static jint jh_field_class(uintptr_t t, uintptr_t c, uintptr_t f, uintptr_t* decl) {
	jclass d = NULL;
	jvmtiError err = (*TI(t))->GetFieldDeclaringClass(TI(t), (jclass)OBJ(c), (jfieldID)f, &d);
	*decl = (uintptr_t)d;
	return err;
}

static jint jh_field_name(uintptr_t t, uintptr_t c, uintptr_t f, char** name, char** sig) {
	return (*TI(t))->GetFieldName(TI(t), (jclass)OBJ(c), (jfieldID)f, name, sig, NULL);
}

static jint jh_field_modifiers(uintptr_t t, uintptr_t c, uintptr_t f, jint* mods) {
	return (*TI(t))->GetFieldModifiers(TI(t), (jclass)OBJ(c), (jfieldID)f, mods);
}

static jint jh_dispose(uintptr_t t) {
	return (*TI(t))->DisposeEnvironment(TI(t));
}
*/
import "C"

import (
	"unicode/utf16"
	"unsafe"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
)

// Available reports whether the backend was compiled in.
func Available() bool {
	return true
}

type locator struct{}

// Locator finds the VMs of this process.
func Locator() host.Locator {
	return locator{}
}

func (locator) CreatedVMs() ([]host.VM, error) {
	const maxVMs = 4
	var (
		buf [maxVMs]C.uintptr_t
		n   C.jsize
	)
	if err := jniError("JNI_GetCreatedJavaVMs", int(C.jh_created_vms(&buf[0], maxVMs, &n))); err != nil {
		return nil, err
	}
	vms := make([]host.VM, 0, int(n))
	for i := 0; i < int(n) && i < maxVMs; i++ {
		vms = append(vms, &vm{ptr: buf[i]})
	}
	return vms, nil
}

// Start creates a VM in this process with the given options, such as
// -Djava.class.path=... The calling thread stays attached.
func Start(options []string) (host.Locator, error) {
	opts := make([]*C.char, len(options))
	for i, o := range options {
		opts[i] = C.CString(o)
	}
	defer func() {
		for _, o := range opts {
			C.free(unsafe.Pointer(o))
		}
	}()

	var argv **C.char
	if len(opts) > 0 {
		cargs := C.malloc(C.size_t(len(opts)) * C.size_t(unsafe.Sizeof(uintptr(0))))
		defer C.free(cargs)
		slots := unsafe.Slice((**C.char)(cargs), len(opts))
		copy(slots, opts)
		argv = (**C.char)(cargs)
	}

	var ptr C.uintptr_t
	if err := jniError("JNI_CreateJavaVM", int(C.jh_create_vm(argv, C.int(len(opts)), &ptr))); err != nil {
		return nil, err
	}
	return locator{}, nil
}

type vm struct {
	ptr C.uintptr_t
}

func (v *vm) GetEnv() (host.Env, error) {
	var e C.uintptr_t
	if err := jniError("GetEnv", int(C.jh_get_env(v.ptr, &e))); err != nil {
		return nil, err
	}
	return &env{ptr: e}, nil
}

func (v *vm) AttachCurrentThread(daemon bool) (host.Env, error) {
	var e C.uintptr_t
	if err := jniError("AttachCurrentThread", int(C.jh_attach(v.ptr, cbool(daemon), &e))); err != nil {
		return nil, err
	}
	return &env{ptr: e}, nil
}

func (v *vm) DetachCurrentThread() error {
	return jniError("DetachCurrentThread", int(C.jh_detach(v.ptr)))
}

func (v *vm) Tooling() (host.Tooling, error) {
	var t C.uintptr_t
	if err := jniError("GetEnv(JVMTI)", int(C.jh_tooling(v.ptr, &t))); err != nil {
		return nil, err
	}
	return &tooling{ptr: t, vm: v}, nil
}

func cbool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

func obj(o host.Object) C.uintptr_t {
	return C.uintptr_t(o)
}

func code(kind descriptor.Kind) C.char {
	switch kind {
	case descriptor.KindObject, descriptor.KindArray, descriptor.KindUnknown:
		return 'L'
	default:
		return C.char(kind.Code())
	}
}

type env struct {
	ptr C.uintptr_t
}

var _ host.Env = (*env)(nil)

func (e *env) NewLocalRef(o host.Object) host.Object {
	return host.Object(C.jh_new_local(e.ptr, obj(o)))
}

func (e *env) DeleteLocalRef(o host.Object) {
	if o != 0 {
		C.jh_delete_local(e.ptr, obj(o))
	}
}

func (e *env) NewGlobalRef(o host.Object) host.Object {
	return host.Object(C.jh_new_global(e.ptr, obj(o)))
}

func (e *env) DeleteGlobalRef(o host.Object) {
	if o != 0 {
		C.jh_delete_global(e.ptr, obj(o))
	}
}

// jobjectRefType numbers differ from host.RefType: JNIInvalidRefType 0,
// JNILocalRefType 1, JNIGlobalRefType 2, JNIWeakGlobalRefType 3.
func (e *env) GetObjectRefType(o host.Object) host.RefType {
	switch C.jh_ref_type(e.ptr, obj(o)) {
	case 1:
		return host.RefLocal
	case 2:
		return host.RefGlobal
	case 3:
		return host.RefWeakGlobal
	default:
		return host.RefInvalid
	}
}

func (e *env) IsSameObject(a, b host.Object) bool {
	return C.jh_same(e.ptr, obj(a), obj(b)) != 0
}

func (e *env) IsInstanceOf(o, cls host.Object) bool {
	return C.jh_instance_of(e.ptr, obj(o), obj(cls)) != 0
}

func (e *env) FindClass(name string) host.Object {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return host.Object(C.jh_find_class(e.ptr, cname))
}

func (e *env) GetObjectClass(o host.Object) host.Object {
	return host.Object(C.jh_object_class(e.ptr, obj(o)))
}

func (e *env) GetSuperclass(cls host.Object) host.Object {
	return host.Object(C.jh_superclass(e.ptr, obj(cls)))
}

func (e *env) methodID(cls host.Object, name, sig string, static bool) host.MethodID {
	cname, csig := C.CString(name), C.CString(sig)
	defer C.free(unsafe.Pointer(cname))
	defer C.free(unsafe.Pointer(csig))
	return host.MethodID(C.jh_method_id(e.ptr, obj(cls), cname, csig, cbool(static)))
}

func (e *env) GetMethodID(cls host.Object, name, sig string) host.MethodID {
	return e.methodID(cls, name, sig, false)
}

func (e *env) GetStaticMethodID(cls host.Object, name, sig string) host.MethodID {
	return e.methodID(cls, name, sig, true)
}

func (e *env) fieldID(cls host.Object, name, sig string, static bool) host.FieldID {
	cname, csig := C.CString(name), C.CString(sig)
	defer C.free(unsafe.Pointer(cname))
	defer C.free(unsafe.Pointer(csig))
	return host.FieldID(C.jh_field_id(e.ptr, obj(cls), cname, csig, cbool(static)))
}

func (e *env) GetFieldID(cls host.Object, name, sig string) host.FieldID {
	return e.fieldID(cls, name, sig, false)
}

func (e *env) GetStaticFieldID(cls host.Object, name, sig string) host.FieldID {
	return e.fieldID(cls, name, sig, true)
}

// packArgs flattens arguments into parallel kind and bit arrays.
func packArgs(args []host.Value) (kinds []C.char, bits []C.uint64_t) {
	kinds = make([]C.char, len(args)+1)
	bits = make([]C.uint64_t, len(args)+1)
	for i, a := range args {
		kinds[i] = code(a.Kind())
		if a.Kind().IsReference() {
			bits[i] = C.uint64_t(a.Object())
		} else {
			bits[i] = C.uint64_t(a.Bits())
		}
	}
	return kinds, bits
}

func result(kind descriptor.Kind, bits C.uint64_t) host.Value {
	if kind == descriptor.KindVoid {
		return host.Void()
	}
	return host.FromBits(kind, uint64(bits))
}

func (e *env) call(target host.Object, m host.MethodID, static bool, ret descriptor.Kind, args []host.Value) host.Value {
	kinds, bits := packArgs(args)
	r := C.jh_call(e.ptr, obj(target), C.uintptr_t(m), cbool(static), code(ret),
		&kinds[0], &bits[0], C.int(len(args)))
	return result(ret, r)
}

func (e *env) CallMethod(o host.Object, m host.MethodID, ret descriptor.Kind, args []host.Value) host.Value {
	return e.call(o, m, false, ret, args)
}

func (e *env) CallStaticMethod(cls host.Object, m host.MethodID, ret descriptor.Kind, args []host.Value) host.Value {
	return e.call(cls, m, true, ret, args)
}

func (e *env) NewObject(cls host.Object, ctor host.MethodID, args []host.Value) host.Object {
	kinds, bits := packArgs(args)
	return host.Object(C.jh_new_object(e.ptr, obj(cls), C.uintptr_t(ctor), &kinds[0], &bits[0], C.int(len(args))))
}

func (e *env) GetField(o host.Object, f host.FieldID, kind descriptor.Kind) host.Value {
	return result(kind, C.jh_get_field(e.ptr, obj(o), C.uintptr_t(f), 0, code(kind)))
}

func (e *env) SetField(o host.Object, f host.FieldID, v host.Value) {
	kinds, bits := packArgs([]host.Value{v})
	C.jh_set_field(e.ptr, obj(o), C.uintptr_t(f), 0, kinds[0], bits[0])
}

func (e *env) GetStaticField(cls host.Object, f host.FieldID, kind descriptor.Kind) host.Value {
	return result(kind, C.jh_get_field(e.ptr, obj(cls), C.uintptr_t(f), 1, code(kind)))
}

func (e *env) SetStaticField(cls host.Object, f host.FieldID, v host.Value) {
	kinds, bits := packArgs([]host.Value{v})
	C.jh_set_field(e.ptr, obj(cls), C.uintptr_t(f), 1, kinds[0], bits[0])
}

// NewString goes through UTF-16 so supplementary characters survive; the
// UTF-8 entry points expect modified UTF-8.
func (e *env) NewString(s string) host.Object {
	chars := utf16.Encode([]rune(s))
	var p *C.jchar
	if len(chars) > 0 {
		p = (*C.jchar)(unsafe.Pointer(&chars[0]))
	}
	return host.Object(C.jh_new_string(e.ptr, p, C.jsize(len(chars))))
}

func (e *env) GetString(str host.Object) string {
	n := int(C.jh_string_length(e.ptr, obj(str)))
	if n <= 0 {
		return ""
	}
	buf := make([]uint16, n)
	C.jh_string_region(e.ptr, obj(str), C.jsize(n), (*C.jchar)(unsafe.Pointer(&buf[0])))
	return string(utf16.Decode(buf))
}

func (e *env) GetStringLength(str host.Object) int {
	return int(C.jh_string_length(e.ptr, obj(str)))
}

func (e *env) GetStringUTFLength(str host.Object) int {
	return int(C.jh_string_utf_length(e.ptr, obj(str)))
}

func (e *env) GetArrayLength(arr host.Object) int {
	return int(C.jh_array_length(e.ptr, obj(arr)))
}

func (e *env) NewArray(elem descriptor.Kind, length int, elemClass host.Object) host.Object {
	return host.Object(C.jh_new_array(e.ptr, code(elem), C.jsize(length), obj(elemClass)))
}

func (e *env) GetArrayElement(arr host.Object, elem descriptor.Kind, index int) host.Value {
	return result(elem, C.jh_get_element(e.ptr, obj(arr), code(elem), C.jsize(index)))
}

func (e *env) SetArrayElement(arr host.Object, elem descriptor.Kind, index int, v host.Value) {
	_, bits := packArgs([]host.Value{v})
	C.jh_set_element(e.ptr, obj(arr), code(elem), C.jsize(index), bits[0])
}

func (e *env) PushLocalFrame(capacity int) error {
	return jniError("PushLocalFrame", int(C.jh_push_frame(e.ptr, C.jint(capacity))))
}

func (e *env) PopLocalFrame(res host.Object) host.Object {
	return host.Object(C.jh_pop_frame(e.ptr, obj(res)))
}

func (e *env) ExceptionCheck() bool {
	return C.jh_exception_check(e.ptr) != 0
}

func (e *env) ExceptionOccurred() host.Object {
	return host.Object(C.jh_exception_occurred(e.ptr))
}

func (e *env) ExceptionDescribe() {
	C.jh_exception_describe(e.ptr)
}

func (e *env) ExceptionClear() {
	C.jh_exception_clear(e.ptr)
}

type tooling struct {
	ptr C.uintptr_t
	vm  *vm
}

var _ host.Tooling = (*tooling)(nil)

// handles copies a JVMTI-allocated array and frees it.
func (t *tooling) handles(p *C.uintptr_t, n C.jint) []uintptr {
	if p == nil {
		return nil
	}
	defer C.jh_deallocate(t.ptr, unsafe.Pointer(p))
	out := make([]uintptr, int(n))
	for i, h := range unsafe.Slice(p, int(n)) {
		out[i] = uintptr(h)
	}
	return out
}

// take converts a JVMTI-allocated C string and frees it.
func (t *tooling) take(s *C.char) string {
	if s == nil {
		return ""
	}
	defer C.jh_deallocate(t.ptr, unsafe.Pointer(s))
	return C.GoString(s)
}

func objects(hs []uintptr) []host.Object {
	out := make([]host.Object, len(hs))
	for i, h := range hs {
		out[i] = host.Object(h)
	}
	return out
}

func (t *tooling) GetPhase() (host.Phase, error) {
	var p C.jint
	if err := toolingError("GetPhase", int(C.jh_phase(t.ptr, &p))); err != nil {
		return 0, err
	}
	return host.Phase(p), nil
}

func (t *tooling) GetAllThreads() ([]host.Object, error) {
	var (
		n C.jint
		p *C.uintptr_t
	)
	if err := toolingError("GetAllThreads", int(C.jh_all_threads(t.ptr, &n, &p))); err != nil {
		return nil, err
	}
	return objects(t.handles(p, n)), nil
}

func (t *tooling) GetThreadInfo(thread host.Object) (host.ThreadInfo, error) {
	e, err := t.vm.GetEnv()
	if err != nil {
		return host.ThreadInfo{}, err
	}
	var (
		name     *C.char
		priority C.jint
		daemon   C.int
		loader   C.uintptr_t
	)
	rc := C.jh_thread_info(t.ptr, e.(*env).ptr, obj(thread), &name, &priority, &daemon, &loader)
	if err := toolingError("GetThreadInfo", int(rc)); err != nil {
		return host.ThreadInfo{}, err
	}
	return host.ThreadInfo{
		Name:               t.take(name),
		Priority:           int32(priority),
		Daemon:             daemon != 0,
		ContextClassLoader: host.Object(loader),
	}, nil
}

func (t *tooling) GetLoadedClasses() ([]host.Object, error) {
	var (
		n C.jint
		p *C.uintptr_t
	)
	if err := toolingError("GetLoadedClasses", int(C.jh_loaded_classes(t.ptr, &n, &p))); err != nil {
		return nil, err
	}
	return objects(t.handles(p, n)), nil
}

func (t *tooling) GetClassSignature(cls host.Object) (string, error) {
	var sig *C.char
	if err := toolingError("GetClassSignature", int(C.jh_class_signature(t.ptr, obj(cls), &sig))); err != nil {
		return "", err
	}
	return t.take(sig), nil
}

func (t *tooling) GetClassStatus(cls host.Object) (host.ClassStatus, error) {
	var status C.jint
	if err := toolingError("GetClassStatus", int(C.jh_class_status(t.ptr, obj(cls), &status))); err != nil {
		return 0, err
	}
	return host.ClassStatus(status), nil
}

func (t *tooling) GetClassMethods(cls host.Object) ([]host.MethodID, error) {
	var (
		n C.jint
		p *C.uintptr_t
	)
	if err := toolingError("GetClassMethods", int(C.jh_class_methods(t.ptr, obj(cls), &n, &p))); err != nil {
		return nil, err
	}
	hs := t.handles(p, n)
	out := make([]host.MethodID, len(hs))
	for i, h := range hs {
		out[i] = host.MethodID(h)
	}
	return out, nil
}

func (t *tooling) GetClassFields(cls host.Object) ([]host.FieldID, error) {
	var (
		n C.jint
		p *C.uintptr_t
	)
	if err := toolingError("GetClassFields", int(C.jh_class_fields(t.ptr, obj(cls), &n, &p))); err != nil {
		return nil, err
	}
	hs := t.handles(p, n)
	out := make([]host.FieldID, len(hs))
	for i, h := range hs {
		out[i] = host.FieldID(h)
	}
	return out, nil
}

func (t *tooling) GetMethodDeclaringClass(m host.MethodID) (host.Object, error) {
	var c C.uintptr_t
	if err := toolingError("GetMethodDeclaringClass", int(C.jh_method_class(t.ptr, C.uintptr_t(m), &c))); err != nil {
		return 0, err
	}
	return host.Object(c), nil
}

func (t *tooling) GetMethodName(m host.MethodID) (string, string, error) {
	var name, sig *C.char
	if err := toolingError("GetMethodName", int(C.jh_method_name(t.ptr, C.uintptr_t(m), &name, &sig))); err != nil {
		return "", "", err
	}
	return t.take(name), t.take(sig), nil
}

func (t *tooling) GetMethodModifiers(m host.MethodID) (int32, error) {
	var mods C.jint
	if err := toolingError("GetMethodModifiers", int(C.jh_method_modifiers(t.ptr, C.uintptr_t(m), &mods))); err != nil {
		return 0, err
	}
	return int32(mods), nil
}

func (t *tooling) GetFieldDeclaringClass(cls host.Object, f host.FieldID) (host.Object, error) {
	var decl C.uintptr_t
	if err := toolingError("GetFieldDeclaringClass", int(C.jh_field_class(t.ptr, obj(cls), C.uintptr_t(f), &decl))); err != nil {
		return 0, err
	}
	return host.Object(decl), nil
}

func (t *tooling) GetFieldName(cls host.Object, f host.FieldID) (string, string, error) {
	var name, sig *C.char
	if err := toolingError("GetFieldName", int(C.jh_field_name(t.ptr, obj(cls), C.uintptr_t(f), &name, &sig))); err != nil {
		return "", "", err
	}
	return t.take(name), t.take(sig), nil
}

func (t *tooling) GetFieldModifiers(cls host.Object, f host.FieldID) (int32, error) {
	var mods C.jint
	if err := toolingError("GetFieldModifiers", int(C.jh_field_modifiers(t.ptr, obj(cls), C.uintptr_t(f), &mods))); err != nil {
		return 0, err
	}
	return int32(mods), nil
}

func (t *tooling) Dispose() error {
	return toolingError("DisposeEnvironment", int(C.jh_dispose(t.ptr)))
}
