package interop

import (
	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/osthread"
)

// Ref is an owned reference to a Java object or class.
//
// A local Ref belongs to the OS thread that created it and every use from
// another thread fails with ErrCrossThread. A global Ref may be used from any
// attached thread. Each Ref holds exactly one runtime reference, acquired when
// it is built and given back by Release.
type Ref struct {
	s       *Session
	obj     host.Object
	global  bool
	owner   osthread.ID
	isClass bool
}

// NewRef acquires a new reference to obj with the same strength as obj
// itself. A null obj yields a null Ref.
func (s *Session) NewRef(obj host.Object) (*Ref, error) {
	return s.newRef(obj, false)
}

// AdoptGlobal takes ownership of a global handle the caller already holds.
// No new reference is acquired; Release on the result deletes obj.
func (s *Session) AdoptGlobal(obj host.Object) (*Ref, error) {
	if obj == 0 {
		return &Ref{s: s}, nil
	}
	env, err := s.Env()
	if err != nil {
		return nil, err
	}
	if rt := env.GetObjectRefType(obj); rt != host.RefGlobal {
		return nil, raise(ErrUnsupportedRef, "AdoptGlobal", "Cannot adopt a %s reference as global", rt)
	}
	return s.adopt(obj, true, false), nil
}

// NewClassRef is NewRef for a class handle.
func (s *Session) NewClassRef(cls host.Object) (*Ref, error) {
	return s.newRef(cls, true)
}

func (s *Session) newRef(obj host.Object, isClass bool) (*Ref, error) {
	r := &Ref{s: s, isClass: isClass}
	if obj == 0 {
		return r, nil
	}

	env, err := s.Env()
	if err != nil {
		return nil, err
	}

	switch rt := env.GetObjectRefType(obj); rt {
	case host.RefLocal:
		r.obj = env.NewLocalRef(obj)
		r.owner = osthread.Current()
	case host.RefGlobal, host.RefWeakGlobal:
		r.obj = env.NewGlobalRef(obj)
		r.global = true
	default:
		return nil, raise(ErrUnsupportedRef, "NewRef", "Unsupported reference type %s", rt)
	}
	return r, nil
}

// adopt wraps a reference the caller already owns (a call result, say)
// without acquiring another one.
func (s *Session) adopt(obj host.Object, global, isClass bool) *Ref {
	r := &Ref{s: s, obj: obj, global: global, isClass: isClass}
	if obj != 0 && !global {
		r.owner = osthread.Current()
	}
	return r
}

// Valid reports whether r refers to an object.
func (r *Ref) Valid() bool {
	return r != nil && r.obj != 0
}

func (r *Ref) IsGlobal() bool {
	return r != nil && r.global
}

func (r *Ref) IsClass() bool {
	return r != nil && r.isClass
}

// Owner is the creating thread of a local Ref, 0 for globals.
func (r *Ref) Owner() osthread.ID {
	return r.owner
}

func (r *Ref) checkThread() error {
	if r.global || r.obj == 0 {
		return nil
	}
	if cur := osthread.Current(); cur != r.owner {
		return raise(ErrCrossThread, "Ref", "local reference of thread %d used on thread %d", r.owner, cur)
	}
	return nil
}

func (r *Ref) checkInstance(op string) error {
	if !r.Valid() {
		return raise(ErrInvalidReference, op, "null reference")
	}
	return r.checkThread()
}

// Handle returns the raw handle after checking thread ownership.
func (r *Ref) Handle() (host.Object, error) {
	if r == nil {
		return 0, nil
	}
	if err := r.checkThread(); err != nil {
		return 0, err
	}
	return r.obj, nil
}

// Clone acquires another reference of the same strength.
func (r *Ref) Clone() (*Ref, error) {
	if !r.Valid() {
		return &Ref{s: r.session(), isClass: r.IsClass()}, nil
	}
	if err := r.checkThread(); err != nil {
		return nil, err
	}

	env, err := r.s.Env()
	if err != nil {
		return nil, err
	}

	c := &Ref{s: r.s, global: r.global, isClass: r.isClass}
	if r.global {
		c.obj = env.NewGlobalRef(r.obj)
	} else {
		c.obj = env.NewLocalRef(r.obj)
		c.owner = osthread.Current()
	}
	return c, nil
}

func (r *Ref) session() *Session {
	if r == nil {
		return nil
	}
	return r.s
}

// Take moves the reference into a new Ref and leaves r null.
func (r *Ref) Take() *Ref {
	if r == nil {
		return nil
	}
	moved := *r
	r.obj = 0
	r.owner = 0
	return &moved
}

// Release gives the reference back to the runtime. Releasing a null Ref is a
// no-op, so Release is safe to call more than once.
func (r *Ref) Release() error {
	if !r.Valid() {
		return nil
	}
	if err := r.checkThread(); err != nil {
		return err
	}

	env, err := r.s.Env()
	if err != nil {
		return err
	}

	if r.global {
		env.DeleteGlobalRef(r.obj)
	} else {
		env.DeleteLocalRef(r.obj)
	}
	r.obj = 0
	r.owner = 0
	return nil
}

// MakeGlobal promotes a local Ref in place. It does nothing for a Ref that is
// already global or null. On failure r keeps its local reference.
func (r *Ref) MakeGlobal() error {
	if !r.Valid() || r.global {
		return nil
	}
	if err := r.checkThread(); err != nil {
		return err
	}

	env, err := r.s.Env()
	if err != nil {
		return err
	}

	g := env.NewGlobalRef(r.obj)
	if g == 0 {
		return raise(ErrInvalidReference, "MakeGlobal", "NewGlobalRef failed")
	}
	env.DeleteLocalRef(r.obj)
	r.obj = g
	r.global = true
	r.owner = 0
	return nil
}

// IsSameObject compares identity. other may be null.
func (r *Ref) IsSameObject(other *Ref) (bool, error) {
	if err := r.checkInstance("IsSameObject"); err != nil {
		return false, err
	}
	h, err := other.Handle()
	if err != nil {
		return false, err
	}

	env, err := r.s.Env()
	if err != nil {
		return false, err
	}
	return env.IsSameObject(r.obj, h), nil
}

// IsInstanceOf checks r against a class reference.
func (r *Ref) IsInstanceOf(cls *Ref) (bool, error) {
	if err := r.checkInstance("IsInstanceOf"); err != nil {
		return false, err
	}
	if err := cls.checkInstance("IsInstanceOf"); err != nil {
		return false, err
	}

	env, err := r.s.Env()
	if err != nil {
		return false, err
	}
	return env.IsInstanceOf(r.obj, cls.obj), nil
}

// Class returns a new reference to r's runtime class. For a class Ref it is
// a clone of r.
func (r *Ref) Class() (*Ref, error) {
	if err := r.checkInstance("Class"); err != nil {
		return nil, err
	}
	if r.isClass {
		return r.Clone()
	}

	env, err := r.s.Env()
	if err != nil {
		return nil, err
	}
	return r.s.adopt(env.GetObjectClass(r.obj), false, true), nil
}
