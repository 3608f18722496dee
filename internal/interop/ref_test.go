package interop

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jinterop/internal/osthread"
)

// onOtherThread runs fn on a distinct, attached OS thread.
func onOtherThread(t *testing.T, s *Session, fn func() error) error {
	t.Helper()
	done := make(chan error)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := s.AttachThread(false); err != nil {
			done <- err
			return
		}
		err := fn()
		if derr := s.DetachThread(); err == nil {
			err = derr
		}
		done <- err
	}()
	return <-done
}

func TestNewRefMatchesStrength(t *testing.T) {
	_, s := newSession(t)
	env, err := s.Env()
	require.NoError(t, err)

	local := env.NewString("x")
	defer env.DeleteLocalRef(local)

	r, err := s.NewRef(local)
	require.NoError(t, err)
	assert.False(t, r.IsGlobal())
	assert.Equal(t, osthread.Current(), r.Owner())
	assert.NotEqual(t, local, r.obj)

	g := env.NewGlobalRef(local)
	defer env.DeleteGlobalRef(g)

	gr, err := s.NewRef(g)
	require.NoError(t, err)
	assert.True(t, gr.IsGlobal())
	assert.Zero(t, gr.Owner())

	same, err := r.IsSameObject(gr)
	require.NoError(t, err)
	assert.True(t, same)

	require.NoError(t, r.Release())
	require.NoError(t, gr.Release())
}

func TestAdoptGlobalTakesOwnership(t *testing.T) {
	vm, s := newSession(t)
	env, err := s.Env()
	require.NoError(t, err)

	local := env.NewString("x")
	defer env.DeleteLocalRef(local)

	before := vm.Stats().LiveGlobals
	r, err := s.AdoptGlobal(env.NewGlobalRef(local))
	require.NoError(t, err)
	assert.True(t, r.IsGlobal())
	assert.Equal(t, before+1, vm.Stats().LiveGlobals)
	require.NoError(t, r.Release())
	assert.Equal(t, before, vm.Stats().LiveGlobals)

	_, err = s.AdoptGlobal(local)
	assert.ErrorIs(t, err, ErrUnsupportedRef)

	null, err := s.AdoptGlobal(0)
	require.NoError(t, err)
	assert.False(t, null.Valid())
}

func TestNewRefRejectsStaleHandle(t *testing.T) {
	_, s := newSession(t)
	env, err := s.Env()
	require.NoError(t, err)

	h := env.NewString("gone")
	env.DeleteLocalRef(h)

	_, err = s.NewRef(h)
	assert.ErrorIs(t, err, ErrUnsupportedRef)
}

func TestNullRef(t *testing.T) {
	_, s := newSession(t)

	r, err := s.NewRef(0)
	require.NoError(t, err)
	assert.False(t, r.Valid())
	assert.NoError(t, r.Release())
	assert.NoError(t, r.MakeGlobal())

	_, err = r.IsSameObject(nil)
	assert.ErrorIs(t, err, ErrInvalidReference)

	var nilRef *Ref
	assert.False(t, nilRef.Valid())
	assert.NoError(t, nilRef.Release())
	h, err := nilRef.Handle()
	assert.NoError(t, err)
	assert.Zero(t, h)
}

func TestLocalRefIsThreadBound(t *testing.T) {
	_, s := newSession(t)
	r := newPlayer(t, s)

	err := onOtherThread(t, s, func() error {
		_, err := r.Handle()
		return err
	})
	require.ErrorIs(t, err, ErrCrossThread)

	err = onOtherThread(t, s, func() error {
		_, err := r.Clone()
		return err
	})
	require.ErrorIs(t, err, ErrCrossThread)

	require.NoError(t, r.MakeGlobal())
	assert.True(t, r.IsGlobal())

	err = onOtherThread(t, s, func() error {
		cls, err := r.Class()
		if err != nil {
			return err
		}
		defer cls.Release()
		ok, err := r.IsInstanceOf(cls)
		if err == nil && !ok {
			t.Error("instance check failed on second thread")
		}
		return err
	})
	require.NoError(t, err)
}

func TestMakeGlobalIsIdempotent(t *testing.T) {
	vm, s := newSession(t)
	r := newPlayer(t, s)

	vm.ResetStats()
	require.NoError(t, r.MakeGlobal())
	require.NoError(t, r.MakeGlobal())

	stats := vm.Stats()
	assert.Equal(t, 1, stats.NewGlobal)
	assert.Equal(t, 1, stats.DeleteLocal)
}

func TestClonesPairAcquireWithRelease(t *testing.T) {
	vm, s := newSession(t)
	r := newPlayer(t, s)
	require.NoError(t, r.MakeGlobal())

	const n = 8
	vm.ResetStats()
	before := vm.Stats().LiveGlobals

	clones := make([]*Ref, n)
	for i := range clones {
		c, err := r.Clone()
		require.NoError(t, err)
		require.True(t, c.IsGlobal())
		clones[i] = c
	}
	assert.Equal(t, before+n, vm.Stats().LiveGlobals)

	for _, c := range clones {
		require.NoError(t, c.Release())
		require.NoError(t, c.Release())
	}

	stats := vm.Stats()
	assert.Equal(t, n, stats.NewGlobal)
	assert.Equal(t, n, stats.DeleteGlobal)
	assert.Zero(t, stats.InvalidDeletes)
	assert.Equal(t, before, stats.LiveGlobals)
}

func TestTakeMovesOwnership(t *testing.T) {
	vm, s := newSession(t)
	r := newPlayer(t, s)

	vm.ResetStats()
	moved := r.Take()
	assert.False(t, r.Valid())
	assert.True(t, moved.Valid())
	assert.Zero(t, vm.Stats().NewLocal)

	require.NoError(t, r.Release())
	require.NoError(t, moved.Release())
	assert.Equal(t, 1, vm.Stats().DeleteLocal)
	assert.Zero(t, vm.Stats().InvalidDeletes)
}

func TestRefClass(t *testing.T) {
	_, s := newSession(t)
	r := newPlayer(t, s)

	cls, err := r.Class()
	require.NoError(t, err)
	defer cls.Release()
	assert.True(t, cls.IsClass())

	name, simple, err := s.ClassName(cls.obj)
	require.NoError(t, err)
	assert.Equal(t, "com.example.Player", name)
	assert.Equal(t, "Player", simple)

	again, err := cls.Class()
	require.NoError(t, err)
	defer again.Release()
	same, err := again.IsSameObject(cls)
	require.NoError(t, err)
	assert.True(t, same)

	str, err := s.FindClass("java.lang.String")
	require.NoError(t, err)
	ok, err := r.IsInstanceOf(str)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.IsInstanceOf(&Ref{s: s})
	assert.ErrorIs(t, err, ErrInvalidReference)
}
