package interop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host/memvm"
)

func TestString(t *testing.T) {
	_, s := newSession(t)

	str, err := s.NewString("héllo")
	require.NoError(t, err)
	defer str.Release()

	assert.True(t, str.Valid())
	assert.Equal(t, "héllo", str.String())
	n, err := str.Len()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = str.UTFLen()
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.False(t, str.Empty())

	other, err := s.NewString("héllo")
	require.NoError(t, err)
	defer other.Release()
	assert.True(t, str.Equal(other))

	var null *String
	assert.Empty(t, null.String())
	assert.True(t, null.Empty())
	assert.False(t, str.Equal(null))

	err = onOtherThread(t, s, func() error {
		_, err := str.Value()
		return err
	})
	assert.ErrorIs(t, err, ErrCrossThread)
}

func TestPrimitiveArray(t *testing.T) {
	_, s := newSession(t)

	arr, err := s.NewArray(descriptor.Descriptor{Kind: descriptor.KindInt}, 3)
	require.NoError(t, err)
	defer arr.Release()

	for i := range 3 {
		require.NoError(t, arr.Set(i, (i+1)*10))
	}
	got, err := Slice[int32](arr)
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 20, 30}, got)

	wide, err := Slice[int64](arr)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, wide)

	_, err = arr.Get(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.ErrorIs(t, arr.Set(-1, 1), ErrIndexOutOfRange)
	assert.ErrorIs(t, arr.Set(0, "x"), ErrTypeMismatch)

	_, err = Slice[float64](arr)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Equal(t, "int", arr.ComponentClass())
}

func TestObjectArray(t *testing.T) {
	_, s := newSession(t)

	arr, err := s.NewArray(descriptor.Object("java.lang.String"), 2)
	require.NoError(t, err)
	defer arr.Release()

	require.NoError(t, arr.Set(0, "a"))
	require.NoError(t, arr.Set(1, "b"))

	strs, err := Slice[string](arr)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, strs)
	assert.Equal(t, "java.lang.String", arr.ComponentClass())

	// The element type is recovered from the array's runtime class.
	viewed, err := s.ArrayFrom(arr.Ref())
	require.NoError(t, err)
	assert.Equal(t, "java/lang/String", viewed.Elem().Name)

	player := newPlayer(t, s)
	_, err = s.ArrayFrom(player)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestNullArray(t *testing.T) {
	var arr *Array
	n, err := arr.Len()
	assert.NoError(t, err)
	assert.Zero(t, n)

	vals, err := Slice[int32](arr)
	assert.NoError(t, err)
	assert.Nil(t, vals)
}

func TestArrayList(t *testing.T) {
	_, s := newSession(t)
	ctx := context.Background()

	list, err := s.NewArrayList(ctx, 4)
	require.NoError(t, err)
	defer list.Release()

	require.NoError(t, list.Add(int32(7)))
	require.NoError(t, list.Add("seven"))
	require.NoError(t, list.Add(7.5))
	require.NoError(t, list.Add(true))

	n, err := list.Size()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	i, err := Element[int32](list, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(7), i)

	str, err := Element[string](list, 1)
	require.NoError(t, err)
	assert.Equal(t, "seven", str)

	d, err := Element[float64](list, 2)
	require.NoError(t, err)
	assert.Equal(t, 7.5, d)

	b, err := Element[bool](list, 3)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = Element[bool](list, 0)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	require.NoError(t, list.Set(0, int64(9)))
	l, err := Element[int64](list, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(9), l)

	_, err = list.Get(10)
	assert.ErrorIs(t, err, ErrJavaException)

	refs, err := list.Values()
	require.NoError(t, err)
	assert.Len(t, refs, 4)
	for _, r := range refs {
		require.NoError(t, r.Release())
	}

	assert.ErrorIs(t, list.Add(struct{}{}), ErrTypeMismatch)
}

func TestLocalFrame(t *testing.T) {
	vm, s := newSession(t)
	env, err := s.Env()
	require.NoError(t, err)
	menv := env.(*memvm.Env)
	base := menv.LocalCount()

	frame, err := s.PushLocalFrame(8)
	require.NoError(t, err)

	for range 5 {
		_, err := s.NewString("temp")
		require.NoError(t, err)
	}
	keep, err := s.NewString("keep")
	require.NoError(t, err)

	kept, err := frame.Pop(keep.Ref())
	require.NoError(t, err)
	defer kept.Release()

	assert.False(t, keep.Valid())
	assert.Equal(t, base+1, menv.LocalCount())
	assert.Equal(t, "keep", AsString(kept).String())

	again, err := frame.Pop(nil)
	assert.NoError(t, err)
	assert.Nil(t, again)
	assert.Zero(t, vm.Stats().InvalidDeletes)
}
