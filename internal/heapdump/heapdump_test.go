package heapdump

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jinterop/internal/interop"
)

// hprof assembles a dump with 8-byte identifiers.
type hprof struct {
	out     bytes.Buffer
	seg     bytes.Buffer
	strings map[string]ID
	next    ID
}

func newHprof() *hprof {
	h := &hprof{strings: make(map[string]ID), next: 0x10}
	h.out.WriteString("JAVA PROFILE 1.0.2\x00")
	h.u4(&h.out, 8)
	h.u4(&h.out, 0x0000018F)
	h.u4(&h.out, 0x00000000)
	return h
}

func (h *hprof) u1(b *bytes.Buffer, v uint8)  { b.WriteByte(v) }
func (h *hprof) u2(b *bytes.Buffer, v uint16) { _ = binary.Write(b, binary.BigEndian, v) }
func (h *hprof) u4(b *bytes.Buffer, v uint32) { _ = binary.Write(b, binary.BigEndian, v) }
func (h *hprof) id(b *bytes.Buffer, v ID)     { _ = binary.Write(b, binary.BigEndian, uint64(v)) }

func (h *hprof) record(tag uint8, body []byte) {
	h.u1(&h.out, tag)
	h.u4(&h.out, 0)
	h.u4(&h.out, uint32(len(body)))
	h.out.Write(body)
}

func (h *hprof) str(s string) ID {
	if id, ok := h.strings[s]; ok {
		return id
	}
	h.next++
	id := h.next
	h.strings[s] = id

	var b bytes.Buffer
	h.id(&b, id)
	b.WriteString(s)
	h.record(tagUTF8, b.Bytes())
	return id
}

func (h *hprof) loadClass(obj ID, name string) {
	nameID := h.str(name)
	var b bytes.Buffer
	h.u4(&b, 1)
	h.id(&b, obj)
	h.u4(&b, 0)
	h.id(&b, nameID)
	h.record(tagLoadClass, b.Bytes())
}

type staticInt struct {
	name string
	v    int32
}

func (h *hprof) classDump(obj, super ID, fields []Field, statics ...staticInt) {
	b := &h.seg
	h.u1(b, subClassDump)
	h.id(b, obj)
	h.u4(b, 0)
	h.id(b, super)
	// loader, signers, protection domain, two reserved
	for range 5 {
		h.id(b, 0)
	}
	h.u4(b, 0)

	// one constant pool entry
	h.u2(b, 1)
	h.u2(b, 3)
	h.u1(b, uint8(TypeShort))
	h.u2(b, 42)

	h.u2(b, uint16(len(statics)))
	for _, s := range statics {
		h.id(b, h.str(s.name))
		h.u1(b, uint8(TypeInt))
		h.u4(b, uint32(s.v))
	}
	h.u2(b, uint16(len(fields)))
	for _, f := range fields {
		h.id(b, h.str(f.Name))
		h.u1(b, uint8(f.Type))
	}
}

func (h *hprof) instance(obj, class ID, data []byte) {
	b := &h.seg
	h.u1(b, subInstanceDump)
	h.id(b, obj)
	h.u4(b, 0)
	h.id(b, class)
	h.u4(b, uint32(len(data)))
	b.Write(data)
}

func (h *hprof) primArray(obj ID, t FieldType, n int, data []byte) {
	b := &h.seg
	h.u1(b, subPrimArrayDump)
	h.id(b, obj)
	h.u4(b, 0)
	h.u4(b, uint32(n))
	h.u1(b, uint8(t))
	b.Write(data)
}

func (h *hprof) objArray(obj, class ID, elems ...ID) {
	b := &h.seg
	h.u1(b, subObjArrayDump)
	h.id(b, obj)
	h.u4(b, 0)
	h.u4(b, uint32(len(elems)))
	h.id(b, class)
	for _, e := range elems {
		h.id(b, e)
	}
}

func (h *hprof) bytes() []byte {
	h.record(tagHeapSegment, h.seg.Bytes())
	h.record(tagSegmentEnd, nil)
	return h.out.Bytes()
}

// data packs big-endian values: uint8, uint16, uint32, uint64 and ID.
func data(vals ...any) []byte {
	var b bytes.Buffer
	for _, v := range vals {
		if id, ok := v.(ID); ok {
			v = uint64(id)
		}
		_ = binary.Write(&b, binary.BigEndian, v)
	}
	return b.Bytes()
}

const (
	objectClassID ID = 0x100
	stringClassID ID = 0x101
	entityClassID ID = 0x102
	playerClassID ID = 0x103
	threadClassID ID = 0x104
	arrayClassID  ID = 0x105

	steveBytes ID = 0x200
	omegaBytes ID = 0x201
	gameChars  ID = 0x202
	scores     ID = 0x203

	steve ID = 0x300
	omega ID = 0x301
	game  ID = 0x302

	player  ID = 0x400
	friends ID = 0x500
	thread  ID = 0x600
)

func sampleDump() []byte {
	h := newHprof()
	h.loadClass(objectClassID, "java.lang.Object")
	h.loadClass(stringClassID, "java.lang.String")
	h.loadClass(entityClassID, "net.example.Entity")
	h.loadClass(playerClassID, "net.example.Player")
	h.loadClass(threadClassID, "java.lang.Thread")
	h.loadClass(arrayClassID, "[Lnet.example.Player;")

	// START_THREAD carries nothing the loader reads.
	h.record(tagStartThread, data(uint32(1), thread, uint32(0), ID(0), ID(0), ID(0)))

	// Player declared before its superclass.
	h.classDump(playerClassID, entityClassID,
		[]Field{{"health", TypeFloat}, {"friends", TypeObject}, {"scores", TypeObject}},
		staticInt{"count", 3})
	h.classDump(objectClassID, 0, nil)
	h.classDump(stringClassID, objectClassID, []Field{{"value", TypeObject}, {"coder", TypeByte}})
	h.classDump(entityClassID, objectClassID, []Field{{"name", TypeObject}})
	h.classDump(threadClassID, objectClassID, []Field{{"name", TypeObject}, {"daemon", TypeBoolean}})
	h.classDump(arrayClassID, objectClassID, nil)

	h.primArray(steveBytes, TypeByte, 5, []byte("Steve"))
	h.primArray(omegaBytes, TypeByte, 10, []byte{0xA9, 0x03, 'm', 0, 'e', 0, 'g', 0, 'a', 0})
	h.primArray(gameChars, TypeChar, 4, []byte{0, 'g', 0, 'a', 0, 'm', 0, 'e'})
	h.primArray(scores, TypeInt, 3, data(uint32(1), uint32(2), uint32(0xFFFFFFFF)))

	h.instance(steve, stringClassID, data(steveBytes, uint8(0)))
	h.instance(omega, stringClassID, data(omegaBytes, uint8(1)))
	h.instance(game, stringClassID, data(gameChars, uint8(0)))

	h.instance(player, playerClassID,
		data(math.Float32bits(20.5), friends, scores, steve))
	h.objArray(friends, arrayClassID, player, 0)
	h.instance(thread, threadClassID, data(game, uint8(1)))

	// roots
	h.u1(&h.seg, rootJNIGlobal)
	h.id(&h.seg, player)
	h.id(&h.seg, 0x999)
	h.u1(&h.seg, rootStickyClass)
	h.id(&h.seg, stringClassID)
	h.u1(&h.seg, rootJavaFrame)
	h.id(&h.seg, player)
	h.u4(&h.seg, 1)
	h.u4(&h.seg, 0)
	h.u1(&h.seg, rootThreadObj)
	h.id(&h.seg, thread)
	h.u4(&h.seg, 1)
	h.u4(&h.seg, 0)

	return h.bytes()
}

func TestParse(t *testing.T) {
	d, err := Parse(bytes.NewReader(sampleDump()))
	require.NoError(t, err)

	assert.Equal(t, "JAVA PROFILE 1.0.2", d.Header.Format)
	assert.Equal(t, 8, d.Header.IDSize)
	assert.Equal(t, int64(0x18F)<<32, d.Header.Timestamp.UnixMilli())

	assert.Len(t, d.Classes, 6)
	assert.Equal(t, "net/example/Player", d.ClassName(playerClassID))
	assert.Equal(t, "[Lnet/example/Player;", d.ClassName(arrayClassID))

	cd := d.Classes[playerClassID]
	assert.Equal(t, entityClassID, cd.Super)
	require.Len(t, cd.Statics, 1)
	assert.Equal(t, "count", cd.Statics[0].Name)
	assert.Equal(t, uint64(3), cd.Statics[0].Value)

	assert.Len(t, d.Instances, 5)
	assert.Equal(t, []ID{player, 0}, d.ObjectArrays[friends].Elements)
	assert.Equal(t, 3, d.PrimitiveArrays[scores].Len)
	assert.Equal(t, []Thread{{Object: thread, Serial: 1}}, d.Threads)

	assert.Equal(t, 1, d.Roots[rootJNIGlobal])
	assert.Equal(t, 1, d.Roots[rootStickyClass])
	assert.Equal(t, 1, d.Roots[rootJavaFrame])
	assert.Equal(t, 1, d.Roots[rootThreadObj])
}

func TestParseRejects(t *testing.T) {
	_, err := Parse(strings.NewReader("NOT A DUMP\x00"))
	assert.ErrorContains(t, err, "not an HPROF file")

	dump := sampleDump()
	_, err = Parse(bytes.NewReader(dump[:len(dump)-40]))
	assert.Error(t, err)

	h := newHprof()
	h.u1(&h.seg, 0x77)
	_, err = Parse(bytes.NewReader(h.bytes()))
	assert.ErrorContains(t, err, "unknown sub-record type")
}

func TestLoad(t *testing.T) {
	d, err := Parse(bytes.NewReader(sampleDump()))
	require.NoError(t, err)
	img, err := Load(d)
	require.NoError(t, err)

	playerCls := img.VM.Class("net/example/Player")
	require.NotNil(t, playerCls)
	assert.Equal(t, "net/example/Entity", playerCls.Super.Name)
	assert.Same(t, playerCls, img.Class(playerClassID))

	p := img.Object(player)
	require.NotNil(t, p)
	assert.Equal(t, float32(20.5), p.Get("health").Float())
	assert.Len(t, img.Instances("net/example/Player"), 1)

	for id, want := range map[ID]string{steve: "Steve", omega: "Ωmega", game: "game"} {
		s, ok := img.Object(id).StringValue()
		assert.True(t, ok)
		assert.Equal(t, want, s)
	}
	assert.Equal(t, 2, img.Object(friends).Len())
}

func TestLoadedImageThroughSession(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	path := filepath.Join(t.TempDir(), "game.hprof")
	require.NoError(t, os.WriteFile(path, sampleDump(), 0o644))

	img, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "game.hprof", img.VM.String())

	s, err := interop.Initialize(img.VM.Locator())
	require.NoError(t, err)
	defer s.Destroy()

	ctx := context.Background()
	cls, err := s.Directory().ForName(ctx, "net/example/Player")
	require.NoError(t, err)

	count, err := interop.Get[int32](cls.Field("count", "I"), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), count)

	ref, err := img.Pin(s, "net/example/Player", 0)
	require.NoError(t, err)
	defer ref.Release()
	assert.True(t, ref.IsGlobal())

	health, err := interop.Get[float32](cls.Field("health", "F"), ref)
	require.NoError(t, err)
	assert.Equal(t, float32(20.5), health)

	entity, err := s.Directory().ForName(ctx, "net/example/Entity")
	require.NoError(t, err)
	name, err := interop.Get[string](entity.Field("name", "Ljava/lang/Object;"), ref)
	require.NoError(t, err)
	assert.Equal(t, "Steve", name)

	scoresRef, err := interop.Get[*interop.Ref](cls.Field("scores", "Ljava/lang/Object;"), ref)
	require.NoError(t, err)
	defer scoresRef.Release()
	a, err := s.ArrayFrom(scoresRef)
	require.NoError(t, err)
	vals, err := interop.Slice[int32](a)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, -1}, vals)

	err = interop.Set(cls.Field("health", "F"), ref, float32(1))
	assert.Error(t, err)

	threads, err := s.Tooling().GetAllThreads()
	require.NoError(t, err)
	var names []string
	for _, th := range threads {
		info, err := s.Tooling().GetThreadInfo(th)
		require.NoError(t, err)
		names = append(names, info.Name)
		if info.Name == "game" {
			assert.True(t, info.Daemon)
		}
	}
	assert.Contains(t, names, "game")
}

func TestPinReleasesItsOnlyReference(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	d, err := Parse(bytes.NewReader(sampleDump()))
	require.NoError(t, err)
	img, err := Load(d)
	require.NoError(t, err)

	s, err := interop.Initialize(img.VM.Locator())
	require.NoError(t, err)
	defer s.Destroy()

	before := img.VM.Stats().LiveGlobals
	for range 3 {
		ref, err := img.Pin(s, "net/example/Player", 0)
		require.NoError(t, err)
		require.True(t, ref.Valid())
		require.NoError(t, ref.Release())
	}
	assert.Equal(t, before, img.VM.Stats().LiveGlobals)

	_, err = img.Pin(s, "net/example/Player", 1)
	assert.ErrorContains(t, err, "dump has 1 instances")
	_, err = img.Pin(s, "net/example/Player", -1)
	assert.Error(t, err)
	assert.Equal(t, before, img.VM.Stats().LiveGlobals)
}
