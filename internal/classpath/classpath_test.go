package classpath

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/interop"
)

type member struct {
	flags      uint16
	name, desc string
}

// classFile assembles a minimal class file without attributes.
func classFile(name, super string, flags uint16, ifaces []string, fields, methods []member) []byte {
	var pool bytes.Buffer
	count := uint16(1)
	utf8 := map[string]uint16{}
	classes := map[string]uint16{}

	u2 := func(b *bytes.Buffer, v uint16) { _ = binary.Write(b, binary.BigEndian, v) }
	str := func(s string) uint16 {
		if i, ok := utf8[s]; ok {
			return i
		}
		pool.WriteByte(1)
		u2(&pool, uint16(len(s)))
		pool.WriteString(s)
		utf8[s] = count
		count++
		return utf8[s]
	}
	class := func(s string) uint16 {
		if i, ok := classes[s]; ok {
			return i
		}
		n := str(s)
		pool.WriteByte(7)
		u2(&pool, n)
		classes[s] = count
		count++
		return classes[s]
	}

	var body bytes.Buffer
	u2(&body, flags)
	u2(&body, class(name))
	u2(&body, class(super))
	u2(&body, uint16(len(ifaces)))
	for _, i := range ifaces {
		u2(&body, class(i))
	}
	for _, group := range [][]member{fields, methods} {
		u2(&body, uint16(len(group)))
		for _, m := range group {
			u2(&body, m.flags)
			u2(&body, str(m.name))
			u2(&body, str(m.desc))
			u2(&body, 0)
		}
	}
	u2(&body, 0)

	var out bytes.Buffer
	out.Write([]byte{0xCA, 0xFE, 0xBA, 0xBE})
	u2(&out, 0)
	u2(&out, 52)
	u2(&out, count)
	out.Write(pool.Bytes())
	out.Write(body.Bytes())
	return out.Bytes()
}

func playerClass() []byte {
	return classFile("net/example/Player", "java/lang/Object", 0x0021,
		[]string{"net/example/Living"},
		[]member{
			{0x0002, "health", "F"},
			{0x0019, "MAX", "I"},
		},
		[]member{
			{0x0001, "damage", "(F)V"},
			{0x0009, "spawn", "()Lnet/example/Player;"},
		})
}

func livingClass() []byte {
	return classFile("net/example/Living", "java/lang/Object", 0x0601, nil, nil,
		[]member{{0x0401, "alive", "()Z"}})
}

func TestParseClass(t *testing.T) {
	c, err := ParseClass(bytes.NewReader(playerClass()))
	require.NoError(t, err)

	assert.Equal(t, "net/example/Player", c.Name)
	assert.Equal(t, "java/lang/Object", c.Super)
	assert.Equal(t, []string{"net/example/Living"}, c.Interfaces)
	assert.False(t, c.Interface)
	assert.Equal(t, host.AccPublic, c.Modifiers&host.AccPublic)

	require.Len(t, c.Fields, 2)
	assert.Equal(t, Member{Name: "health", Descriptor: "F", Modifiers: host.AccPrivate}, c.Fields[0])
	assert.Equal(t, host.AccPublic|host.AccStatic|host.AccFinal, c.Fields[1].Modifiers)

	require.Len(t, c.Methods, 2)
	assert.Equal(t, "(F)V", c.Methods[0].Descriptor)

	iface, err := ParseClass(bytes.NewReader(livingClass()))
	require.NoError(t, err)
	assert.True(t, iface.Interface)
	assert.Equal(t, host.AccPublic|host.AccAbstract, iface.Methods[0].Modifiers)

	_, err = ParseClass(bytes.NewReader([]byte("not a class")))
	assert.Error(t, err)
}

// layout writes Player under a directory and Living into a jar.
func layout(t *testing.T) (dir, jar string) {
	t.Helper()
	root := t.TempDir()

	dir = filepath.Join(root, "classes")
	pkg := filepath.Join(dir, "net", "example")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "Player.class"), playerClass(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "notes.txt"), []byte("ignored"), 0o644))

	jar = filepath.Join(root, "api.jar")
	f, err := os.Create(jar)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, data := range map[string][]byte{
		"META-INF/MANIFEST.MF":                  []byte("Manifest-Version: 1.0\n"),
		"META-INF/versions/9/module-info.class": []byte("garbage"),
		"module-info.class":                     []byte("garbage"),
		"net/example/Living.class":              livingClass(),
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return dir, jar
}

func TestScan(t *testing.T) {
	dir, jar := layout(t)

	classes, err := Scan(context.Background(), []string{dir, jar})
	require.NoError(t, err)
	require.Len(t, classes, 2)

	assert.Equal(t, "net/example/Living", classes[0].Name)
	assert.Equal(t, jar, classes[0].Source)
	assert.Equal(t, "net/example/Player", classes[1].Name)
	assert.Equal(t, dir, classes[1].Source)
}

func TestScanErrors(t *testing.T) {
	_, err := Scan(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "Bad.class")
	require.NoError(t, os.WriteFile(bad, []byte{0xCA, 0xFE}, 0o644))
	_, err = Scan(context.Background(), []string{bad})
	assert.ErrorContains(t, err, "Bad.class")

	txt := filepath.Join(t.TempDir(), "readme.txt")
	require.NoError(t, os.WriteFile(txt, nil, 0o644))
	_, err = Scan(context.Background(), []string{txt})
	assert.ErrorContains(t, err, "not a directory, archive or class file")
}

func TestOpen(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	dir, jar := layout(t)
	img, err := Open(context.Background(), []string{dir, jar})
	require.NoError(t, err)
	assert.Equal(t, "classpath", img.VM.String())

	living := img.VM.Class("net/example/Living")
	require.NotNil(t, living)
	assert.True(t, living.Interface)
	player := img.VM.Class("net/example/Player")
	require.NotNil(t, player)
	require.Len(t, player.Interfaces, 1)
	assert.Same(t, living, player.Interfaces[0])

	s, err := interop.Initialize(img.VM.Locator())
	require.NoError(t, err)
	defer s.Destroy()

	cls, err := s.Directory().ForName(context.Background(), "net/example/Player")
	require.NoError(t, err)
	assert.True(t, cls.Field("MAX", "I").IsStatic())
	assert.NotNil(t, cls.Method("damage", "(F)V"))

	spawn := cls.Method("spawn", "()Lnet/example/Player;")
	require.NotNil(t, spawn)
	_, err = spawn.Invoke(nil)
	assert.ErrorIs(t, err, interop.ErrJavaException)
}
