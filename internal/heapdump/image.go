package heapdump

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/host/memvm"
	"github.com/mabhi256/jinterop/internal/interop"
)

const (
	stringClass = "java/lang/String"
)

// Image is a dump loaded into a read-only memvm.
type Image struct {
	VM   *memvm.VM
	Dump *Dump

	objects map[ID]*memvm.Instance
	classes map[ID]*memvm.Class
	log     *slog.Logger

	utf16   encoding.Encoding
	skipped int
}

type Option func(*Image)

// WithLogger sets the logger for load diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(img *Image) { img.log = l }
}

// WithBigEndianStrings decodes compact UTF-16 strings as big-endian. Dumps
// taken on little-endian machines, the common case, need no option.
func WithBigEndianStrings() Option {
	return func(img *Image) {
		img.utf16 = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	}
}

// Open parses and loads the dump at path.
func Open(path string, opts ...Option) (*Image, error) {
	d, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Load(d, append([]Option{withName(filepath.Base(path))}, opts...)...)
}

func withName(name string) Option {
	return func(img *Image) { img.VM = memvm.New(memvm.ReadOnly(), memvm.WithName(name)) }
}

// Load builds the runtime image of d.
func Load(d *Dump, opts ...Option) (*Image, error) {
	img := &Image{
		Dump:    d,
		objects: make(map[ID]*memvm.Instance),
		classes: make(map[ID]*memvm.Class),
		log:     slog.Default(),
		utf16:   unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	}
	for _, opt := range opts {
		opt(img)
	}
	if img.VM == nil {
		img.VM = memvm.New(memvm.ReadOnly(), memvm.WithName("heap dump"))
	}

	for _, id := range d.classOrder {
		if _, err := img.defineClass(id, nil); err != nil {
			return nil, err
		}
	}

	img.allocateArrays()
	img.allocateStrings()
	img.allocateInstances()
	img.allocateThreads()

	img.fillInstances()
	img.fillArrays()
	img.fillStatics()

	if img.skipped > 0 {
		img.log.Warn("heap dump objects skipped", "count", img.skipped)
	}
	img.log.Debug("heap dump loaded", "classes", len(img.classes), "objects", len(img.objects),
		"threads", len(d.Threads))
	return img, nil
}

// Object is the loaded instance for a dump ID.
func (img *Image) Object(id ID) *memvm.Instance {
	return img.objects[id]
}

// Class is the loaded class for a class object ID.
func (img *Image) Class(id ID) *memvm.Class {
	return img.classes[id]
}

// Pin hands the n-th instance of class name to s as a global Ref. The Ref
// owns the only reference Pin creates.
func (img *Image) Pin(s *interop.Session, name string, n int) (*interop.Ref, error) {
	insts := img.Instances(name)
	if n < 0 || n >= len(insts) {
		return nil, fmt.Errorf("instance %d of %s: dump has %d instances", n, name, len(insts))
	}
	return s.AdoptGlobal(img.VM.Global(insts[n]))
}

// Instances lists the loaded objects whose class is exactly name, in object
// ID order.
func (img *Image) Instances(name string) []*memvm.Instance {
	var ids []ID
	for id, inst := range img.objects {
		if inst.Class().Name == name {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	out := make([]*memvm.Instance, len(ids))
	for i, id := range ids {
		out[i] = img.objects[id]
	}
	return out
}

func slashed(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

func (img *Image) defineClass(id ID, visiting map[ID]bool) (*memvm.Class, error) {
	if cls, ok := img.classes[id]; ok {
		return cls, nil
	}
	cd, ok := img.Dump.Classes[id]
	if !ok {
		return nil, nil
	}
	if visiting == nil {
		visiting = make(map[ID]bool)
	}
	if visiting[id] {
		return nil, fmt.Errorf("class 0x%x is its own superclass", id)
	}
	visiting[id] = true

	name := img.Dump.ClassName(id)
	if name == "" {
		name = fmt.Sprintf("unnamed/Class%x", id)
	}

	super := ""
	if cd.Super != 0 {
		sc, err := img.defineClass(cd.Super, visiting)
		if err != nil {
			return nil, err
		}
		if sc != nil {
			super = sc.Name
		}
	}
	if super == "" && name != "java/lang/Object" {
		super = "java/lang/Object"
	}

	cls := img.VM.DefineClass(name, super)
	for _, f := range cd.Fields {
		cls.AddField(f.Name, f.Type.Signature(), 0)
	}
	for _, s := range cd.Statics {
		cls.AddField(s.Name, s.Type.Signature(), host.AccStatic)
	}
	img.classes[id] = cls
	return cls, nil
}

func (img *Image) allocateArrays() {
	for id, arr := range img.Dump.PrimitiveArrays {
		img.objects[id] = img.VM.NewPrimitiveArray(arr.Type.Kind(), arr.values())
	}

	for id, arr := range img.Dump.ObjectArrays {
		var elem *memvm.Class
		if name := img.Dump.ClassName(arr.Class); strings.HasPrefix(name, "[") {
			if d, err := descriptor.ParseFieldSignature(name); err == nil && d.Elem != nil {
				if d.Elem.Kind == descriptor.KindObject {
					elem = img.VM.Class(d.Elem.Name)
				} else {
					elem = img.VM.Class(d.Elem.Signature())
				}
			}
		}
		img.objects[id] = img.VM.NewObjectArray(elem, make([]*memvm.Instance, len(arr.Elements)))
	}
}

func (img *Image) allocateStrings() {
	for id, inst := range img.Dump.Instances {
		if img.Dump.ClassName(inst.Class) != stringClass {
			continue
		}
		img.objects[id] = img.VM.NewStringInstance(img.decodeString(inst))
	}
}

func (img *Image) allocateInstances() {
	threads := make(map[ID]bool, len(img.Dump.Threads))
	for _, t := range img.Dump.Threads {
		threads[t.Object] = true
	}

	for id, inst := range img.Dump.Instances {
		if _, done := img.objects[id]; done || threads[id] {
			continue
		}
		cls := img.classes[inst.Class]
		if cls == nil {
			img.skipped++
			continue
		}
		img.objects[id] = img.VM.NewInstance(cls)
	}
}

// allocateThreads registers each thread root with the runtime so tooling
// sees the thread list of the dumped process.
func (img *Image) allocateThreads() {
	for _, t := range img.Dump.Threads {
		inst, ok := img.Dump.Instances[t.Object]
		if !ok {
			img.skipped++
			continue
		}

		name := ""
		if v, ok := img.Dump.fieldValue(inst, "name"); ok {
			if str := img.objects[ID(v)]; str != nil {
				name, _ = str.StringValue()
			}
		}

		daemon, ok := img.Dump.fieldValue(inst, "daemon")
		if !ok {
			// Newer JDKs keep thread state in a holder object.
			if holder, found := img.Dump.fieldValue(inst, "holder"); found {
				if h, ok := img.Dump.Instances[ID(holder)]; ok {
					daemon, _ = img.Dump.fieldValue(h, "daemon")
				}
			}
		}

		var loader *memvm.Instance
		if v, ok := img.Dump.fieldValue(inst, "contextClassLoader"); ok {
			loader = img.objects[ID(v)]
		}
		img.objects[t.Object] = img.VM.AddThread(name, daemon != 0, loader)
	}
}

func (img *Image) fillInstances() {
	for id, inst := range img.Dump.Instances {
		obj := img.objects[id]
		if obj == nil {
			continue
		}
		if _, isStr := obj.StringValue(); isStr {
			continue
		}

		seen := make(map[string]bool)
		img.Dump.eachField(inst, func(f Field, v uint64) {
			// Subclass fields come first and shadow inherited ones.
			if seen[f.Name] {
				return
			}
			seen[f.Name] = true
			if f.Type == TypeObject {
				if ref := img.objects[ID(v)]; ref != nil {
					obj.SetRef(f.Name, ref)
				}
				return
			}
			obj.Set(f.Name, host.FromBits(f.Type.Kind(), v))
		})
	}
}

func (img *Image) fillArrays() {
	for id, arr := range img.Dump.ObjectArrays {
		obj := img.objects[id]
		for i, elem := range arr.Elements {
			if ref := img.objects[elem]; ref != nil {
				obj.SetElementRef(i, ref)
			}
		}
	}
}

func (img *Image) fillStatics() {
	for id, cd := range img.Dump.Classes {
		cls := img.classes[id]
		if cls == nil {
			continue
		}
		for _, s := range cd.Statics {
			if s.Type == TypeObject {
				if ref := img.objects[ID(s.Value)]; ref != nil {
					cls.SetStaticRef(s.Name, ref)
				}
				continue
			}
			cls.SetStatic(s.Name, host.FromBits(s.Type.Kind(), s.Value))
		}
	}
}

// decodeString reads a String instance's backing array: char[] before JDK 9,
// byte[] with a coder of 0 (Latin-1) or 1 (UTF-16) after.
func (img *Image) decodeString(inst *Instance) string {
	v, ok := img.Dump.fieldValue(inst, "value")
	if !ok {
		return ""
	}
	arr, ok := img.Dump.PrimitiveArrays[ID(v)]
	if !ok {
		return ""
	}

	var dec *encoding.Decoder
	switch arr.Type {
	case TypeChar:
		dec = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	case TypeByte:
		if coder, _ := img.Dump.fieldValue(inst, "coder"); coder == 1 {
			dec = img.utf16.NewDecoder()
		} else {
			dec = charmap.ISO8859_1.NewDecoder()
		}
	default:
		return ""
	}

	out, err := dec.Bytes(arr.Data)
	if err != nil {
		img.log.Debug("undecodable string", "id", fmt.Sprintf("0x%x", inst.ID), "err", err)
		return ""
	}
	return string(out)
}

// values decodes the big-endian elements of a primitive array.
func (arr *PrimitiveArray) values() []host.Value {
	kind := arr.Type.Kind()
	size := kind.Size()
	vals := make([]host.Value, arr.Len)
	for i := range vals {
		vals[i] = host.FromBits(kind, beUint(arr.Data[i*size:(i+1)*size]))
	}
	return vals
}

func beUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	case 8:
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

// eachField decodes the instance data along the class chain.
func (d *Dump) eachField(inst *Instance, fn func(Field, uint64)) {
	data := inst.Data
	idSize := d.Header.IDSize
	for cid := inst.Class; cid != 0; {
		cd, ok := d.Classes[cid]
		if !ok {
			return
		}
		for _, f := range cd.Fields {
			size := f.Type.Size(idSize)
			if size == 0 || len(data) < size {
				return
			}
			fn(f, beUint(data[:size]))
			data = data[size:]
		}
		cid = cd.Super
	}
}

// fieldValue is the raw value of the first field called name.
func (d *Dump) fieldValue(inst *Instance, name string) (uint64, bool) {
	var (
		val   uint64
		found bool
	)
	d.eachField(inst, func(f Field, v uint64) {
		if !found && f.Name == name {
			val, found = v, true
		}
	})
	return val, found
}
