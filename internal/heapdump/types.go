package heapdump

import (
	"time"

	"github.com/mabhi256/jinterop/internal/descriptor"
)

// ID is an object or string identifier from the dump.
type ID uint64

// Top-level record tags.
const (
	tagUTF8        uint8 = 0x01
	tagLoadClass   uint8 = 0x02
	tagFrame       uint8 = 0x04
	tagTrace       uint8 = 0x05
	tagStartThread uint8 = 0x0A
	tagHeapDump    uint8 = 0x0C
	tagHeapSegment uint8 = 0x1C
	tagSegmentEnd  uint8 = 0x2C
)

// Heap dump sub-record tags.
const (
	rootUnknown     uint8 = 0xFF
	rootJNIGlobal   uint8 = 0x01
	rootJNILocal    uint8 = 0x02
	rootJavaFrame   uint8 = 0x03
	rootNativeStack uint8 = 0x04
	rootStickyClass uint8 = 0x05
	rootThreadBlock uint8 = 0x06
	rootMonitorUsed uint8 = 0x07
	rootThreadObj   uint8 = 0x08

	subClassDump     uint8 = 0x20
	subInstanceDump  uint8 = 0x21
	subObjArrayDump  uint8 = 0x22
	subPrimArrayDump uint8 = 0x23
)

// FieldType is the basic type code used for fields and primitive arrays.
type FieldType uint8

const (
	TypeObject  FieldType = 0x02
	TypeBoolean FieldType = 0x04
	TypeChar    FieldType = 0x05
	TypeFloat   FieldType = 0x06
	TypeDouble  FieldType = 0x07
	TypeByte    FieldType = 0x08
	TypeShort   FieldType = 0x09
	TypeInt     FieldType = 0x0A
	TypeLong    FieldType = 0x0B
)

var fieldKinds = map[FieldType]descriptor.Kind{
	TypeObject:  descriptor.KindObject,
	TypeBoolean: descriptor.KindBoolean,
	TypeChar:    descriptor.KindChar,
	TypeFloat:   descriptor.KindFloat,
	TypeDouble:  descriptor.KindDouble,
	TypeByte:    descriptor.KindByte,
	TypeShort:   descriptor.KindShort,
	TypeInt:     descriptor.KindInt,
	TypeLong:    descriptor.KindLong,
}

// Kind maps the type code to a descriptor kind, or KindUnknown.
func (t FieldType) Kind() descriptor.Kind {
	if k, ok := fieldKinds[t]; ok {
		return k
	}
	return descriptor.KindUnknown
}

// Size is the encoded width of a value of this type.
func (t FieldType) Size(idSize int) int {
	if t == TypeObject {
		return idSize
	}
	return t.Kind().Size()
}

// Signature is the field descriptor used when the type is loaded. Object
// fields lose their declared type in a dump.
func (t FieldType) Signature() string {
	if t == TypeObject {
		return "Ljava/lang/Object;"
	}
	return string(t.Kind().Code())
}

type Header struct {
	Format    string
	IDSize    int
	Timestamp time.Time
}

// Field is an instance field declaration.
type Field struct {
	Name string
	Type FieldType
}

// Static is a static field and its value. Object values hold an ID.
type Static struct {
	Field
	Value uint64
}

type ClassDump struct {
	ID           ID
	Super        ID
	Loader       ID
	InstanceSize uint32
	Statics      []Static
	Fields       []Field
}

type Instance struct {
	ID    ID
	Class ID
	// Data holds field values of the class, then its superclass, and so on.
	Data []byte
}

type ObjectArray struct {
	ID       ID
	Class    ID
	Elements []ID
}

type PrimitiveArray struct {
	ID   ID
	Type FieldType
	Len  int
	Data []byte
}

// Thread is a ROOT_THREAD_OBJ entry.
type Thread struct {
	Object ID
	Serial uint32
}

// Dump is the parsed content of an HPROF file.
type Dump struct {
	Header Header

	Strings    map[ID]string
	ClassNames map[ID]string

	Classes         map[ID]*ClassDump
	Instances       map[ID]*Instance
	ObjectArrays    map[ID]*ObjectArray
	PrimitiveArrays map[ID]*PrimitiveArray
	Threads         []Thread

	// Roots counts GC roots by sub-record tag.
	Roots map[uint8]int

	// classOrder keeps CLASS_DUMP records in file order.
	classOrder []ID
}

// ClassName is the slashed name of a class object, or "".
func (d *Dump) ClassName(id ID) string {
	return d.ClassNames[id]
}
