package host

import (
	"fmt"
	"math"

	"github.com/mabhi256/jinterop/internal/descriptor"
)

// Value is a jvalue tagged with its descriptor kind. Primitives live in the
// low bits of bits; object and array kinds carry obj.
type Value struct {
	kind descriptor.Kind
	bits uint64
	obj  Object
}

func Bool(b bool) Value {
	var bits uint64
	if b {
		bits = 1
	}
	return Value{kind: descriptor.KindBoolean, bits: bits}
}

func Byte(b int8) Value { return Value{kind: descriptor.KindByte, bits: uint64(uint8(b))} }
func Char(c uint16) Value { return Value{kind: descriptor.KindChar, bits: uint64(c)} }
func Short(s int16) Value { return Value{kind: descriptor.KindShort, bits: uint64(uint16(s))} }
func Int(i int32) Value { return Value{kind: descriptor.KindInt, bits: uint64(uint32(i))} }
func Long(l int64) Value { return Value{kind: descriptor.KindLong, bits: uint64(l)} }
func Float(f float32) Value { return Value{kind: descriptor.KindFloat, bits: uint64(math.Float32bits(f))} }
func Double(d float64) Value {
	return Value{kind: descriptor.KindDouble, bits: math.Float64bits(d)}
}

// Ref wraps an object handle.
func Ref(obj Object) Value { return Value{kind: descriptor.KindObject, obj: obj} }

// Array wraps an array handle.
func Array(obj Object) Value { return Value{kind: descriptor.KindArray, obj: obj} }

func Void() Value { return Value{kind: descriptor.KindVoid} }

// Zero is the default value for kind.
func Zero(kind descriptor.Kind) Value { return Value{kind: kind} }

// FromBits rebuilds a value from raw jvalue bits.
func FromBits(kind descriptor.Kind, bits uint64) Value {
	if kind.IsReference() {
		return Value{kind: kind, obj: Object(bits)}
	}
	switch kind.Size() {
	case 1:
		bits &= 0xff
	case 2:
		bits &= 0xffff
	case 4:
		bits &= 0xffffffff
	}
	return Value{kind: kind, bits: bits}
}

func (v Value) Kind() descriptor.Kind { return v.kind }

// Bits is the raw jvalue payload.
func (v Value) Bits() uint64 {
	if v.kind.IsReference() {
		return uint64(v.obj)
	}
	return v.bits
}

func (v Value) Bool() bool { return v.bits != 0 }
func (v Value) Byte() int8 { return int8(uint8(v.bits)) }
func (v Value) Char() uint16 { return uint16(v.bits) }
func (v Value) Short() int16 { return int16(uint16(v.bits)) }
func (v Value) Int() int32 { return int32(uint32(v.bits)) }
func (v Value) Long() int64 { return int64(v.bits) }
func (v Value) Float() float32 { return math.Float32frombits(uint32(v.bits)) }
func (v Value) Double() float64 { return math.Float64frombits(v.bits) }
func (v Value) Object() Object { return v.obj }
func (v Value) IsNull() bool { return v.kind.IsReference() && v.obj == 0 }
func (v Value) IsVoid() bool { return v.kind == descriptor.KindVoid }
func (v Value) IsUnknown() bool { return v.kind == descriptor.KindUnknown }

// Int64 widens any integral kind (boolean and char included) to int64.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case descriptor.KindBoolean:
		if v.Bool() {
			return 1, true
		}
		return 0, true
	case descriptor.KindByte:
		return int64(v.Byte()), true
	case descriptor.KindChar:
		return int64(v.Char()), true
	case descriptor.KindShort:
		return int64(v.Short()), true
	case descriptor.KindInt:
		return int64(v.Int()), true
	case descriptor.KindLong:
		return v.Long(), true
	default:
		return 0, false
	}
}

// Float64 widens float and double.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case descriptor.KindFloat:
		return float64(v.Float()), true
	case descriptor.KindDouble:
		return v.Double(), true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.kind {
	case descriptor.KindBoolean:
		return fmt.Sprintf("%t", v.Bool())
	case descriptor.KindByte:
		return fmt.Sprintf("%d", v.Byte())
	case descriptor.KindChar:
		return fmt.Sprintf("%q", rune(v.Char()))
	case descriptor.KindShort:
		return fmt.Sprintf("%d", v.Short())
	case descriptor.KindInt:
		return fmt.Sprintf("%d", v.Int())
	case descriptor.KindLong:
		return fmt.Sprintf("%d", v.Long())
	case descriptor.KindFloat:
		return fmt.Sprintf("%g", v.Float())
	case descriptor.KindDouble:
		return fmt.Sprintf("%g", v.Double())
	case descriptor.KindObject, descriptor.KindArray:
		if v.obj == 0 {
			return "null"
		}
		return fmt.Sprintf("%s@0x%x", v.kind, uintptr(v.obj))
	case descriptor.KindVoid:
		return "void"
	default:
		return "?"
	}
}
