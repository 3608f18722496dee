package descriptor

import "fmt"

// Kind is the closed set of value shapes a JVM type descriptor can name.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindObject
	KindArray
	KindVoid
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindByte:
		return "byte"
	case KindChar:
		return "char"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindVoid:
		return "void"
	case KindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Code returns the single-character descriptor code for k, or 0 for unknown.
func (k Kind) Code() byte {
	switch k {
	case KindBoolean:
		return 'Z'
	case KindByte:
		return 'B'
	case KindChar:
		return 'C'
	case KindShort:
		return 'S'
	case KindInt:
		return 'I'
	case KindLong:
		return 'J'
	case KindFloat:
		return 'F'
	case KindDouble:
		return 'D'
	case KindObject:
		return 'L'
	case KindArray:
		return '['
	case KindVoid:
		return 'V'
	default:
		return 0
	}
}

// KindOf maps a primitive or void descriptor code to its kind.
func KindOf(code byte) Kind {
	switch code {
	case 'Z':
		return KindBoolean
	case 'B':
		return KindByte
	case 'C':
		return KindChar
	case 'S':
		return KindShort
	case 'I':
		return KindInt
	case 'J':
		return KindLong
	case 'F':
		return KindFloat
	case 'D':
		return KindDouble
	case 'V':
		return KindVoid
	default:
		return KindUnknown
	}
}

func (k Kind) IsPrimitive() bool {
	return k >= KindBoolean && k <= KindDouble
}

// IsReference reports whether values of k are object handles.
func (k Kind) IsReference() bool {
	return k == KindObject || k == KindArray
}

// Size is the storage width in bytes of a primitive kind; references report 0.
func (k Kind) Size() int {
	switch k {
	case KindBoolean, KindByte:
		return 1
	case KindChar, KindShort:
		return 2
	case KindInt, KindFloat:
		return 4
	case KindLong, KindDouble:
		return 8
	default:
		return 0
	}
}

// Box is the wrapper class for a primitive kind, in slashed form.
func (k Kind) Box() string {
	switch k {
	case KindBoolean:
		return "java/lang/Boolean"
	case KindByte:
		return "java/lang/Byte"
	case KindChar:
		return "java/lang/Character"
	case KindShort:
		return "java/lang/Short"
	case KindInt:
		return "java/lang/Integer"
	case KindLong:
		return "java/lang/Long"
	case KindFloat:
		return "java/lang/Float"
	case KindDouble:
		return "java/lang/Double"
	default:
		return ""
	}
}
