package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Descriptor is a parsed JVM type descriptor.
//
// For objects Name is the slashed class name (java/lang/String). For arrays
// Name is the element's class name when the element is an object, otherwise
// the element kind's name, and Elem points at the element descriptor.
type Descriptor struct {
	Kind Kind
	Name string
	Elem *Descriptor
}

// MethodSignature is a parsed method descriptor.
type MethodSignature struct {
	Args   []Descriptor
	Return Descriptor
}

/*
ParseType parses one descriptor starting at *cursor and leaves *cursor on the
first byte it did not consume.

	Z B C S I J F D V     primitive and void
	Lpkg/Name;            object
	[<descriptor>         array

Any other leading byte yields KindUnknown and consumes that byte. An object
type with no closing ';' also yields KindUnknown and consumes the rest of sig;
the signature parsers report it as ErrInvalidSignature instead.
*/
func ParseType(sig string, cursor *int) Descriptor {
	d, err := parseType(sig, cursor)
	if err != nil {
		return Descriptor{Kind: KindUnknown}
	}
	return d
}

func parseType(sig string, cursor *int) (Descriptor, error) {
	if *cursor >= len(sig) {
		return Descriptor{Kind: KindUnknown}, nil
	}

	code := sig[*cursor]
	*cursor++

	switch code {
	case 'L':
		end := strings.IndexByte(sig[*cursor:], ';')
		if end < 0 {
			*cursor = len(sig)
			return Descriptor{}, fmt.Errorf("%w: unterminated object type in %q", ErrInvalidSignature, sig)
		}
		name := sig[*cursor : *cursor+end]
		*cursor += end + 1
		return Descriptor{Kind: KindObject, Name: name}, nil

	case '[':
		elem, err := parseType(sig, cursor)
		if err != nil {
			return Descriptor{}, err
		}
		return ArrayOf(elem), nil

	default:
		return Descriptor{Kind: KindOf(code)}, nil
	}
}

// ParseMethodSignature parses "(args)ret". A missing '(' or ')', a missing
// return type, an unterminated object type, or trailing bytes are errors; no
// partial result is returned.
func ParseMethodSignature(sig string) (MethodSignature, error) {
	if sig == "" || sig[0] != '(' {
		return MethodSignature{}, fmt.Errorf("%w: %q does not start with '('", ErrInvalidSignature, sig)
	}

	var args []Descriptor
	cursor := 1
	for {
		if cursor >= len(sig) {
			return MethodSignature{}, fmt.Errorf("%w: %q is missing ')'", ErrInvalidSignature, sig)
		}
		if sig[cursor] == ')' {
			break
		}
		arg, err := parseType(sig, &cursor)
		if err != nil {
			return MethodSignature{}, err
		}
		args = append(args, arg)
	}
	cursor++ // ')'

	if cursor >= len(sig) {
		return MethodSignature{}, fmt.Errorf("%w: %q has no return type", ErrInvalidSignature, sig)
	}

	ret, err := parseType(sig, &cursor)
	if err != nil {
		return MethodSignature{}, err
	}
	if cursor != len(sig) {
		return MethodSignature{}, fmt.Errorf("%w: unexpected %q after return type in %q",
			ErrInvalidSignature, sig[cursor:], sig)
	}

	return MethodSignature{Args: args, Return: ret}, nil
}

// ParseFieldSignature parses exactly one descriptor.
func ParseFieldSignature(sig string) (Descriptor, error) {
	if sig == "" {
		return Descriptor{}, fmt.Errorf("%w: empty field signature", ErrInvalidSignature)
	}

	cursor := 0
	d, err := parseType(sig, &cursor)
	if err != nil {
		return Descriptor{}, err
	}
	if cursor != len(sig) {
		return Descriptor{}, fmt.Errorf("%w: unexpected %q after field type in %q",
			ErrInvalidSignature, sig[cursor:], sig)
	}
	return d, nil
}

// Object returns the descriptor for a slashed or dotted class name.
func Object(className string) Descriptor {
	return Descriptor{Kind: KindObject, Name: strings.ReplaceAll(className, ".", "/")}
}

// ArrayOf wraps elem in an array descriptor.
func ArrayOf(elem Descriptor) Descriptor {
	d := Descriptor{Kind: KindArray, Elem: &elem}
	if elem.Kind == KindObject {
		d.Name = elem.Name
	} else {
		d.Name = elem.Kind.String()
	}
	return d
}

// Signature prints d back in descriptor form.
func (d Descriptor) Signature() string {
	switch d.Kind {
	case KindObject:
		return "L" + d.Name + ";"
	case KindArray:
		if d.Elem == nil {
			return "["
		}
		return "[" + d.Elem.Signature()
	case KindUnknown:
		return "?"
	default:
		return string(d.Kind.Code())
	}
}

// JavaName renders d the way Java source spells it: java.lang.String, int[][].
func (d Descriptor) JavaName() string {
	switch d.Kind {
	case KindObject:
		return strings.ReplaceAll(d.Name, "/", ".")
	case KindArray:
		if d.Elem == nil {
			return "?[]"
		}
		return d.Elem.JavaName() + "[]"
	case KindUnknown:
		return "?"
	default:
		return d.Kind.String()
	}
}

// Dimensions counts array nesting.
func (d Descriptor) Dimensions() int {
	n := 0
	for cur := &d; cur != nil && cur.Kind == KindArray; cur = cur.Elem {
		n++
	}
	return n
}

// Innermost returns the non-array element at the bottom of an array chain.
func (d Descriptor) Innermost() Descriptor {
	cur := d
	for cur.Kind == KindArray && cur.Elem != nil {
		cur = *cur.Elem
	}
	return cur
}

func (d Descriptor) String() string {
	return d.Signature()
}

func (s MethodSignature) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, a := range s.Args {
		sb.WriteString(a.Signature())
	}
	sb.WriteByte(')')
	sb.WriteString(s.Return.Signature())
	return sb.String()
}

// ArgCount is the number of declared parameters.
func (s MethodSignature) ArgCount() int {
	return len(s.Args)
}

// JavaString renders the signature as "ret (arg, arg)".
func (s MethodSignature) JavaString() string {
	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		args[i] = a.JavaName()
	}
	return fmt.Sprintf("%s (%s)", s.Return.JavaName(), strings.Join(args, ", "))
}
