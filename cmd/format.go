package cmd

import (
	"fmt"
	"strings"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/interop"
)

// maxElements caps how many array elements are printed.
const maxElements = 32

// readField loads f and renders the value for the terminal. Strings are
// decoded and primitive arrays listed; other objects print as their class.
func readField(s *interop.Session, f *interop.Field, instance *interop.Ref) (string, error) {
	d := f.Type()
	if !d.Kind.IsReference() {
		v, err := f.Load(instance)
		if err != nil {
			return "", err
		}
		return v.String(), nil
	}

	if d.Kind == descriptor.KindObject && d.Name == "java/lang/String" {
		str, err := interop.Get[*interop.String](f, instance)
		if err != nil {
			return "", err
		}
		if !str.Valid() {
			return "null", nil
		}
		defer str.Release()
		v, err := str.Value()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%q", v), nil
	}

	ref, err := interop.Get[*interop.Ref](f, instance)
	if err != nil {
		return "", err
	}
	if !ref.Valid() {
		return "null", nil
	}
	defer ref.Release()

	if d.Kind == descriptor.KindArray {
		return formatArray(s, ref)
	}
	return formatObject(s, ref)
}

func formatArray(s *interop.Session, ref *interop.Ref) (string, error) {
	arr, err := s.ArrayFrom(ref)
	if err != nil {
		return "", err
	}
	n, err := arr.Len()
	if err != nil {
		return "", err
	}
	if arr.Elem().Kind.IsReference() {
		return fmt.Sprintf("%s[%d]", arr.Elem().JavaName(), n), nil
	}

	values, err := arr.Values()
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, min(len(values), maxElements)+1)
	for i, v := range values {
		if i == maxElements {
			parts = append(parts, fmt.Sprintf("... %d more", len(values)-maxElements))
			break
		}
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s[%d] {%s}", arr.Elem().JavaName(), n, strings.Join(parts, ", ")), nil
}

func formatObject(s *interop.Session, ref *interop.Ref) (string, error) {
	cls, err := ref.Class()
	if err != nil {
		return "", err
	}
	defer cls.Release()

	handle, err := cls.Handle()
	if err != nil {
		return "", err
	}
	full, _, err := s.ClassName(handle)
	if err != nil {
		return "", err
	}
	return "instance of " + full, nil
}

// numeric reports a primitive value as float64 for plotting.
func numeric(v host.Value) (float64, bool) {
	if i, ok := v.Int64(); ok {
		return float64(i), true
	}
	return v.Float64()
}
