package interop

import (
	"math"

	"github.com/mabhi256/jinterop/internal/descriptor"
	"github.com/mabhi256/jinterop/internal/host"
)

// holds reports whether a Go result of type T can take values of the declared
// kind. Integral results may be narrower than the kind and float32 may read a
// double; fromValue range-checks those values.
func holds[T any](kind descriptor.Kind) bool {
	var zero T
	switch any(zero).(type) {
	case host.Value:
		return true
	case bool:
		return kind == descriptor.KindBoolean
	case int8, uint16, int16, int32, int64, int:
		return integral(kind)
	case float32, float64:
		return kind == descriptor.KindFloat || kind == descriptor.KindDouble
	case string:
		return kind == descriptor.KindObject
	case *Ref, *String:
		return kind == descriptor.KindObject || kind == descriptor.KindArray
	case *Array:
		return kind == descriptor.KindArray
	}
	return false
}

func integral(kind descriptor.Kind) bool {
	switch kind {
	case descriptor.KindByte, descriptor.KindShort, descriptor.KindChar, descriptor.KindInt, descriptor.KindLong:
		return true
	}
	return false
}

// fromValue converts a call or field result. Reference results are adopted
// as local references of the calling thread; for string results the local
// reference is released after reading.
func fromValue[T any](s *Session, env host.Env, v host.Value, d descriptor.Descriptor) (T, error) {
	var out T
	if !holds[T](d.Kind) {
		return out, raise(ErrTypeMismatch, "convert", "cannot read %s as %T", d, out)
	}

	switch p := any(&out).(type) {
	case *host.Value:
		*p = v
	case *bool:
		*p = v.Bool()
	case *int8:
		i, err := narrow(v, d, descriptor.KindByte)
		*p = int8(i)
		return out, err
	case *uint16:
		i, err := narrow(v, d, descriptor.KindChar)
		*p = uint16(i)
		return out, err
	case *int16:
		i, err := narrow(v, d, descriptor.KindShort)
		*p = int16(i)
		return out, err
	case *int32:
		i, err := narrow(v, d, descriptor.KindInt)
		*p = int32(i)
		return out, err
	case *int64:
		*p, _ = v.Int64()
	case *int:
		i, _ := v.Int64()
		*p = int(i)
	case *float32:
		f, _ := v.Float64()
		if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return out, raise(ErrTypeMismatch, "convert", "%s value %g overflows float32", d, f)
		}
		*p = float32(f)
	case *float64:
		*p, _ = v.Float64()
	case *string:
		if !v.IsNull() {
			*p = env.GetString(v.Object())
			env.DeleteLocalRef(v.Object())
		}
	case **Ref:
		*p = s.adopt(v.Object(), false, false)
	case **String:
		*p = &String{ref: s.adopt(v.Object(), false, false)}
	case **Array:
		*p = &Array{ref: s.adopt(v.Object(), false, false), elem: elemOf(d)}
	}
	return out, nil
}

// narrow reads an integral value into the range of kind, failing when the
// declared kind is wider and the value does not fit.
func narrow(v host.Value, d descriptor.Descriptor, kind descriptor.Kind) (int64, error) {
	i, _ := v.Int64()
	if !fits(i, kind) {
		return 0, raise(ErrTypeMismatch, "convert", "%s value %d overflows %s", d, i, kind)
	}
	return i, nil
}

func elemOf(d descriptor.Descriptor) descriptor.Descriptor {
	if d.Elem != nil {
		return *d.Elem
	}
	return descriptor.Descriptor{Kind: descriptor.KindUnknown}
}

// toValue converts a Go argument to the declared kind. Strings become new
// local references that the caller must release; they are appended to temps.
func toValue(env host.Env, d descriptor.Descriptor, arg any, temps *[]host.Object) (host.Value, error) {
	mismatch := func() (host.Value, error) {
		return host.Value{}, raise(ErrTypeMismatch, "convert", "cannot pass %T as %s", arg, d)
	}

	switch a := arg.(type) {
	case host.Value:
		if a.Kind() == d.Kind || (a.Kind().IsReference() && d.Kind.IsReference()) {
			return a, nil
		}
		return mismatch()
	case nil:
		if d.Kind.IsReference() {
			return host.Zero(d.Kind), nil
		}
		return mismatch()
	case *Ref:
		if !d.Kind.IsReference() {
			return mismatch()
		}
		h, err := a.Handle()
		if err != nil {
			return host.Value{}, err
		}
		return host.FromBits(d.Kind, uint64(h)), nil
	case *String:
		return toValue(env, d, a.Ref(), temps)
	case *Array:
		return toValue(env, d, a.Ref(), temps)
	case string:
		if d.Kind != descriptor.KindObject {
			return mismatch()
		}
		h := env.NewString(a)
		*temps = append(*temps, h)
		return host.Ref(h), nil
	case bool:
		if d.Kind != descriptor.KindBoolean {
			return mismatch()
		}
		return host.Bool(a), nil
	case float32:
		switch d.Kind {
		case descriptor.KindFloat:
			return host.Float(a), nil
		case descriptor.KindDouble:
			return host.Double(float64(a)), nil
		}
		return mismatch()
	case float64:
		switch d.Kind {
		case descriptor.KindDouble:
			return host.Double(a), nil
		case descriptor.KindFloat:
			if float64(float32(a)) == a || math.IsNaN(a) {
				return host.Float(float32(a)), nil
			}
		}
		return mismatch()
	}

	i, ok := integer(arg)
	if !ok {
		return mismatch()
	}
	if !fits(i, d.Kind) {
		return host.Value{}, raise(ErrTypeMismatch, "convert", "%d overflows %s", i, d)
	}
	switch d.Kind {
	case descriptor.KindFloat:
		return host.Float(float32(i)), nil
	case descriptor.KindDouble:
		return host.Double(float64(i)), nil
	default:
		return host.FromBits(d.Kind, uint64(i)), nil
	}
}

func integer(arg any) (int64, bool) {
	switch a := arg.(type) {
	case int:
		return int64(a), true
	case int8:
		return int64(a), true
	case int16:
		return int64(a), true
	case int32:
		return int64(a), true
	case int64:
		return a, true
	case uint8:
		return int64(a), true
	case uint16:
		return int64(a), true
	case uint32:
		return int64(a), true
	}
	return 0, false
}

func fits(i int64, kind descriptor.Kind) bool {
	switch kind {
	case descriptor.KindByte:
		return i >= math.MinInt8 && i <= math.MaxInt8
	case descriptor.KindChar:
		return i >= 0 && i <= math.MaxUint16
	case descriptor.KindShort:
		return i >= math.MinInt16 && i <= math.MaxInt16
	case descriptor.KindInt:
		return i >= math.MinInt32 && i <= math.MaxInt32
	case descriptor.KindLong, descriptor.KindFloat, descriptor.KindDouble:
		return true
	}
	return false
}
