package interop

import "github.com/mabhi256/jinterop/internal/host"

// String is a java.lang.String reference.
type String struct {
	ref *Ref
}

// NewString creates a Java string as a local reference of the calling thread.
func (s *Session) NewString(v string) (*String, error) {
	env, err := s.Env()
	if err != nil {
		return nil, err
	}
	h := env.NewString(v)
	if err := s.takeException(env); err != nil {
		return nil, err
	}
	return &String{ref: s.adopt(h, false, false)}, nil
}

// AsString views r as a string. r keeps ownership of the reference.
func AsString(r *Ref) *String {
	return &String{ref: r}
}

func (str *String) Ref() *Ref {
	if str == nil {
		return nil
	}
	return str.ref
}

func (str *String) Valid() bool {
	return str != nil && str.ref.Valid()
}

// String reads the value. A null string reads as "".
func (str *String) String() string {
	v, _ := str.Value()
	return v
}

// Value reads the string, reporting thread misuse.
func (str *String) Value() (string, error) {
	env, h, err := str.handle()
	if err != nil || h == 0 {
		return "", err
	}
	return env.GetString(h), nil
}

// Len is the length in UTF-16 code units.
func (str *String) Len() (int, error) {
	env, h, err := str.handle()
	if err != nil || h == 0 {
		return 0, err
	}
	return env.GetStringLength(h), nil
}

// UTFLen is the length in modified UTF-8 bytes.
func (str *String) UTFLen() (int, error) {
	env, h, err := str.handle()
	if err != nil || h == 0 {
		return 0, err
	}
	return env.GetStringUTFLength(h), nil
}

func (str *String) Empty() bool {
	n, _ := str.Len()
	return n == 0
}

// Equal compares by value, not identity.
func (str *String) Equal(other *String) bool {
	a, err := str.Value()
	if err != nil {
		return false
	}
	b, err := other.Value()
	if err != nil {
		return false
	}
	return a == b && str.Valid() == other.Valid()
}

func (str *String) Release() error {
	return str.Ref().Release()
}

func (str *String) handle() (host.Env, host.Object, error) {
	if !str.Valid() {
		return nil, 0, nil
	}
	h, err := str.ref.Handle()
	if err != nil {
		return nil, 0, err
	}
	env, err := str.ref.s.Env()
	if err != nil {
		return nil, 0, err
	}
	return env, h, nil
}
