package interop

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

var (
	ErrCrossThread      = errors.New("cross-thread local reference")
	ErrInvalidReference = errors.New("invalid reference")
	ErrUnsupportedRef   = errors.New("unsupported reference type")
	ErrArgCount         = errors.New("argument count mismatch")
	ErrNoInstance       = errors.New("no instance object")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrNotAttached      = errors.New("thread not attached")
	ErrNoRuntime        = errors.New("no jvm found")
	ErrNoTooling        = errors.New("no jvmti environment")
	ErrNoClassLoader    = errors.New("no thread class loader")
	ErrJavaException    = errors.New("java exception")
	ErrIndexOutOfRange  = errors.New("index out of range")
)

// Error is a reportable failure: a broken assumption about the runtime or a
// misuse of a handle. It records where it was raised.
type Error struct {
	Op   string
	Msg  string
	File string
	Line int
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.File == "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s: %s (%s:%d)", e.Op, msg, e.File, e.Line)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func raise(err error, op, format string, args ...any) *Error {
	e := &Error{Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
	if _, file, line, ok := runtime.Caller(1); ok {
		e.File = filepath.Base(file)
		e.Line = line
	}
	return e
}
