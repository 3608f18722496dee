// Package jni is the host backend for a real JVM, reached through the JNI
// invocation interface and JVMTI. It is built only with the jni tag and cgo;
// other builds get a stub whose calls fail with ErrUnavailable.
//
// Building it needs the JDK headers and libjvm, for example:
//
//	CGO_CFLAGS="-I$JAVA_HOME/include -I$JAVA_HOME/include/linux" \
//	CGO_LDFLAGS="-L$JAVA_HOME/lib/server -Wl,-rpath,$JAVA_HOME/lib/server" \
//	go build -tags jni .
package jni

import (
	"errors"
	"fmt"

	"github.com/mabhi256/jinterop/internal/host"
)

var ErrUnavailable = errors.New("jni backend not built: rebuild with -tags jni and cgo enabled")

// JNI return codes.
const (
	jniOK       = 0
	jniErr      = -1
	jniDetached = -2
	jniVersion  = -3
	jniNoMemory = -4
	jniExists   = -5
	jniBadArgs  = -6
)

// jniError maps an invocation interface return code.
func jniError(op string, rc int) error {
	switch rc {
	case jniOK:
		return nil
	case jniDetached:
		return fmt.Errorf("%s: %w", op, host.ErrDetached)
	case jniVersion:
		return fmt.Errorf("%s: %w", op, host.ErrVersion)
	case jniNoMemory:
		return fmt.Errorf("%s: out of memory", op)
	case jniExists:
		return fmt.Errorf("%s: a VM already exists in this process", op)
	case jniBadArgs:
		return fmt.Errorf("%s: invalid arguments", op)
	default:
		return fmt.Errorf("%s: JNI error %d", op, rc)
	}
}

var toolingErrors = map[int]string{
	10:  "INVALID_THREAD",
	15:  "THREAD_NOT_ALIVE",
	20:  "INVALID_OBJECT",
	21:  "INVALID_CLASS",
	22:  "CLASS_NOT_PREPARED",
	23:  "INVALID_METHODID",
	25:  "INVALID_FIELDID",
	98:  "NOT_AVAILABLE",
	99:  "MUST_POSSESS_CAPABILITY",
	100: "NULL_POINTER",
	101: "ABSENT_INFORMATION",
	103: "ILLEGAL_ARGUMENT",
	110: "OUT_OF_MEMORY",
	111: "ACCESS_DENIED",
	112: "WRONG_PHASE",
	113: "INTERNAL",
	115: "UNATTACHED_THREAD",
	116: "INVALID_ENVIRONMENT",
}

// ToolingError is a failed JVMTI call.
type ToolingError struct {
	Op   string
	Code int
}

func (e *ToolingError) Error() string {
	name, ok := toolingErrors[e.Code]
	if !ok {
		name = "UNKNOWN"
	}
	return fmt.Sprintf("%s: JVMTI_ERROR_%s (%d)", e.Op, name, e.Code)
}

// Unwrap lets callers match an unattached thread as host.ErrDetached.
func (e *ToolingError) Unwrap() error {
	if e.Code == 115 {
		return host.ErrDetached
	}
	return nil
}

func toolingError(op string, code int) error {
	if code == 0 {
		return nil
	}
	return &ToolingError{Op: op, Code: code}
}
