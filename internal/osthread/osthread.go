// Package osthread identifies the calling OS thread. JNI environments and
// local references belong to an OS thread, so callers that use the result
// must hold runtime.LockOSThread for as long as the identity matters.
package osthread

// ID is an OS thread identifier.
type ID uint64

// Current returns the ID of the calling thread.
func Current() ID {
	return current()
}
