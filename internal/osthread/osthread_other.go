//go:build !linux && !windows

package osthread

import (
	"runtime"
	"sync"
)

var stackBufPool = sync.Pool{
	New: func() any {
		return make([]byte, 64)
	},
}

// No portable thread id here, so fall back to the goroutine id. Locked
// goroutines map 1:1 onto threads, which is all the callers rely on.
func current() ID {
	buf := stackBufPool.Get().([]byte)
	defer func() {
		//lint:ignore SA6002 []byte is pointer-like
		stackBufPool.Put(buf)
	}()
	n := runtime.Stack(buf, false)
	return parseGoroutineID(buf[:n])
}

// parseGoroutineID reads X from "goroutine X [running]:".
func parseGoroutineID(stack []byte) ID {
	const prefix = "goroutine "
	if len(stack) < len(prefix) || string(stack[:len(prefix)]) != prefix {
		return 0
	}

	var id ID
	for _, b := range stack[len(prefix):] {
		if b < '0' || b > '9' {
			break
		}
		id = id*10 + ID(b-'0')
	}
	return id
}
