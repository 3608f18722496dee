package main

import (
	"runtime"

	"github.com/mabhi256/jinterop/cmd"
)

// Every command talks to the runtime from the main goroutine, and the
// runtime ties attached threads and local references to the OS thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	cmd.Execute()
}
