//go:build !jni || !cgo

package jni

import "github.com/mabhi256/jinterop/internal/host"

type locator struct{}

func (locator) CreatedVMs() ([]host.VM, error) {
	return nil, ErrUnavailable
}

// Locator finds the VMs of this process.
func Locator() host.Locator {
	return locator{}
}

// Start creates a VM in this process.
func Start(options []string) (host.Locator, error) {
	return nil, ErrUnavailable
}

// Available reports whether the backend was compiled in.
func Available() bool {
	return false
}
