//go:build !linux

package mmio

import "errors"

// Map is only implemented on Linux.
func Map(base uint64, size int, opts *Options) (*Window, error) {
	return nil, &MapError{Op: "mmap", Address: base, Err: errors.New("unsupported platform")}
}
