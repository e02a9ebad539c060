// Package mmio maps blocks of physical peripheral registers into the process.
//
// A Window is created once per peripheral family and is meant to live for the
// remainder of the process. All register accesses go through Load and Store,
// which are bounds checked 32 bit atomic memory operations.
//
// Nothing in this package serialises read-modify-write sequences. Callers that
// share a Window between goroutines, or processes that map the same physical
// range, must provide their own serialisation. Options.Exclusive takes an
// advisory lock so that cooperating processes can at least refuse to share.
package mmio

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/BertoldVdb/go-sunxi/bitfield"
	"github.com/sirupsen/logrus"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrorUninitialized    = Error("Register window is not mapped")
	ErrorPermissionDenied = Error("Permission denied opening physical memory")
	ErrorMappingFailed    = Error("Mapping physical memory failed")
	ErrorBusy             = Error("Register window is owned by another process")
)

// MapError is returned when one of the steps of Map fails. It matches
// ErrorMappingFailed (or ErrorPermissionDenied) and the underlying OS error with errors.Is.
type MapError struct {
	Op      string
	Address uint64
	Err     error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("mmio: %s 0x%08x: %v", e.Op, e.Address, e.Err)
}

func (e *MapError) Unwrap() error {
	return e.Err
}

func (e *MapError) Is(target error) bool {
	if target == ErrorPermissionDenied {
		return e.Op == "open" && isPermission(e.Err)
	}
	return target == ErrorMappingFailed && !(e.Op == "open" && isPermission(e.Err))
}

func isPermission(err error) bool {
	return errors.Is(err, os.ErrPermission)
}

// Options control how Map obtains the mapping.
type Options struct {
	// Device is the file providing physical memory, /dev/mem when empty.
	Device string

	// Exclusive takes a non-blocking advisory lock in LockDir before mapping.
	Exclusive bool
	// LockDir is where lock files are created, /run/lock when empty.
	LockDir string

	Logger *logrus.Entry
}

const (
	DefaultDevice  = "/dev/mem"
	DefaultLockDir = "/run/lock"
)

// Window is a typed view on a mapped register block. The zero value and a nil
// pointer are valid and report ErrorUninitialized from every accessor that can fail.
type Window struct {
	base uint64
	regs []uint32

	unmap func() error
}

// FromWords returns a Window backed by ordinary memory. It behaves like a
// mapped window and is used for tests and dry runs.
func FromWords(words []uint32) *Window {
	return &Window{regs: words}
}

// Present reports whether the window is usable.
func (w *Window) Present() bool {
	return w != nil && w.regs != nil
}

// Check returns ErrorUninitialized when the window is not usable.
func (w *Window) Check() error {
	if !w.Present() {
		return ErrorUninitialized
	}
	return nil
}

// Base returns the physical address of the first register.
func (w *Window) Base() uint64 {
	if w == nil {
		return 0
	}
	return w.base
}

// Len returns the number of 32 bit registers in the window.
func (w *Window) Len() int {
	if w == nil {
		return 0
	}
	return len(w.regs)
}

// Load reads register index.
func (w *Window) Load(index int) uint32 {
	return atomic.LoadUint32(&w.regs[index])
}

// Store writes register index.
func (w *Window) Store(index int, value uint32) {
	atomic.StoreUint32(&w.regs[index], value)
}

// ReadField returns a field of register index.
func (w *Window) ReadField(index int, f bitfield.Field) uint32 {
	return f.Get(w.Load(index))
}

// WriteField performs a read-modify-write of one field of register index.
func (w *Window) WriteField(index int, f bitfield.Field, value uint32) {
	w.Store(index, f.Set(w.Load(index), value))
}

// SetBits ORs mask into register index.
func (w *Window) SetBits(index int, mask uint32) {
	w.Store(index, w.Load(index)|mask)
}

// ClearBits clears mask in register index.
func (w *Window) ClearBits(index int, mask uint32) {
	w.Store(index, w.Load(index)&^mask)
}

// Close releases the mapping and the advisory lock, if any. The window is
// uninitialized afterwards.
func (w *Window) Close() error {
	if !w.Present() {
		return ErrorUninitialized
	}

	w.regs = nil
	if w.unmap != nil {
		err := w.unmap()
		w.unmap = nil
		return err
	}
	return nil
}
