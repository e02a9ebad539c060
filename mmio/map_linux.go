package mmio

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region describes the page aligned area that has to be mapped to reach a
// register block of size bytes at physical address base.
type Region struct {
	Start  uint64
	Offset int
	Size   int
}

// PageRegion computes the mapping region for a register block.
func PageRegion(base uint64, size int, pageSize int) Region {
	start := base &^ uint64(pageSize-1)
	offset := int(base - start)

	return Region{
		Start:  start,
		Offset: offset,
		Size:   (size + offset + pageSize - 1) / pageSize * pageSize,
	}
}

func lockName(dir string, base uint64) string {
	if dir == "" {
		dir = DefaultLockDir
	}
	return filepath.Join(dir, fmt.Sprintf("sunxi-%08x.lock", base))
}

func takeLock(dir string, base uint64) (*os.File, error) {
	name := lockName(dir, base)
	file, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, &MapError{Op: "lock", Address: base, Err: err}
	}

	err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		file.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrorBusy
		}
		return nil, &MapError{Op: "lock", Address: base, Err: err}
	}

	return file, nil
}

// Map makes the register block of size bytes at physical address base
// accessible. The device file is closed as soon as the mapping exists; the
// mapping itself stays valid until Close.
func Map(base uint64, size int, opts *Options) (*Window, error) {
	if opts == nil {
		opts = &Options{}
	}
	device := opts.Device
	if device == "" {
		device = DefaultDevice
	}

	var lock *os.File
	if opts.Exclusive {
		var err error
		lock, err = takeLock(opts.LockDir, base)
		if err != nil {
			return nil, err
		}
	}
	releaseLock := func() {
		if lock != nil {
			lock.Close()
		}
	}

	file, err := os.OpenFile(device, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		releaseLock()
		return nil, &MapError{Op: "open", Address: base, Err: err}
	}
	defer file.Close()

	region := PageRegion(base, size, unix.Getpagesize())

	mem, err := unix.Mmap(int(file.Fd()), int64(region.Start), region.Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		releaseLock()
		return nil, &MapError{Op: "mmap", Address: base, Err: err}
	}

	if opts.Logger != nil {
		opts.Logger.WithField("device", device).Debugf("Mapped 0x%08x: region 0x%08x+0x%x, offset 0x%x", base, region.Start, region.Size, region.Offset)
	}

	w := &Window{
		base: base,
		regs: unsafe.Slice((*uint32)(unsafe.Pointer(&mem[region.Offset])), size/4),
	}
	w.unmap = func() error {
		err := unix.Munmap(mem)
		releaseLock()
		return err
	}

	return w, nil
}
