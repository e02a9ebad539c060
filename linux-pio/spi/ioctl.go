package spi

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request numbers from linux/spi/spidev.h, magic 'k'
const (
	spiIocRdMode        uintptr = 0x80016b01
	spiIocWrMode        uintptr = 0x40016b01
	spiIocRdLSBFirst    uintptr = 0x80016b02
	spiIocWrLSBFirst    uintptr = 0x40016b02
	spiIocRdBitsPerWord uintptr = 0x80016b03
	spiIocWrBitsPerWord uintptr = 0x40016b03
	spiIocRdMaxSpeedHz  uintptr = 0x80046b04
	spiIocWrMaxSpeedHz  uintptr = 0x40046b04
	spiIocRdMode32      uintptr = 0x80046b05
	spiIocWrMode32      uintptr = 0x40046b05
)

// The size field of the ioctl number is 14 bits wide.
const maxTransfers = (1<<14 - 1) / 32

// iocTransferRaw mirrors struct spi_ioc_transfer.
type iocTransferRaw struct {
	TxBuf          uint64
	RxBuf          uint64
	Len            uint32
	SpeedHz        uint32
	DelayUsecs     uint16
	BitsPerWord    uint8
	CSChange       uint8
	TxNbits        uint8
	RxNbits        uint8
	WordDelayUsecs uint8
	Pad            uint8
}

func spiIocMessage(numTransfers int) uintptr {
	const base uint32 = 0x40006B00

	return uintptr(base + uint32(numTransfers*0x200000))
}

func ioctlPtr(f *os.File, function uintptr, data unsafe.Pointer) error {
	_, _, errNo := unix.Syscall(
		unix.SYS_IOCTL,
		f.Fd(),
		function,
		uintptr(data),
	)
	if errNo != 0 {
		return errNo
	}

	return nil
}
