package spi

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"syscall"
	"unsafe"
)

var (
	// ErrorBufferLength is returned when the transmit and receive buffers of a transfer differ in size
	ErrorBufferLength = errors.New("Buffer length does not match")
	// ErrorTooManyTransfers is returned when a batch does not fit in one ioctl
	ErrorTooManyTransfers = errors.New("Too many transfers in batch")
)

// Mode bits, as used by SetMode and SetMode32.
const (
	ModeCPHA     uint32 = 0x01
	ModeCPOL     uint32 = 0x02
	ModeCSHigh   uint32 = 0x04
	ModeLSBFirst uint32 = 0x08
	Mode3Wire    uint32 = 0x10
	ModeLoop     uint32 = 0x20
	ModeNoCS     uint32 = 0x40
	ModeReady    uint32 = 0x80
	ModeTxDual   uint32 = 0x100
	ModeTxQuad   uint32 = 0x200
	ModeRxDual   uint32 = 0x400
	ModeRxQuad   uint32 = 0x800
)

// Device is an open spidev node. Calls on a Device are serialised.
type Device struct {
	mutex sync.Mutex
	file  *os.File
}

// Transfer is one segment of a batch submitted with TransferBatch. Tx or Rx
// may be nil. SpeedHz and BitsPerWord of zero select the device defaults.
type Transfer struct {
	Tx          []byte
	Rx          []byte
	SpeedHz     uint32
	DelayUsecs  uint16
	BitsPerWord uint8
	// CSChange keeps chip select asserted after this transfer (or
	// deasserts it between transfers of a batch).
	CSChange bool
}

// Open opens a spidev device node, for example /dev/spidev0.0.
func Open(path string) (*Device, error) {
	file, err := os.OpenFile(path, syscall.O_RDWR|syscall.O_NOCTTY, 0600)
	if err != nil {
		return nil, err
	}

	return &Device{file: file}, nil
}

// OpenDevice opens /dev/spidev<busID>.<deviceID>.
func OpenDevice(busID int, deviceID int) (*Device, error) {
	return Open(fmt.Sprintf("/dev/spidev%d.%d", busID, deviceID))
}

// Close closes the device node.
func (d *Device) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.file.Close()
}

func (d *Device) ioctl(name string, request uintptr, arg unsafe.Pointer) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	err := ioctlPtr(d.file, request, arg)
	if err != nil {
		return fmt.Errorf("SPI %s failed: %w", name, err)
	}
	return nil
}

// Mode returns the 8 bit SPI mode.
func (d *Device) Mode() (uint8, error) {
	var mode uint8
	err := d.ioctl("read mode", spiIocRdMode, unsafe.Pointer(&mode))
	return mode, err
}

// SetMode sets the 8 bit SPI mode.
func (d *Device) SetMode(mode uint8) error {
	return d.ioctl("write mode", spiIocWrMode, unsafe.Pointer(&mode))
}

// Mode32 returns the 32 bit SPI mode, including the dual/quad flags.
func (d *Device) Mode32() (uint32, error) {
	var mode uint32
	err := d.ioctl("read mode32", spiIocRdMode32, unsafe.Pointer(&mode))
	return mode, err
}

// SetMode32 sets the 32 bit SPI mode.
func (d *Device) SetMode32(mode uint32) error {
	return d.ioctl("write mode32", spiIocWrMode32, unsafe.Pointer(&mode))
}

// LSBFirst reports whether words are sent least significant bit first.
func (d *Device) LSBFirst() (bool, error) {
	var lsb uint8
	err := d.ioctl("read lsb", spiIocRdLSBFirst, unsafe.Pointer(&lsb))
	return lsb != 0, err
}

// SetLSBFirst selects the bit order.
func (d *Device) SetLSBFirst(lsb bool) error {
	var v uint8
	if lsb {
		v = 1
	}
	return d.ioctl("write lsb", spiIocWrLSBFirst, unsafe.Pointer(&v))
}

// BitsPerWord returns the word size.
func (d *Device) BitsPerWord() (uint8, error) {
	var bits uint8
	err := d.ioctl("read bits", spiIocRdBitsPerWord, unsafe.Pointer(&bits))
	return bits, err
}

// SetBitsPerWord sets the word size.
func (d *Device) SetBitsPerWord(bits uint8) error {
	return d.ioctl("write bits", spiIocWrBitsPerWord, unsafe.Pointer(&bits))
}

// MaxSpeed returns the default clock speed in Hz.
func (d *Device) MaxSpeed() (uint32, error) {
	var speed uint32
	err := d.ioctl("read max speed", spiIocRdMaxSpeedHz, unsafe.Pointer(&speed))
	return speed, err
}

// SetMaxSpeed sets the default clock speed in Hz.
func (d *Device) SetMaxSpeed(speed uint32) error {
	return d.ioctl("write max speed", spiIocWrMaxSpeedHz, unsafe.Pointer(&speed))
}

// Transfer performs one full duplex transfer with the device defaults.
func (d *Device) Transfer(writeBuf []byte, readBuf []byte) error {
	return d.TransferBatch([]Transfer{{Tx: writeBuf, Rx: readBuf}})
}

// TransferOptions performs one transfer overriding the clock speed (0 for the
// default), adding a delay before chip select is released and optionally
// keeping chip select asserted afterwards.
func (d *Device) TransferOptions(writeBuf []byte, readBuf []byte, speedHz uint32, delayUsecs uint16, csChange bool) error {
	return d.TransferBatch([]Transfer{{
		Tx:         writeBuf,
		Rx:         readBuf,
		SpeedHz:    speedHz,
		DelayUsecs: delayUsecs,
		CSChange:   csChange,
	}})
}

// TransferBatch submits all transfers in one SPI_IOC_MESSAGE call. Transfers
// without buffers are dropped; an empty batch succeeds without touching the device.
func (d *Device) TransferBatch(transfers []Transfer) error {
	raw, err := buildTransfers(transfers)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		// A succesful, albeit useless, transfer
		return nil
	}

	err = d.ioctl("transfer", spiIocMessage(len(raw)), unsafe.Pointer(&raw[0]))

	runtime.KeepAlive(raw)
	runtime.KeepAlive(transfers)

	return err
}

func buildTransfers(transfers []Transfer) ([]iocTransferRaw, error) {
	var raw []iocTransferRaw

	for _, t := range transfers {
		tr := iocTransferRaw{
			SpeedHz:     t.SpeedHz,
			DelayUsecs:  t.DelayUsecs,
			BitsPerWord: t.BitsPerWord,
		}
		if t.CSChange {
			tr.CSChange = 1
		}

		if len(t.Tx) > 0 {
			tr.TxBuf = uint64(uintptr(unsafe.Pointer(&t.Tx[0])))
			tr.Len = uint32(len(t.Tx))
		}
		if len(t.Rx) > 0 {
			tr.RxBuf = uint64(uintptr(unsafe.Pointer(&t.Rx[0])))
			tr.Len = uint32(len(t.Rx))
		}

		if tr.TxBuf == 0 && tr.RxBuf == 0 {
			continue
		}
		if tr.TxBuf != 0 && tr.RxBuf != 0 && len(t.Tx) != len(t.Rx) {
			return nil, ErrorBufferLength
		}

		raw = append(raw, tr)
	}

	if len(raw) > maxTransfers {
		return nil, ErrorTooManyTransfers
	}

	return raw, nil
}
