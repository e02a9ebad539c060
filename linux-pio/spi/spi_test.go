package spi

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"unsafe"
)

func TestTransferLayout(t *testing.T) {
	if s := unsafe.Sizeof(iocTransferRaw{}); s != 32 {
		t.Error("Descriptor has size", s)
	}

	if spiIocMessage(1) != 0x40206B00 {
		t.Errorf("SPI_IOC_MESSAGE(1) = %08x", spiIocMessage(1))
	}
	if spiIocMessage(3) != 0x40606B00 {
		t.Errorf("SPI_IOC_MESSAGE(3) = %08x", spiIocMessage(3))
	}
}

func TestBuildTransfers(t *testing.T) {
	tx := []byte{1, 2, 3}
	rx := make([]byte, 3)

	raw, err := buildTransfers([]Transfer{
		{Tx: tx, Rx: rx, SpeedHz: 1000000},
		{},
		{Rx: make([]byte, 5), CSChange: true, DelayUsecs: 7, BitsPerWord: 9},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 {
		t.Fatal("Empty transfer was not dropped", len(raw))
	}

	if raw[0].TxBuf != uint64(uintptr(unsafe.Pointer(&tx[0]))) || raw[0].RxBuf != uint64(uintptr(unsafe.Pointer(&rx[0]))) {
		t.Error("Buffer pointers not set")
	}
	if raw[0].Len != 3 || raw[0].SpeedHz != 1000000 || raw[0].CSChange != 0 {
		t.Errorf("Unexpected first descriptor %+v", raw[0])
	}
	if raw[1].TxBuf != 0 || raw[1].Len != 5 || raw[1].CSChange != 1 || raw[1].DelayUsecs != 7 || raw[1].BitsPerWord != 9 {
		t.Errorf("Unexpected second descriptor %+v", raw[1])
	}

	if _, err := buildTransfers([]Transfer{{Tx: tx, Rx: make([]byte, 2)}}); err != ErrorBufferLength {
		t.Error("Length mismatch accepted", err)
	}

	many := make([]Transfer, maxTransfers+1)
	for i := range many {
		many[i].Tx = tx
	}
	if _, err := buildTransfers(many); err != ErrorTooManyTransfers {
		t.Error("Oversized batch accepted", err)
	}
}

func TestNotADevice(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "spidev9.9")); !errors.Is(err, os.ErrNotExist) {
		t.Error("Missing device:", err)
	}

	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}

	d, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if _, err := d.Mode(); !errors.Is(err, syscall.ENOTTY) {
		t.Error("Mode on regular file:", err)
	}
	if err := d.Transfer([]byte{1}, nil); !errors.Is(err, syscall.ENOTTY) {
		t.Error("Transfer on regular file:", err)
	}

	/* Nothing to send never reaches the kernel */
	if err := d.Transfer(nil, nil); err != nil {
		t.Error(err)
	}
}
