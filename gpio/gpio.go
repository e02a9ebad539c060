// Package gpio drives the sunxi PIO controller through its memory mapped registers.
//
// Example to read input pin PA0:
//
//	c, err := gpio.Open(nil)
//	c.SetFunction(gpio.NewPin('A', 0), gpio.Input)
//	high, err := c.Input(gpio.NewPin('A', 0))
//
// A Controller performs unsynchronised read-modify-write cycles on shared
// registers; use it from one goroutine or add your own locking.
package gpio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BertoldVdb/go-sunxi/bitfield"
	"github.com/BertoldVdb/go-sunxi/mmio"
)

var (
	// ErrorInvalidPin is returned for pins outside of the nine banks
	ErrorInvalidPin = errors.New("Pin out of range")
)

// Pin identifies a pin as (bank << 5) + number, bank 0 being port A.
type Pin uint32

// NewPin returns the identifier of pin n of port ('A'..'I').
func NewPin(port byte, n int) Pin {
	return Pin(uint32(port-'A')<<5 + uint32(n))
}

// ParsePin accepts "PB2", "B2" or the raw identifier "34".
func ParsePin(name string) (Pin, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	if len(s) > 0 && s[0] >= '0' && s[0] <= '9' {
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid pin %q: %w", name, err)
		}
		return Pin(v), nil
	}

	if len(s) > 2 && s[0] == 'P' && s[1] >= 'A' && s[1] <= 'Z' {
		s = s[1:]
	}
	if len(s) < 2 || s[0] < 'A' || s[0] >= 'A'+numBanks {
		return 0, fmt.Errorf("invalid pin %q", name)
	}

	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 || n >= bitfield.PinsPerBank {
		return 0, fmt.Errorf("invalid pin %q", name)
	}
	return NewPin(s[0], n), nil
}

// Bank returns the port index, 0 for port A.
func (p Pin) Bank() int {
	return int(p >> 5)
}

// Number returns the pin number inside its port.
func (p Pin) Number() int {
	return int(p & 0x1F)
}

func (p Pin) String() string {
	return fmt.Sprintf("P%c%d", 'A'+byte(p.Bank()), p.Number())
}

// Controller gives access to all pins. A nil Controller, or one created from an
// unmapped window, returns mmio.ErrorUninitialized from every method.
type Controller struct {
	regs *mmio.Window
}

// Open maps the PIO registers.
func Open(opts *mmio.Options) (*Controller, error) {
	w, err := mmio.Map(BaseAddress, BlockSize, opts)
	if err != nil {
		return nil, err
	}
	return New(w), nil
}

// New wraps an already mapped window.
func New(w *mmio.Window) *Controller {
	return &Controller{regs: w}
}

// Close unmaps the registers.
func (c *Controller) Close() error {
	if c == nil {
		return mmio.ErrorUninitialized
	}
	return c.regs.Close()
}

func (c *Controller) bank(p Pin) (*mmio.Window, int, error) {
	if c == nil {
		return nil, 0, mmio.ErrorUninitialized
	}
	if err := c.regs.Check(); err != nil {
		return nil, 0, err
	}

	bank, _, _ := bitfield.PinLocation(uint32(p))
	if bank >= numBanks {
		return nil, 0, ErrorInvalidPin
	}
	return c.regs, int(bank) * bankWords, nil
}

// SetFunction configures the multiplexer of a pin.
func (c *Controller) SetFunction(p Pin, f Function) error {
	regs, bank, err := c.bank(p)
	if err != nil {
		return err
	}

	_, index, offset := bitfield.PinLocation(uint32(p))
	regs.WriteField(bank+cfgWord+int(index), cfgField.Shift(offset), uint32(f))
	return nil
}

// Function returns the current multiplexer setting of a pin.
func (c *Controller) Function(p Pin) (Function, error) {
	regs, bank, err := c.bank(p)
	if err != nil {
		return 0, err
	}

	_, index, offset := bitfield.PinLocation(uint32(p))
	return Function(regs.ReadField(bank+cfgWord+int(index), cfgField.Shift(offset))), nil
}

// Input returns the level of a pin.
func (c *Controller) Input(p Pin) (bool, error) {
	regs, bank, err := c.bank(p)
	if err != nil {
		return false, err
	}

	return regs.ReadField(bank+datWord, bitfield.Bit(bitfield.PinBit(uint32(p)))) != 0, nil
}

// Output sets the level driven on a pin configured as Output.
func (c *Controller) Output(p Pin, high bool) error {
	regs, bank, err := c.bank(p)
	if err != nil {
		return err
	}

	mask := bitfield.Bit(bitfield.PinBit(uint32(p))).Mask()
	if high {
		regs.SetBits(bank+datWord, mask)
	} else {
		regs.ClearBits(bank+datWord, mask)
	}
	return nil
}

func (c *Controller) setPair(p Pin, word int, value uint32) error {
	regs, bank, err := c.bank(p)
	if err != nil {
		return err
	}

	index, offset := bitfield.PinPair(uint32(p))
	regs.WriteField(bank+word+int(index), pairField.Shift(offset), value)
	return nil
}

func (c *Controller) getPair(p Pin, word int) (uint32, error) {
	regs, bank, err := c.bank(p)
	if err != nil {
		return 0, err
	}

	index, offset := bitfield.PinPair(uint32(p))
	return regs.ReadField(bank+word+int(index), pairField.Shift(offset)), nil
}

// SetPull selects the pull resistor of a pin.
func (c *Controller) SetPull(p Pin, pull Pull) error {
	return c.setPair(p, pullWord, uint32(pull))
}

// Pull returns the pull resistor setting of a pin.
func (c *Controller) Pull(p Pin) (Pull, error) {
	v, err := c.getPair(p, pullWord)
	return Pull(v), err
}

// SetDrive sets the output drive level of a pin.
func (c *Controller) SetDrive(p Pin, d Drive) error {
	return c.setPair(p, drvWord, uint32(d))
}

// Drive returns the output drive level of a pin.
func (c *Controller) Drive(p Pin) (Drive, error) {
	v, err := c.getPair(p, drvWord)
	return Drive(v), err
}
