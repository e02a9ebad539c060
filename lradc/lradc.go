// Package lradc controls the low resolution ADC (keypad ADC) of sunxi SoCs.
package lradc

import (
	"errors"

	"github.com/BertoldVdb/go-sunxi/bitfield"
	"github.com/BertoldVdb/go-sunxi/mmio"
)

// BaseAddress is the physical address of the LRADC register block.
const BaseAddress = 0x01c22800

const (
	ctrlWord = 0
	intcWord = 1
	intsWord = 2
	dataWord = 3

	// BlockSize covers ctrl, intc, ints and data[2].
	BlockSize = 5 * 4
)

// Control register fields.
var (
	fieldFirstConvertDelay = bitfield.Field{Offset: 24, Width: 8}
	fieldChannel           = bitfield.Field{Offset: 22, Width: 2}
	fieldContinueTime      = bitfield.Field{Offset: 16, Width: 4}
	fieldKeyMode           = bitfield.Field{Offset: 12, Width: 2}
	fieldLevelABCount      = bitfield.Field{Offset: 8, Width: 4}
	fieldHoldOn            = bitfield.Bit(6)
	fieldLevelBVolt        = bitfield.Field{Offset: 4, Width: 2}
	fieldSampleRate        = bitfield.Field{Offset: 2, Width: 2}
	fieldEnable            = bitfield.Bit(0)
)

// Channel selects which inputs are converted.
type Channel uint32

const (
	Channel0     Channel = 0
	Channel1     Channel = 1
	Channel0And1 Channel = 2
)

// KeyMode selects how key presses are reported.
type KeyMode uint32

const (
	KeyModeNormal   KeyMode = 0
	KeyModeSingle   KeyMode = 1
	KeyModeContinue KeyMode = 2
)

// LevelBVolt is the level B comparator threshold.
type LevelBVolt uint32

const (
	LevelB1V9 LevelBVolt = 0
	LevelB1V8 LevelBVolt = 1
	LevelB1V7 LevelBVolt = 2
	LevelB1V6 LevelBVolt = 3
)

// SampleRate is the conversion rate.
type SampleRate uint32

const (
	SampleRate250Hz   SampleRate = 0
	SampleRate125Hz   SampleRate = 1
	SampleRate62_5Hz  SampleRate = 2
	SampleRate32_25Hz SampleRate = 3
)

var (
	// ErrorInvalidChannel is returned when reading a channel other than 0 or 1
	ErrorInvalidChannel = errors.New("Invalid LRADC data channel")
)

// Controller gives access to the LRADC. A nil Controller, or one created from
// an unmapped window, returns mmio.ErrorUninitialized from every method.
type Controller struct {
	regs *mmio.Window
}

// Open maps the LRADC registers.
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

func (c *Controller) window() (*mmio.Window, error) {
	if c == nil {
		return nil, mmio.ErrorUninitialized
	}
	return c.regs, c.regs.Check()
}

func (c *Controller) setCtrl(f bitfield.Field, value uint32) error {
	regs, err := c.window()
	if err != nil {
		return err
	}

	regs.WriteField(ctrlWord, f, value)
	return nil
}

// SetFirstConvertDelay sets the delay before the first conversion (0 to 255).
func (c *Controller) SetFirstConvertDelay(delay uint8) error {
	return c.setCtrl(fieldFirstConvertDelay, uint32(delay))
}

// SetChannel selects the converted channels.
func (c *Controller) SetChannel(ch Channel) error {
	return c.setCtrl(fieldChannel, uint32(ch))
}

// SetContinueTimeSelect sets the continuous mode time select (0 to 15).
func (c *Controller) SetContinueTimeSelect(time uint8) error {
	return c.setCtrl(fieldContinueTime, uint32(time))
}

// SetKeyMode selects the key mode.
func (c *Controller) SetKeyMode(mode KeyMode) error {
	return c.setCtrl(fieldKeyMode, uint32(mode))
}

// SetLevelABCount sets the level A to level B hysteresis count (0 to 15).
func (c *Controller) SetLevelABCount(count uint8) error {
	return c.setCtrl(fieldLevelABCount, uint32(count))
}

// SetHoldOn enables or disables hold.
func (c *Controller) SetHoldOn(enable bool) error {
	var v uint32
	if enable {
		v = 1
	}
	return c.setCtrl(fieldHoldOn, v)
}

// SetLevelBVolt selects the level B threshold.
func (c *Controller) SetLevelBVolt(volt LevelBVolt) error {
	return c.setCtrl(fieldLevelBVolt, uint32(volt))
}

// SetSampleRate selects the sample rate.
func (c *Controller) SetSampleRate(rate SampleRate) error {
	return c.setCtrl(fieldSampleRate, uint32(rate))
}

// Enable starts the converter.
func (c *Controller) Enable() error {
	return c.setCtrl(fieldEnable, 1)
}

// Disable stops the converter.
func (c *Controller) Disable() error {
	return c.setCtrl(fieldEnable, 0)
}

// Read returns the last converted value of channel 0 or 1.
func (c *Controller) Read(ch Channel) (uint32, error) {
	regs, err := c.window()
	if err != nil {
		return 0, err
	}
	if ch > Channel1 {
		return 0, ErrorInvalidChannel
	}

	return regs.Load(dataWord + int(ch)), nil
}

// Settings is a decoded copy of the control register.
type Settings struct {
	FirstConvertDelay uint8
	Channel           Channel
	ContinueTime      uint8
	KeyMode           KeyMode
	LevelABCount      uint8
	HoldOn            bool
	LevelBVolt        LevelBVolt
	SampleRate        SampleRate
	Enabled           bool
}

// Settings decodes the control register.
func (c *Controller) Settings() (Settings, error) {
	regs, err := c.window()
	if err != nil {
		return Settings{}, err
	}

	ctrl := regs.Load(ctrlWord)
	return Settings{
		FirstConvertDelay: uint8(fieldFirstConvertDelay.Get(ctrl)),
		Channel:           Channel(fieldChannel.Get(ctrl)),
		ContinueTime:      uint8(fieldContinueTime.Get(ctrl)),
		KeyMode:           KeyMode(fieldKeyMode.Get(ctrl)),
		LevelABCount:      uint8(fieldLevelABCount.Get(ctrl)),
		HoldOn:            fieldHoldOn.Get(ctrl) != 0,
		LevelBVolt:        LevelBVolt(fieldLevelBVolt.Get(ctrl)),
		SampleRate:        SampleRate(fieldSampleRate.Get(ctrl)),
		Enabled:           fieldEnable.Get(ctrl) != 0,
	}, nil
}

// Status returns the raw interrupt status register.
func (c *Controller) Status() (uint32, error) {
	regs, err := c.window()
	if err != nil {
		return 0, err
	}
	return regs.Load(intsWord), nil
}

// ClearStatus acknowledges the status bits in mask (write one to clear).
func (c *Controller) ClearStatus(mask uint32) error {
	regs, err := c.window()
	if err != nil {
		return err
	}
	regs.Store(intsWord, mask)
	return nil
}

// SetInterrupts writes the interrupt enable register.
func (c *Controller) SetInterrupts(mask uint32) error {
	regs, err := c.window()
	if err != nil {
		return err
	}
	regs.Store(intcWord, mask)
	return nil
}
