// Package pwm controls the two channel PWM generator of sunxi SoCs.
//
// Channel 1 uses the same control register layout as channel 0, shifted up by
// 15 bits. SetConfig keeps the clock gate of a channel in the state it was in,
// so reconfiguring a running channel does not stop it.
package pwm

import (
	"github.com/BertoldVdb/go-sunxi/bitfield"
	"github.com/BertoldVdb/go-sunxi/mmio"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrorOutOfRange        = Error("PWM period cannot be represented")
	ErrorDutyExceedsPeriod = Error("PWM duty cycle exceeds period")
	ErrorInvalidChannel    = Error("Invalid PWM channel")
)

// BaseAddress is the physical address of the PWM register block.
const BaseAddress = 0x01c20e00

const (
	ctrlWord   = 0
	periodWord = 1

	// BlockSize covers ctrl and ch_period[2].
	BlockSize = 3 * 4
)

// Channel selects one of the PWM outputs.
type Channel uint32

const (
	Channel0 Channel = 0
	Channel1 Channel = 1

	NumChannels = 2
)

// Polarity selects the active output level.
type Polarity uint32

const (
	PolarityNormal   Polarity = 0
	PolarityInversed Polarity = 1
)

func (p Polarity) String() string {
	if p == PolarityNormal {
		return "normal"
	}
	return "inversed"
}

const channelStride = 15

var (
	fieldPrescaler = bitfield.Field{Offset: 0, Width: 4}
	fieldEnable    = bitfield.Bit(4)
	fieldActState  = bitfield.Bit(5)
	fieldClkGating = bitfield.Bit(6)
)

func channelField(f bitfield.Field, ch Channel) bitfield.Field {
	return f.Shift(channelStride * uint(ch))
}

// Controller gives access to the PWM block. A nil Controller, or one created
// from an unmapped window, returns mmio.ErrorUninitialized from every method.
type Controller struct {
	regs *mmio.Window
}

// Open maps the PWM registers.
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

func (c *Controller) window(ch Channel) (*mmio.Window, error) {
	if c == nil {
		return nil, mmio.ErrorUninitialized
	}
	if err := c.regs.Check(); err != nil {
		return nil, err
	}
	if ch >= NumChannels {
		return nil, ErrorInvalidChannel
	}
	return c.regs, nil
}

// SetPolarity selects the active level of a channel.
func (c *Controller) SetPolarity(ch Channel, pol Polarity) error {
	regs, err := c.window(ch)
	if err != nil {
		return err
	}

	mask := channelField(fieldActState, ch).Mask()
	if pol == PolarityNormal {
		regs.SetBits(ctrlWord, mask)
	} else {
		regs.ClearBits(ctrlWord, mask)
	}
	return nil
}

// SetConfig programs period and duty cycle, both in nanoseconds.
func (c *Controller) SetConfig(ch Channel, periodNs uint64, dutyNs uint64) error {
	regs, err := c.window(ch)
	if err != nil {
		return err
	}

	timing, err := Solve(periodNs, dutyNs)
	if err != nil {
		return err
	}

	c.apply(regs, ch, timing)
	return nil
}

// SetTiming programs an already solved timing.
func (c *Controller) SetTiming(ch Channel, timing Timing) error {
	regs, err := c.window(ch)
	if err != nil {
		return err
	}
	if ClockRate(timing.Prescaler) == 0 || timing.Period == 0 || timing.Period-1 > maxCount {
		return ErrorOutOfRange
	}
	if timing.Duty > timing.Period {
		return ErrorDutyExceedsPeriod
	}

	c.apply(regs, ch, timing)
	return nil
}

func (c *Controller) apply(regs *mmio.Window, ch Channel, timing Timing) {
	gate := channelField(fieldClkGating, ch).Mask()
	gated := regs.Load(ctrlWord) & gate

	regs.ClearBits(ctrlWord, gate)
	regs.WriteField(ctrlWord, channelField(fieldPrescaler, ch), uint32(timing.Prescaler))
	regs.Store(periodWord+int(ch), timing.Register())
	if gated != 0 {
		regs.SetBits(ctrlWord, gate)
	}
}

// Enable starts a channel: output enable and clock gate.
func (c *Controller) Enable(ch Channel) error {
	regs, err := c.window(ch)
	if err != nil {
		return err
	}

	regs.SetBits(ctrlWord, channelField(fieldEnable, ch).Mask())
	regs.SetBits(ctrlWord, channelField(fieldClkGating, ch).Mask())
	return nil
}

// Disable stops a channel.
func (c *Controller) Disable(ch Channel) error {
	regs, err := c.window(ch)
	if err != nil {
		return err
	}

	regs.ClearBits(ctrlWord, channelField(fieldEnable, ch).Mask())
	regs.ClearBits(ctrlWord, channelField(fieldClkGating, ch).Mask())
	return nil
}

// State is the decoded configuration of a channel.
type State struct {
	Timing   Timing
	Polarity Polarity
	Enabled  bool
	Gated    bool
}

// State reads back the configuration of a channel.
func (c *Controller) State(ch Channel) (State, error) {
	regs, err := c.window(ch)
	if err != nil {
		return State{}, err
	}

	ctrl := regs.Load(ctrlWord)
	s := State{
		Timing:   TimingFromRegister(uint8(channelField(fieldPrescaler, ch).Get(ctrl)), regs.Load(periodWord+int(ch))),
		Polarity: PolarityInversed,
		Enabled:  channelField(fieldEnable, ch).Get(ctrl) != 0,
		Gated:    channelField(fieldClkGating, ch).Get(ctrl) != 0,
	}
	if channelField(fieldActState, ch).Get(ctrl) != 0 {
		s.Polarity = PolarityNormal
	}
	return s, nil
}
