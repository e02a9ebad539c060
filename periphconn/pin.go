// Package periphconn exposes the sunxi register façades through the
// periph.io/x/conn interfaces, so drivers written against periph can run on
// top of the memory mapped controllers.
package periphconn

import (
	"fmt"
	"strings"
	"time"

	sunxigpio "github.com/BertoldVdb/go-sunxi/gpio"
	"github.com/BertoldVdb/go-sunxi/pwm"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrorEdgeUnsupported = Error("Edge detection is not supported")
	ErrorNoPWM           = Error("Pin is not connected to a PWM channel")
	ErrorInvalidDuty     = Error("Invalid PWM duty cycle or frequency")
	ErrorUnsupportedFunc = Error("Unsupported pin function")
)

// PWMOutput describes how a pin is routed to a PWM channel.
type PWMOutput struct {
	Controller *pwm.Controller
	Channel    pwm.Channel
	// Function is the multiplexer setting that connects the pin to the channel
	Function sunxigpio.Function
}

func (o *PWMOutput) funcName() pin.Func {
	return pin.Func(fmt.Sprintf("PWM%d", o.Channel))
}

// Pin implements gpio.PinIO and pin.PinFunc for one sunxi pin.
type Pin struct {
	ctrl *sunxigpio.Controller
	pin  sunxigpio.Pin
	pwm  *PWMOutput
}

var (
	_ gpio.PinIO  = &Pin{}
	_ pin.PinFunc = &Pin{}
)

// NewPin wraps a pin of the controller. out may be nil when the pin has no
// PWM function.
func NewPin(ctrl *sunxigpio.Controller, p sunxigpio.Pin, out *PWMOutput) *Pin {
	return &Pin{
		ctrl: ctrl,
		pin:  p,
		pwm:  out,
	}
}

// Register adds the pins to the periph gpioreg registry. Pins found in outputs
// get PWM support.
func Register(ctrl *sunxigpio.Controller, pins []sunxigpio.Pin, outputs map[sunxigpio.Pin]*PWMOutput) error {
	for _, p := range pins {
		if err := gpioreg.Register(NewPin(ctrl, p, outputs[p])); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pin) String() string {
	return p.Name()
}

// Name returns the port name, for example PB2.
func (p *Pin) Name() string {
	return p.pin.String()
}

// Number returns the pin identifier, (bank << 5) + number.
func (p *Pin) Number() int {
	return int(p.pin)
}

// Function is deprecated in periph; it returns Func as a string.
func (p *Pin) Function() string {
	return string(p.Func())
}

// Halt stops a running PWM output.
func (p *Pin) Halt() error {
	if p.pwm == nil {
		return nil
	}
	return p.pwm.Controller.Disable(p.pwm.Channel)
}

// In configures the pin as input.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return ErrorEdgeUnsupported
	}

	if err := p.ctrl.SetFunction(p.pin, sunxigpio.Input); err != nil {
		return err
	}

	switch pull {
	case gpio.Float:
		return p.ctrl.SetPull(p.pin, sunxigpio.PullDisabled)
	case gpio.PullUp:
		return p.ctrl.SetPull(p.pin, sunxigpio.PullUp)
	case gpio.PullDown:
		return p.ctrl.SetPull(p.pin, sunxigpio.PullDown)
	}
	return nil
}

// Read returns the current level. Errors read as Low.
func (p *Pin) Read() gpio.Level {
	high, err := p.ctrl.Input(p.pin)
	if err != nil {
		return gpio.Low
	}
	return gpio.Level(high)
}

// WaitForEdge always returns false, the PIO interrupt block is not used.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull returns the configured pull resistor.
func (p *Pin) Pull() gpio.Pull {
	pull, err := p.ctrl.Pull(p.pin)
	if err != nil {
		return gpio.PullNoChange
	}

	switch pull {
	case sunxigpio.PullDisabled:
		return gpio.Float
	case sunxigpio.PullUp:
		return gpio.PullUp
	case sunxigpio.PullDown:
		return gpio.PullDown
	}
	return gpio.PullNoChange
}

// DefaultPull returns the reset state of the pull resistor.
func (p *Pin) DefaultPull() gpio.Pull {
	return gpio.Float
}

// Out drives the pin. The level is latched before the pin becomes an output.
func (p *Pin) Out(l gpio.Level) error {
	if err := p.ctrl.Output(p.pin, bool(l)); err != nil {
		return err
	}
	return p.ctrl.SetFunction(p.pin, sunxigpio.Output)
}

// PWM starts the PWM channel connected to this pin.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	if p.pwm == nil {
		return ErrorNoPWM
	}
	if duty < 0 || duty > gpio.DutyMax || f <= 0 {
		return ErrorInvalidDuty
	}

	period := uint64(f.Period())
	if period == 0 {
		return pwm.ErrorOutOfRange
	}
	dutyNs := period * uint64(duty) / uint64(gpio.DutyMax)

	out := p.pwm
	if err := out.Controller.SetConfig(out.Channel, period, dutyNs); err != nil {
		return err
	}
	if err := out.Controller.SetPolarity(out.Channel, pwm.PolarityNormal); err != nil {
		return err
	}
	if err := p.ctrl.SetFunction(p.pin, out.Function); err != nil {
		return err
	}
	return out.Controller.Enable(out.Channel)
}

// Func returns the current function of the pin.
func (p *Pin) Func() pin.Func {
	fn, err := p.ctrl.Function(p.pin)
	if err != nil {
		return pin.FuncNone
	}

	switch {
	case fn == sunxigpio.Input:
		if p.Read() {
			return gpio.IN_HIGH
		}
		return gpio.IN_LOW
	case fn == sunxigpio.Output:
		if p.Read() {
			return gpio.OUT_HIGH
		}
		return gpio.OUT_LOW
	case p.pwm != nil && fn == p.pwm.Function:
		return p.pwm.funcName()
	}
	return pin.Func(strings.ToUpper(fn.String()))
}

// SupportedFuncs returns the functions SetFunc accepts.
func (p *Pin) SupportedFuncs() []pin.Func {
	funcs := []pin.Func{gpio.IN, gpio.OUT}
	if p.pwm != nil {
		funcs = append(funcs, p.pwm.funcName())
	}
	return funcs
}

// SetFunc changes the function of the pin.
func (p *Pin) SetFunc(f pin.Func) error {
	switch f {
	case gpio.IN:
		return p.In(gpio.PullNoChange, gpio.NoEdge)
	case gpio.IN_HIGH:
		return p.In(gpio.PullUp, gpio.NoEdge)
	case gpio.IN_LOW:
		return p.In(gpio.PullDown, gpio.NoEdge)
	case gpio.OUT, gpio.OUT_LOW:
		return p.Out(gpio.Low)
	case gpio.OUT_HIGH:
		return p.Out(gpio.High)
	}

	if p.pwm != nil && f == p.pwm.funcName() {
		return p.ctrl.SetFunction(p.pin, p.pwm.Function)
	}
	return ErrorUnsupportedFunc
}
