package periphconn

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	sunxigpio "github.com/BertoldVdb/go-sunxi/gpio"
	spidev "github.com/BertoldVdb/go-sunxi/linux-pio/spi"
	"github.com/BertoldVdb/go-sunxi/mmio"
	"github.com/BertoldVdb/go-sunxi/pwm"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

func newTestPin(t *testing.T, withPWM bool) (*Pin, *sunxigpio.Controller, *pwm.Controller) {
	ctrl := sunxigpio.New(mmio.FromWords(make([]uint32, sunxigpio.BlockSize/4)))
	pwmCtrl := pwm.New(mmio.FromWords(make([]uint32, pwm.BlockSize/4)))

	var out *PWMOutput
	if withPWM {
		out = &PWMOutput{
			Controller: pwmCtrl,
			Channel:    pwm.Channel0,
			Function:   3,
		}
	}
	return NewPin(ctrl, sunxigpio.NewPin('B', 2), out), ctrl, pwmCtrl
}

func TestPinIdentity(t *testing.T) {
	p, _, _ := newTestPin(t, false)

	if p.Name() != "PB2" || p.String() != "PB2" || p.Number() != 34 {
		t.Error("Unexpected identity", p.Name(), p.Number())
	}
	if p.DefaultPull() != gpio.Float {
		t.Error("Default pull")
	}
}

func TestPinInput(t *testing.T) {
	p, ctrl, _ := newTestPin(t, false)
	ctrl.SetFunction(sunxigpio.NewPin('B', 2), sunxigpio.Output)

	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		t.Fatal(err)
	}
	if fn, _ := ctrl.Function(sunxigpio.NewPin('B', 2)); fn != sunxigpio.Input {
		t.Error("Pin is not an input", fn)
	}
	if p.Pull() != gpio.PullUp {
		t.Error("Pull not applied", p.Pull())
	}

	if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil || p.Pull() != gpio.PullUp {
		t.Error("Pull changed", err)
	}
	if err := p.In(gpio.Float, gpio.NoEdge); err != nil || p.Pull() != gpio.Float {
		t.Error("Pull not cleared", err)
	}

	if p.In(gpio.Float, gpio.RisingEdge) != ErrorEdgeUnsupported {
		t.Error("Edge detection accepted")
	}
	if p.WaitForEdge(0) {
		t.Error("Edge reported")
	}
}

func TestPinOutput(t *testing.T) {
	p, _, _ := newTestPin(t, false)

	if err := p.Out(gpio.High); err != nil {
		t.Fatal(err)
	}
	if p.Read() != gpio.High || p.Func() != gpio.OUT_HIGH {
		t.Error("Pin is not driven high", p.Func())
	}

	if err := p.Out(gpio.Low); err != nil {
		t.Fatal(err)
	}
	if p.Read() != gpio.Low || p.Function() != string(gpio.OUT_LOW) {
		t.Error("Pin is not driven low", p.Func())
	}
}

func TestPinFunc(t *testing.T) {
	p, ctrl, _ := newTestPin(t, true)

	if len(p.SupportedFuncs()) != 3 {
		t.Error("Unexpected functions", p.SupportedFuncs())
	}

	if err := p.SetFunc(gpio.IN_LOW); err != nil {
		t.Fatal(err)
	}
	if p.Func() != gpio.IN_LOW || p.Pull() != gpio.PullDown {
		t.Error("Unexpected function", p.Func(), p.Pull())
	}

	if err := p.SetFunc("PWM0"); err != nil {
		t.Fatal(err)
	}
	if fn, _ := ctrl.Function(sunxigpio.NewPin('B', 2)); fn != 3 {
		t.Error("Multiplexer not set", fn)
	}
	if p.Func() != "PWM0" {
		t.Error("Unexpected function", p.Func())
	}

	if p.SetFunc("I2C0_SDA") != ErrorUnsupportedFunc {
		t.Error("Unknown function accepted")
	}

	ctrl.SetFunction(sunxigpio.NewPin('B', 2), 4)
	if p.Func() != "FUNC4" {
		t.Error("Unexpected function", p.Func())
	}
}

func TestPinPWM(t *testing.T) {
	p, _, _ := newTestPin(t, false)
	if p.PWM(gpio.DutyHalf, physic.KiloHertz) != ErrorNoPWM {
		t.Error("PWM on plain pin accepted")
	}

	p, ctrl, pwmCtrl := newTestPin(t, true)
	if p.PWM(gpio.DutyMax+1, physic.KiloHertz) != ErrorInvalidDuty {
		t.Error("Invalid duty accepted")
	}

	if err := p.PWM(gpio.DutyHalf, physic.KiloHertz); err != nil {
		t.Fatal(err)
	}

	s, err := pwmCtrl.State(pwm.Channel0)
	if err != nil {
		t.Fatal(err)
	}
	if s.Timing.Register() != 0x00C70064 || !s.Enabled || !s.Gated || s.Polarity != pwm.PolarityNormal {
		t.Errorf("Unexpected PWM state %+v", s)
	}
	if fn, _ := ctrl.Function(sunxigpio.NewPin('B', 2)); fn != 3 {
		t.Error("Pin not routed to PWM", fn)
	}

	if err := p.Halt(); err != nil {
		t.Fatal(err)
	}
	if s, _ := pwmCtrl.State(pwm.Channel0); s.Enabled {
		t.Error("Halt did not stop the channel")
	}
}

func TestUninitializedPin(t *testing.T) {
	p := NewPin(nil, sunxigpio.NewPin('A', 0), nil)

	if p.Read() != gpio.Low || p.Pull() != gpio.PullNoChange || p.Func() != "" {
		t.Error("Unexpected state for unmapped pin")
	}
	if err := p.Out(gpio.High); err != mmio.ErrorUninitialized {
		t.Error(err)
	}
}

func TestRegister(t *testing.T) {
	ctrl := sunxigpio.New(mmio.FromWords(make([]uint32, sunxigpio.BlockSize/4)))
	pins := []sunxigpio.Pin{sunxigpio.NewPin('H', 30), sunxigpio.NewPin('H', 31)}

	if err := Register(ctrl, pins, nil); err != nil {
		t.Fatal(err)
	}

	p := gpioreg.ByName("PH31")
	if p == nil || p.Number() != int(pins[1]) {
		t.Fatal("Pin not registered")
	}

	if err := p.Out(gpio.High); err != nil {
		t.Fatal(err)
	}
	if high, _ := ctrl.Input(pins[1]); !high {
		t.Error("Registered pin does not drive the controller")
	}
}

func TestSpidevMode(t *testing.T) {
	check := func(mode spi.Mode, expected uint32) {
		if m := spidevMode(mode); uint32(m) != expected {
			t.Errorf("Mode %v mapped to %02x, expected %02x", mode, m, expected)
		}
	}

	check(spi.Mode0, 0)
	check(spi.Mode1, spidev.ModeCPHA)
	check(spi.Mode2, spidev.ModeCPOL)
	check(spi.Mode3, spidev.ModeCPHA|spidev.ModeCPOL)
	check(spi.Mode3|spi.LSBFirst, spidev.ModeCPHA|spidev.ModeCPOL|spidev.ModeLSBFirst)
	check(spi.Mode0|spi.NoCS|spi.HalfDuplex, spidev.ModeNoCS|spidev.Mode3Wire)
}

func TestPacketTransfers(t *testing.T) {
	w := []byte{1, 2}
	r := make([]byte, 2)

	transfers := packetTransfers([]spi.Packet{
		{W: w, R: r, KeepCS: true},
		{R: r, BitsPerWord: 16},
	}, 1000000, 8)

	if len(transfers) != 2 {
		t.Fatal(len(transfers))
	}
	if &transfers[0].Tx[0] != &w[0] || &transfers[0].Rx[0] != &r[0] || !transfers[0].CSChange {
		t.Error("First packet not mapped")
	}
	if transfers[0].SpeedHz != 1000000 || transfers[0].BitsPerWord != 8 {
		t.Error("Connection defaults not applied")
	}
	if transfers[1].Tx != nil || transfers[1].BitsPerWord != 16 || transfers[1].CSChange {
		t.Error("Second packet not mapped")
	}
}

func TestPortOnRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spidev")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}

	dev, err := spidev.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	port := NewPort(dev, "test")
	defer port.Close()

	if _, err := port.Connect(physic.MegaHertz, spi.Mode0, 0); err != ErrorInvalidBits {
		t.Error("Zero bits accepted", err)
	}
	if _, err := port.Connect(physic.MegaHertz, spi.Mode0, 8); !errors.Is(err, syscall.ENOTTY) {
		t.Error("Connect on regular file:", err)
	}
}

func TestConnSpeedLimit(t *testing.T) {
	port := &Port{}
	c := &Conn{port: port, speed: 10 * physic.MegaHertz}

	if c.speedHz() != 10000000 {
		t.Error(c.speedHz())
	}

	port.LimitSpeed(physic.MegaHertz)
	if c.speedHz() != 1000000 {
		t.Error(c.speedHz())
	}

	c.speed = 0
	if c.speedHz() != 1000000 {
		t.Error(c.speedHz())
	}
}
