// Package server is the control daemon. It owns the mapped register blocks,
// executes commands received over HTTP through one interpreter and keeps the
// applied settings in a state file so they survive a restart.
package server

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/BertoldVdb/go-sunxi/command"
	"github.com/BertoldVdb/go-sunxi/gpio"
	"github.com/BertoldVdb/go-sunxi/logrusconfig"
	"github.com/BertoldVdb/go-sunxi/lradc"
	"github.com/BertoldVdb/go-sunxi/mmio"
	"github.com/BertoldVdb/go-sunxi/periphconn"
	"github.com/BertoldVdb/go-sunxi/pwm"
	"github.com/BertoldVdb/go-sunxi/statestore"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/spi"
)

// Config configures the daemon.
type Config struct {
	// Listen is the HTTP listen address, for example ":8080"
	Listen string
	// StateFile stores the journal. Empty disables persistence.
	StateFile string
	// Script is executed once after the journal was restored
	Script string
	// SaveInterval is the minimum time between state file writes
	SaveInterval time.Duration

	// Mem is passed to every register mapping
	Mem mmio.Options

	// RegisterPins adds all pins to the periph gpioreg registry. Pins used
	// through the registry are not serialised with the interpreter, so only
	// enable it for in-process drivers that own their pins exclusively.
	RegisterPins bool

	// OpenSPI overrides how "spi <device>" commands open devices
	OpenSPI func(device string) (spi.PortCloser, error)

	Logger *logrus.Entry
}

// Hardware is the set of register façades the daemon drives.
type Hardware struct {
	GPIO  *gpio.Controller
	PWM   *pwm.Controller
	LRADC *lradc.Controller
}

// Close unmaps all blocks.
func (h *Hardware) Close() error {
	var firstErr error
	for _, closer := range []io.Closer{h.GPIO, h.PWM, h.LRADC} {
		if err := closer.Close(); err != nil && err != mmio.ErrorUninitialized && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MapHardware maps the GPIO, PWM and LRADC register blocks.
func MapHardware(opts *mmio.Options) (*Hardware, error) {
	h := &Hardware{}

	var err error
	h.GPIO, err = gpio.Open(opts)
	if err == nil {
		h.PWM, err = pwm.Open(opts)
	}
	if err == nil {
		h.LRADC, err = lradc.Open(opts)
	}

	if err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// pwmOutputs routes PWM0 to PB2 and PWM1 to PI3, multiplexer function 2.
func pwmOutputs(h *Hardware) map[gpio.Pin]*periphconn.PWMOutput {
	return map[gpio.Pin]*periphconn.PWMOutput{
		gpio.NewPin('B', 2): {Controller: h.PWM, Channel: pwm.Channel0, Function: gpio.Peripheral},
		gpio.NewPin('I', 3): {Controller: h.PWM, Channel: pwm.Channel1, Function: gpio.Peripheral},
	}
}

func allPins() []gpio.Pin {
	var pins []gpio.Pin
	for port := byte('A'); port <= 'I'; port++ {
		for n := 0; n < 32; n++ {
			pins = append(pins, gpio.NewPin(port, n))
		}
	}
	return pins
}

// openSPI opens "<bus>.<cs>" as /dev/spidev<bus>.<cs>.
func openSPI(device string) (spi.PortCloser, error) {
	var bus, cs int
	if _, err := fmt.Sscanf(device, "%d.%d", &bus, &cs); err != nil {
		return nil, fmt.Errorf("%w: invalid SPI device %q", command.ErrorSyntax, device)
	}
	return periphconn.OpenPort(bus, cs)
}

type persistedState struct {
	Journal []command.Entry
}

// Server is the running daemon.
type Server struct {
	config Config
	log    *logrus.Entry

	hw     *Hardware
	interp *command.Interpreter

	store      *statestore.Store
	state      persistedState
	journalGen uint64

	runMutex  sync.Mutex
	saverWait sync.WaitGroup
	closeOnce sync.Once
	closeChan chan struct{}
	closeDone chan struct{}
	httpState
}

// New creates a daemon driving already mapped hardware. The server takes
// ownership of hw.
func New(config *Config, hw *Hardware) (*Server, error) {
	s := &Server{
		config:    *config,
		hw:        hw,
		closeChan: make(chan struct{}),
		closeDone: make(chan struct{}),
	}

	s.log = s.config.Logger
	if s.log == nil {
		s.log = logrusconfig.GetLogger(logrus.InfoLevel)
	}

	opener := s.config.OpenSPI
	if opener == nil {
		opener = openSPI
	}

	s.interp = command.New(&command.Config{
		GPIO:    hw.GPIO,
		PWM:     hw.PWM,
		LRADC:   hw.LRADC,
		OpenSPI: opener,
		Logger:  logrusconfig.Subsystem(s.log, "command"),
	})

	s.store = &statestore.Store{
		Filename:     s.config.StateFile,
		Target:       &s.state,
		SaveInterval: s.config.SaveInterval,
	}

	if s.config.RegisterPins {
		if err := periphconn.Register(hw.GPIO, allPins(), pwmOutputs(hw)); err != nil {
			return nil, err
		}
	}

	s.initHTTP()
	return s, nil
}

// Open maps the hardware and creates the daemon.
func Open(config *Config) (*Server, error) {
	hw, err := MapHardware(&config.Mem)
	if err != nil {
		return nil, err
	}

	s, err := New(config, hw)
	if err != nil {
		hw.Close()
		return nil, err
	}
	return s, nil
}

// Restore replays the saved journal and runs the startup script. Entries that
// fail are logged and skipped; a failing script is an error.
func (s *Server) Restore() error {
	log := logrusconfig.Subsystem(s.log, "state")

	if s.config.StateFile != "" {
		err := s.store.Load()
		switch {
		case os.IsNotExist(err):
			log.Info("No saved state, starting fresh")
		case err != nil:
			log.WithError(err).Warn("Failed to load saved state")
		default:
			if err := s.interp.Replay(s.state.Journal); err != nil {
				log.WithError(err).Warn("Journal replayed with errors")
			}
			log.WithField("entries", len(s.state.Journal)).Info("Restored saved state")
		}
	}

	if s.config.Script != "" {
		file, err := os.Open(s.config.Script)
		if err != nil {
			return err
		}
		defer file.Close()

		output, err := s.interp.ExecScript(file)
		if output != "" {
			log.Info("Startup script output:\n" + output)
		}
		if err != nil {
			return fmt.Errorf("startup script %s: %w", s.config.Script, err)
		}
	}

	return nil
}

// saveState writes the journal if it changed. force ignores SaveInterval.
func (s *Server) saveState(force bool) error {
	journal, gen := s.interp.Snapshot()
	if gen != s.journalGen {
		s.store.Update(func() {
			s.state.Journal = journal
		})
		s.journalGen = gen
	}

	if force {
		if !s.store.Modified() {
			return nil
		}
		return s.store.Save()
	}

	_, err := s.store.SaveConditional()
	return err
}

// Interpreter returns the interpreter owning the hardware.
func (s *Server) Interpreter() *command.Interpreter {
	return s.interp
}
