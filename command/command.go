// Package command implements a small line based language to drive the GPIO,
// PWM, LRADC and SPI peripherals, for example:
//
//	gpio func PB2 out
//	gpio set PB2 1
//	pwm config 0 1000000 500000
//	pwm enable 0
//	spi 0.0 xfer 9f000000
//
// Commands that change hardware state are recorded in a journal, keyed by
// the setting they change. Replaying the journal restores the state.
package command

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/BertoldVdb/go-sunxi/gpio"
	"github.com/BertoldVdb/go-sunxi/lradc"
	"github.com/BertoldVdb/go-sunxi/pwm"
	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrorUnknownCommand = Error("Unknown command")
	ErrorSyntax         = Error("Syntax error")
	ErrorNoSPI          = Error("SPI is not available")
)

// Config holds the peripherals the interpreter drives. Missing controllers
// make their commands fail with mmio.ErrorUninitialized.
type Config struct {
	GPIO  *gpio.Controller
	PWM   *pwm.Controller
	LRADC *lradc.Controller

	// OpenSPI opens the device named in "spi <device> ...", for example "0.0"
	OpenSPI  func(device string) (spi.PortCloser, error)
	SPISpeed physic.Frequency
	SPIMode  spi.Mode

	Logger *logrus.Entry
}

// Entry is one journal line.
type Entry struct {
	Key  string
	Line string
}

// Interpreter executes commands. All commands are serialised, so one
// Interpreter is the single owner of the register blocks it is given.
type Interpreter struct {
	mutex  sync.Mutex
	config Config

	journal    []Entry
	generation uint64
	ports      map[string]spi.PortCloser
	conns      map[string]spi.Conn
}

// New creates an interpreter. The config is copied.
func New(config *Config) *Interpreter {
	i := &Interpreter{
		ports: make(map[string]spi.PortCloser),
		conns: make(map[string]spi.Conn),
	}
	if config != nil {
		i.config = *config
	}
	if i.config.SPISpeed == 0 {
		i.config.SPISpeed = physic.MegaHertz
	}
	if i.config.Logger == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		i.config.Logger = logrus.NewEntry(logger)
	}
	return i
}

type handler func(i *Interpreter, args []string) (string, string, error)

var handlers = map[string]handler{
	"gpio":  (*Interpreter).execGPIO,
	"pwm":   (*Interpreter).execPWM,
	"lradc": (*Interpreter).execLRADC,
	"spi":   (*Interpreter).execSPI,
}

func syntaxError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrorSyntax, fmt.Sprintf(format, args...))
}

// Exec runs one line. Empty lines and comments return an empty string.
func (i *Interpreter) Exec(line string) (string, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	return i.exec(line)
}

func (i *Interpreter) exec(line string) (string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrorSyntax, err)
	}
	if len(args) == 0 {
		return "", nil
	}

	h, ok := handlers[strings.ToLower(args[0])]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrorUnknownCommand, args[0])
	}

	output, key, err := h(i, args)
	if err != nil {
		i.config.Logger.WithError(err).WithField("line", line).Debug("Command failed")
		return "", err
	}

	if key != "" {
		i.record(key, strings.Join(args, " "))
	}
	return output, nil
}

func (i *Interpreter) record(key string, line string) {
	for n, e := range i.journal {
		if e.Key == key {
			i.journal = append(i.journal[:n], i.journal[n+1:]...)
			break
		}
	}
	i.journal = append(i.journal, Entry{Key: key, Line: line})
	i.generation++
}

// Do runs fn serialised with all commands, for direct access to the
// controllers.
func (i *Interpreter) Do(fn func() error) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	return fn()
}

// ExecScript runs all lines from r and returns the collected output. It stops
// at the first failing line.
func (i *Interpreter) ExecScript(r io.Reader) (string, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	var output strings.Builder
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++

		result, err := i.exec(scanner.Text())
		if err != nil {
			return output.String(), fmt.Errorf("line %d: %w", lineNum, err)
		}
		if result != "" {
			output.WriteString(result)
			output.WriteByte('\n')
		}
	}

	return output.String(), scanner.Err()
}

// Journal returns the current journal, oldest change first.
func (i *Interpreter) Journal() []Entry {
	journal, _ := i.Snapshot()
	return journal
}

// Snapshot returns the journal together with its generation, a counter that
// increments on every journal update.
func (i *Interpreter) Snapshot() ([]Entry, uint64) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	return append([]Entry(nil), i.journal...), i.generation
}

// Replay executes all journal entries. Failing entries are skipped and the
// first error is returned after all entries were tried.
func (i *Interpreter) Replay(entries []Entry) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	var firstErr error
	for _, e := range entries {
		_, err := i.exec(e.Line)
		if err != nil {
			i.config.Logger.WithError(err).WithField("line", e.Line).Warn("Failed to replay journal entry")
			if firstErr == nil {
				firstErr = fmt.Errorf("replaying %q: %w", e.Line, err)
			}
		}
	}
	return firstErr
}

// Close closes all SPI ports opened by commands.
func (i *Interpreter) Close() error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	var firstErr error
	for name, port := range i.ports {
		if err := port.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(i.ports, name)
		delete(i.conns, name)
	}
	return firstErr
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, syntaxError("invalid number %q", s)
	}
	return v, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "on", "high", "true":
		return true, nil
	case "0", "off", "low", "false":
		return false, nil
	}
	return false, syntaxError("invalid boolean %q", s)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func expectArgs(args []string, n int) error {
	if len(args) != n {
		return syntaxError("%s expects %d arguments", strings.Join(args[:min(len(args), 2)], " "), n-2)
	}
	return nil
}
