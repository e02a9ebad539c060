package command

import (
	"fmt"
	"strings"

	"github.com/BertoldVdb/go-sunxi/gpio"
)

func parseFunction(s string) (gpio.Function, error) {
	switch strings.ToLower(s) {
	case "in", "input":
		return gpio.Input, nil
	case "out", "output":
		return gpio.Output, nil
	case "per", "peripheral":
		return gpio.Peripheral, nil
	}

	v, err := parseUint(strings.TrimPrefix(strings.ToLower(s), "func"), 8)
	if err != nil || v > 7 {
		return 0, syntaxError("invalid pin function %q", s)
	}
	return gpio.Function(v), nil
}

func parsePull(s string) (gpio.Pull, error) {
	switch strings.ToLower(s) {
	case "off", "none", "disabled":
		return gpio.PullDisabled, nil
	case "up":
		return gpio.PullUp, nil
	case "down":
		return gpio.PullDown, nil
	}
	return 0, syntaxError("invalid pull %q", s)
}

// gpio func|get|set|pull|drive|show <pin> [value]
func (i *Interpreter) execGPIO(args []string) (string, string, error) {
	if len(args) < 3 {
		return "", "", syntaxError("usage: gpio func|get|set|pull|drive|show <pin> [value]")
	}

	sub := strings.ToLower(args[1])
	pin, err := gpio.ParsePin(args[2])
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrorSyntax, err)
	}
	args[2] = pin.String()
	key := "gpio " + sub + " " + pin.String()
	c := i.config.GPIO

	switch sub {
	case "func":
		if len(args) == 3 {
			f, err := c.Function(pin)
			return f.String(), "", err
		}
		if err := expectArgs(args, 4); err != nil {
			return "", "", err
		}
		f, err := parseFunction(args[3])
		if err != nil {
			return "", "", err
		}
		return "", key, c.SetFunction(pin, f)

	case "get":
		if err := expectArgs(args, 3); err != nil {
			return "", "", err
		}
		high, err := c.Input(pin)
		return formatBool(high), "", err

	case "set":
		if err := expectArgs(args, 4); err != nil {
			return "", "", err
		}
		high, err := parseBool(args[3])
		if err != nil {
			return "", "", err
		}
		return "", key, c.Output(pin, high)

	case "pull":
		if len(args) == 3 {
			p, err := c.Pull(pin)
			return p.String(), "", err
		}
		if err := expectArgs(args, 4); err != nil {
			return "", "", err
		}
		p, err := parsePull(args[3])
		if err != nil {
			return "", "", err
		}
		return "", key, c.SetPull(pin, p)

	case "drive":
		if len(args) == 3 {
			d, err := c.Drive(pin)
			return fmt.Sprint(d), "", err
		}
		if err := expectArgs(args, 4); err != nil {
			return "", "", err
		}
		d, err := parseUint(args[3], 8)
		if err != nil || d > 3 {
			return "", "", syntaxError("drive level must be 0..3")
		}
		return "", key, c.SetDrive(pin, gpio.Drive(d))

	case "show":
		if err := expectArgs(args, 3); err != nil {
			return "", "", err
		}
		f, err := c.Function(pin)
		if err != nil {
			return "", "", err
		}
		high, err := c.Input(pin)
		if err != nil {
			return "", "", err
		}
		p, err := c.Pull(pin)
		if err != nil {
			return "", "", err
		}
		d, err := c.Drive(pin)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("%s func=%s level=%s pull=%s drive=%d", pin, f, formatBool(high), p, d), "", nil
	}

	return "", "", fmt.Errorf("%w: gpio %s", ErrorUnknownCommand, args[1])
}
