package command

import (
	"fmt"
	"strings"

	"github.com/BertoldVdb/go-sunxi/pwm"
)

// pwm config|enable|disable|polarity|show <ch> [...]
func (i *Interpreter) execPWM(args []string) (string, string, error) {
	if len(args) < 3 {
		return "", "", syntaxError("usage: pwm config|enable|disable|polarity|show <ch> [...]")
	}

	sub := strings.ToLower(args[1])
	chNum, err := parseUint(args[2], 32)
	if err != nil {
		return "", "", err
	}
	ch := pwm.Channel(chNum)
	c := i.config.PWM

	switch sub {
	case "config":
		if err := expectArgs(args, 5); err != nil {
			return "", "", err
		}
		period, err := parseUint(args[3], 64)
		if err != nil {
			return "", "", err
		}
		duty, err := parseUint(args[4], 64)
		if err != nil {
			return "", "", err
		}
		return "", fmt.Sprintf("pwm config %d", ch), c.SetConfig(ch, period, duty)

	case "enable", "disable":
		if err := expectArgs(args, 3); err != nil {
			return "", "", err
		}
		key := fmt.Sprintf("pwm run %d", ch)
		if sub == "enable" {
			return "", key, c.Enable(ch)
		}
		return "", key, c.Disable(ch)

	case "polarity":
		if err := expectArgs(args, 4); err != nil {
			return "", "", err
		}
		var pol pwm.Polarity
		switch strings.ToLower(args[3]) {
		case "normal":
			pol = pwm.PolarityNormal
		case "inversed", "inverted":
			pol = pwm.PolarityInversed
		default:
			return "", "", syntaxError("invalid polarity %q", args[3])
		}
		return "", fmt.Sprintf("pwm polarity %d", ch), c.SetPolarity(ch, pol)

	case "show":
		if err := expectArgs(args, 3); err != nil {
			return "", "", err
		}
		s, err := c.State(ch)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("prescaler=%d period=%dns duty=%dns polarity=%s enabled=%s",
			pwm.Prescalers[s.Timing.Prescaler&0xF], s.Timing.PeriodNs(), s.Timing.DutyNs(), s.Polarity, formatBool(s.Enabled)), "", nil
	}

	return "", "", fmt.Errorf("%w: pwm %s", ErrorUnknownCommand, args[1])
}
