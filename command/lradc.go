package command

import (
	"fmt"
	"strings"

	"github.com/BertoldVdb/go-sunxi/lradc"
)

var (
	keyModes = map[string]lradc.KeyMode{
		"normal":   lradc.KeyModeNormal,
		"single":   lradc.KeyModeSingle,
		"continue": lradc.KeyModeContinue,
	}
	levelBVolts = map[string]lradc.LevelBVolt{
		"1.9": lradc.LevelB1V9,
		"1.8": lradc.LevelB1V8,
		"1.7": lradc.LevelB1V7,
		"1.6": lradc.LevelB1V6,
	}
	sampleRates = map[string]lradc.SampleRate{
		"250":   lradc.SampleRate250Hz,
		"125":   lradc.SampleRate125Hz,
		"62.5":  lradc.SampleRate62_5Hz,
		"32.25": lradc.SampleRate32_25Hz,
	}
)

func lookupName[T comparable](m map[string]T, value T) string {
	for name, v := range m {
		if v == value {
			return name
		}
	}
	return "?"
}

// lradc enable|disable|show|read <ch>|<setting> <value>
func (i *Interpreter) execLRADC(args []string) (string, string, error) {
	if len(args) < 2 {
		return "", "", syntaxError("usage: lradc enable|disable|show|read|delay|channel|ctime|mode|count|hold|volt|rate [value]")
	}

	sub := strings.ToLower(args[1])
	c := i.config.LRADC

	switch sub {
	case "enable", "disable":
		if err := expectArgs(args, 2); err != nil {
			return "", "", err
		}
		if sub == "enable" {
			return "", "lradc run", c.Enable()
		}
		return "", "lradc run", c.Disable()

	case "show":
		if err := expectArgs(args, 2); err != nil {
			return "", "", err
		}
		s, err := c.Settings()
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("enabled=%s delay=%d channel=%d ctime=%d mode=%s count=%d hold=%s volt=%s rate=%s",
			formatBool(s.Enabled), s.FirstConvertDelay, s.Channel, s.ContinueTime, lookupName(keyModes, s.KeyMode),
			s.LevelABCount, formatBool(s.HoldOn), lookupName(levelBVolts, s.LevelBVolt), lookupName(sampleRates, s.SampleRate)), "", nil

	case "read":
		if err := expectArgs(args, 3); err != nil {
			return "", "", err
		}
		ch, err := parseUint(args[2], 32)
		if err != nil {
			return "", "", err
		}
		v, err := c.Read(lradc.Channel(ch))
		return fmt.Sprint(v), "", err
	}

	if err := expectArgs(args, 3); err != nil {
		return "", "", err
	}
	key := "lradc " + sub
	value := strings.ToLower(args[2])

	switch sub {
	case "delay", "ctime", "count":
		limit := uint64(15)
		if sub == "delay" {
			limit = 255
		}
		v, err := parseUint(value, 8)
		if err != nil || v > limit {
			return "", "", syntaxError("%s must be 0..%d", sub, limit)
		}
		switch sub {
		case "delay":
			return "", key, c.SetFirstConvertDelay(uint8(v))
		case "ctime":
			return "", key, c.SetContinueTimeSelect(uint8(v))
		}
		return "", key, c.SetLevelABCount(uint8(v))

	case "channel":
		v, err := parseUint(value, 8)
		if err != nil || v > uint64(lradc.Channel0And1) {
			return "", "", syntaxError("channel must be 0, 1 or 2")
		}
		return "", key, c.SetChannel(lradc.Channel(v))

	case "mode":
		mode, ok := keyModes[value]
		if !ok {
			return "", "", syntaxError("invalid key mode %q", args[2])
		}
		return "", key, c.SetKeyMode(mode)

	case "hold":
		hold, err := parseBool(value)
		if err != nil {
			return "", "", err
		}
		return "", key, c.SetHoldOn(hold)

	case "volt":
		volt, ok := levelBVolts[strings.TrimSuffix(value, "v")]
		if !ok {
			return "", "", syntaxError("invalid level B voltage %q", args[2])
		}
		return "", key, c.SetLevelBVolt(volt)

	case "rate":
		rate, ok := sampleRates[strings.TrimSuffix(value, "hz")]
		if !ok {
			return "", "", syntaxError("invalid sample rate %q", args[2])
		}
		return "", key, c.SetSampleRate(rate)
	}

	return "", "", fmt.Errorf("%w: lradc %s", ErrorUnknownCommand, args[1])
}
