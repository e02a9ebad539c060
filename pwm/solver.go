package pwm

// InputClock is the frequency feeding the PWM prescaler, in Hz.
const InputClock = 24000000

// Prescalers maps the 4 bit prescaler field to the clock divisor. Zero entries
// are reserved codes.
var Prescalers = [16]uint32{120, 180, 240, 360, 480, 0, 0, 0, 12000, 24000, 36000, 48000, 72000, 0, 0, 0}

const maxCount = 0xFFFF

// Timing is the register level description of a PWM waveform.
type Timing struct {
	// Prescaler is the index into Prescalers.
	Prescaler uint8
	// Period is the number of prescaled clock cycles per period.
	Period uint32
	// Duty is the number of cycles the output is active.
	Duty uint32
}

// Register returns the value of the channel period register.
func (t Timing) Register() uint32 {
	return (t.Period-1)<<16 | t.Duty&0xFFFF
}

// TimingFromRegister decodes a period register value.
func TimingFromRegister(prescaler uint8, reg uint32) Timing {
	return Timing{
		Prescaler: prescaler,
		Period:    reg>>16 + 1,
		Duty:      reg & 0xFFFF,
	}
}

// ClockRate returns the counter clock rate for a prescaler index in Hz, 0 for reserved codes.
func ClockRate(prescaler uint8) uint64 {
	if int(prescaler) >= len(Prescalers) || Prescalers[prescaler] == 0 {
		return 0
	}
	return uint64(InputClock / Prescalers[prescaler])
}

// PeriodNs returns the period in nanoseconds described by the timing.
func (t Timing) PeriodNs() uint64 {
	rate := ClockRate(t.Prescaler)
	if rate == 0 {
		return 0
	}
	return uint64(t.Period) * 1000000000 / rate
}

// DutyNs returns the active time in nanoseconds described by the timing.
func (t Timing) DutyNs() uint64 {
	rate := ClockRate(t.Prescaler)
	if rate == 0 {
		return 0
	}
	return uint64(t.Duty) * 1000000000 / rate
}

// Solve picks the smallest prescaler for which periodNs fits in the 16 bit
// period counter and scales dutyNs with the resulting count.
func Solve(periodNs uint64, dutyNs uint64) (Timing, error) {
	if dutyNs > periodNs {
		return Timing{}, ErrorDutyExceedsPeriod
	}

	for i := range Prescalers {
		rate := ClockRate(uint8(i))
		if rate == 0 {
			continue
		}

		count, ok := mulDiv(rate, periodNs, 1000000000)
		if !ok || count == 0 || count-1 > maxCount {
			continue
		}

		/* duty <= period, so this is at most count */
		duty, _ := mulDiv(count, dutyNs, periodNs)

		return Timing{
			Prescaler: uint8(i),
			Period:    uint32(count),
			Duty:      uint32(duty),
		}, nil
	}

	return Timing{}, ErrorOutOfRange
}

// mulDiv returns a*b/c, reporting false when the product overflows 64 bits.
func mulDiv(a uint64, b uint64, c uint64) (uint64, bool) {
	if a != 0 && b > ^uint64(0)/a {
		return 0, false
	}
	return a * b / c, true
}
