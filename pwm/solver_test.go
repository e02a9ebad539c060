package pwm

import (
	"math/rand"
	"testing"
)

func TestSolveExample(t *testing.T) {
	timing, err := Solve(1000000, 500000)
	if err != nil {
		t.Fatal(err)
	}

	if Prescalers[timing.Prescaler] != 120 || timing.Period != 200 || timing.Duty != 100 {
		t.Errorf("Unexpected timing %+v", timing)
	}
	if timing.Register() != 0x00C70064 {
		t.Errorf("Unexpected register value %08x", timing.Register())
	}
	if timing.PeriodNs() != 1000000 || timing.DutyNs() != 500000 {
		t.Errorf("Timing does not convert back: %d/%d", timing.PeriodNs(), timing.DutyNs())
	}
}

func TestSolveBoundary(t *testing.T) {
	/* 65536 counts of 200kHz: period-1 is exactly 0xFFFF */
	timing, err := Solve(327680000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if timing.Prescaler != 0 || timing.Period != 65536 {
		t.Errorf("Unexpected timing %+v", timing)
	}
	if timing.Register() != 0xFFFF0000 {
		t.Errorf("Unexpected register %08x", timing.Register())
	}

	/* One more count moves to the next prescaler */
	timing, err = Solve(327685000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if timing.Prescaler != 1 || timing.Period != 43691 {
		t.Errorf("Unexpected timing %+v", timing)
	}
}

func TestSolveOutOfRange(t *testing.T) {
	/* Largest divisor is 72000 (333Hz): 65536 counts is ~196.8s */
	timing, err := Solve(196800000000, 98400000000)
	if err != nil {
		t.Fatal(err)
	}
	if Prescalers[timing.Prescaler] != 72000 || timing.Period != 65534 {
		t.Errorf("Unexpected timing %+v", timing)
	}

	for _, period := range []uint64{196810000000, 1 << 40, ^uint64(0)} {
		if _, err := Solve(period, 0); err != ErrorOutOfRange {
			t.Errorf("Period %d: got %v", period, err)
		}
	}

	/* Too short to give a single count */
	for _, period := range []uint64{0, 1, 4999} {
		if _, err := Solve(period, 0); err != ErrorOutOfRange {
			t.Errorf("Period %d: got %v", period, err)
		}
	}
	if _, err := Solve(5000, 0); err != nil {
		t.Error("Single count period rejected")
	}
}

func TestSolveDutyExceedsPeriod(t *testing.T) {
	if _, err := Solve(1000000, 1000001); err != ErrorDutyExceedsPeriod {
		t.Error("Duty larger than period accepted", err)
	}

	timing, err := Solve(1000000, 1000000)
	if err != nil || timing.Duty != timing.Period {
		t.Error("Full duty cycle", timing, err)
	}
}

func TestSolveSkipsReserved(t *testing.T) {
	for period := uint64(5000); period < 200000000000; period = period*3/2 + 1 {
		timing, err := Solve(period, period/2)
		if err != nil {
			continue
		}
		if Prescalers[timing.Prescaler] == 0 {
			t.Fatalf("Period %d selected reserved prescaler %d", period, timing.Prescaler)
		}
	}
}

func TestSolveMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 5000; i++ {
		p1 := uint64(rng.Int63n(200000000000)) + 5000
		p2 := p1 + uint64(rng.Int63n(50000000000))

		t1, err1 := Solve(p1, 0)
		t2, err2 := Solve(p2, 0)

		if err1 != nil {
			if err2 == nil {
				t.Fatalf("Period %d fails but larger %d succeeds", p1, p2)
			}
			continue
		}
		if err2 == nil && t2.Prescaler < t1.Prescaler {
			t.Fatalf("Period %d uses prescaler %d, larger %d uses %d", p1, t1.Prescaler, p2, t2.Prescaler)
		}
	}
}

func TestSolveSmallestPrescaler(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 5000; i++ {
		period := uint64(rng.Int63n(200000000000)) + 5000
		duty := uint64(rng.Int63n(int64(period) + 1))

		timing, err := Solve(period, duty)
		if err != nil {
			continue
		}

		if timing.Period == 0 || timing.Period-1 > 0xFFFF {
			t.Fatalf("Period %d: count %d does not fit", period, timing.Period)
		}
		if timing.Duty > timing.Period {
			t.Fatalf("Period %d duty %d: duty count %d exceeds %d", period, duty, timing.Duty, timing.Period)
		}

		/* Every finer valid prescaler must overflow the counter */
		for j := 0; j < int(timing.Prescaler); j++ {
			rate := ClockRate(uint8(j))
			if rate == 0 {
				continue
			}
			count := rate * period / 1000000000
			if count >= 1 && count-1 <= 0xFFFF {
				t.Fatalf("Period %d: prescaler %d would have fit", period, j)
			}
		}

		expectedDuty := uint64(timing.Period) * duty / period
		if uint64(timing.Duty) != expectedDuty {
			t.Fatalf("Period %d duty %d: duty count %d, expected %d", period, duty, timing.Duty, expectedDuty)
		}
	}
}

func TestTimingFromRegister(t *testing.T) {
	timing := TimingFromRegister(8, 0x00C70064)
	if timing.Prescaler != 8 || timing.Period != 200 || timing.Duty != 100 {
		t.Errorf("Unexpected %+v", timing)
	}

	if ClockRate(5) != 0 || ClockRate(16) != 0 || ClockRate(0) != 200000 || ClockRate(12) != 333 {
		t.Error("Unexpected clock rates")
	}
}
