package gpio

import (
	"testing"

	"github.com/BertoldVdb/go-sunxi/mmio"
)

func newTestController() (*Controller, []uint32) {
	words := make([]uint32, BlockSize/4)
	return New(mmio.FromWords(words)), words
}

func TestBlockSize(t *testing.T) {
	if BlockSize != 0x218 {
		t.Errorf("Unexpected block size %x", BlockSize)
	}
}

func TestPinNames(t *testing.T) {
	if NewPin('A', 0) != 0 || NewPin('B', 2) != 34 || NewPin('I', 31) != 287 {
		t.Error("Pin encoding changed")
	}

	for _, name := range []string{"PB2", "pb2", "B2", "34", "0x22"} {
		p, err := ParsePin(name)
		if err != nil || p != 34 {
			t.Errorf("ParsePin(%q) = %d, %v", name, p, err)
		}
	}

	for _, name := range []string{"", "P", "PA", "PJ1", "A32", "Ax", "-1"} {
		if _, err := ParsePin(name); err == nil {
			t.Errorf("ParsePin(%q) did not fail", name)
		}
	}

	if NewPin('H', 21).String() != "PH21" {
		t.Error("Bad pin name", NewPin('H', 21).String())
	}
}

func TestUninitialized(t *testing.T) {
	var nilController *Controller
	unmapped := New(&mmio.Window{})

	for _, c := range []*Controller{nilController, unmapped} {
		p := NewPin('A', 1)

		if c.SetFunction(p, Output) != mmio.ErrorUninitialized {
			t.Error("SetFunction")
		}
		if _, err := c.Function(p); err != mmio.ErrorUninitialized {
			t.Error("Function")
		}
		if _, err := c.Input(p); err != mmio.ErrorUninitialized {
			t.Error("Input")
		}
		if c.Output(p, true) != mmio.ErrorUninitialized {
			t.Error("Output")
		}
		if c.SetPull(p, PullUp) != mmio.ErrorUninitialized {
			t.Error("SetPull")
		}
		if _, err := c.Pull(p); err != mmio.ErrorUninitialized {
			t.Error("Pull")
		}
		if c.SetDrive(p, 3) != mmio.ErrorUninitialized {
			t.Error("SetDrive")
		}
		if _, err := c.Drive(p); err != mmio.ErrorUninitialized {
			t.Error("Drive")
		}
		if c.Close() != mmio.ErrorUninitialized {
			t.Error("Close")
		}
	}
}

func TestFunction(t *testing.T) {
	c, words := newTestController()

	/* PB10: bank 1 (word 9), cfg[1] (word 10), bits 8..11 */
	words[10] = 0xFFFFFFFF
	p := NewPin('B', 10)

	if err := c.SetFunction(p, Output); err != nil {
		t.Fatal(err)
	}
	if words[10] != 0xFFFFF1FF {
		t.Errorf("cfg word is %08x", words[10])
	}

	f, err := c.Function(p)
	if err != nil || f != Output {
		t.Errorf("Function returned %v, %v", f, err)
	}

	/* Opaque alternate functions pass through */
	c.SetFunction(p, Function(6))
	if f, _ := c.Function(p); f != 6 || words[10] != 0xFFFFF6FF {
		t.Errorf("Alternate function not stored: %v %08x", f, words[10])
	}

	for i, w := range words {
		if i != 10 && w != 0 {
			t.Errorf("Word %d modified", i)
		}
	}
}

func TestAllPinsIndependent(t *testing.T) {
	c, words := newTestController()

	for bank := byte(0); bank < numBanks; bank++ {
		for n := 0; n < 32; n++ {
			p := NewPin('A'+bank, n)
			f := Function((int(bank) + n) % 7)
			if err := c.SetFunction(p, f); err != nil {
				t.Fatal(err)
			}
			if err := c.Output(p, n%3 == 0); err != nil {
				t.Fatal(err)
			}
		}
	}

	for bank := byte(0); bank < numBanks; bank++ {
		for n := 0; n < 32; n++ {
			p := NewPin('A'+bank, n)
			f, _ := c.Function(p)
			if f != Function((int(bank)+n)%7) {
				t.Fatalf("%s: function %d", p, f)
			}
			high, _ := c.Input(p)
			if high != (n%3 == 0) {
				t.Fatalf("%s: level %v", p, high)
			}
		}
	}

	/* Nothing may be written past the banks */
	for i := numBanks * bankWords; i < len(words); i++ {
		if words[i] != 0 {
			t.Errorf("Word %d modified", i)
		}
	}
}

func TestOutput(t *testing.T) {
	c, words := newTestController()
	p := NewPin('C', 5)
	dat := 2*bankWords + datWord

	words[dat] = 0x80000001
	c.Output(p, true)
	if words[dat] != 0x80000021 {
		t.Errorf("dat is %08x", words[dat])
	}
	if high, _ := c.Input(p); !high {
		t.Error("Pin did not read back high")
	}

	c.Output(p, false)
	if words[dat] != 0x80000001 {
		t.Errorf("dat is %08x", words[dat])
	}
}

func TestPullDrive(t *testing.T) {
	c, words := newTestController()
	p := NewPin('A', 17)

	c.SetPull(p, PullDown)
	if words[pullWord+1] != 2<<2 {
		t.Errorf("pull word is %08x", words[pullWord+1])
	}
	if pull, _ := c.Pull(p); pull != PullDown {
		t.Error("Pull readback", pull)
	}

	c.SetDrive(p, 3)
	if words[drvWord+1] != 3<<2 {
		t.Errorf("drive word is %08x", words[drvWord+1])
	}
	if d, _ := c.Drive(p); d != 3 {
		t.Error("Drive readback", d)
	}
}

func TestInvalidPin(t *testing.T) {
	c, _ := newTestController()
	if c.SetFunction(Pin(9<<5), Output) != ErrorInvalidPin {
		t.Error("Pin in bank 9 accepted")
	}
}
