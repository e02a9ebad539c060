package gpio

import (
	"strconv"

	"github.com/BertoldVdb/go-sunxi/bitfield"
)

// BaseAddress is the physical address of the PIO register block.
const BaseAddress = 0x01c20800

// Register block layout, in 32 bit words.
const (
	numBanks      = 9
	bankWords     = 9 // cfg[4], dat, drv[2], pull[2]
	cfgWord       = 0
	datWord       = 4
	drvWord       = 5
	pullWord      = 7
	reservedBytes = 0xbc
	intWords      = 6 // cfg[3], ctl, sta, deb

	BlockSize = numBanks*bankWords*4 + reservedBytes + intWords*4
)

// Function selects what a pin is used for. Input, Output and Peripheral are
// the values used by every sunxi port; other codes select additional
// multiplexer functions and are passed through unchanged.
type Function uint32

const (
	Input      Function = 0
	Output     Function = 1
	Peripheral Function = 2
)

func (f Function) String() string {
	switch f {
	case Input:
		return "in"
	case Output:
		return "out"
	case Peripheral:
		return "per"
	}
	return "func" + strconv.FormatUint(uint64(f), 10)
}

// Pull selects the internal resistor of a pin.
type Pull uint32

const (
	PullDisabled Pull = 0
	PullUp       Pull = 1
	PullDown     Pull = 2
)

func (p Pull) String() string {
	switch p {
	case PullDisabled:
		return "off"
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	}
	return "pull" + strconv.FormatUint(uint64(p), 10)
}

// Drive is the output drive strength level, 0 (weakest) to 3.
type Drive uint32

var (
	cfgField  = bitfield.Field{Width: bitfield.CfgBits}
	pairField = bitfield.Field{Width: 2}
)
