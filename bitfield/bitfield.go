// Package bitfield contains the pure helpers used to pick apart and update
// peripheral register values. None of the functions here touch hardware.
package bitfield

// Field describes a group of Width bits starting at bit Offset of a 32 bit register.
type Field struct {
	Offset uint
	Width  uint
}

// Bit returns a single bit field at offset.
func Bit(offset uint) Field {
	return Field{Offset: offset, Width: 1}
}

// Mask returns the in-place mask of the field.
func (f Field) Mask() uint32 {
	return mask(f.Width) << f.Offset
}

// Get extracts the field from a register value.
func (f Field) Get(reg uint32) uint32 {
	return Read(reg, f.Offset, f.Width)
}

// Set returns reg with the field replaced by value. Bits outside the field are
// left alone, also when value does not fit in Width bits.
func (f Field) Set(reg uint32, value uint32) uint32 {
	return Write(reg, f.Offset, f.Width, value)
}

// Shift returns the same field moved up by n bits. Used for peripherals that
// repeat a group of fields per channel.
func (f Field) Shift(n uint) Field {
	return Field{Offset: f.Offset + n, Width: f.Width}
}

func mask(width uint) uint32 {
	if width >= 32 {
		return 0xFFFFFFFF
	}
	return uint32(1)<<width - 1
}

// Read returns the width bits of reg starting at offset.
func Read(reg uint32, offset uint, width uint) uint32 {
	return (reg >> offset) & mask(width)
}

// Write clears the width bit window at offset and ORs in value.
func Write(reg uint32, offset uint, width uint, value uint32) uint32 {
	m := mask(width)
	reg &^= m << offset
	return reg | (value&m)<<offset
}

// Pins per bank and per configuration word.
const (
	PinsPerBank    = 32
	PinsPerCfgWord = 8
	CfgBits        = 4
)

// PinLocation splits a pin identifier into its bank, the index of the
// configuration word inside that bank and the bit offset of the 4 bit function
// field inside that word. Identifiers are not range checked.
func PinLocation(pin uint32) (bank uint, index uint, offset uint) {
	num := pin & 0x1F
	return uint(pin >> 5), uint(num >> 3), uint(num&0x7) * CfgBits
}

// PinFromLocation is the inverse of PinLocation.
func PinFromLocation(bank uint, index uint, offset uint) uint32 {
	return uint32(bank<<5 | index*PinsPerCfgWord + offset/CfgBits)
}

// PinBit returns the bit position of the pin inside the bank's data register.
func PinBit(pin uint32) uint {
	return uint(pin & 0x1F)
}

// PinPair returns the word index and bit offset of a 2 bit per pin field
// (drive strength, pull) packing 16 pins per word.
func PinPair(pin uint32) (index uint, offset uint) {
	num := pin & 0x1F
	return uint(num >> 4), uint(num&0xF) * 2
}
