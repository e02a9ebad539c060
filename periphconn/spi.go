package periphconn

import (
	"fmt"
	"sync"

	spidev "github.com/BertoldVdb/go-sunxi/linux-pio/spi"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

const (
	ErrorAlreadyConnected = Error("SPI port is already connected")
	ErrorInvalidBits      = Error("Invalid number of bits per word")
)

// Port implements spi.PortCloser on top of a spidev device.
type Port struct {
	mutex     sync.Mutex
	dev       *spidev.Device
	name      string
	limit     physic.Frequency
	connected bool
}

var _ spi.PortCloser = &Port{}

// NewPort wraps an open spidev device. The port takes ownership of dev.
func NewPort(dev *spidev.Device, name string) *Port {
	return &Port{
		dev:  dev,
		name: name,
	}
}

// OpenPort opens /dev/spidev<bus>.<cs> as a periph port.
func OpenPort(bus int, cs int) (*Port, error) {
	dev, err := spidev.OpenDevice(bus, cs)
	if err != nil {
		return nil, err
	}
	return NewPort(dev, fmt.Sprintf("SPI%d.%d", bus, cs)), nil
}

func (p *Port) String() string {
	return p.name
}

// Close closes the spidev device.
func (p *Port) Close() error {
	return p.dev.Close()
}

// LimitSpeed caps the clock of future and existing connections.
func (p *Port) LimitSpeed(f physic.Frequency) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.limit = f
	return nil
}

// Connect configures the device once and returns the connection.
func (p *Port) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if bits <= 0 || bits > 32 {
		return nil, ErrorInvalidBits
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.connected {
		return nil, ErrorAlreadyConnected
	}

	if err := p.dev.SetMode(spidevMode(mode)); err != nil {
		return nil, err
	}
	if err := p.dev.SetBitsPerWord(uint8(bits)); err != nil {
		return nil, err
	}

	p.connected = true
	c := &Conn{
		port:   p,
		speed:  f,
		bits:   uint8(bits),
		duplex: conn.Full,
	}
	if mode&spi.HalfDuplex != 0 {
		c.duplex = conn.Half
	}
	return c, nil
}

func spidevMode(mode spi.Mode) uint8 {
	m := uint32(mode & spi.Mode3)
	if mode&spi.HalfDuplex != 0 {
		m |= spidev.Mode3Wire
	}
	if mode&spi.NoCS != 0 {
		m |= spidev.ModeNoCS
	}
	if mode&spi.LSBFirst != 0 {
		m |= spidev.ModeLSBFirst
	}
	return uint8(m)
}

// Conn implements spi.Conn.
type Conn struct {
	port   *Port
	speed  physic.Frequency
	bits   uint8
	duplex conn.Duplex
}

var _ spi.Conn = &Conn{}

func (c *Conn) String() string {
	return c.port.String()
}

// Duplex reports whether the connection is three wire.
func (c *Conn) Duplex() conn.Duplex {
	return c.duplex
}

func (c *Conn) speedHz() uint32 {
	c.port.mutex.Lock()
	limit := c.port.limit
	c.port.mutex.Unlock()

	f := c.speed
	if limit > 0 && (f == 0 || f > limit) {
		f = limit
	}
	return uint32(f / physic.Hertz)
}

// Tx performs one transfer, keeping chip select asserted for its duration only.
func (c *Conn) Tx(w, r []byte) error {
	return c.port.dev.TransferBatch([]spidev.Transfer{{
		Tx:          w,
		Rx:          r,
		SpeedHz:     c.speedHz(),
		BitsPerWord: c.bits,
	}})
}

// TxPackets submits all packets in one ioctl.
func (c *Conn) TxPackets(pkts []spi.Packet) error {
	return c.port.dev.TransferBatch(packetTransfers(pkts, c.speedHz(), c.bits))
}

func packetTransfers(pkts []spi.Packet, speedHz uint32, bits uint8) []spidev.Transfer {
	transfers := make([]spidev.Transfer, len(pkts))
	for i, pkt := range pkts {
		transfers[i] = spidev.Transfer{
			Tx:          pkt.W,
			Rx:          pkt.R,
			SpeedHz:     speedHz,
			BitsPerWord: bits,
			CSChange:    pkt.KeepCS,
		}
		if pkt.BitsPerWord != 0 {
			transfers[i].BitsPerWord = pkt.BitsPerWord
		}
	}
	return transfers
}
