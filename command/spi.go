package command

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sigurn/crc8"
	"periph.io/x/conn/v3/spi"
)

var crcTable = crc8.MakeTable(crc8.CRC8)

func (i *Interpreter) connect(device string) (spi.Conn, error) {
	if c, ok := i.conns[device]; ok {
		return c, nil
	}
	if i.config.OpenSPI == nil {
		return nil, ErrorNoSPI
	}

	port, err := i.config.OpenSPI(device)
	if err != nil {
		return nil, err
	}
	c, err := port.Connect(i.config.SPISpeed, i.config.SPIMode, 8)
	if err != nil {
		port.Close()
		return nil, err
	}

	i.config.Logger.WithField("device", device).Info("Opened SPI device")
	i.ports[device] = port
	i.conns[device] = c
	return c, nil
}

// spi <device> xfer <hex>
func (i *Interpreter) execSPI(args []string) (string, string, error) {
	if len(args) != 4 || strings.ToLower(args[2]) != "xfer" {
		return "", "", syntaxError("usage: spi <device> xfer <hex>")
	}

	tx, err := hex.DecodeString(strings.TrimPrefix(args[3], "0x"))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrorSyntax, err)
	}

	c, err := i.connect(args[1])
	if err != nil {
		return "", "", err
	}

	rx := make([]byte, len(tx))
	if err := c.Tx(tx, rx); err != nil {
		return "", "", err
	}

	return fmt.Sprintf("rx=%s crc8=%02x", hex.EncodeToString(rx), crc8.Checksum(rx, crcTable)), "", nil
}
