// periph.go
//
// Adapter from a periph.io I2C bus to the reef-pi i2c.Bus the driver talks to.
//
// Each reef-pi call maps onto exactly one periph Tx, so "one bus transaction per
// operation" holds on both stacks. Register variants send the register byte as
// the first written byte.
//
package mcp4728

import (
	"io"

	"github.com/reef-pi/rpi/i2c"
	pi2c "periph.io/x/conn/v3/i2c"
)

type periphBus struct {
	bus pi2c.Bus
}

var _ i2c.Bus = (*periphBus)(nil)

// NewPeriphBus wraps b. Close closes b if it is a periph BusCloser.
func NewPeriphBus(b pi2c.Bus) i2c.Bus {
	return &periphBus{bus: b}
}

func (p *periphBus) ReadBytes(addr byte, num int) ([]byte, error) {
	buf := make([]byte, num)
	if err := p.bus.Tx(uint16(addr), nil, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *periphBus) WriteBytes(addr byte, value []byte) error {
	return p.bus.Tx(uint16(addr), value, nil)
}

func (p *periphBus) ReadFromReg(addr, reg byte, value []byte) error {
	return p.bus.Tx(uint16(addr), []byte{reg}, value)
}

func (p *periphBus) WriteToReg(addr, reg byte, value []byte) error {
	w := make([]byte, 0, len(value)+1)
	w = append(w, reg)
	w = append(w, value...)
	return p.bus.Tx(uint16(addr), w, nil)
}

// SetAddress is a no-op: periph carries the address in every Tx.
func (p *periphBus) SetAddress(addr byte) error { return nil }

func (p *periphBus) Close() error {
	if c, ok := p.bus.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
