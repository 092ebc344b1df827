// mcp4728.go
//
// Low-level MCP4728 I2C access.
//
// The MCP4728 has no register pointer. Every transaction is a raw write whose
// first byte is the command, or a raw read that streams all 24 read-back bytes.
// This file only moves bytes; encoding lives in codec.go and session semantics
// (cache, error kinds) in session.go.
//
package mcp4728

import (
	"fmt"

	"github.com/reef-pi/rpi/i2c"
)

type MCP4728 struct {
	addr byte
	bus  i2c.Bus
}

func New(addr byte, bus i2c.Bus) *MCP4728 {
	return &MCP4728{addr: addr, bus: bus}
}

func (m *MCP4728) Addr() byte { return m.addr }

// Probe checks that something ACKs at the address by reading one byte.
func (m *MCP4728) Probe() error {
	if _, err := m.bus.ReadBytes(m.addr, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// WriteChannel issues one multi-write for ch.
func (m *MCP4728) WriteChannel(ch Channel, s Setting) error {
	b := EncodeSequentialWrite(ch, s)
	if err := m.bus.WriteBytes(m.addr, b[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// ReadAll reads the full 24-byte read-back.
func (m *MCP4728) ReadAll() ([]byte, error) {
	b, err := m.bus.ReadBytes(m.addr, readBackLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if len(b) != readBackLen {
		return nil, fmt.Errorf("%w: short read: got %d bytes", ErrInvalidBufferLength, len(b))
	}
	return b, nil
}

// WriteEEPROM issues the 9-byte sequential EEPROM write.
func (m *MCP4728) WriteEEPROM(words [NumChannels][2]byte) error {
	b := EncodeEEPROMCommit(words)
	if err := m.bus.WriteBytes(m.addr, b[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}
