package mcp4728

import (
	"errors"
	"fmt"

	"github.com/reef-pi/rpi/i2c"
)

// busOp is one recorded transaction.
type busOp struct {
	write bool
	addr  byte
	data  []byte // bytes written, or bytes returned by a read
}

func (o busOp) String() string {
	if o.write {
		return fmt.Sprintf("W 0x%02X % X", o.addr, o.data)
	}
	return fmt.Sprintf("R 0x%02X % X", o.addr, o.data)
}

// fakeBus is an in-memory reef-pi i2c.Bus that records every transaction.
// mem is what a full read returns; shorter reads return its prefix.
type fakeBus struct {
	mem []byte
	ops []busOp

	// readErr fails reads of a given length (1 = probe, 24 = full read).
	readErr  map[int]error
	writeErr error
	// shortRead truncates full reads to this many bytes when non-zero.
	shortRead int
}

var _ i2c.Bus = (*fakeBus)(nil)

var errBusFault = errors.New("i/o error")

func newFakeBus() *fakeBus {
	return &fakeBus{mem: make([]byte, readBackLen), readErr: map[int]error{}}
}

func (b *fakeBus) ReadBytes(addr byte, num int) ([]byte, error) {
	if err := b.readErr[num]; err != nil {
		return nil, err
	}
	n := num
	if b.shortRead != 0 && num == readBackLen {
		n = b.shortRead
	}
	out := make([]byte, n)
	copy(out, b.mem)
	b.ops = append(b.ops, busOp{addr: addr, data: out})
	return out, nil
}

func (b *fakeBus) WriteBytes(addr byte, value []byte) error {
	if b.writeErr != nil {
		return b.writeErr
	}
	b.ops = append(b.ops, busOp{write: true, addr: addr, data: append([]byte(nil), value...)})
	return nil
}

func (b *fakeBus) ReadFromReg(addr, reg byte, value []byte) error {
	return errors.New("fakeBus: register reads are not used by the MCP4728")
}

func (b *fakeBus) WriteToReg(addr, reg byte, value []byte) error {
	return errors.New("fakeBus: register writes are not used by the MCP4728")
}

func (b *fakeBus) SetAddress(addr byte) error { return nil }

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) writes() []busOp {
	var out []busOp
	for _, o := range b.ops {
		if o.write {
			out = append(out, o)
		}
	}
	return out
}

func (b *fakeBus) reset() { b.ops = nil }

// setGroup fills channel ch's six read-back bytes.
func (b *fakeBus) setGroup(ch Channel, status byte, input uint16, eeStatus byte, ee uint16) {
	off := groupOffset(ch)
	copy(b.mem[off:], []byte{status, byte(input >> 8), byte(input), eeStatus, byte(ee >> 8), byte(ee)})
}
