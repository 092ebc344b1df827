// session.go
//
// Device session: one MCP4728 at one address on a caller-owned bus.
//
// The session drives the codec and issues the bus transactions:
//   - SetChannel:   one 3-byte write
//   - SaveToEEPROM: one 24-byte read, then one 9-byte write
//   - ReadBack:     one 24-byte read
//
// It keeps an advisory cache of the last known setting per channel, seeded by a
// best-effort read at Open and updated only after a successful write or read.
// Nothing in the session trusts the cache for bus traffic.
//
// Concurrency:
//   The session does not lock. Callers sharing one Device across goroutines must
//   serialize at the call site (hal.go does this with a single mutex). The
//   read-then-write in SaveToEEPROM is not atomic against concurrent SetChannel.
//
package mcp4728

import (
	"errors"
	"fmt"
	"log"

	"github.com/reef-pi/rpi/i2c"
)

// Device is an open session.
type Device struct {
	hw *MCP4728

	debug  bool
	logger *log.Logger

	cache  [NumChannels]Setting
	cached [NumChannels]bool

	closed bool
}

// Option configures Open.
type Option func(*Device)

// WithDebug enables verbose per-transaction logging.
func WithDebug(debug bool) Option {
	return func(d *Device) { d.debug = debug }
}

// WithLogger routes session logs to l instead of the standard logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.logger = l
		}
	}
}

// Open probes the device at addr and seeds the channel cache.
//
// The bus stays owned by the caller; Close on the returned Device does not close it.
// A failed probe returns an error matching ErrDeviceNotFound. A failed seed read
// is not an error: the cache is simply left empty.
func Open(addr byte, bus i2c.Bus, opts ...Option) (*Device, error) {
	if bus == nil {
		return nil, &OpError{Op: "open", Addr: addr, Kind: ErrDeviceNotFound, Err: errors.New("nil bus")}
	}
	if addr > 0x7F {
		return nil, &OpError{Op: "open", Addr: addr, Kind: ErrDeviceNotFound, Err: errors.New("not a 7-bit address")}
	}

	d := &Device{
		hw:     New(addr, bus),
		logger: log.Default(),
	}
	for _, o := range opts {
		o(d)
	}

	if err := d.hw.Probe(); err != nil {
		return nil, &OpError{Op: "open", Addr: addr, Kind: ErrDeviceNotFound, Err: err}
	}

	buf, err := d.hw.ReadAll()
	if err != nil {
		d.dbg("seed read failed, cache left empty: %v", err)
		return d, nil
	}
	if err := d.refresh(buf); err != nil {
		d.dbg("seed decode failed, cache left empty: %v", err)
		return d, nil
	}
	for _, ch := range Channels {
		d.dbg("seed ch=%s %s", ch, d.cache[ch])
	}
	return d, nil
}

func (d *Device) Addr() byte { return d.hw.Addr() }

func (d *Device) dbg(format string, args ...any) {
	if !d.debug {
		return
	}
	d.logger.Printf("mcp4728 addr=0x%02X: %s", d.hw.Addr(), fmt.Sprintf(format, args...))
}

func (d *Device) opErr(op string, kind, err error) error {
	return &OpError{Op: op, Addr: d.hw.Addr(), Kind: kind, Err: err}
}

// SetChannel writes s to the input register of ch.
//
// Success means the device accepted the value (latched or held per LatchNow),
// not that the analog output has settled.
func (d *Device) SetChannel(ch Channel, s Setting) error {
	if d.closed {
		return d.opErr("set channel", ErrClosed, nil)
	}
	if !ch.Valid() {
		return d.opErr("set channel", ErrInvalidChannel, fmt.Errorf("channel %d", uint8(ch)))
	}
	if s.Value > MaxValue {
		d.dbg("ch=%s value=%d exceeds 12 bits, masked to %d", ch, s.Value, s.Value&wordValueMask)
	}

	d.dbg("write ch=%s %s bytes=% X", ch, s, EncodeSequentialWrite(ch, s))
	if err := d.hw.WriteChannel(ch, s); err != nil {
		return d.opErr(fmt.Sprintf("set channel %s", ch), ErrWrite, err)
	}

	s.Value &= wordValueMask
	d.cache[ch] = s
	d.cached[ch] = true
	return nil
}

// SaveToEEPROM commits the current input registers of all four channels to EEPROM.
//
// It always re-reads the device instead of using the cache. A read failure aborts
// before anything is written (ErrRead). A write failure after a good read returns
// ErrEEPROMCommit, which also matches ErrWrite; the EEPROM state is then unspecified.
func (d *Device) SaveToEEPROM() error {
	if d.closed {
		return d.opErr("save eeprom", ErrClosed, nil)
	}

	buf, err := d.hw.ReadAll()
	if err != nil {
		return d.opErr("save eeprom", ErrRead, err)
	}
	rb, err := DecodeReadBack(buf)
	if err != nil {
		return d.opErr("save eeprom", ErrRead, err)
	}

	var words [NumChannels][2]byte
	for _, ch := range Channels {
		hi, lo, err := ExtractChannelWord(buf, ch)
		if err != nil {
			return d.opErr("save eeprom", ErrRead, err)
		}
		words[ch] = [2]byte{hi, lo}
	}

	d.dbg("eeprom commit bytes=% X", EncodeEEPROMCommit(words))
	if err := d.hw.WriteEEPROM(words); err != nil {
		return d.opErr("save eeprom", ErrEEPROMCommit, err)
	}

	// The words just committed are the input registers we read.
	d.store(rb)
	return nil
}

// ReadBack reads and decodes the full device state.
func (d *Device) ReadBack() ([NumChannels]Readback, error) {
	if d.closed {
		return [NumChannels]Readback{}, d.opErr("read back", ErrClosed, nil)
	}
	buf, err := d.hw.ReadAll()
	if err != nil {
		return [NumChannels]Readback{}, d.opErr("read back", ErrRead, err)
	}
	rb, err := DecodeReadBack(buf)
	if err != nil {
		return rb, d.opErr("read back", ErrRead, err)
	}
	d.store(rb)
	return rb, nil
}

// Cached returns the last known setting of ch. ok is false if the channel has
// not been seen since Open.
func (d *Device) Cached(ch Channel) (s Setting, ok bool) {
	if !ch.Valid() {
		return Setting{}, false
	}
	return d.cache[ch], d.cached[ch]
}

// Close ends the session. The bus is left open.
func (d *Device) Close() error {
	d.closed = true
	return nil
}

func (d *Device) refresh(buf []byte) error {
	rb, err := DecodeReadBack(buf)
	if err != nil {
		return err
	}
	d.store(rb)
	return nil
}

func (d *Device) store(rb [NumChannels]Readback) {
	for _, r := range rb {
		d.cache[r.Channel] = r.Input
		d.cached[r.Channel] = true
	}
}
