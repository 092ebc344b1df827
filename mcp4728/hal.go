// hal.go
//
// reef-pi HAL glue for MCP4728.
//
// This file provides:
//   - channel objects implementing hal.PWMChannel (and so hal.DigitalOutputPin)
//   - a driver implementing hal.PWMDriver
//
// Value mapping:
//   - Set(v) takes reef-pi's 0..100 and writes round(v/100 * 4095).
//   - Write(true) drives full scale, Write(false) drives 0.
//   - Reference/Gain/PowerDown/LatchNow come from the driver parameters.
//
// Concurrency:
//   - The device session does not lock; every call into it goes through d.mu.
//
package mcp4728

import (
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/reef-pi/hal"
)

// dacChannel is one DAC output (A..D) exposed as PWM channel 0..3.
type dacChannel struct {
	driver *mcp4728Driver
	ch     Channel
}

func (c *dacChannel) Name() string { return fmt.Sprintf("MCP4728:%s", c.ch) }
func (c *dacChannel) Number() int  { return int(c.ch) }
func (c *dacChannel) Close() error { return nil }

// Set writes v percent of full scale.
func (c *dacChannel) Set(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return fmt.Errorf("mcp4728 addr=0x%02X ch=%s: value %v out of range (0..100)", c.driver.dev.Addr(), c.ch, v)
	}
	return c.driver.write(c.ch, percentToCount(v))
}

func (c *dacChannel) Write(on bool) error {
	if on {
		return c.driver.write(c.ch, MaxValue)
	}
	return c.driver.write(c.ch, 0)
}

// LastState reports whether the last known output is above zero.
func (c *dacChannel) LastState() bool {
	s, ok := c.driver.cached(c.ch)
	return ok && s.Value > 0
}

func percentToCount(v float64) uint16 {
	return uint16(math.Round(v / 100 * MaxValue))
}

// mcp4728Driver is the reef-pi driver instance for one chip at one I2C address.
type mcp4728Driver struct {
	dev *Device

	// Serialize ALL interactions with the chip.
	mu sync.Mutex

	// defaults are applied to every channel write; only Value changes per call.
	defaults Setting

	debug bool
	meta  hal.Metadata

	channels []*dacChannel
}

func newDriver(dev *Device, defaults Setting, debug bool, meta hal.Metadata) *mcp4728Driver {
	d := &mcp4728Driver{
		dev:      dev,
		defaults: defaults,
		debug:    debug,
		meta:     meta,
	}
	for _, ch := range Channels {
		d.channels = append(d.channels, &dacChannel{driver: d, ch: ch})
	}
	return d
}

func (d *mcp4728Driver) Metadata() hal.Metadata { return d.meta }

func (d *mcp4728Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev.Close()
}

// -----------------------------------------------------------------------------
// Required by hal.PWMDriver / hal.DigitalOutputDriver
// -----------------------------------------------------------------------------

func (d *mcp4728Driver) PWMChannels() []hal.PWMChannel {
	out := make([]hal.PWMChannel, len(d.channels))
	for i, c := range d.channels {
		out[i] = c
	}
	return out
}

func (d *mcp4728Driver) PWMChannel(n int) (hal.PWMChannel, error) {
	if n < 0 || n >= len(d.channels) {
		return nil, fmt.Errorf("mcp4728 addr=0x%02X: invalid channel %d", d.dev.Addr(), n)
	}
	return d.channels[n], nil
}

func (d *mcp4728Driver) DigitalOutputPins() []hal.DigitalOutputPin {
	out := make([]hal.DigitalOutputPin, len(d.channels))
	for i, c := range d.channels {
		out[i] = c
	}
	return out
}

func (d *mcp4728Driver) DigitalOutputPin(n int) (hal.DigitalOutputPin, error) {
	if n < 0 || n >= len(d.channels) {
		return nil, fmt.Errorf("mcp4728 addr=0x%02X: invalid pin %d", d.dev.Addr(), n)
	}
	return d.channels[n], nil
}

func (d *mcp4728Driver) Pins(cap hal.Capability) ([]hal.Pin, error) {
	switch cap {
	case hal.PWM, hal.DigitalOutput:
		var pins []hal.Pin
		for _, c := range d.channels {
			pins = append(pins, c)
		}
		sort.Slice(pins, func(i, j int) bool { return pins[i].Number() < pins[j].Number() })
		return pins, nil
	default:
		return nil, fmt.Errorf("mcp4728 addr=0x%02X: unsupported capability: %s", d.dev.Addr(), cap.String())
	}
}

// SaveToEEPROM makes the current outputs the power-up defaults.
// Not part of the HAL; callers type-assert for it.
func (d *mcp4728Driver) SaveToEEPROM() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.dev.SaveToEEPROM(); err != nil {
		return err
	}
	if d.debug {
		log.Printf("mcp4728 addr=0x%02X eeprom commit done", d.dev.Addr())
	}
	return nil
}

// -----------------------------------------------------------------------------
// Internal helpers
// -----------------------------------------------------------------------------

func (d *mcp4728Driver) write(ch Channel, value uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.defaults
	s.Value = value

	if d.debug {
		prev, ok := d.dev.Cached(ch)
		log.Printf("mcp4728 addr=0x%02X ch=%s: %d -> %d (known=%v)", d.dev.Addr(), ch, prev.Value, value, ok)
	}

	return d.dev.SetChannel(ch, s)
}

func (d *mcp4728Driver) cached(ch Channel) (Setting, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev.Cached(ch)
}
