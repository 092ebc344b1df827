package mcp4728

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound signals that nothing answered at the address on Open.
	ErrDeviceNotFound = errors.New("mcp4728: device not found")

	// ErrTransport wraps every failure reported by the bus itself.
	ErrTransport = errors.New("mcp4728: bus transfer failed")

	// ErrInvalidBufferLength means a read-back was not exactly 24 bytes.
	// This is a programming error, not a transient fault.
	ErrInvalidBufferLength = errors.New("mcp4728: invalid read-back buffer length")

	// ErrRead is a failed read. Nothing was written to the device.
	ErrRead = errors.New("mcp4728: read failed")

	// ErrWrite is a failed write to the device.
	ErrWrite = errors.New("mcp4728: write failed")

	// ErrEEPROMCommit is a failed EEPROM write after a successful read. It wraps
	// ErrWrite. The EEPROM contents are unspecified afterwards; retry the whole
	// SaveToEEPROM.
	ErrEEPROMCommit = fmt.Errorf("%w: eeprom commit", ErrWrite)

	ErrInvalidChannel = errors.New("mcp4728: invalid channel")
	ErrClosed         = errors.New("mcp4728: device closed")
)

// OpError describes a failed session operation.
//
// errors.Is matches both the Kind (one of the sentinels above) and anything
// in the cause chain, typically ErrTransport plus the bus error.
type OpError struct {
	Op   string
	Addr byte
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mcp4728 addr=0x%02X %s: %v", e.Addr, e.Op, e.Kind)
	}
	return fmt.Sprintf("mcp4728 addr=0x%02X %s: %v: %v", e.Addr, e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
