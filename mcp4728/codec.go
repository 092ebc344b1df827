// codec.go
//
// MCP4728 command / register encoding.
//
// Everything in this file is pure: no bus access, no state. The session (session.go)
// and the low-level chip access (mcp4728.go) build on top of it.
//
// Wire layout (datasheet section 5.6):
//
//   Multi-write (one channel, input register only):
//     byte 0: 0 1 0 0 0 DAC1 DAC0 UDAC
//     byte 1: VREF PD1 PD0 Gx D11 D10 D9 D8
//     byte 2: D7 D6 D5 D4 D3 D2 D1 D0
//
//   Sequential write to EEPROM (all four channels, starting at A):
//     byte 0: 0 1 0 1 0 DAC1 DAC0 UDAC   (DAC1:0 = A, UDAC = 0 -> latch now)
//     bytes 1..8: A,B,C,D settings words, MSB first
//
//   Read-back (24 bytes, 6 per channel in order A,B,C,D):
//     +0 status header (input register)
//     +1,+2 input register settings word
//     +3 status header (EEPROM)
//     +4,+5 EEPROM settings word
//
// Notes:
//   - Bit 0 of a multi-write command byte is set exactly when Setting.LatchNow is true.
//     The EEPROM commit always sends it clear.
//   - Every enumeration below has an explicit codepoint. Do not switch them to iota:
//     these numbers are the wire bits.
//
package mcp4728

import (
	"fmt"
	"strings"
)

// Command bytes.
const (
	cmdMultiWrite   byte = 0x40 // 0100 0xxx
	cmdSequentialEE byte = 0x50 // 0101 0xxx
	cmdLatchBit     byte = 0x01
	cmdChannelShift      = 1

	readBackLen        = 24
	readBackGroupLen   = 6
	eepromCommitLen    = 9
	sequentialWriteLen = 3
)

// Settings word bit layout.
const (
	wordRefShift   = 15
	wordPDShift    = 13
	wordGainShift  = 12
	wordRefMask    = 0x1
	wordPDMask     = 0x3
	wordGainMask   = 0x1
	wordValueMask  = 0x0FFF
	MaxValue       = 4095
	NumChannels    = 4
	DefaultAddress = 0x60
)

// Status header bits (read-back byte 0 and 3 of each group).
const (
	statusReady     byte = 0x80 // RDY/BSY: 1 = idle, 0 = EEPROM write in progress
	statusPOR       byte = 0x40
	statusChanMask  byte = 0x03
	statusChanShift      = 4
)

// Channel selects one of the four DAC outputs.
type Channel uint8

const (
	ChannelA Channel = 0
	ChannelB Channel = 1
	ChannelC Channel = 2
	ChannelD Channel = 3
)

// Channels lists the channels in wire order.
var Channels = [NumChannels]Channel{ChannelA, ChannelB, ChannelC, ChannelD}

func (c Channel) Valid() bool { return c <= ChannelD }

func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Channel(%d)", uint8(c))
	}
	return string(rune('A' + c))
}

// ParseChannel accepts "a".."d" (any case) or "0".."3".
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "0":
		return ChannelA, nil
	case "b", "1":
		return ChannelB, nil
	case "c", "2":
		return ChannelC, nil
	case "d", "3":
		return ChannelD, nil
	}
	return 0, fmt.Errorf("%w: %q (must be A..D)", ErrInvalidChannel, s)
}

// Reference selects the voltage reference of a channel.
type Reference uint8

const (
	ReferenceVDD      Reference = 0
	ReferenceInternal Reference = 1 // 2.048V on-chip reference
)

func (r Reference) String() string {
	switch r {
	case ReferenceVDD:
		return "vdd"
	case ReferenceInternal:
		return "internal"
	default:
		return fmt.Sprintf("Reference(%d)", uint8(r))
	}
}

// ParseReference accepts "vdd"/"external" or "internal"/"int".
func ParseReference(s string) (Reference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vdd", "external", "ext", "0":
		return ReferenceVDD, nil
	case "internal", "int", "2.048", "1":
		return ReferenceInternal, nil
	}
	return 0, fmt.Errorf("mcp4728: invalid reference %q (must be vdd or internal)", s)
}

// Gain selects the output amplifier gain. Only meaningful with ReferenceInternal;
// the device ignores it under VDD and so does this driver (it is passed through).
type Gain uint8

const (
	Gain1x Gain = 0
	Gain2x Gain = 1
)

func (g Gain) String() string {
	switch g {
	case Gain1x:
		return "1x"
	case Gain2x:
		return "2x"
	default:
		return fmt.Sprintf("Gain(%d)", uint8(g))
	}
}

// ParseGain accepts "1", "1x", "2", "2x".
func ParseGain(s string) (Gain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1x", "x1":
		return Gain1x, nil
	case "2", "2x", "x2":
		return Gain2x, nil
	}
	return 0, fmt.Errorf("mcp4728: invalid gain %q (must be 1 or 2)", s)
}

// PowerDown selects normal operation or one of the power-down loads.
type PowerDown uint8

const (
	PowerDownNormal PowerDown = 0
	PowerDown1K     PowerDown = 1 // VOUT loaded with 1k to ground
	PowerDown100K   PowerDown = 2 // VOUT loaded with 100k to ground
	PowerDown500K   PowerDown = 3 // VOUT loaded with 500k to ground
)

func (p PowerDown) String() string {
	switch p {
	case PowerDownNormal:
		return "normal"
	case PowerDown1K:
		return "1k"
	case PowerDown100K:
		return "100k"
	case PowerDown500K:
		return "500k"
	default:
		return fmt.Sprintf("PowerDown(%d)", uint8(p))
	}
}

// ParsePowerDown accepts "normal", "1k", "100k", "500k".
func ParsePowerDown(s string) (PowerDown, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "on", "0":
		return PowerDownNormal, nil
	case "1k", "gnd_1k":
		return PowerDown1K, nil
	case "100k", "gnd_100k":
		return PowerDown100K, nil
	case "500k", "gnd_500k":
		return PowerDown500K, nil
	}
	return 0, fmt.Errorf("mcp4728: invalid power-down mode %q (must be normal, 1k, 100k or 500k)", s)
}

// Setting is everything a single multi-write carries for one channel.
type Setting struct {
	// Value is the 12-bit output code. Higher bits are dropped on encode.
	Value     uint16
	Reference Reference
	Gain      Gain
	PowerDown PowerDown
	// LatchNow sets the UDAC bit of the command byte. It is not part of the
	// settings word and is never recovered by decoding.
	LatchNow bool
}

func (s Setting) String() string {
	return fmt.Sprintf("value=%d ref=%s gain=%s pd=%s latch=%v",
		s.Value&wordValueMask, s.Reference, s.Gain, s.PowerDown, s.LatchNow)
}

// Word packs the setting into the 16-bit settings word.
func (s Setting) Word() uint16 {
	return uint16(s.Reference&wordRefMask)<<wordRefShift |
		uint16(s.PowerDown&wordPDMask)<<wordPDShift |
		uint16(s.Gain&wordGainMask)<<wordGainShift |
		s.Value&wordValueMask
}

// DecodeWord is the inverse of Setting.Word. LatchNow is always false.
func DecodeWord(w uint16) Setting {
	return Setting{
		Value:     w & wordValueMask,
		Reference: Reference((w >> wordRefShift) & wordRefMask),
		PowerDown: PowerDown((w >> wordPDShift) & wordPDMask),
		Gain:      Gain((w >> wordGainShift) & wordGainMask),
	}
}

// EncodeSequentialWrite builds the 3-byte multi-write for one channel.
func EncodeSequentialWrite(ch Channel, s Setting) [sequentialWriteLen]byte {
	cmd := cmdMultiWrite | byte(ch&0x3)<<cmdChannelShift
	if s.LatchNow {
		cmd |= cmdLatchBit
	}
	w := s.Word()
	return [sequentialWriteLen]byte{cmd, byte(w >> 8), byte(w)}
}

// DecodeChannelWord decodes a big-endian settings word.
func DecodeChannelWord(hi, lo byte) Setting {
	return DecodeWord(uint16(hi)<<8 | uint16(lo))
}

// groupOffset returns the first byte of ch's six-byte group in the read-back buffer.
func groupOffset(ch Channel) int { return int(ch&0x3) * readBackGroupLen }

// ExtractChannelWord returns the input register settings word of ch from a full
// 24-byte read-back.
func ExtractChannelWord(buf []byte, ch Channel) (hi, lo byte, err error) {
	if len(buf) != readBackLen {
		return 0, 0, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidBufferLength, len(buf), readBackLen)
	}
	off := groupOffset(ch)
	return buf[off+1], buf[off+2], nil
}

// EncodeEEPROMCommit builds the 9-byte sequential EEPROM write for all four channels.
// words is indexed by channel (A..D), each {high, low}.
func EncodeEEPROMCommit(words [NumChannels][2]byte) [eepromCommitLen]byte {
	var out [eepromCommitLen]byte
	// DAC1:DAC0 = channel A, UDAC = 0.
	out[0] = cmdSequentialEE | byte(ChannelA)<<cmdChannelShift
	for i, w := range words {
		out[1+2*i] = w[0]
		out[2+2*i] = w[1]
	}
	return out
}

// Status is a decoded read-back header byte.
type Status struct {
	Ready        bool // false while an EEPROM write is in progress
	PowerOnReset bool
	Channel      Channel
}

func decodeStatus(b byte) Status {
	return Status{
		Ready:        b&statusReady != 0,
		PowerOnReset: b&statusPOR != 0,
		Channel:      Channel((b >> statusChanShift) & statusChanMask),
	}
}

// Readback is one channel's slice of a full read.
type Readback struct {
	Channel      Channel
	Input        Setting
	InputStatus  Status
	EEPROM       Setting
	EEPROMStatus Status
}

// DecodeReadBack decodes all four channels of a 24-byte read-back.
func DecodeReadBack(buf []byte) ([NumChannels]Readback, error) {
	var out [NumChannels]Readback
	if len(buf) != readBackLen {
		return out, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidBufferLength, len(buf), readBackLen)
	}
	for _, ch := range Channels {
		g := buf[groupOffset(ch) : groupOffset(ch)+readBackGroupLen]
		out[ch] = Readback{
			Channel:      ch,
			InputStatus:  decodeStatus(g[0]),
			Input:        DecodeChannelWord(g[1], g[2]),
			EEPROMStatus: decodeStatus(g[3]),
			EEPROM:       DecodeChannelWord(g[4], g[5]),
		}
	}
	return out, nil
}
