package mcp4728

import (
	"errors"
	"math"

	"periph.io/x/conn/v3/physic"
)

// InternalRef is the on-chip reference voltage.
const InternalRef = 2048 * physic.MilliVolt

var errVoltageRange = errors.New("mcp4728: voltage out of range")

// VoltageSetting picks reference, gain and code for an output of v volts.
//
// The internal reference is used whenever it can reach v: gain 1x up to 2.048V,
// gain 2x up to 4.096V. Anything above falls back to VDD as reference. v must be within [0, vdd]. The returned setting has PowerDownNormal
// and LatchNow false.
func VoltageSetting(v, vdd physic.ElectricPotential) (Setting, error) {
	if v < 0 || vdd <= 0 || v > vdd {
		return Setting{}, errVoltageRange
	}
	switch {
	case v <= InternalRef:
		return Setting{Value: countFor(v, InternalRef), Reference: ReferenceInternal, Gain: Gain1x}, nil
	case v <= 2*InternalRef:
		return Setting{Value: countFor(v, 2*InternalRef), Reference: ReferenceInternal, Gain: Gain2x}, nil
	default:
		return Setting{Value: countFor(v, vdd), Reference: ReferenceVDD, Gain: Gain1x}, nil
	}
}

// countFor maps v onto 0..4095 with full scale fs. The output of code n is n/4096*fs.
func countFor(v, fs physic.ElectricPotential) uint16 {
	n := math.Round(float64(v) / float64(fs) * (MaxValue + 1))
	if n > MaxValue {
		n = MaxValue
	}
	return uint16(n)
}

// Voltage is the nominal output for s given the supply vdd.
func Voltage(s Setting, vdd physic.ElectricPotential) physic.ElectricPotential {
	fs := vdd
	if s.Reference == ReferenceInternal {
		fs = InternalRef
		if s.Gain == Gain2x {
			fs *= 2
		}
	}
	return physic.ElectricPotential(math.Round(float64(fs) * float64(s.Value&wordValueMask) / (MaxValue + 1)))
}
