// factory.go
//
// MCP4728 driver factory for reef-pi.
//
// This file integrates the MCP4728 (4-channel 12-bit I2C DAC) into reef-pi's HAL:
//
//   - Declares driver metadata (name/description/capabilities)
//   - Exposes UI configuration parameters
//   - Validates configuration
//   - Opens a device session and builds the four PWM channels
//
// reef-pi drives analog outputs (0-10V dimmers, dosing pump speed) through PWM
// channels with a 0..100 value, so each DAC output is exposed as one PWM channel.
//
// Reference, Gain, PowerDown and LatchNow apply to every channel of the instance.
//
package mcp4728

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/reef-pi/hal"
	"github.com/reef-pi/rpi/i2c"
)

const (
	driverName = "mcp4728"

	paramAddress   = "Address"   // string, e.g. "0x60"
	paramDebug     = "Debug"     // bool
	paramReference = "Reference" // "vdd" | "internal"
	paramGain      = "Gain"      // 1 | 2
	paramPowerDown = "PowerDown" // "normal" | "1k" | "100k" | "500k"
	paramLatchNow  = "LatchNow"  // bool
)

type factory struct {
	meta       hal.Metadata
	parameters []hal.ConfigParameter
}

var (
	f    *factory
	once sync.Once
)

func Factory() hal.DriverFactory {
	once.Do(func() {
		f = &factory{
			meta: hal.Metadata{
				Name:         driverName,
				Description:  "MCP4728 4-channel 12-bit I2C DAC. Channels A..D are exposed as PWM channels 0..3 (0-100% of full scale).",
				Capabilities: []hal.Capability{hal.PWM},
			},
			parameters: []hal.ConfigParameter{
				{Name: paramAddress, Type: hal.String, Order: 0, Default: "0x60"},
				{Name: paramReference, Type: hal.String, Order: 1, Default: "vdd"},
				{Name: paramGain, Type: hal.Integer, Order: 2, Default: 1},
				{Name: paramPowerDown, Type: hal.String, Order: 3, Default: "normal"},
				{Name: paramLatchNow, Type: hal.Boolean, Order: 4, Default: false},
				{Name: paramDebug, Type: hal.Boolean, Order: 5, Default: false},
			},
		}
	})
	return f
}

func (f *factory) Metadata() hal.Metadata               { return f.meta }
func (f *factory) GetParameters() []hal.ConfigParameter { return f.parameters }

// driverConfig is the resolved parameter set.
type driverConfig struct {
	addr     byte
	defaults Setting
	debug    bool
}

// parseAddr accepts "0x60" style hex, "96" style decimal, or an int.
// Returns a 7-bit I2C address byte.
func parseAddr(v interface{}) (byte, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(strings.ToLower(s))
		if s == "" {
			return 0, errors.New("empty address")
		}
		base := 10
		if strings.HasPrefix(s, "0x") {
			s, base = s[2:], 16
		}
		n, err := strconv.ParseUint(s, base, 8)
		if err != nil {
			return 0, err
		}
		if n > 127 {
			return 0, fmt.Errorf("address out of range (0..127): %d", n)
		}
		return byte(n), nil
	}
	i, ok := hal.ConvertToInt(v)
	if !ok {
		return 0, errors.New("must be int or hex string like 0x60")
	}
	if i < 0 || i > 127 {
		return 0, fmt.Errorf("address out of range (0..127): %d", i)
	}
	return byte(i), nil
}

// parseGainParam accepts the UI integer (1, 2) or any string ParseGain takes.
func parseGainParam(v interface{}) (Gain, error) {
	if s, ok := v.(string); ok {
		return ParseGain(s)
	}
	i, ok := hal.ConvertToInt(v)
	if !ok {
		return 0, errors.New("gain must be 1 or 2")
	}
	return ParseGain(strconv.Itoa(i))
}

func parseBool(v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(t))
	default:
		return false, errors.New("must be boolean")
	}
}

// resolve validates params and returns the resolved config together with
// per-key failures for the UI.
func resolve(params map[string]interface{}) (driverConfig, map[string][]string) {
	cfg := driverConfig{addr: DefaultAddress}
	fail := make(map[string][]string)

	if v, ok := params[paramAddress]; ok {
		a, err := parseAddr(v)
		if err != nil {
			fail[paramAddress] = append(fail[paramAddress], "must be a valid 7-bit I2C address like 0x60..0x67: "+err.Error())
		}
		cfg.addr = a
	}

	if v, ok := params[paramReference]; ok {
		s, _ := v.(string)
		r, err := ParseReference(s)
		if err != nil {
			fail[paramReference] = append(fail[paramReference], "must be vdd or internal")
		}
		cfg.defaults.Reference = r
	}

	if v, ok := params[paramGain]; ok {
		g, err := parseGainParam(v)
		if err != nil {
			fail[paramGain] = append(fail[paramGain], "must be 1 or 2")
		}
		cfg.defaults.Gain = g
	}

	if v, ok := params[paramPowerDown]; ok {
		s, _ := v.(string)
		pd, err := ParsePowerDown(s)
		if err != nil {
			fail[paramPowerDown] = append(fail[paramPowerDown], "must be one of normal, 1k, 100k, 500k")
		}
		cfg.defaults.PowerDown = pd
	}

	if v, ok := params[paramLatchNow]; ok {
		b, err := parseBool(v)
		if err != nil {
			fail[paramLatchNow] = append(fail[paramLatchNow], "must be boolean")
		}
		cfg.defaults.LatchNow = b
	}

	if v, ok := params[paramDebug]; ok {
		b, err := parseBool(v)
		if err != nil {
			fail[paramDebug] = append(fail[paramDebug], "must be boolean")
		}
		cfg.debug = b
	}

	return cfg, fail
}

func (f *factory) ValidateParameters(params map[string]interface{}) (bool, map[string][]string) {
	if _, fail := resolve(params); len(fail) > 0 {
		return false, fail
	}
	return true, nil
}

func (f *factory) NewDriver(params map[string]interface{}, hardwareResources interface{}) (hal.Driver, error) {
	cfg, fail := resolve(params)
	if len(fail) > 0 {
		return nil, errors.New(hal.ToErrorString(fail))
	}

	bus, ok := hardwareResources.(i2c.Bus)
	if !ok {
		return nil, fmt.Errorf("mcp4728: expected i2c.Bus, got %T", hardwareResources)
	}

	// Only dump raw parameters when debug is enabled (keeps journal clean).
	if cfg.debug {
		if b, err := json.MarshalIndent(params, "", "  "); err == nil {
			log.Printf("mcp4728 NewDriver params:\n%s", string(b))
		}
	}

	dev, err := Open(cfg.addr, bus, WithDebug(cfg.debug))
	if err != nil {
		return nil, err
	}

	d := newDriver(dev, cfg.defaults, cfg.debug, f.meta)

	log.Printf("mcp4728 init addr=0x%02X ref=%s gain=%s pd=%s latch=%v debug=%v",
		cfg.addr, cfg.defaults.Reference, cfg.defaults.Gain, cfg.defaults.PowerDown, cfg.defaults.LatchNow, cfg.debug)

	return d, nil
}
