// mcp4728ctl sets MCP4728 channels, dumps the device read-back and commits
// the current outputs to EEPROM.
//
//	mcp4728ctl --channel=a --value=2048
//	mcp4728ctl --channel=b --voltage=1.2V --latch-now=true --save=true
//	mcp4728ctl --bus=rpi --dump=true
//
// --bus names a periph.io I2C bus ("" = first available, "1", "I2C1", ...);
// "rpi" uses the reef-pi Raspberry Pi bus instead.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/epicfatigue/drivers/mcp4728"
	"github.com/reef-pi/rpi/i2c"
	"github.com/warthog618/config"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

type options struct {
	bus       string
	addr      byte
	channel   string
	value     int
	voltage   string
	vdd       string
	reference string
	gain      string
	powerDown string
	latchNow  bool
	save      bool
	dump      bool
	debug     bool
}

func main() {
	o, err := optionsFromConfig(loadConfig(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp4728ctl: %s\n", err)
		os.Exit(1)
	}

	bus, err := openBus(o.bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp4728ctl: %s\n", err)
		os.Exit(1)
	}
	err = run(o, bus, os.Stdout)
	if c, ok := bus.(io.Closer); ok {
		c.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp4728ctl: %s\n", err)
		os.Exit(1)
	}
}

func optionsFromConfig(cfg *config.Config) (options, error) {
	o := options{
		bus:       cfg.MustGet("bus").String(),
		channel:   cfg.MustGet("channel").String(),
		value:     cfg.MustGet("value").Int(),
		voltage:   cfg.MustGet("voltage").String(),
		vdd:       cfg.MustGet("vdd").String(),
		reference: cfg.MustGet("reference").String(),
		gain:      cfg.MustGet("gain").String(),
		powerDown: cfg.MustGet("power.down").String(),
		latchNow:  cfg.MustGet("latch.now").Bool(),
		save:      cfg.MustGet("save").Bool(),
		dump:      cfg.MustGet("dump").Bool(),
		debug:     cfg.MustGet("debug").Bool(),
	}
	a, err := strconv.ParseUint(strings.TrimSpace(cfg.MustGet("address").String()), 0, 7)
	if err != nil {
		return o, fmt.Errorf("address: %w", err)
	}
	o.addr = byte(a)
	return o, nil
}

func openBus(name string) (i2c.Bus, error) {
	if name == "rpi" {
		return i2c.New()
	}
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, err
	}
	return mcp4728.NewPeriphBus(b), nil
}

// setting resolves the requested channel write. A voltage overrides value,
// reference and gain.
func (o options) setting() (mcp4728.Channel, mcp4728.Setting, error) {
	var s mcp4728.Setting
	ch, err := mcp4728.ParseChannel(o.channel)
	if err != nil {
		return 0, s, err
	}

	if s.PowerDown, err = mcp4728.ParsePowerDown(o.powerDown); err != nil {
		return 0, s, err
	}
	s.LatchNow = o.latchNow

	if o.voltage != "" {
		var v, vdd physic.ElectricPotential
		if err := v.Set(o.voltage); err != nil {
			return 0, s, fmt.Errorf("voltage: %w", err)
		}
		if err := vdd.Set(o.vdd); err != nil {
			return 0, s, fmt.Errorf("vdd: %w", err)
		}
		vs, err := mcp4728.VoltageSetting(v, vdd)
		if err != nil {
			return 0, s, fmt.Errorf("%w: %s with vdd %s", err, v, vdd)
		}
		s.Value, s.Reference, s.Gain = vs.Value, vs.Reference, vs.Gain
		return ch, s, nil
	}

	if o.value < 0 || o.value > mcp4728.MaxValue {
		return 0, s, fmt.Errorf("value %d out of range (0..%d)", o.value, mcp4728.MaxValue)
	}
	s.Value = uint16(o.value)
	if s.Reference, err = mcp4728.ParseReference(o.reference); err != nil {
		return 0, s, err
	}
	if s.Gain, err = mcp4728.ParseGain(o.gain); err != nil {
		return 0, s, err
	}
	return ch, s, nil
}

func run(o options, bus i2c.Bus, out io.Writer) error {
	dev, err := mcp4728.Open(o.addr, bus, mcp4728.WithDebug(o.debug))
	if err != nil {
		return err
	}
	defer dev.Close()

	if o.channel != "" {
		ch, s, err := o.setting()
		if err != nil {
			return err
		}
		if err := dev.SetChannel(ch, s); err != nil {
			return err
		}
		if o.debug {
			log.Printf("mcp4728ctl: ch=%s %s", ch, s)
		}
	}

	if o.save {
		if err := dev.SaveToEEPROM(); err != nil {
			return err
		}
		fmt.Fprintln(out, "saved to eeprom")
	}

	if o.dump {
		rb, err := dev.ReadBack()
		if err != nil {
			return err
		}
		printReadBack(out, rb)
	}
	return nil
}

func printReadBack(w io.Writer, rb [mcp4728.NumChannels]mcp4728.Readback) {
	for _, r := range rb {
		fmt.Fprintf(w, "%s input  %s ready=%v por=%v\n", r.Channel, r.Input, r.InputStatus.Ready, r.InputStatus.PowerOnReset)
		fmt.Fprintf(w, "%s eeprom %s\n", r.Channel, r.EEPROM)
	}
}
