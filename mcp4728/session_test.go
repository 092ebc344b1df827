package mcp4728

import (
	"bytes"
	"errors"
	"io"
	"log"
	"testing"
)

func openFake(t *testing.T, b *fakeBus) *Device {
	t.Helper()
	d, err := Open(DefaultAddress, b, WithLogger(log.New(io.Discard, "", 0)), WithDebug(true))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b.reset()
	return d
}

func TestOpen(t *testing.T) {
	b := newFakeBus()
	b.setGroup(ChannelA, 0xC0, 0x0800, 0xC1, 0x0000)
	b.setGroup(ChannelD, 0xF0, 0x9ABC, 0xF1, 0x0000)

	d, err := Open(DefaultAddress, b)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(b.ops) != 2 || len(b.ops[0].data) != 1 || len(b.ops[1].data) != 24 {
		t.Fatalf("expected probe + full read, got %v", b.ops)
	}
	if len(b.writes()) != 0 {
		t.Errorf("Open must not write: %v", b.writes())
	}

	if s, ok := d.Cached(ChannelA); !ok || s != (Setting{Value: 2048}) {
		t.Errorf("cache A = %s, %v", s, ok)
	}
	want := Setting{Value: 0xABC, Reference: ReferenceInternal, Gain: Gain2x}
	if s, ok := d.Cached(ChannelD); !ok || s != want {
		t.Errorf("cache D = %s, %v; want %s", s, ok, want)
	}
	if _, ok := d.Cached(Channel(9)); ok {
		t.Errorf("invalid channel reported as cached")
	}
}

func TestOpenDeviceNotFound(t *testing.T) {
	b := newFakeBus()
	b.readErr[1] = errBusFault

	d, err := Open(DefaultAddress, b)
	if d != nil {
		t.Errorf("Open returned a device on failure")
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("err = %v, want ErrDeviceNotFound", err)
	}
	if !errors.Is(err, ErrTransport) || !errors.Is(err, errBusFault) {
		t.Errorf("err = %v, want transport cause in chain", err)
	}
	var oe *OpError
	if !errors.As(err, &oe) || oe.Op != "open" || oe.Addr != DefaultAddress {
		t.Errorf("err = %#v, want *OpError for open", err)
	}

	if _, err := Open(DefaultAddress, nil); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("nil bus: err = %v", err)
	}
	if _, err := Open(0x80, newFakeBus()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("8-bit address: err = %v", err)
	}
}

func TestOpenSeedReadFailure(t *testing.T) {
	b := newFakeBus()
	b.readErr[24] = errBusFault

	d, err := Open(DefaultAddress, b)
	if err != nil {
		t.Fatalf("seed failure must not fail Open: %v", err)
	}
	for _, ch := range Channels {
		if _, ok := d.Cached(ch); ok {
			t.Errorf("ch=%s cached after failed seed", ch)
		}
	}
}

func TestSetChannel(t *testing.T) {
	b := newFakeBus()
	d := openFake(t, b)

	s := Setting{Value: 2048}
	if err := d.SetChannel(ChannelA, s); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	w := b.writes()
	if len(b.ops) != 1 || len(w) != 1 {
		t.Fatalf("want exactly one write, got %v", b.ops)
	}
	if w[0].addr != DefaultAddress || !bytes.Equal(w[0].data, []byte{0x40, 0x08, 0x00}) {
		t.Errorf("write = %s", w[0])
	}
	if got, _ := d.Cached(ChannelA); got != s {
		t.Errorf("cache A = %s, want %s", got, s)
	}

	// Out-of-range value is masked on the wire and in the cache.
	b.reset()
	if err := d.SetChannel(ChannelC, Setting{Value: 5000, LatchNow: true}); err != nil {
		t.Fatal(err)
	}
	if got := b.writes()[0].data; !bytes.Equal(got, []byte{0x45, 0x03, 0x88}) {
		t.Errorf("masked write = % X", got)
	}
	if got, _ := d.Cached(ChannelC); got.Value != 5000&0x0FFF || !got.LatchNow {
		t.Errorf("cache C = %s", got)
	}
}

func TestSetChannelWriteFailure(t *testing.T) {
	b := newFakeBus()
	b.setGroup(ChannelB, 0xD0, 0x0100, 0xD1, 0x0000)
	d := openFake(t, b)
	b.writeErr = errBusFault

	err := d.SetChannel(ChannelB, Setting{Value: 4000})
	if !errors.Is(err, ErrWrite) || !errors.Is(err, ErrTransport) || !errors.Is(err, errBusFault) {
		t.Errorf("err = %v, want ErrWrite wrapping the bus error", err)
	}
	if errors.Is(err, ErrEEPROMCommit) {
		t.Errorf("channel write failure reported as eeprom failure")
	}
	if got, _ := d.Cached(ChannelB); got.Value != 0x100 {
		t.Errorf("cache changed after failed write: %s", got)
	}
}

func TestSetChannelInvalid(t *testing.T) {
	b := newFakeBus()
	d := openFake(t, b)

	if err := d.SetChannel(Channel(4), Setting{}); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("err = %v, want ErrInvalidChannel", err)
	}
	if len(b.ops) != 0 {
		t.Errorf("invalid channel produced bus traffic: %v", b.ops)
	}
}

func TestSaveToEEPROM(t *testing.T) {
	b := newFakeBus()
	b.setGroup(ChannelA, 0xC0, 0x0800, 0xC1, 0x1111)
	b.setGroup(ChannelB, 0xD0, 0x9234, 0xD1, 0x2222)
	b.setGroup(ChannelC, 0xE0, 0x6FFF, 0xE1, 0x3333)
	b.setGroup(ChannelD, 0xF0, 0x0001, 0xF1, 0x4444)
	d := openFake(t, b)

	if err := d.SaveToEEPROM(); err != nil {
		t.Fatalf("SaveToEEPROM: %v", err)
	}
	if len(b.ops) != 2 || b.ops[0].write || len(b.ops[0].data) != 24 || !b.ops[1].write {
		t.Fatalf("want read(24) then write, got %v", b.ops)
	}
	want := []byte{0x50, 0x08, 0x00, 0x92, 0x34, 0x6F, 0xFF, 0x00, 0x01}
	if got := b.ops[1].data; !bytes.Equal(got, want) {
		t.Errorf("commit = % X, want % X", got, want)
	}
}

func TestSaveToEEPROMRefreshesCache(t *testing.T) {
	b := newFakeBus()
	d := openFake(t, b)
	b.setGroup(ChannelD, 0xF0, 0x9234, 0xF1, 0x0000)

	if err := d.SaveToEEPROM(); err != nil {
		t.Fatalf("SaveToEEPROM: %v", err)
	}
	want := Setting{Value: 0x234, Reference: ReferenceInternal, Gain: Gain2x}
	if s, ok := d.Cached(ChannelD); !ok || s != want {
		t.Errorf("cache D = %s, %v, want %s", s, ok, want)
	}
}

func TestSaveToEEPROMIgnoresCache(t *testing.T) {
	b := newFakeBus()
	d := openFake(t, b)

	// Cache says 4095; the device still reads back zero for A.
	d.cache[ChannelA] = Setting{Value: 4095}
	if err := d.SaveToEEPROM(); err != nil {
		t.Fatal(err)
	}
	if got := b.writes()[0].data; got[1] != 0 || got[2] != 0 {
		t.Errorf("commit used cached value: % X", got)
	}
}

func TestSaveToEEPROMReadFailure(t *testing.T) {
	b := newFakeBus()
	d := openFake(t, b)
	b.readErr[24] = errBusFault

	err := d.SaveToEEPROM()
	if !errors.Is(err, ErrRead) || !errors.Is(err, errBusFault) {
		t.Errorf("err = %v, want ErrRead", err)
	}
	if n := len(b.writes()); n != 0 {
		t.Errorf("%d writes issued after failed read", n)
	}
}

func TestSaveToEEPROMShortRead(t *testing.T) {
	b := newFakeBus()
	d := openFake(t, b)
	b.shortRead = 23

	err := d.SaveToEEPROM()
	if !errors.Is(err, ErrRead) || !errors.Is(err, ErrInvalidBufferLength) {
		t.Errorf("err = %v, want ErrRead + ErrInvalidBufferLength", err)
	}
	if n := len(b.writes()); n != 0 {
		t.Errorf("%d writes issued after short read", n)
	}
}

func TestSaveToEEPROMWriteFailure(t *testing.T) {
	b := newFakeBus()
	d := openFake(t, b)
	b.writeErr = errBusFault

	err := d.SaveToEEPROM()
	if !errors.Is(err, ErrEEPROMCommit) || !errors.Is(err, ErrTransport) {
		t.Errorf("err = %v, want ErrEEPROMCommit", err)
	}
	if !errors.Is(err, ErrWrite) {
		t.Errorf("err = %v, want it to match ErrWrite", err)
	}
	if errors.Is(err, ErrRead) {
		t.Errorf("eeprom commit failure matches ErrRead: %v", err)
	}
}

func TestReadBack(t *testing.T) {
	b := newFakeBus()
	d := openFake(t, b)
	b.setGroup(ChannelB, 0x50, 0x8123, 0x51, 0x0456)

	rb, err := d.ReadBack()
	if err != nil {
		t.Fatal(err)
	}
	if rb[ChannelB].Input != (Setting{Value: 0x123, Reference: ReferenceInternal}) {
		t.Errorf("B input = %s", rb[ChannelB].Input)
	}
	if rb[ChannelB].EEPROM.Value != 0x456 {
		t.Errorf("B eeprom = %s", rb[ChannelB].EEPROM)
	}
	if rb[ChannelB].InputStatus.Ready {
		t.Errorf("B status should be busy")
	}
	if s, _ := d.Cached(ChannelB); s.Value != 0x123 {
		t.Errorf("cache not refreshed: %s", s)
	}

	b.readErr[24] = errBusFault
	if _, err := d.ReadBack(); !errors.Is(err, ErrRead) {
		t.Errorf("err = %v, want ErrRead", err)
	}
}

func TestClosed(t *testing.T) {
	b := newFakeBus()
	d := openFake(t, b)
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	if err := d.SetChannel(ChannelA, Setting{}); !errors.Is(err, ErrClosed) {
		t.Errorf("SetChannel after Close: %v", err)
	}
	if err := d.SaveToEEPROM(); !errors.Is(err, ErrClosed) {
		t.Errorf("SaveToEEPROM after Close: %v", err)
	}
	if _, err := d.ReadBack(); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadBack after Close: %v", err)
	}
	if len(b.ops) != 0 {
		t.Errorf("closed device touched the bus: %v", b.ops)
	}
}
