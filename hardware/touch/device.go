// Package touch reads Linux evdev touchscreen and maps it to screen space.
package touch

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/inputevent-go"
	"github.com/touchmodbus/panel/internal/types"
	"github.com/touchmodbus/panel/log2"
)

// <linux/input-event-codes.h>
const (
	evSyn          = 0x00
	evKey          = 0x01
	evAbs          = 0x03
	synReport      = 0x00
	btnTouch       = 0x14a
	absX           = 0x00
	absY           = 0x01
	absMtPositionX = 0x35
	absMtPositionY = 0x36
)

// Sensor is what UI loop needs from touch hardware.
// Poll must not block.
type Sensor interface {
	Poll() types.TouchSample
}

type RawPoller interface {
	PollRaw() types.TouchSample
}

// Device is evdev touchscreen, e.g. ads7846 driver exposing SPI XPT2046.
type Device struct {
	snapshot
	log     *log2.Log
	f       io.ReadCloser
	closed  uint32            // atomic bool
	pending types.TouchSample // reader goroutine only
}

var _ Sensor = &Device{} // compile-time interface test
var _ RawPoller = &Device{}

func Open(path string, log *log2.Log) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotatef(err, "touch open device=%s", path)
	}
	return NewDevice(f, log), nil
}

func NewDevice(r io.ReadCloser, log *log2.Log) *Device {
	return &Device{f: r, log: log}
}

// Run consumes events until read error or Close.
func (d *Device) Run() {
	for {
		ie, err := inputevent.ReadOne(d.f)
		if err != nil {
			d.fail(err)
			if atomic.LoadUint32(&d.closed) == 0 {
				d.log.Errorf("touch read err=%v", err)
			}
			return
		}
		d.handle(ie)
	}
}

func (d *Device) handle(ie inputevent.InputEvent) {
	switch ie.Type {
	case evSyn:
		if ie.Code == synReport {
			d.commit(d.pending)
		}
	case evKey:
		if ie.Code == btnTouch {
			d.pending.Pressed = ie.Value != int32(inputevent.KeyStateUp)
		}
	case evAbs:
		switch ie.Code {
		case absX, absMtPositionX:
			d.pending.X = int(ie.Value)
		case absY, absMtPositionY:
			d.pending.Y = int(ie.Value)
		}
	}
}

func (d *Device) Close() error {
	atomic.StoreUint32(&d.closed, 1)
	return d.f.Close()
}
