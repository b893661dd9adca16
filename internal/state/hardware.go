package state

import (
	"context"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/juju/errors"
	"github.com/touchmodbus/panel/hardware/display"
	"github.com/touchmodbus/panel/hardware/modbus"
	"github.com/touchmodbus/panel/hardware/touch"
	"github.com/touchmodbus/panel/helpers"
	"github.com/touchmodbus/panel/internal/persist"
	"github.com/touchmodbus/panel/log2"
)

const calibrationTag = "calibration"

const (
	TouchDriverEvdev   = "evdev"
	TouchDriverXpt2046 = "xpt2046"
)

type hardware struct {
	Display struct {
		helpers.Once
		D *display.Display
	}
	Touch struct {
		helpers.Once
		Sensor      touch.Sensor
		Raw         touch.RawPoller
		Calibration touch.Calibration
		Persist     persist.Persist
		closer      io.Closer
	}
	Modbus struct {
		helpers.Once
		Transport modbus.Transporter
		rtu       *modbus.RTU
	}
}

// calibrated is implemented by touch.Device
type calibrated interface {
	SetCalibration(touch.Calibration)
}

func (g *Global) Display() (*display.Display, error) {
	x := &g.Hardware.Display // short alias
	err := x.Do(func() error {
		if x.D != nil { // state-new testing mode
			return nil
		}
		cfg := &g.Config.Hardware.Display
		if cfg.Framebuffer == "" {
			return errors.NotValidf("config: hardware.display.framebuffer=empty")
		}
		d, err := display.NewFb(cfg.Framebuffer, cfg.FlushRows)
		if err != nil {
			return errors.Annotatef(err, "config: hardware.display.framebuffer=%s", cfg.Framebuffer)
		}
		if size := d.Size(); size != image.Pt(cfg.Width, cfg.Height) {
			g.Log.Errorf("config: hardware.display size=%dx%d framebuffer=%s using framebuffer", cfg.Width, cfg.Height, size)
		}
		x.D = d
		return nil
	})
	return x.D, err
}

// Touch starts configured driver. Calibration is applied separately by InitCalibration.
// Device open failure is logged and leaves touch.Absent, only config errors are returned.
func (g *Global) Touch() (touch.Sensor, error) {
	x := &g.Hardware.Touch
	err := x.Do(func() error {
		if x.Sensor != nil { // state-new testing mode
			return nil
		}
		cfg := &g.Config.Hardware.Touch
		var err error
		switch cfg.Driver {
		case "", TouchDriverEvdev:
			if cfg.Device == "" {
				return errors.NotValidf("config: hardware.touch.device=empty")
			}
			var dev *touch.Device
			if dev, err = touch.Open(cfg.Device, g.Log); err == nil {
				go dev.Run()
				x.closer, x.Sensor, x.Raw = dev, dev, dev
			}

		case TouchDriverXpt2046:
			var dev *touch.Xpt2046
			dev, err = touch.OpenXpt2046(touch.Xpt2046Config{
				SpiBus:      cfg.SpiBus,
				SpiMode:     cfg.SpiMode,
				SpiSpeed:    cfg.SpiSpeed,
				PollMs:      cfg.PollMs,
				PressureMin: cfg.PressureMin,
			}, g.Log)
			if err == nil {
				dev.Start()
				x.closer, x.Sensor, x.Raw = dev, dev, dev
			}

		default:
			return errors.NotValidf("config: hardware.touch.driver=%s (valid: evdev, xpt2046)", cfg.Driver)
		}
		if err != nil {
			g.Error(err, "touch unavailable, input ignored")
			absent := touch.Absent{Err: err}
			x.Sensor, x.Raw = absent, absent
		}
		return nil
	})
	return x.Sensor, err
}

// InitCalibration loads stored calibration, formats unreadable store,
// runs interactive calibration when nothing valid is stored or config asks to repeat.
// Failure to store is logged, new calibration is used in memory.
func (g *Global) InitCalibration(ctx context.Context) error {
	d, err := g.Display()
	if err != nil {
		return err
	}
	if _, err = g.Touch(); err != nil {
		return err
	}
	x := &g.Hardware.Touch
	cfg := &g.Config.Hardware.Touch
	if _, ok := x.Sensor.(touch.Absent); ok {
		g.Log.Errorf("touch unavailable, calibration skipped")
		return nil
	}
	if err = x.Persist.Init(calibrationTag, &x.Calibration, g.Config.Persist.Root, g.Log); err != nil {
		return err
	}

	need := cfg.RepeatCalibration
	switch err = x.Persist.Load(); {
	case err == nil:
		g.Log.Infof("touch loaded %s", x.Calibration.String())
		if size := d.Size(); size != image.Pt(int(x.Calibration.Width), int(x.Calibration.Height)) {
			g.Log.Infof("touch calibration screen mismatch display=%s", size)
			need = true
		}
	case err == persist.ErrNoData:
		g.Log.Infof("touch calibration not found")
		need = true
	default:
		g.Error(err)
		g.Log.Infof("formatting calibration store")
		if err = x.Persist.Format(); err != nil {
			g.Error(err)
		}
		need = true
	}

	if need {
		cal, err := touch.Calibrate(ctx, d, x.Raw, cfg.CalibrationMargin)
		if err != nil {
			return errors.Annotate(err, "touch calibration")
		}
		x.Calibration = cal
		g.Log.Infof("touch calibrated %s", x.Calibration.String())
		if err = x.Persist.Store(); err != nil {
			g.Error(err, "calibration not saved")
		}
		if err = d.Clear(color.Black); err != nil {
			g.Error(err)
		}
	}
	if c, ok := x.Sensor.(calibrated); ok {
		c.SetCalibration(x.Calibration)
	}
	return nil
}

func (g *Global) Modbus() (modbus.Transporter, error) {
	x := &g.Hardware.Modbus
	err := x.Do(func() error {
		if x.Transport != nil { // state-new testing mode
			return nil
		}
		cfg := g.Config.Hardware.Modbus
		log := g.Log.Clone(log2.LInfo)
		if cfg.LogDebug {
			log.SetLevel(log2.LDebug)
		}
		rtu, err := modbus.NewRTU(cfg, log)
		if err != nil {
			return errors.Annotatef(err, "config: hardware.modbus")
		}
		// serial port is reopened on each request, missing device gives failure Status
		if err = rtu.Open(); err != nil {
			g.Error(err, "modbus")
		}
		x.rtu, x.Transport = rtu, rtu
		return nil
	})
	return x.Transport, err
}

// InitHardware opens display, touch and modbus concurrently, errors are folded.
func (g *Global) InitHardware(ctx context.Context) error {
	inits := []func() error{
		func() error { _, err := g.Display(); return errors.Annotate(err, "display init") },
		func() error { _, err := g.Touch(); return errors.Annotate(err, "touch init") },
		func() error { _, err := g.Modbus(); return errors.Annotate(err, "modbus init") },
	}
	errch := make(chan error, len(inits))
	wg := sync.WaitGroup{}
	wg.Add(len(inits))
	for _, f := range inits {
		go helpers.WrapErrChan(&wg, errch, f)
	}
	wg.Wait()
	close(errch)
	return helpers.FoldErrChan(errch)
}

// CloseHardware releases devices opened by this Global.
func (g *Global) CloseHardware() error {
	errs := make([]error, 0, 3)
	if x := g.Hardware.Touch.closer; x != nil {
		errs = append(errs, x.Close())
	}
	if x := g.Hardware.Modbus.rtu; x != nil {
		errs = append(errs, x.Close())
	}
	if x := g.Hardware.Display.D; x != nil {
		errs = append(errs, x.Close())
	}
	return helpers.FoldErrors(errs)
}
