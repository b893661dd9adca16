package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/touchmodbus/panel/hardware/touch"
	"github.com/touchmodbus/panel/helpers"
	"github.com/touchmodbus/panel/internal/tele"
	"github.com/touchmodbus/panel/log2"
)

const (
	DefaultEntryText       = "Option 2"
	DefaultStatusText      = "No data received yet."
	DefaultTargetAddress   = 0x40001
	DefaultStatusRegister  = 2
	DefaultStatusRefreshMs = 1000
	DefaultTickMs          = 5
	DefaultPersistRoot     = "./tmp-panel-db"
	DefaultDisplayWidth    = 320
	DefaultDisplayHeight   = 240

	teleQueueTag = "tele"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Hardware     hardware // hardware.go
	Log          *log2.Log
	Tele         tele.Teler

	_copy_guard sync.Mutex //nolint:unused
}

const ContextKey = "run/state-global"

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If `Init` fails, consider `Global` is in broken state.
// Hardware is opened lazily, see hardware.go.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	g.Log.Infof("build version=%s", g.BuildVersion)

	if g.Config.Persist.Root == "" {
		g.Config.Persist.Root = DefaultPersistRoot
		g.Log.Errorf("config: persist.root=empty changed=%s", g.Config.Persist.Root)
	}
	g.Log.Debugf("config: persist.root=%s", g.Config.Persist.Root)
	if g.Config.Tele.PersistPath == "" {
		g.Config.Tele.PersistPath = filepath.Join(g.Config.Persist.Root, teleQueueTag)
	}

	// Since tele is remote error reporting mechanism, it must be inited before anything else.
	// Tele.Init gets g.Log clone before SetErrorFunc, so Tele.Log.Error doesn't recurse on itself
	if err := g.Tele.Init(ctx, g.Log.Clone(log2.LInfo), g.Config.Tele); err != nil {
		g.Tele = tele.NewStub()
		return errors.Annotate(err, "tele init")
	}
	g.Log.SetErrorFunc(g.Tele.Error)

	errs := make([]error, 0, 4)
	errs = append(errs, g.initHardwareConfig()...)
	errs = append(errs, g.initUIConfig()...)
	return helpers.FoldErrors(errs)
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Fatal(err)
	}
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		// log hook forwards to tele
		g.Log.Error(err)
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(5 * time.Second)
		g.Tele.Close()
		g.Log.Fatal(errors.ErrorStack(err))
		os.Exit(1)
	}
}

func (g *Global) Stop() {
	g.Alive.Stop()
}

func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	select {
	case <-g.Alive.WaitChan():
		return true
	case <-time.After(timeout):
		return false
	}
}

func (g *Global) initHardwareConfig() []error {
	var errs []error
	d := &g.Config.Hardware.Display
	if d.Width == 0 || d.Height == 0 {
		d.Width, d.Height = DefaultDisplayWidth, DefaultDisplayHeight
		g.Log.Debugf("config: hardware.display size=%dx%d", d.Width, d.Height)
	}
	if d.Width < 0 || d.Height < 0 || d.FlushRows < 0 {
		errs = append(errs, errors.NotValidf("config: hardware.display=%+v", *d))
	}

	t := &g.Config.Hardware.Touch
	if t.CalibrationMargin == 0 {
		t.CalibrationMargin = touch.DefaultCalibrationMargin
	} else if t.CalibrationMargin < 0 {
		errs = append(errs, errors.NotValidf("config: hardware.touch.calibration_margin=%d", t.CalibrationMargin))
	}

	m := &g.Config.Hardware.Modbus
	if m.SlaveID == 0 {
		m.SlaveID = 1
		g.Log.Infof("config: hardware.modbus.slave_id=0 changed=%d", m.SlaveID)
	}
	return errs
}

func (g *Global) initUIConfig() []error {
	var errs []error
	u := &g.Config.UI
	if u.TickMs == 0 {
		u.TickMs = DefaultTickMs
	} else if u.TickMs < 0 {
		errs = append(errs, errors.NotValidf("config: ui.tick_ms=%d", u.TickMs))
	}
	if u.EntryText == "" {
		u.EntryText = DefaultEntryText
	}
	if u.StatusText == "" {
		u.StatusText = DefaultStatusText
	}

	p := &g.Config.Panel
	if p.TargetAddress == 0 {
		p.TargetAddress = DefaultTargetAddress
		g.Log.Debugf("config: panel.target_address=0x%x", p.TargetAddress)
	} else if p.TargetAddress < 0 || uint64(p.TargetAddress) > 0xffffffff {
		errs = append(errs, errors.NotValidf("config: panel.target_address=%d", p.TargetAddress))
	}
	if p.SubmitOnCancel == nil {
		v := true
		p.SubmitOnCancel = &v
	}
	if p.StatusRegister == 0 {
		p.StatusRegister = DefaultStatusRegister
	}
	if p.StatusRefreshMs == 0 {
		p.StatusRefreshMs = DefaultStatusRefreshMs
	} else if p.StatusRefreshMs < 0 {
		errs = append(errs, errors.NotValidf("config: panel.status_refresh_ms=%d", p.StatusRefreshMs))
	}
	return errs
}
