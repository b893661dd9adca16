// Sorry, workaround to import cycles.
package state_new

import (
	"context"
	"image"
	"io/ioutil"
	"os"
	"testing"

	"github.com/temoto/alive/v2"
	"github.com/touchmodbus/panel/hardware/display"
	"github.com/touchmodbus/panel/hardware/modbus"
	"github.com/touchmodbus/panel/hardware/touch"
	"github.com/touchmodbus/panel/internal/state"
	"github.com/touchmodbus/panel/internal/tele"
	"github.com/touchmodbus/panel/log2"
)

const MockContextKey = "test/mocks"

// Mocks are hardware doubles installed by NewTestContext.
type Mocks struct {
	Display *display.Display
	Touch   *touch.Mock
	Modbus  *modbus.Mock
	Tele    *tele.Stub
}

func NewContext(log *log2.Log, teler tele.Teler) (context.Context, *state.Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}

	g := &state.Global{
		Alive: alive.NewAlive(),
		Log:   log,
		Tele:  teler,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, state.ContextKey, g)

	return ctx, g
}

func NewTestContext(t testing.TB, confString string) (context.Context, *state.Global) {
	fs := state.NewMockFullReader(map[string]string{
		"test-inline": confString,
	})

	var log *log2.Log
	if os.Getenv("panel_test_log_stderr") == "1" {
		log = log2.NewStderr(log2.LDebug) // useful with panics
	} else {
		log = log2.NewTest(t, log2.LDebug)
	}
	log.SetFlags(log2.LTestFlags)
	mocks := &Mocks{
		Touch:  touch.NewMock(),
		Modbus: modbus.NewMock(),
		Tele:   tele.NewStub(),
	}
	ctx, g := NewContext(log, mocks.Tele)
	config := state.MustReadConfig(log, fs, "test-inline")
	if config.Persist.Root == "" {
		dir, err := ioutil.TempDir("", "panel-test")
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { os.RemoveAll(dir) })
		config.Persist.Root = dir
	}
	g.MustInit(ctx, config)

	dcfg := &g.Config.Hardware.Display
	mocks.Display = display.NewMock(image.Pt(dcfg.Width, dcfg.Height), dcfg.FlushRows)
	g.Hardware.Display.D = mocks.Display
	g.Hardware.Touch.Sensor = mocks.Touch
	g.Hardware.Touch.Raw = mocks.Touch
	g.Hardware.Modbus.Transport = mocks.Modbus
	ctx = context.WithValue(ctx, MockContextKey, mocks)

	return ctx, g
}

func GetMocks(ctx context.Context) *Mocks {
	return ctx.Value(MockContextKey).(*Mocks)
}
