package state_test

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touchmodbus/panel/hardware/touch"
	state_new "github.com/touchmodbus/panel/internal/state/new"
)

// raw = 100 + 10*screen, 320x240 screen, margin 15
func tapCorners(m *touch.Mock) {
	for _, pt := range [][2]int{{15, 15}, {15, 224}, {304, 15}, {304, 224}} {
		m.Tap(100+10*pt[0], 100+10*pt[1])
	}
}

func calibrationContext(t *testing.T, root, extra string) (context.Context, *state_new.Mocks, func(context.Context) error) {
	ctx, g := state_new.NewTestContext(t, fmt.Sprintf("persist { root = %q }\n%s", root, extra))
	return ctx, state_new.GetMocks(ctx), g.InitCalibration
}

func tempRoot(t *testing.T) string {
	dir, err := ioutil.TempDir("", "panel-state-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func withTimeout(t *testing.T, ctx context.Context) context.Context {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCalibrationFirstRunThenLoad(t *testing.T) {
	t.Parallel()
	root := tempRoot(t)

	ctx, mocks, initCal := calibrationContext(t, root, "")
	tapCorners(mocks.Touch)
	require.NoError(t, initCal(withTimeout(t, ctx)))
	assert.Equal(t, 0, mocks.Touch.Pending())
	assert.NotEmpty(t, mocks.Display.Flushes())
	_, err := os.Stat(filepath.Join(root, "calibration"))
	require.NoError(t, err)

	// second boot: stored calibration is used, no taps consumed
	ctx2, mocks2, initCal2 := calibrationContext(t, root, "")
	mocks2.Touch.Tap(1, 1)
	require.NoError(t, initCal2(withTimeout(t, ctx2)))
	assert.Equal(t, 2, mocks2.Touch.Pending())
	assert.Empty(t, mocks2.Tele.Errors())
}

func TestCalibrationRepeat(t *testing.T) {
	t.Parallel()
	root := tempRoot(t)

	ctx, mocks, initCal := calibrationContext(t, root, "")
	tapCorners(mocks.Touch)
	require.NoError(t, initCal(withTimeout(t, ctx)))

	ctx2, mocks2, initCal2 := calibrationContext(t, root, "hardware { touch { repeat_calibration = true } }")
	tapCorners(mocks2.Touch)
	require.NoError(t, initCal2(withTimeout(t, ctx2)))
	assert.Equal(t, 0, mocks2.Touch.Pending())
}

func TestCalibrationCorruptStore(t *testing.T) {
	t.Parallel()
	root := tempRoot(t)
	dir := filepath.Join(root, "calibration")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range []string{"extremofile.v1.main", "extremofile.v1.backup"} {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte("garbage-not-checksummed"), 0644))
	}

	ctx, g := state_new.NewTestContext(t, fmt.Sprintf("persist { root = %q }", root))
	mocks := state_new.GetMocks(ctx)
	tapCorners(mocks.Touch)
	require.NoError(t, g.InitCalibration(withTimeout(t, ctx)))
	assert.Equal(t, 0, mocks.Touch.Pending())
	assert.NotEmpty(t, mocks.Tele.Errors(), "storage error reported")

	cal := g.Hardware.Touch.Calibration
	require.True(t, cal.Valid(), cal.String())
	x, y := cal.Apply(100+10*160, 100+10*120)
	assert.Equal(t, 160, x)
	assert.Equal(t, 120, y)

	// store was rewritten
	var loaded touch.Calibration
	require.NoError(t, g.Hardware.Touch.Persist.Load())
	loaded = g.Hardware.Touch.Calibration
	assert.Equal(t, cal, loaded)
}

func TestCalibrationCancelled(t *testing.T) {
	t.Parallel()

	ctx, g := state_new.NewTestContext(t, "")
	cctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	err := g.InitCalibration(cctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "touch calibration")
}
