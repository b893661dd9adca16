package touch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touchmodbus/panel/internal/types"
	"github.com/touchmodbus/panel/log2"
)

type fakeXpt struct {
	mu     sync.Mutex
	values map[byte]int
	err    error
	closed bool
}

func (f *fakeXpt) set(x, y, z1, z2 int) {
	f.mu.Lock()
	f.values = map[byte]int{xptCmdX: x, xptCmdY: y, xptCmdZ1: z1, xptCmdZ2: z2}
	f.mu.Unlock()
}

func (f *fakeXpt) Tx(send, recv []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	v := uint16(f.values[send[0]]) << 3
	recv[0], recv[1], recv[2] = 0, byte(v>>8), byte(v)
	return nil
}

func (f *fakeXpt) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func TestXpt2046Sample(t *testing.T) {
	t.Parallel()

	f := &fakeXpt{}
	d := NewXpt2046(f.Tx, f, Xpt2046Config{}, log2.NewTest(t, log2.LDebug))

	f.set(1000, 3000, 0, xptMax)
	require.NoError(t, d.sample())
	assert.False(t, d.PollRaw().Pressed, "no pressure")

	f.set(1000, 3000, 600, 3500) // z=1196
	require.NoError(t, d.sample())
	assert.Equal(t, types.TouchSample{Pressed: true, X: 1000, Y: 3000}, d.PollRaw())

	d.SetCalibration(Calibration{X0: 0, X1: 2000, Y0: 0, Y1: 4000, Width: 201, Height: 101})
	assert.Equal(t, types.TouchSample{Pressed: true, X: 100, Y: 75}, d.Poll())

	f.set(0, 0, 100, 4000) // z=195
	require.NoError(t, d.sample())
	assert.Equal(t, types.TouchSample{Pressed: false, X: 1000, Y: 3000}, d.PollRaw(), "release keeps position")
}

func TestXpt2046PressureConfig(t *testing.T) {
	t.Parallel()

	f := &fakeXpt{}
	d := NewXpt2046(f.Tx, nil, Xpt2046Config{PressureMin: 2000, PollMs: 3}, log2.NewTest(t, log2.LDebug))
	assert.Equal(t, 3*time.Millisecond, d.period)
	f.set(10, 20, 600, 3500)
	require.NoError(t, d.sample())
	assert.False(t, d.PollRaw().Pressed)
	assert.NoError(t, d.Close())
}

func TestXpt2046RunError(t *testing.T) {
	t.Parallel()

	f := &fakeXpt{}
	f.set(1000, 3000, 600, 3500)
	d := NewXpt2046(f.Tx, f, Xpt2046Config{PollMs: 1}, log2.NewTest(t, log2.LDebug))
	d.Start()
	require.Eventually(t, func() bool { return d.PollRaw().Pressed }, 5*time.Second, time.Millisecond)

	f.mu.Lock()
	f.err = fmt.Errorf("spi gone")
	f.mu.Unlock()
	require.Eventually(t, func() bool { return d.Err() != nil }, 5*time.Second, time.Millisecond)
	assert.Contains(t, d.Err().Error(), "spi gone")
	assert.False(t, d.Poll().Pressed)

	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
	assert.True(t, f.closed)
}
