package main

import (
	"context"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touchmodbus/panel/hardware/modbus"
	state_new "github.com/touchmodbus/panel/internal/state/new"
)

func TestParseLine(t *testing.T) {
	t.Parallel()

	cases := []struct {
		line      string
		steps     int
		loop      uint
		expectErr string
	}{
		{"", 0, 0, ""},
		{"help", 1, 0, ""},
		{"r 2", 1, 0, ""},
		{"r 0x40001 s10 r 2 loop=5", 3, 5, ""},
		{"w 0x40001 42 log=yes", 2, 0, ""},
		{"r", 0, 0, "r: expected ADDR"},
		{"w 1", 0, 0, "w: expected ADDR VALUE"},
		{"w 1 70000", 0, 0, `value=70000: strconv.ParseUint: parsing "70000": value out of range`},
		{"r zz", 0, 0, `address=zz: strconv.ParseUint: parsing "zz": invalid syntax`},
		{"loop=2 loop=3", 0, 0, "multiple loop commands, expected at most one"},
		{"loop=0", 0, 0, "word=loop=0 not valid"},
		{"x", 0, 0, "invalid command: 'x'"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.line, func(t *testing.T) {
			s, err := parseLine(c.line)
			if c.expectErr != "" {
				require.Error(t, err)
				assert.Equal(t, c.expectErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Len(t, s.steps, c.steps)
			assert.Equal(t, c.loop, s.loop)
		})
	}
}

func TestScriptDo(t *testing.T) {
	t.Parallel()
	ctx, _ := state_new.NewTestContext(t, "")
	mocks := state_new.GetMocks(ctx)

	s, err := parseLine("w 0x40001 42 r 0x40001 loop=2")
	require.NoError(t, err)
	require.NoError(t, s.Do(ctx))
	assert.Equal(t, []modbus.WriteRequest{
		{Address: 0x40001, Value: 42},
		{Address: 0x40001, Value: 42},
	}, mocks.Modbus.Writes())
	assert.Equal(t, []uint32{0x40001, 0x40001}, mocks.Modbus.Reads())
}

func TestScriptTransportError(t *testing.T) {
	t.Parallel()
	ctx, _ := state_new.NewTestContext(t, "")
	mocks := state_new.GetMocks(ctx)
	mocks.Modbus.ExpectStatus(modbus.StatusResponseTimedOut)

	s, err := parseLine("r 2 r 3")
	require.NoError(t, err)
	err = s.Do(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read address=0x2 status=response timed out")
	// first failure stops the line
	assert.Equal(t, []uint32{2}, mocks.Modbus.Reads())
}

func TestSleepCancel(t *testing.T) {
	t.Parallel()
	ctx, _ := state_new.NewTestContext(t, "")
	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	s, err := parseLine("s60000")
	require.NoError(t, err)
	tbegin := time.Now()
	err = s.Do(ctx)
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
	assert.Less(t, int64(time.Since(tbegin)), int64(5*time.Second))
}
