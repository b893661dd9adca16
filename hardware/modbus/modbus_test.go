package modbus

import (
	"fmt"
	"testing"

	"github.com/goburrow/modbus"
	"github.com/goburrow/serial"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touchmodbus/panel/log2"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		input  error
		expect Status
	}{
		{"nil", nil, StatusSuccess},
		{"illegal-address", &modbus.ModbusError{FunctionCode: 0x86, ExceptionCode: 2}, StatusIllegalDataAddress},
		{"illegal-value", &modbus.ModbusError{FunctionCode: 0x86, ExceptionCode: 3}, StatusIllegalDataValue},
		{"slave-failure", &modbus.ModbusError{FunctionCode: 0x86, ExceptionCode: 4}, StatusSlaveDeviceFailure},
		{"gateway-exception", &modbus.ModbusError{FunctionCode: 0x86, ExceptionCode: 0x0b}, StatusSlaveDeviceFailure},
		{"annotated-exception", errors.Annotate(&modbus.ModbusError{FunctionCode: 0x86, ExceptionCode: 1}, "write"), StatusIllegalFunction},
		{"serial-timeout", serial.ErrTimeout, StatusResponseTimedOut},
		{"crc", fmt.Errorf("modbus: response crc '1234' does not match expected '4321'"), StatusInvalidCRC},
		{"slave-id", fmt.Errorf("modbus: response slave id '2' does not match request '1'"), StatusInvalidSlaveID},
		{"address-echo", fmt.Errorf("modbus: response address '2' does not match request '1'"), StatusInvalidFunction},
		{"unknown", fmt.Errorf("read /dev/ttyS2: input/output error"), StatusResponseTimedOut},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expect, Classify(c.input))
		})
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint16(1), Register(0x40001))
	assert.Equal(t, uint16(2), Register(2))
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "response timed out", StatusResponseTimedOut.String())
	assert.Equal(t, "status(0x7f)", Status(0x7f).String())
	assert.True(t, StatusSuccess.Ok())
	assert.False(t, StatusInvalidCRC.Ok())
}

func TestNewRTUValidate(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	cases := []struct {
		name      string
		config    Config
		expectErr string
	}{
		{"ok", Config{Device: "/dev/null", SlaveID: 1}, ""},
		{"no-device", Config{SlaveID: 1}, "modbus device empty not valid"},
		{"slave-zero", Config{Device: "/dev/null"}, "modbus slave_id=0 not valid"},
		{"parity", Config{Device: "/dev/null", SlaveID: 1, Parity: "x"}, "modbus parity=x (valid: N, E, O) not valid"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			r, err := NewRTU(c.config, log)
			if c.expectErr == "" {
				require.NoError(t, err)
				assert.Equal(t, DefaultBaud, r.handler.BaudRate)
				assert.Equal(t, "N", r.handler.Parity)
				assert.Equal(t, byte(1), r.handler.SlaveId)
				assert.Equal(t, DefaultTimeout, r.handler.Timeout)
			} else {
				assert.EqualError(t, err, c.expectErr)
			}
		})
	}
}

func TestMock(t *testing.T) {
	t.Parallel()

	m := NewMock()
	m.ExpectStatus(StatusSuccess, StatusResponseTimedOut)
	assert.Equal(t, StatusSuccess, m.WriteValue(0x40001, 42))
	assert.Equal(t, StatusResponseTimedOut, m.WriteValue(0x40001, 7))
	v, s := m.ReadValue(0x40001)
	assert.Equal(t, StatusSuccess, s)
	assert.Equal(t, uint16(42), v)
	assert.Equal(t, []WriteRequest{{0x40001, 42}, {0x40001, 7}}, m.Writes())
	assert.Equal(t, []uint32{0x40001}, m.Reads())
}
