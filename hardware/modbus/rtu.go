package modbus

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/goburrow/serial"
	"github.com/juju/errors"
	"github.com/touchmodbus/panel/log2"
)

const (
	DefaultBaud    = 9600
	DefaultTimeout = time.Second
)

type Config struct {
	Device   string `hcl:"device"`
	Baud     int    `hcl:"baud"`
	DataBits int    `hcl:"data_bits"`
	Parity   string `hcl:"parity"`
	StopBits int    `hcl:"stop_bits"`
	SlaveID  int    `hcl:"slave_id"`
	// 0 means DefaultTimeout
	TimeoutMs int  `hcl:"timeout_ms"`
	LogDebug  bool `hcl:"log_debug"`
}

// RTU is Transporter over serial line. Serial parameters are fixed by NewRTU.
type RTU struct {
	Log     *log2.Log
	handler *modbus.RTUClientHandler
	client  modbus.Client
	mu      sync.Mutex
}

var _ Transporter = &RTU{} // compile-time interface test

func NewRTU(c Config, log *log2.Log) (*RTU, error) {
	if c.Device == "" {
		return nil, errors.NotValidf("modbus device empty")
	}
	if c.SlaveID < 1 || c.SlaveID > 247 {
		return nil, errors.NotValidf("modbus slave_id=%d", c.SlaveID)
	}
	h := modbus.NewRTUClientHandler(c.Device)
	h.BaudRate = c.Baud
	if h.BaudRate == 0 {
		h.BaudRate = DefaultBaud
	}
	h.DataBits = c.DataBits
	if h.DataBits == 0 {
		h.DataBits = 8
	}
	h.Parity = strings.ToUpper(c.Parity)
	if h.Parity == "" {
		h.Parity = "N"
	}
	switch h.Parity {
	case "N", "E", "O":
	default:
		return nil, errors.NotValidf("modbus parity=%s (valid: N, E, O)", c.Parity)
	}
	h.StopBits = c.StopBits
	if h.StopBits == 0 {
		h.StopBits = 1
	}
	h.SlaveId = byte(c.SlaveID)
	h.Timeout = DefaultTimeout
	if c.TimeoutMs > 0 {
		h.Timeout = time.Duration(c.TimeoutMs) * time.Millisecond
	}
	if c.LogDebug {
		h.Logger = log.Stdlib(log2.LDebug, "modbus: ")
	}
	return &RTU{
		Log:     log,
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (r *RTU) Open() error {
	err := r.handler.Connect()
	return errors.Annotatef(err, "modbus open device=%s baud=%d", r.handler.Address, r.handler.BaudRate)
}

func (r *RTU) Close() error { return r.handler.Close() }

func (r *RTU) WriteValue(address uint32, value uint16) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	tbegin := time.Now()
	_, err := r.client.WriteSingleRegister(Register(address), value)
	s := Classify(err)
	r.Log.Debugf("modbus write address=0x%x value=%d status=%s duration=%v err=%v",
		address, value, s, time.Since(tbegin), err)
	return s
}

func (r *RTU) ReadValue(address uint32) (uint16, Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.client.ReadHoldingRegisters(Register(address), 1)
	if err == nil && len(b) < 2 {
		err = errors.Errorf("modbus: response data size '%d' does not match count '2'", len(b))
	}
	s := Classify(err)
	r.Log.Debugf("modbus read address=0x%x status=%s err=%v", address, s, err)
	if !s.Ok() {
		return 0, s
	}
	return uint16(b[0])<<8 | uint16(b[1]), s
}

// Classify maps library and serial errors to Status.
func Classify(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	cause := errors.Cause(err)
	if me, ok := cause.(*modbus.ModbusError); ok {
		switch s := Status(me.ExceptionCode); s {
		case StatusIllegalFunction, StatusIllegalDataAddress, StatusIllegalDataValue, StatusSlaveDeviceFailure:
			return s
		}
		return StatusSlaveDeviceFailure
	}
	if cause == serial.ErrTimeout {
		return StatusResponseTimedOut
	}
	if ne, ok := cause.(net.Error); ok && ne.Timeout() {
		return StatusResponseTimedOut
	}
	msg := cause.Error()
	switch {
	case strings.Contains(msg, "crc"):
		return StatusInvalidCRC
	case strings.Contains(msg, "slave id"):
		return StatusInvalidSlaveID
	case strings.Contains(msg, "does not match") || strings.Contains(msg, "function code"):
		return StatusInvalidFunction
	}
	return StatusResponseTimedOut
}
