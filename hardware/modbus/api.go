// Package modbus is the panel side of a Modbus RTU link: single holding
// register write and read against one slave fixed at startup.
// Failures never escape as error values, callers receive Status.
package modbus

import "fmt"

// Status codes follow ModbusMaster: exception codes as sent by the slave,
// 0xE0.. for local link failures.
type Status uint8

const (
	StatusSuccess            Status = 0x00
	StatusIllegalFunction    Status = 0x01
	StatusIllegalDataAddress Status = 0x02
	StatusIllegalDataValue   Status = 0x03
	StatusSlaveDeviceFailure Status = 0x04
	StatusInvalidSlaveID     Status = 0xe0
	StatusInvalidFunction    Status = 0xe1
	StatusResponseTimedOut   Status = 0xe2
	StatusInvalidCRC         Status = 0xe3
)

func (s Status) Ok() bool { return s == StatusSuccess }

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusIllegalFunction:
		return "illegal function"
	case StatusIllegalDataAddress:
		return "illegal data address"
	case StatusIllegalDataValue:
		return "illegal data value"
	case StatusSlaveDeviceFailure:
		return "slave device failure"
	case StatusInvalidSlaveID:
		return "invalid slave id"
	case StatusInvalidFunction:
		return "invalid function"
	case StatusResponseTimedOut:
		return "response timed out"
	case StatusInvalidCRC:
		return "invalid crc"
	}
	return fmt.Sprintf("status(0x%02x)", uint8(s))
}

// Transporter is not safe for concurrent use: the half-duplex line carries one
// request/response pair at a time.
type Transporter interface {
	WriteValue(address uint32, value uint16) Status
	ReadValue(address uint32) (uint16, Status)
}

type WriteRequest struct {
	Address uint32
	Value   uint16
}

func (r WriteRequest) String() string {
	return fmt.Sprintf("write(address=0x%x value=%d)", r.Address, r.Value)
}

// Register maps 32-bit styled address (e.g. 0x40001) to wire register number.
// Only low 16 bits go on the wire.
func Register(address uint32) uint16 { return uint16(address) }
