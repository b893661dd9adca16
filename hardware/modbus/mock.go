package modbus

import "sync"

// Mock is Transporter for tests. Writes are recorded, statuses and read values
// come from queues; empty queue means success.
type Mock struct {
	mu       sync.Mutex
	writes   []WriteRequest
	reads    []uint32
	statuses []Status
	values   map[uint32]uint16
}

var _ Transporter = &Mock{} // compile-time interface test

func NewMock() *Mock {
	return &Mock{values: make(map[uint32]uint16)}
}

// ExpectStatus queues result for next calls, in order.
func (m *Mock) ExpectStatus(ss ...Status) {
	m.mu.Lock()
	m.statuses = append(m.statuses, ss...)
	m.mu.Unlock()
}

func (m *Mock) SetValue(address uint32, value uint16) {
	m.mu.Lock()
	m.values[address] = value
	m.mu.Unlock()
}

func (m *Mock) Writes() []WriteRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WriteRequest(nil), m.writes...)
}

func (m *Mock) Reads() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint32(nil), m.reads...)
}

func (m *Mock) WriteValue(address uint32, value uint16) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, WriteRequest{Address: address, Value: value})
	s := m.next()
	if s.Ok() {
		m.values[address] = value
	}
	return s
}

func (m *Mock) ReadValue(address uint32) (uint16, Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, address)
	if s := m.next(); !s.Ok() {
		return 0, s
	}
	return m.values[address], StatusSuccess
}

func (m *Mock) next() Status {
	if len(m.statuses) == 0 {
		return StatusSuccess
	}
	s := m.statuses[0]
	m.statuses = m.statuses[1:]
	return s
}
