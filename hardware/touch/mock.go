package touch

import (
	"sync"

	"github.com/touchmodbus/panel/internal/types"
)

// Mock is scripted Sensor and RawPoller. Empty queue reads as released at last point.
type Mock struct {
	mu    sync.Mutex
	queue []types.TouchSample
	last  types.TouchSample
	polls int
}

var _ Sensor = &Mock{}
var _ RawPoller = &Mock{}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Push(ss ...types.TouchSample) {
	m.mu.Lock()
	m.queue = append(m.queue, ss...)
	m.mu.Unlock()
}

func (m *Mock) Press(x, y int)   { m.Push(types.TouchSample{Pressed: true, X: x, Y: y}) }
func (m *Mock) Release(x, y int) { m.Push(types.TouchSample{Pressed: false, X: x, Y: y}) }

// Tap queues press and release at same point, consumed in two polls.
func (m *Mock) Tap(x, y int) {
	m.Press(x, y)
	m.Release(x, y)
}

func (m *Mock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Mock) Polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

func (m *Mock) Poll() types.TouchSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	if len(m.queue) == 0 {
		m.last.Pressed = false
		return m.last
	}
	m.last = m.queue[0]
	m.queue = m.queue[1:]
	return m.last
}

func (m *Mock) PollRaw() types.TouchSample { return m.Poll() }
