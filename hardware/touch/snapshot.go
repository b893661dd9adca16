package touch

import (
	"sync"

	"github.com/touchmodbus/panel/internal/types"
)

// snapshot is latest sample shared between driver goroutine and UI loop.
type snapshot struct {
	mu  sync.Mutex
	raw types.TouchSample
	cal Calibration
	err error
}

func (s *snapshot) commit(raw types.TouchSample) {
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
}

// fail releases touch and remembers driver error.
func (s *snapshot) fail(err error) {
	s.mu.Lock()
	s.raw.Pressed = false
	s.err = err
	s.mu.Unlock()
}

func (s *snapshot) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *snapshot) SetCalibration(c Calibration) {
	s.mu.Lock()
	s.cal = c
	s.mu.Unlock()
}

func (s *snapshot) PollRaw() types.TouchSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// Poll returns calibrated sample. Without valid calibration raw values are passed through.
func (s *snapshot) Poll() types.TouchSample {
	s.mu.Lock()
	r, cal := s.raw, s.cal
	s.mu.Unlock()
	if cal.Valid() {
		r.X, r.Y = cal.Apply(r.X, r.Y)
	}
	return r
}
