package touch

import "github.com/touchmodbus/panel/internal/types"

// Absent stands in for touch hardware that failed to open: always released.
type Absent struct{ Err error }

var _ Sensor = Absent{}
var _ RawPoller = Absent{}

func (Absent) Poll() types.TouchSample    { return types.TouchSample{} }
func (Absent) PollRaw() types.TouchSample { return types.TouchSample{} }
