package touch

import (
	"encoding/binary"
	"fmt"

	"github.com/juju/errors"
)

// CalibrationSize is persisted blob length: seven little-endian uint16.
const CalibrationSize = 14

const (
	FlagSwapXY  uint16 = 1 << 0
	FlagInvertX uint16 = 1 << 1
	FlagInvertY uint16 = 1 << 2
)

// Calibration maps raw sensor coordinates to screen space.
// X0..X1 and Y0..Y1 are raw values at screen edges, X0<X1, Y0<Y1.
type Calibration struct {
	X0, X1 uint16
	Y0, Y1 uint16
	Flags  uint16
	Width  uint16
	Height uint16
}

func (c Calibration) Valid() bool {
	return c.X1 > c.X0 && c.Y1 > c.Y0 && c.Width > 0 && c.Height > 0
}

func (c Calibration) String() string {
	return fmt.Sprintf("Calibration(x=%d..%d y=%d..%d flags=%03b screen=%dx%d)",
		c.X0, c.X1, c.Y0, c.Y1, c.Flags, c.Width, c.Height)
}

func (c *Calibration) MarshalBinary() ([]byte, error) {
	if !c.Valid() {
		return nil, errors.NotValidf("%s", c.String())
	}
	b := make([]byte, CalibrationSize)
	for i, v := range c.fields() {
		binary.LittleEndian.PutUint16(b[i*2:], *v)
	}
	return b, nil
}

func (c *Calibration) UnmarshalBinary(b []byte) error {
	if len(b) != CalibrationSize {
		return errors.NotValidf("calibration length=%d expected=%d", len(b), CalibrationSize)
	}
	var x Calibration
	for i, v := range x.fields() {
		*v = binary.LittleEndian.Uint16(b[i*2:])
	}
	if !x.Valid() {
		return errors.NotValidf("%s", x.String())
	}
	*c = x
	return nil
}

// Apply returns screen point for raw sensor reading, clamped to screen.
func (c Calibration) Apply(rx, ry int) (int, int) {
	if c.Flags&FlagSwapXY != 0 {
		rx, ry = ry, rx
	}
	x := scale(rx, int(c.X0), int(c.X1), int(c.Width))
	y := scale(ry, int(c.Y0), int(c.Y1), int(c.Height))
	if c.Flags&FlagInvertX != 0 {
		x = int(c.Width) - 1 - x
	}
	if c.Flags&FlagInvertY != 0 {
		y = int(c.Height) - 1 - y
	}
	return x, y
}

func (c *Calibration) fields() [7]*uint16 {
	return [7]*uint16{&c.X0, &c.X1, &c.Y0, &c.Y1, &c.Flags, &c.Width, &c.Height}
}

func scale(raw, lo, hi, size int) int {
	if hi <= lo || size <= 0 {
		return 0
	}
	v := (raw - lo) * (size - 1) / (hi - lo)
	switch {
	case v < 0:
		return 0
	case v >= size:
		return size - 1
	}
	return v
}
