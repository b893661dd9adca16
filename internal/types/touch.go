package types

import (
	"fmt"
	"image"
)

// TouchSample is the pointer state for one UI tick, in screen coordinates.
// Released samples keep last known point.
type TouchSample struct {
	Pressed bool
	X, Y    int
}

func (s TouchSample) Point() image.Point { return image.Point{X: s.X, Y: s.Y} }

func (s TouchSample) String() string {
	state := "released"
	if s.Pressed {
		state = "pressed"
	}
	return fmt.Sprintf("TouchSample(%s x=%d y=%d)", state, s.X, s.Y)
}
