package touch

import (
	"context"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/juju/errors"
	"github.com/touchmodbus/panel/hardware/display"
	"github.com/touchmodbus/panel/internal/types"
)

const (
	DefaultCalibrationMargin = 15
	MsgCalibrate             = "Touch corners as indicated"
)

var (
	colorMarker     = color.RGBA{0xff, 0x00, 0xff, 0xff}
	colorBackground = color.RGBA{0x00, 0x00, 0x00, 0xff}
	colorText       = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

// Canvas is the part of display used for calibration prompts.
type Canvas interface {
	Buffer() *image.RGBA
	Flush(image.Rectangle) error
}

// Overridden in tests.
var pollInterval = 5 * time.Millisecond

// Calibrate asks user to tap four markers inset by margin from screen corners
// and derives raw->screen mapping.
func Calibrate(ctx context.Context, canvas Canvas, raw RawPoller, margin int) (Calibration, error) {
	if margin <= 0 {
		margin = DefaultCalibrationMargin
	}
	buf := canvas.Buffer()
	size := buf.Rect.Size()
	if size.X <= 2*margin+1 || size.Y <= 2*margin+1 {
		return Calibration{}, errors.NotValidf("calibration margin=%d screen=%s", margin, size)
	}

	display.Fill(buf, buf.Rect, colorBackground)
	display.DrawText(buf, image.Pt(20, 0), MsgCalibrate, colorText)
	if err := canvas.Flush(buf.Rect); err != nil {
		return Calibration{}, errors.Annotate(err, "calibrate")
	}

	targets := calibrationTargets(size, margin)
	var taps [4]types.TouchSample
	for i, pt := range targets {
		marker := image.Rect(pt.X-margin/2, pt.Y-margin/2, pt.X+margin/2+1, pt.Y+margin/2+1)
		display.Cross(buf, pt, margin/2, colorMarker)
		if err := canvas.Flush(marker); err != nil {
			return Calibration{}, errors.Annotatef(err, "calibrate point=%d show marker", i)
		}
		s, err := waitTap(ctx, raw)
		display.Fill(buf, marker, colorBackground)
		if ferr := canvas.Flush(marker); ferr != nil && err == nil {
			err = errors.Annotate(ferr, "hide marker")
		}
		if err != nil {
			return Calibration{}, errors.Annotatef(err, "calibrate point=%d", i)
		}
		taps[i] = s
	}
	return solveCalibration(size, margin, taps)
}

// top-left, bottom-left, top-right, bottom-right
func calibrationTargets(size image.Point, margin int) [4]image.Point {
	l, t := margin, margin
	r, b := size.X-1-margin, size.Y-1-margin
	return [4]image.Point{{l, t}, {l, b}, {r, t}, {r, b}}
}

func solveCalibration(size image.Point, margin int, taps [4]types.TouchSample) (Calibration, error) {
	tl, bl, tr, br := taps[0], taps[1], taps[2], taps[3]
	c := Calibration{Width: uint16(size.X), Height: uint16(size.Y)}

	// moving right on screen changes raw Y more than raw X: axes swapped
	if absInt(tr.Y-tl.Y) > absInt(tr.X-tl.X) {
		c.Flags |= FlagSwapXY
		for i := range taps {
			taps[i].X, taps[i].Y = taps[i].Y, taps[i].X
		}
		tl, bl, tr, br = taps[0], taps[1], taps[2], taps[3]
	}

	left, right := float64(tl.X+bl.X)/2, float64(tr.X+br.X)/2
	top, bottom := float64(tl.Y+tr.Y)/2, float64(bl.Y+br.Y)/2
	if left > right {
		c.Flags |= FlagInvertX
		left, right = right, left
	}
	if top > bottom {
		c.Flags |= FlagInvertY
		top, bottom = bottom, top
	}
	var err error
	if c.X0, c.X1, err = extrapolate(left, right, size.X, margin); err != nil {
		return Calibration{}, errors.Annotate(err, "calibrate x")
	}
	if c.Y0, c.Y1, err = extrapolate(top, bottom, size.Y, margin); err != nil {
		return Calibration{}, errors.Annotate(err, "calibrate y")
	}
	return c, nil
}

// extrapolate raw values measured at margin to screen edges.
func extrapolate(lo, hi float64, size, margin int) (uint16, uint16, error) {
	span := size - 1 - 2*margin
	if hi-lo < 1 || span <= 0 {
		return 0, 0, errors.Errorf("points too close lo=%.0f hi=%.0f", lo, hi)
	}
	per := (hi - lo) / float64(span)
	a := math.Round(lo - float64(margin)*per)
	b := math.Round(hi + float64(margin)*per)
	return clampU16(a), clampU16(b), nil
}

func waitTap(ctx context.Context, raw RawPoller) (types.TouchSample, error) {
	var last types.TouchSample
	pressed := false
	for {
		s := raw.PollRaw()
		switch {
		case s.Pressed:
			pressed = true
			last = s
		case pressed:
			return last, nil
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func absInt(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

func clampU16(f float64) uint16 {
	switch {
	case f < 0:
		return 0
	case f > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(f)
}
