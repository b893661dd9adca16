// Package display is the panel Display Surface: backing buffer in memory,
// dirty rectangles pushed to hardware in bounded row bands.
package display

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/juju/errors"
	"github.com/touchmodbus/panel/hardware/display/framebuffer"
)

// DefaultFlushRows matches a draw buffer of ten screen rows.
const DefaultFlushRows = 10

type Display struct {
	fb   *framebuffer.Framebuffer
	buf  *image.RGBA
	rows int

	// recorded only without framebuffer
	flushes  []image.Rectangle
	bands    int
	flushErr error
}

func NewFb(dev string, rows int) (*Display, error) {
	fb, err := framebuffer.New(dev)
	if err != nil {
		return nil, errors.Annotatef(err, "framebuffer device=%s", dev)
	}
	d := newDisplay(fb.Size(), rows)
	d.fb = fb
	return d, nil
}

func NewMock(size image.Point, rows int) *Display {
	return newDisplay(size, rows)
}

func newDisplay(size image.Point, rows int) *Display {
	if rows <= 0 {
		rows = DefaultFlushRows
	}
	return &Display{
		buf:  image.NewRGBA(image.Rectangle{Max: size}),
		rows: rows,
	}
}

func (d *Display) Size() image.Point       { return d.buf.Rect.Max }
func (d *Display) Bounds() image.Rectangle { return d.buf.Rect }
func (d *Display) Buffer() *image.RGBA     { return d.buf }

func (d *Display) Close() error {
	if d.fb != nil {
		return d.fb.Close()
	}
	return nil
}

func (d *Display) Clear(c color.Color) error {
	draw.Draw(d.buf, d.buf.Rect, image.NewUniform(c), image.Point{}, draw.Src)
	return d.Flush(d.buf.Rect)
}

// Flush pushes r from backing buffer to hardware.
// Each hardware write spans at most configured rows.
func (d *Display) Flush(r image.Rectangle) error {
	r = r.Intersect(d.buf.Rect)
	if r.Empty() {
		return nil
	}
	if d.fb == nil {
		return d.flushMock(r)
	}
	for y := r.Min.Y; y < r.Max.Y; y += d.rows {
		band := image.Rect(r.Min.X, y, r.Max.X, minInt(y+d.rows, r.Max.Y))
		if err := d.fb.WriteRect(d.buf, band); err != nil {
			return err
		}
	}
	return nil
}

func (d *Display) flushMock(r image.Rectangle) error {
	d.flushes = append(d.flushes, r)
	if d.flushErr != nil {
		return d.flushErr
	}
	d.bands += (r.Dy() + d.rows - 1) / d.rows
	return nil
}

// Flushes returns rectangles passed to Flush so far, mock inspection.
func (d *Display) Flushes() []image.Rectangle {
	return append([]image.Rectangle(nil), d.flushes...)
}

// Bands returns number of row bands flushed so far, mock inspection.
func (d *Display) Bands() int { return d.bands }

// XXX_SetFlushError makes mock Flush fail, nil restores.
func (d *Display) XXX_SetFlushError(err error) { d.flushErr = err }

func (d *Display) At(x, y int) color.RGBA { return d.buf.RGBAAt(x, y) }

func minInt(i1, i2 int) int {
	if i1 <= i2 {
		return i1
	}
	return i2
}
