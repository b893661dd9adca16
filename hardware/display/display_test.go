package display

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touchmodbus/panel/hardware/display/framebuffer"
)

func TestFlushBands(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		rect        image.Rectangle
		expectRect  image.Rectangle
		expectBands int
	}{
		{"full", image.Rect(0, 0, 320, 240), image.Rect(0, 0, 320, 240), 24},
		{"partial-band", image.Rect(10, 5, 50, 18), image.Rect(10, 5, 50, 18), 2},
		{"clip", image.Rect(300, 230, 400, 300), image.Rect(300, 230, 320, 240), 1},
		{"outside", image.Rect(400, 400, 500, 500), image.Rectangle{}, 0},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			d := NewMock(image.Pt(320, 240), 10)
			require.NoError(t, d.Flush(c.rect))
			assert.Equal(t, c.expectBands, d.Bands())
			if c.expectRect.Empty() {
				assert.Len(t, d.Flushes(), 0)
			} else {
				assert.Equal(t, []image.Rectangle{c.expectRect}, d.Flushes())
			}
		})
	}
}

func TestFlushError(t *testing.T) {
	t.Parallel()

	d := NewMock(image.Pt(32, 24), 0)
	d.XXX_SetFlushError(fmt.Errorf("panel busy"))
	assert.EqualError(t, d.Clear(color.Black), "panel busy")
	d.XXX_SetFlushError(nil)
	assert.NoError(t, d.Clear(color.White))
	assert.Equal(t, color.RGBA{0xff, 0xff, 0xff, 0xff}, d.At(31, 23))
	assert.Equal(t, 3, d.Bands())
}

func TestDrawText(t *testing.T) {
	t.Parallel()

	d := NewMock(image.Pt(64, 16), 0)
	assert.Equal(t, image.Pt(14, 13), TextSize("42"))
	DrawTextCentered(d.Buffer(), d.Bounds(), "42", color.White)
	lit := 0
	for y := 0; y < 16; y++ {
		for x := 0; x < 64; x++ {
			if d.At(x, y).R != 0 {
				lit++
				assert.True(t, x >= 25 && x < 39, "pixel outside text box x=%d", x)
			}
		}
	}
	assert.NotZero(t, lit)
}

func TestFlushFramebufferNoHistory(t *testing.T) {
	t.Parallel()

	f, err := ioutil.TempFile("", "panel-fb-test")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	size := image.Pt(32, 24)
	d := newDisplay(size, 10)
	d.fb = framebuffer.XXX_NewFile(f, size)
	defer d.Close()

	Fill(d.Buffer(), image.Rect(0, 0, 4, 4), color.RGBA{0xff, 0xff, 0xff, 0xff})
	for i := 0; i < 10000; i++ {
		require.NoError(t, d.Flush(image.Rect(0, 0, 4, 4)))
	}
	assert.Len(t, d.Flushes(), 0)
	assert.Equal(t, 0, d.Bands())

	b := make([]byte, 2)
	_, err = f.ReadAt(b, int64(3*size.X*2+3*2))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xffff), binary.LittleEndian.Uint16(b))
}
