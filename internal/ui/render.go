package ui

import (
	"image"
	"image/color"

	"github.com/touchmodbus/panel/hardware/display"
)

const textAreaPadding = 4

var (
	colorScreen      = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorText        = color.RGBA{0x21, 0x21, 0x21, 0xff}
	colorButton      = color.RGBA{0x21, 0x96, 0xf3, 0xff}
	colorButtonPress = color.RGBA{0x15, 0x65, 0xc0, 0xff}
	colorButtonText  = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorBorder      = color.RGBA{0x9e, 0x9e, 0x9e, 0xff}
	colorFocus       = color.RGBA{0x21, 0x96, 0xf3, 0xff}
	colorKeyboard    = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	colorKey         = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorKeyPress    = color.RGBA{0xbd, 0xbd, 0xbd, 0xff}
	colorKeyControl  = color.RGBA{0xee, 0xee, 0xee, 0xff}
)

func (self *UI) invalidate(r image.Rectangle) {
	self.dirty = self.dirty.Union(r)
}

// render repaints dirty region back to front and flushes it.
// Flush errors are logged, the loop goes on.
func (self *UI) render() {
	r := self.dirty.Intersect(self.display.Bounds())
	self.dirty = image.Rectangle{}
	if r.Empty() {
		return
	}
	dst := self.display.Buffer().SubImage(r).(*image.RGBA)
	self.drawWidget(dst, self.screen)
	self.stat.Frames++
	if err := self.display.Flush(r); err != nil {
		self.log.Errorf("ui flush rect=%s err=%v", r, err)
	}
}

func (self *UI) drawWidget(dst *image.RGBA, w *Widget) {
	if !w.rect.Overlaps(dst.Rect) {
		return
	}
	switch w.kind {
	case KindScreen:
		display.Fill(dst, w.rect, colorScreen)

	case KindButton:
		bg := colorButton
		if w.pressed {
			bg = colorButtonPress
		}
		display.Fill(dst, w.rect, bg)
		display.DrawTextCentered(dst, w.rect, w.text, colorButtonText)

	case KindLabel:
		display.DrawText(dst, w.rect.Min, w.text, colorText)

	case KindTextArea:
		display.Fill(dst, w.rect, colorScreen)
		border := colorBorder
		if self.focus == w {
			border = colorFocus
		}
		display.Stroke(dst, w.rect, border)
		inner := w.rect.Inset(textAreaPadding)
		text := visibleTail(w.text, inner.Dx()/display.GlyphWidth-1)
		display.DrawText(dst.SubImage(inner).(*image.RGBA), inner.Min, text, colorText)
		if self.focus == w {
			x := inner.Min.X + display.TextSize(text).X
			display.Fill(dst, image.Rect(x, inner.Min.Y, x+1, inner.Max.Y), colorText)
		}

	case KindKeyboard:
		display.Fill(dst, w.rect, colorKeyboard)
		w.kb.layout(w.rect, func(i int, kr image.Rectangle) bool {
			if kr.Overlaps(dst.Rect) {
				self.drawKey(dst, w, i, kr)
			}
			return true
		})
	}
	for _, c := range w.children {
		self.drawWidget(dst, c)
	}
}

func (self *UI) drawKey(dst *image.RGBA, w *Widget, i int, kr image.Rectangle) {
	bg := colorKey
	if keyboardKeys[i].action != keyChar {
		bg = colorKeyControl
	}
	if self.target == w && self.targetKey == i {
		bg = colorKeyPress
	}
	kr = kr.Inset(1)
	display.Fill(dst, kr, bg)
	display.Stroke(dst, kr, colorBorder)
	display.DrawTextCentered(dst, kr, w.kb.label(i), colorText)
}

// visibleTail keeps last n runes, one-line text area scrolls to cursor.
func visibleTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[len(rs)-n:])
}
