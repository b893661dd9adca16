package ui

import "image"

type AlignMode uint8

const (
	AlignCenter AlignMode = iota
	AlignTopMid
	AlignBottomMid
	AlignTopLeft
)

type alignment struct {
	mode   AlignMode
	offset image.Point
}

// Align positions w inside its parent and remembers placement,
// so labels stay aligned after SetText.
func (self *UI) Align(w *Widget, mode AlignMode, offset image.Point) {
	if w.destroyed || w.parent == nil {
		return
	}
	w.align = &alignment{mode: mode, offset: offset}
	self.invalidate(w.rect)
	self.applyAlign(w)
	self.invalidate(w.rect)
}

func (self *UI) applyAlign(w *Widget) {
	pr := w.parent.rect
	size := w.rect.Size()
	var min image.Point
	switch w.align.mode {
	case AlignCenter:
		min = image.Pt(pr.Min.X+(pr.Dx()-size.X)/2, pr.Min.Y+(pr.Dy()-size.Y)/2)
	case AlignTopMid:
		min = image.Pt(pr.Min.X+(pr.Dx()-size.X)/2, pr.Min.Y)
	case AlignBottomMid:
		min = image.Pt(pr.Min.X+(pr.Dx()-size.X)/2, pr.Max.Y-size.Y)
	case AlignTopLeft:
		min = pr.Min
	}
	min = min.Add(w.align.offset)
	delta := min.Sub(w.rect.Min)
	w.walk(func(x *Widget) { x.rect = x.rect.Add(delta) })
}
