package ui

import (
	"fmt"
	"image"

	"github.com/touchmodbus/panel/hardware/display"
)

type WidgetID uint32

type WidgetKind uint8

const (
	KindScreen WidgetKind = iota
	KindButton
	KindLabel
	KindTextArea
	KindKeyboard
)

func (k WidgetKind) String() string {
	switch k {
	case KindScreen:
		return "screen"
	case KindButton:
		return "button"
	case KindLabel:
		return "label"
	case KindTextArea:
		return "textarea"
	case KindKeyboard:
		return "keyboard"
	}
	return fmt.Sprintf("WidgetKind(%d)", uint8(k))
}

// Widget is a node of UI tree. Geometry is in screen coordinates.
// Only the UI loop goroutine may access widgets.
type Widget struct {
	ui        *UI
	id        WidgetID
	kind      WidgetKind
	rect      image.Rectangle
	parent    *Widget
	children  []*Widget
	text      string
	pressed   bool
	destroyed bool
	align     *alignment
	kb        *keyboard // KindKeyboard only
}

func (w *Widget) ID() WidgetID          { return w.id }
func (w *Widget) Kind() WidgetKind      { return w.kind }
func (w *Widget) Rect() image.Rectangle { return w.rect }
func (w *Widget) Text() string          { return w.text }
func (w *Widget) Pressed() bool         { return w.pressed }
func (w *Widget) Destroyed() bool       { return w.destroyed }
func (w *Widget) Parent() *Widget       { return w.parent }
func (w *Widget) Children() []*Widget   { return w.children }
func (w *Widget) String() string        { return fmt.Sprintf("%s#%d", w.kind.String(), w.id) }
func (w *Widget) hittable() bool {
	return w.kind == KindButton || w.kind == KindTextArea || w.kind == KindKeyboard
}
func (w *Widget) contains(p image.Point) bool { return p.In(w.rect) }

// SetText replaces widget text. Labels resize to fit and keep their alignment.
func (w *Widget) SetText(s string) {
	if w.destroyed || w.text == s {
		return
	}
	w.text = s
	if w.kind == KindLabel {
		w.resize(display.TextSize(s))
		return
	}
	w.ui.invalidate(w.rect)
}

func (w *Widget) resize(size image.Point) {
	w.ui.invalidate(w.rect)
	w.rect.Max = w.rect.Min.Add(size)
	if w.align != nil {
		w.ui.applyAlign(w)
	}
	w.ui.invalidate(w.rect)
}

func (w *Widget) setPressed(p bool) {
	if w.pressed != p {
		w.pressed = p
		w.ui.invalidate(w.rect)
	}
}

// walk visits w and descendants, parents first
func (w *Widget) walk(f func(*Widget)) {
	f(w)
	for _, c := range w.children {
		c.walk(f)
	}
}

func (w *Widget) isDescendantOf(ancestor *Widget) bool {
	for x := w; x != nil; x = x.parent {
		if x == ancestor {
			return true
		}
	}
	return false
}

func (self *UI) newWidget(parent *Widget, kind WidgetKind, size image.Point) *Widget {
	if parent == nil || parent.destroyed {
		panic(fmt.Sprintf("code error ui new %s parent=%v", kind.String(), parent))
	}
	self.lastID++
	w := &Widget{
		ui:     self,
		id:     self.lastID,
		kind:   kind,
		parent: parent,
		rect:   image.Rectangle{Min: parent.rect.Min, Max: parent.rect.Min.Add(size)},
	}
	parent.children = append(parent.children, w)
	self.invalidate(w.rect)
	return w
}

func (self *UI) NewButton(parent *Widget, size image.Point, text string) *Widget {
	w := self.newWidget(parent, KindButton, size)
	w.text = text
	return w
}

// NewLabel size follows text.
func (self *UI) NewLabel(parent *Widget, text string) *Widget {
	w := self.newWidget(parent, KindLabel, display.TextSize(text))
	w.text = text
	return w
}

// NewTextArea creates one-line text input. Click focuses it.
func (self *UI) NewTextArea(parent *Widget, width int) *Widget {
	return self.newWidget(parent, KindTextArea, image.Pt(width, display.GlyphHeight+2*textAreaPadding))
}

// NewKeyboard creates on-screen keyboard that edits target text area.
func (self *UI) NewKeyboard(parent *Widget, size image.Point, target *Widget) *Widget {
	w := self.newWidget(parent, KindKeyboard, size)
	w.kb = newKeyboard(target)
	return w
}

// Destroy removes w with all children, their handlers and focus.
func (self *UI) Destroy(w *Widget) {
	if w == nil || w.destroyed {
		return
	}
	if w == self.screen {
		panic("code error ui destroy screen")
	}
	if self.focus != nil && self.focus.isDescendantOf(w) {
		self.focus = nil
	}
	if self.target != nil && self.target.isDescendantOf(w) {
		self.target = nil
	}
	w.walk(func(x *Widget) {
		x.destroyed = true
		for k := range self.handlers {
			if k.id == x.id {
				delete(self.handlers, k)
			}
		}
	})
	if p := w.parent; p != nil {
		for i, c := range p.children {
			if c == w {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	self.invalidate(w.rect)
	self.log.Debugf("ui destroy %s", w.String())
}

// Focus gives input focus to w, nil clears focus.
func (self *UI) Focus(w *Widget) {
	if w != nil && w.destroyed {
		return
	}
	if self.focus == w {
		return
	}
	if self.focus != nil {
		self.invalidate(self.focus.rect)
	}
	self.focus = w
	if w != nil {
		self.invalidate(w.rect)
	}
}

func (self *UI) Focused() *Widget { return self.focus }
