package ui

import (
	"image"
	"strings"
	"unicode/utf8"
)

const noKey = -1

type keyAction uint8

const (
	keyChar keyAction = iota
	keyBackspace
	keyMode
	keySpace
	keyReady
	keyCancel
)

type key struct {
	label  string
	weight int
	action keyAction
}

func chars(s string) []key {
	ks := make([]key, 0, len(s))
	for _, r := range s {
		ks = append(ks, key{label: string(r), weight: 1})
	}
	return ks
}

func row(parts ...[]key) []key {
	var ks []key
	for _, p := range parts {
		ks = append(ks, p...)
	}
	return ks
}

var keyboardRows = [][]key{
	row(chars("1234567890"), []key{{"<-", 2, keyBackspace}}),
	row(chars("qwertyuiop")),
	row(chars("asdfghjkl"), []key{{"Enter", 2, keyReady}}),
	row([]key{{"ABC", 2, keyMode}}, chars("zxcvbnm.-")),
	row([]key{{"Close", 2, keyCancel}, {"Space", 6, keySpace}, {"OK", 2, keyReady}}),
}

var keyboardKeys = row(keyboardRows...)

type keyboard struct {
	target *Widget
	upper  bool
}

func newKeyboard(target *Widget) *keyboard {
	return &keyboard{target: target}
}

func (kb *keyboard) label(i int) string {
	k := keyboardKeys[i]
	switch {
	case k.action == keyMode && kb.upper:
		return "abc"
	case k.action == keyChar && kb.upper:
		return strings.ToUpper(k.label)
	}
	return k.label
}

// layout calls f with flat key index and its rectangle inside r.
func (kb *keyboard) layout(r image.Rectangle, f func(i int, kr image.Rectangle) bool) {
	nrows := len(keyboardRows)
	i := 0
	for ri, keys := range keyboardRows {
		y0 := r.Min.Y + ri*r.Dy()/nrows
		y1 := r.Min.Y + (ri+1)*r.Dy()/nrows
		total := 0
		for _, k := range keys {
			total += k.weight
		}
		cum := 0
		for _, k := range keys {
			x0 := r.Min.X + cum*r.Dx()/total
			cum += k.weight
			x1 := r.Min.X + cum*r.Dx()/total
			if !f(i, image.Rect(x0, y0, x1, y1)) {
				return
			}
			i++
		}
	}
}

func (kb *keyboard) keyAt(r image.Rectangle, p image.Point) int {
	found := noKey
	kb.layout(r, func(i int, kr image.Rectangle) bool {
		if p.In(kr) {
			found = i
			return false
		}
		return true
	})
	return found
}

func (kb *keyboard) keyRect(r image.Rectangle, index int) image.Rectangle {
	var result image.Rectangle
	if index == noKey {
		return result
	}
	kb.layout(r, func(i int, kr image.Rectangle) bool {
		if i == index {
			result = kr
			return false
		}
		return true
	})
	return result
}

// pressKey applies key to keyboard target, emits ValueChanged on target,
// TextReady or TextCancelled on keyboard.
func (self *UI) pressKey(w *Widget, index int) {
	kb := w.kb
	k := keyboardKeys[index]
	self.log.Debugf("ui %s key=%s", w.String(), kb.label(index))
	switch k.action {
	case keyChar:
		self.editTarget(kb, func(s string) string { return s + kb.label(index) })
	case keySpace:
		self.editTarget(kb, func(s string) string { return s + " " })
	case keyBackspace:
		self.editTarget(kb, func(s string) string {
			_, size := utf8.DecodeLastRuneInString(s)
			return s[:len(s)-size]
		})
	case keyMode:
		kb.upper = !kb.upper
		self.invalidate(w.rect)
	case keyReady:
		self.emit(EventTextReady, w)
	case keyCancel:
		self.emit(EventTextCancelled, w)
	}
}

func (self *UI) editTarget(kb *keyboard, f func(string) string) {
	ta := kb.target
	if ta == nil || ta.destroyed {
		return
	}
	before := ta.text
	ta.SetText(f(before))
	if ta.text != before {
		self.emit(EventValueChanged, ta)
	}
}

// XXX_KeyCenter returns center of keyboard key with given label, for tests driving input by touch.
func (self *UI) XXX_KeyCenter(w *Widget, label string) (image.Point, bool) {
	if w.kb == nil {
		return image.Point{}, false
	}
	for i := range keyboardKeys {
		if w.kb.label(i) == label {
			r := w.kb.keyRect(w.rect, i)
			return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2), true
		}
	}
	return image.Point{}, false
}
