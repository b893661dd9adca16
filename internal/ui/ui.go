// Package ui is a minimal retained widget tree driven by a cooperative loop:
// one goroutine polls touch, dispatches events, runs timers and flushes
// dirty screen regions, then sleeps for a tick.
package ui

import (
	"context"
	"image"
	"time"

	"github.com/juju/errors"
	"github.com/touchmodbus/panel/hardware/display"
	"github.com/touchmodbus/panel/hardware/touch"
	"github.com/touchmodbus/panel/helpers"
	"github.com/touchmodbus/panel/internal/state"
	"github.com/touchmodbus/panel/internal/types"
	"github.com/touchmodbus/panel/log2"
)

type Stat struct {
	Ticks  uint64
	Events uint64
	Frames uint64
}

type UI struct {
	g       *state.Global
	log     *log2.Log
	display *display.Display
	sensor  touch.Sensor
	tick    time.Duration

	screen   *Widget
	lastID   WidgetID
	handlers map[handlerKey]Handler
	queue    []Event
	focus    *Widget
	timers   []*Timer
	dirty    image.Rectangle
	stat     Stat

	// press tracking
	last      types.TouchSample
	target    *Widget
	targetKey int

	XXX_testHook func(Stat)
}

// New takes display and touch from Global, both must be ready.
func New(ctx context.Context) (*UI, error) {
	g := state.GetGlobal(ctx)
	d, err := g.Display()
	if err != nil {
		return nil, errors.Annotate(err, "ui display")
	}
	sensor, err := g.Touch()
	if err != nil {
		return nil, errors.Annotate(err, "ui touch")
	}
	self := &UI{
		g:         g,
		log:       g.Log,
		display:   d,
		sensor:    sensor,
		tick:      helpers.IntMillisecondDefault(g.Config.UI.TickMs, state.DefaultTickMs*time.Millisecond),
		handlers:  make(map[handlerKey]Handler),
		targetKey: noKey,
	}
	self.screen = &Widget{ui: self, kind: KindScreen, rect: d.Bounds()}
	self.invalidate(self.screen.rect)
	return self, nil
}

func (self *UI) Screen() *Widget { return self.screen }
func (self *UI) Stat() Stat      { return self.stat }

// Tick performs one loop iteration: input, dispatch, timers, render.
func (self *UI) Tick(ctx context.Context, now time.Time) {
	self.stat.Ticks++
	self.input(self.sensor.Poll())
	self.dispatch(ctx)
	self.runTimers(ctx, now)
	self.render()
	if self.XXX_testHook != nil {
		self.XXX_testHook(self.stat)
	}
}

// Run ticks until g.Alive is stopped or ctx is done.
func (self *UI) Run(ctx context.Context) {
	if !self.g.Alive.Add(1) {
		return
	}
	defer self.g.Alive.Done()
	tmr := time.NewTimer(self.tick)
	defer tmr.Stop()
	self.log.Debugf("ui run tick=%v", self.tick)
	for self.g.Alive.IsRunning() {
		self.Tick(ctx, time.Now())

		if !tmr.Stop() {
			select {
			case <-tmr.C:
			default:
			}
		}
		tmr.Reset(self.tick)
		select {
		case <-tmr.C:
		case <-self.g.Alive.StopChan():
		case <-ctx.Done():
			self.log.Debugf("ui run ctx done")
			return
		}
	}
	self.log.Debugf("ui run end")
}

func (self *UI) input(s types.TouchSample) {
	pt := s.Point()
	switch {
	case s.Pressed && !self.last.Pressed:
		if w := hitTest(self.screen, pt); w != nil {
			self.target = w
			w.setPressed(true)
			if w.kind == KindKeyboard {
				self.targetKey = w.kb.keyAt(w.rect, pt)
				self.invalidate(w.kb.keyRect(w.rect, self.targetKey))
			}
		}

	case !s.Pressed && self.last.Pressed:
		w, key := self.target, self.targetKey
		self.target, self.targetKey = nil, noKey
		if w != nil && !w.destroyed {
			w.setPressed(false)
			if w.contains(pt) {
				self.release(w, pt, key)
			}
		}
	}
	self.last = s
}

// release inside widget bounds.
func (self *UI) release(w *Widget, pt image.Point, pressedKey int) {
	switch w.kind {
	case KindButton:
		self.emit(EventClicked, w)
	case KindTextArea:
		self.Focus(w)
		self.emit(EventClicked, w)
	case KindKeyboard:
		if key := w.kb.keyAt(w.rect, pt); key != noKey && key == pressedKey {
			self.pressKey(w, key)
		}
	}
}

// hitTest returns front-most hittable widget at p, last child wins.
func hitTest(w *Widget, p image.Point) *Widget {
	if w.destroyed || !w.contains(p) {
		return nil
	}
	for i := len(w.children) - 1; i >= 0; i-- {
		if h := hitTest(w.children[i], p); h != nil {
			return h
		}
	}
	if w.hittable() {
		return w
	}
	return nil
}

// Timer is a periodic callback run by the UI loop after event dispatch.
type Timer struct {
	period  time.Duration
	next    time.Time
	f       func(context.Context)
	stopped bool
}

func (t *Timer) Stop() { t.stopped = true }

// Every schedules f each period, first call one period after the next tick.
func (self *UI) Every(period time.Duration, f func(context.Context)) *Timer {
	t := &Timer{period: period, f: f}
	self.timers = append(self.timers, t)
	return t
}

func (self *UI) runTimers(ctx context.Context, now time.Time) {
	n := len(self.timers) // timers added by callbacks start next tick
	for i := 0; i < n; i++ {
		t := self.timers[i]
		if t.stopped {
			continue
		}
		switch {
		case t.next.IsZero():
			t.next = now.Add(t.period)
		case !now.Before(t.next):
			t.next = now.Add(t.period)
			t.f(ctx)
		}
	}
	kept := self.timers[:0]
	for _, t := range self.timers {
		if !t.stopped {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(self.timers); i++ {
		self.timers[i] = nil
	}
	self.timers = kept
}
