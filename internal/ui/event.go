package ui

import (
	"context"
	"fmt"
)

type EventKind uint8

const (
	EventInvalid EventKind = iota
	EventClicked
	EventValueChanged
	EventTextReady
	EventTextCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventInvalid:
		return "invalid"
	case EventClicked:
		return "clicked"
	case EventValueChanged:
		return "value-changed"
	case EventTextReady:
		return "text-ready"
	case EventTextCancelled:
		return "text-cancelled"
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

type Event struct {
	Kind   EventKind
	Source *Widget
}

func (e Event) String() string { return fmt.Sprintf("%s@%s", e.Kind.String(), e.Source.String()) }

// Handler runs on UI goroutine and may create or destroy widgets.
type Handler func(ctx context.Context, e Event)

type handlerKey struct {
	id   WidgetID
	kind EventKind
}

// On registers h for events of kind from w or its descendants.
// Replaces previous handler for same widget and kind.
func (self *UI) On(w *Widget, kind EventKind, h Handler) {
	if w == nil || w.destroyed {
		return
	}
	self.handlers[handlerKey{w.id, kind}] = h
}

func (self *UI) emit(kind EventKind, source *Widget) {
	self.queue = append(self.queue, Event{Kind: kind, Source: source})
}

// dispatch drains queue including events emitted by handlers.
func (self *UI) dispatch(ctx context.Context) {
	for len(self.queue) != 0 {
		e := self.queue[0]
		self.queue[0] = Event{}
		self.queue = self.queue[1:]
		if e.Source.destroyed {
			self.log.Debugf("ui drop %s source destroyed", e.String())
			continue
		}
		h := self.lookup(e)
		if h == nil {
			self.log.Debugf("ui no handler %s", e.String())
			continue
		}
		self.log.Debugf("ui dispatch %s", e.String())
		self.stat.Events++
		h(ctx, e)
	}
	self.queue = self.queue[:0]
}

func (self *UI) lookup(e Event) Handler {
	for w := e.Source; w != nil; w = w.parent {
		if h, ok := self.handlers[handlerKey{w.id, e.Kind}]; ok {
			return h
		}
	}
	return nil
}
