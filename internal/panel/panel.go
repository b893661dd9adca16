// Package panel is the application: one entry button opens a numeric entry
// session, submitted text goes to Modbus holding register.
package panel

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/juju/errors"
	"github.com/touchmodbus/panel/hardware/modbus"
	"github.com/touchmodbus/panel/internal/state"
	"github.com/touchmodbus/panel/internal/tele"
	"github.com/touchmodbus/panel/internal/ui"
	"github.com/touchmodbus/panel/log2"
)

const (
	EntryWidth    = 120
	EntryHeight   = 60
	TextAreaWidth = 200
)

var (
	entryOffset    = image.Pt(0, -40)
	statusOffset   = image.Pt(0, -10)
	textAreaOffset = image.Pt(0, 60)
)

type State uint8

const (
	StateInvalid State = iota
	StateIdle
	StateComposing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	}
	return "invalid"
}

type session struct {
	textArea *ui.Widget
	keyboard *ui.Widget
}

type Controller struct {
	g         *state.Global
	log       *log2.Log
	ui        *ui.UI
	transport modbus.Transporter
	tele      tele.Teler

	target         uint32
	submitOnCancel bool
	statusRegister uint32

	entry       *ui.Widget
	status      *ui.Widget
	session     *session
	statusTimer *ui.Timer
}

func New(ctx context.Context, u *ui.UI) (*Controller, error) {
	g := state.GetGlobal(ctx)
	transport, err := g.Modbus()
	if err != nil {
		return nil, errors.Annotate(err, "panel")
	}
	pc := &g.Config.Panel
	c := &Controller{
		g:              g,
		log:            g.Log,
		ui:             u,
		transport:      transport,
		tele:           g.Tele,
		target:         uint32(pc.TargetAddress),
		submitOnCancel: pc.SubmitOnCancel == nil || *pc.SubmitOnCancel,
		statusRegister: uint32(pc.StatusRegister),
	}
	return c, nil
}

func (c *Controller) State() State {
	if c.session != nil {
		return StateComposing
	}
	return StateIdle
}

func (c *Controller) Entry() *ui.Widget  { return c.entry }
func (c *Controller) Status() *ui.Widget { return c.status }

// Session returns text area and keyboard of open session, nil when idle.
func (c *Controller) Session() (textArea *ui.Widget, keyboard *ui.Widget) {
	if c.session == nil {
		return nil, nil
	}
	return c.session.textArea, c.session.keyboard
}

// Build creates idle screen: entry button and status label.
func (c *Controller) Build(ctx context.Context) {
	screen := c.ui.Screen()
	uc := &c.g.Config.UI

	c.entry = c.ui.NewButton(screen, image.Pt(EntryWidth, EntryHeight), uc.EntryText)
	c.ui.Align(c.entry, ui.AlignCenter, entryOffset)
	c.ui.On(c.entry, ui.EventClicked, c.onEntry)

	c.status = c.ui.NewLabel(screen, uc.StatusText)
	c.ui.Align(c.status, ui.AlignBottomMid, statusOffset)

	pc := &c.g.Config.Panel
	if pc.StatusRefresh {
		period := time.Duration(pc.StatusRefreshMs) * time.Millisecond
		c.statusTimer = c.ui.Every(period, c.refreshStatus)
		c.log.Debugf("panel status refresh register=0x%x period=%v", c.statusRegister, period)
	}
	c.log.Debugf("panel ready state=%s", c.State())
}

// Close stops status refresh.
func (c *Controller) Close() {
	if c.statusTimer != nil {
		c.statusTimer.Stop()
	}
}

func (c *Controller) onEntry(ctx context.Context, e ui.Event) {
	if c.session != nil {
		c.log.Debugf("panel entry click ignored state=%s", c.State())
		return
	}
	screen := c.ui.Screen()
	size := screen.Rect().Size()

	ta := c.ui.NewTextArea(screen, TextAreaWidth)
	c.ui.Align(ta, ui.AlignTopMid, textAreaOffset)
	kb := c.ui.NewKeyboard(screen, image.Pt(size.X, size.Y/2), ta)
	c.ui.Align(kb, ui.AlignBottomMid, image.Point{})
	c.ui.Focus(ta)
	c.ui.On(kb, ui.EventTextReady, c.onKeyboard)
	c.ui.On(kb, ui.EventTextCancelled, c.onKeyboard)

	c.session = &session{textArea: ta, keyboard: kb}
	c.log.Debugf("panel state=%s", c.State())
}

func (c *Controller) onKeyboard(ctx context.Context, e ui.Event) {
	s := c.session
	if s == nil || e.Source != s.keyboard {
		return
	}
	text := s.textArea.Text()
	if e.Kind == ui.EventTextReady || c.submitOnCancel {
		c.submit(text)
	} else {
		c.log.Infof("panel input cancelled text=%q", text)
	}
	c.ui.Destroy(s.textArea)
	c.ui.Destroy(s.keyboard)
	c.session = nil
	c.log.Debugf("panel state=%s", c.State())
}

func (c *Controller) submit(text string) {
	req := modbus.WriteRequest{Address: c.target, Value: ParseValue(text)}
	status := c.transport.WriteValue(req.Address, req.Value)
	c.log.Infof("sent to modbus: %s", text)
	if !status.Ok() {
		c.log.Errorf("panel %s status=%s", req.String(), status.String())
	}
	c.tele.Submitted(req, status)
}

func (c *Controller) refreshStatus(ctx context.Context) {
	v, status := c.transport.ReadValue(c.statusRegister)
	if !status.Ok() {
		c.log.Errorf("panel status read register=0x%x status=%s", c.statusRegister, status.String())
		c.status.SetText(fmt.Sprintf("read error: %s", status.String()))
		return
	}
	c.status.SetText(fmt.Sprintf("received: %d", v))
}

// ParseValue converts text like C atoi then truncates to 16 bits:
// leading whitespace, optional sign, decimal digits up to first other byte.
// No digits gives 0. Out of int64 range saturates before truncation.
func ParseValue(s string) uint16 {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	const cutoff = uint64(1<<63) / 10
	var n uint64
	over := false
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		d := uint64(s[i] - '0')
		if n > cutoff || (n == cutoff && d > 7) {
			over = true
			continue
		}
		n = n*10 + d
	}
	var v int64
	switch {
	case over && neg:
		v = -1 << 63
	case over:
		v = 1<<63 - 1
	case neg:
		v = -int64(n)
	default:
		v = int64(n)
	}
	return uint16(v)
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
