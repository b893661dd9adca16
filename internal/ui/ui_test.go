package ui

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touchmodbus/panel/hardware/display"
	state_new "github.com/touchmodbus/panel/internal/state/new"
)

type tenv struct {
	ctx   context.Context
	ui    *UI
	mocks *state_new.Mocks
}

func newTestEnv(t *testing.T) *tenv {
	ctx, _ := state_new.NewTestContext(t, "")
	u, err := New(ctx)
	require.NoError(t, err)
	return &tenv{ctx: ctx, ui: u, mocks: state_new.GetMocks(ctx)}
}

func (env *tenv) ticks(n int) {
	for i := 0; i < n; i++ {
		env.ui.Tick(env.ctx, time.Now())
	}
}

// tap is press tick, release tick
func (env *tenv) tap(p image.Point) {
	env.mocks.Touch.Tap(p.X, p.Y)
	env.ticks(2)
}

func center(r image.Rectangle) image.Point {
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

func keyCenter(t testing.TB, kb *Widget, label string) image.Point {
	for i := range keyboardKeys {
		if kb.kb.label(i) == label {
			return center(kb.kb.keyRect(kb.rect, i))
		}
	}
	t.Fatalf("key label=%s not found", label)
	return image.Point{}
}

func (env *tenv) newButton() *Widget {
	b := env.ui.NewButton(env.ui.Screen(), image.Pt(100, 40), "Option 2")
	env.ui.Align(b, AlignCenter, image.Point{})
	return b
}

func TestButtonClick(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	b := env.newButton()
	assert.Equal(t, image.Rect(110, 100, 210, 140), b.Rect())
	clicks := 0
	env.ui.On(b, EventClicked, func(ctx context.Context, e Event) {
		assert.Equal(t, b, e.Source)
		clicks++
	})

	// press then release inside
	env.mocks.Touch.Press(160, 120)
	env.ticks(1)
	assert.True(t, b.Pressed())
	assert.Equal(t, 0, clicks)
	env.mocks.Touch.Release(160, 120)
	env.ticks(1)
	assert.False(t, b.Pressed())
	assert.Equal(t, 1, clicks)

	// release outside
	env.mocks.Touch.Press(160, 120)
	env.mocks.Touch.Release(5, 5)
	env.ticks(2)
	assert.False(t, b.Pressed())
	assert.Equal(t, 1, clicks)

	// press outside, slide in, release inside
	env.mocks.Touch.Press(5, 5)
	env.mocks.Touch.Press(160, 120)
	env.mocks.Touch.Release(160, 120)
	env.ticks(3)
	assert.Equal(t, 1, clicks)

	// holding pressed over many ticks is still one click
	for i := 0; i < 10; i++ {
		env.mocks.Touch.Press(150, 110)
	}
	env.mocks.Touch.Release(150, 110)
	env.ticks(11)
	assert.Equal(t, 2, clicks)
}

func TestIdle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.newButton()
	env.ui.NewLabel(env.ui.Screen(), "No data received yet.")
	env.ticks(100)
	assert.Len(t, env.mocks.Display.Flushes(), 1, "first frame only")
	assert.Equal(t, image.Rect(0, 0, 320, 240), env.mocks.Display.Flushes()[0])
	stat := env.ui.Stat()
	assert.Equal(t, uint64(100), stat.Ticks)
	assert.Equal(t, uint64(0), stat.Events)
	assert.Equal(t, uint64(1), stat.Frames)
	assert.Empty(t, env.mocks.Modbus.Writes())
}

func TestHitTest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	s := env.ui.Screen()
	b1 := env.ui.NewButton(s, image.Pt(100, 100), "1")
	b2 := env.ui.NewButton(s, image.Pt(100, 100), "2")
	env.ui.Align(b2, AlignTopLeft, image.Pt(50, 50))
	label := env.ui.NewLabel(s, "over")
	env.ui.Align(label, AlignTopLeft, image.Pt(60, 60))

	assert.Equal(t, b1, hitTest(s, image.Pt(10, 10)))
	assert.Equal(t, b2, hitTest(s, image.Pt(75, 75)), "later sibling is in front")
	assert.Equal(t, b2, hitTest(s, image.Pt(62, 62)), "label is not hittable")
	assert.Nil(t, hitTest(s, image.Pt(300, 10)), "screen is not hittable")

	// child of front button wins over it
	inner := env.ui.NewButton(b2, image.Pt(10, 10), "in")
	assert.Equal(t, inner, hitTest(s, image.Pt(55, 55)))
	env.ui.Destroy(b2)
	assert.True(t, inner.Destroyed())
	assert.Equal(t, b1, hitTest(s, image.Pt(75, 75)))
	assert.Len(t, s.Children(), 2)
}

func TestDispatchParentWalk(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	b := env.newButton()
	var got []string
	env.ui.On(env.ui.Screen(), EventClicked, func(ctx context.Context, e Event) { got = append(got, "screen:"+e.Source.Text()) })
	env.tap(center(b.Rect()))
	assert.Equal(t, []string{"screen:Option 2"}, got)

	env.ui.On(b, EventClicked, func(ctx context.Context, e Event) { got = append(got, "button") })
	env.tap(center(b.Rect()))
	assert.Equal(t, []string{"screen:Option 2", "button"}, got)
}

func TestDestroyedSourceDropped(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	s := env.ui.Screen()
	b1 := env.ui.NewButton(s, image.Pt(10, 10), "1")
	b2 := env.ui.NewButton(s, image.Pt(10, 10), "2")
	b2calls := 0
	env.ui.On(b1, EventClicked, func(ctx context.Context, e Event) { env.ui.Destroy(b2) })
	env.ui.On(b2, EventClicked, func(ctx context.Context, e Event) { b2calls++ })
	env.ui.emit(EventClicked, b1)
	env.ui.emit(EventClicked, b2)
	env.ui.dispatch(env.ctx)
	assert.Equal(t, 0, b2calls)
	assert.Equal(t, uint64(1), env.ui.Stat().Events)
	_, ok := env.ui.handlers[handlerKey{b2.ID(), EventClicked}]
	assert.False(t, ok, "handlers of destroyed widget removed")
}

func TestKeyboard(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	s := env.ui.Screen()
	ta := env.ui.NewTextArea(s, 200)
	env.ui.Align(ta, AlignTopMid, image.Pt(0, 60))
	kb := env.ui.NewKeyboard(s, image.Pt(320, 120), ta)
	env.ui.Align(kb, AlignBottomMid, image.Point{})
	assert.Equal(t, image.Rect(0, 120, 320, 240), kb.Rect())
	assert.Equal(t, 60, ta.Rect().Min.Y)

	changed, ready, cancelled := 0, 0, 0
	env.ui.On(ta, EventValueChanged, func(ctx context.Context, e Event) { changed++ })
	env.ui.On(kb, EventTextReady, func(ctx context.Context, e Event) { ready++ })
	env.ui.On(kb, EventTextCancelled, func(ctx context.Context, e Event) { cancelled++ })
	taClicks := 0
	env.ui.On(ta, EventClicked, func(ctx context.Context, e Event) { taClicks++ })

	env.tap(center(ta.Rect()))
	assert.Equal(t, ta, env.ui.Focused())
	assert.Equal(t, 1, taClicks)

	for _, label := range []string{"4", "2"} {
		env.tap(keyCenter(t, kb, label))
	}
	assert.Equal(t, "42", ta.Text())
	assert.Equal(t, 2, changed)

	env.tap(keyCenter(t, kb, "<-"))
	assert.Equal(t, "4", ta.Text())
	env.tap(keyCenter(t, kb, "ABC"))
	env.tap(keyCenter(t, kb, "Q"))
	env.tap(keyCenter(t, kb, "abc"))
	env.tap(keyCenter(t, kb, "q"))
	env.tap(keyCenter(t, kb, "Space"))
	assert.Equal(t, "4Qq ", ta.Text())
	assert.Equal(t, 6, changed)

	env.tap(keyCenter(t, kb, "OK"))
	env.tap(keyCenter(t, kb, "Enter"))
	env.tap(keyCenter(t, kb, "Close"))
	assert.Equal(t, 2, ready)
	assert.Equal(t, 1, cancelled)

	// press on one key, release on another: nothing
	p1, p2 := keyCenter(t, kb, "1"), keyCenter(t, kb, "9")
	env.mocks.Touch.Press(p1.X, p1.Y)
	env.mocks.Touch.Release(p2.X, p2.Y)
	env.ticks(2)
	assert.Equal(t, "4Qq ", ta.Text())

	env.ui.Destroy(kb)
	ta.SetText("")
	assert.Nil(t, hitTest(s, p1))
}

func TestLabelAlign(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	l := env.ui.NewLabel(env.ui.Screen(), "ab")
	env.ui.Align(l, AlignCenter, image.Pt(0, 50))
	assert.Equal(t, display.TextSize("ab"), l.Rect().Size())
	c1 := center(l.Rect())
	l.SetText("received: 12345")
	assert.Equal(t, display.TextSize("received: 12345"), l.Rect().Size())
	c2 := center(l.Rect())
	assert.InDelta(t, c1.X, c2.X, 1)
	assert.Equal(t, c1.Y, c2.Y)
}

func TestFlushErrorContinues(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	b := env.newButton()
	env.mocks.Display.XXX_SetFlushError(errors.New("spi write"))
	env.ticks(1)
	assert.NotEmpty(t, env.mocks.Tele.Errors())

	env.mocks.Display.XXX_SetFlushError(nil)
	b.SetText("again")
	env.ticks(1)
	assert.Equal(t, uint64(2), env.ui.Stat().Frames)
	assert.Equal(t, b.Rect(), env.mocks.Display.Flushes()[1])
}

func TestEvery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	calls := 0
	tm := env.ui.Every(10*time.Millisecond, func(context.Context) { calls++ })
	t0 := time.Unix(1000, 0)
	env.ui.Tick(env.ctx, t0)
	env.ui.Tick(env.ctx, t0.Add(5*time.Millisecond))
	assert.Equal(t, 0, calls)
	env.ui.Tick(env.ctx, t0.Add(10*time.Millisecond))
	assert.Equal(t, 1, calls)
	env.ui.Tick(env.ctx, t0.Add(15*time.Millisecond))
	env.ui.Tick(env.ctx, t0.Add(20*time.Millisecond))
	assert.Equal(t, 2, calls)
	tm.Stop()
	env.ui.Tick(env.ctx, t0.Add(40*time.Millisecond))
	assert.Equal(t, 2, calls)
	assert.Empty(t, env.ui.timers)
}

func TestRunStop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	g := env.ui.g
	env.ui.XXX_testHook = func(s Stat) {
		if s.Ticks == 3 {
			g.Stop()
		}
	}
	done := make(chan struct{})
	go func() {
		env.ui.Run(env.ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after stop")
	}
	assert.Equal(t, uint64(3), env.ui.Stat().Ticks)
	select {
	case <-g.Alive.WaitChan():
	case <-time.After(time.Second):
		t.Fatal("alive not finished")
	}
}
