package helpers

import "time"

// Limited exponential backoff for retry delays. Not safe for concurrent use.
// First failure gives Min, each next failure multiplies by K, up to Max.
// Success resets to zero delay.
type Backoff struct {
	Min time.Duration
	Max time.Duration
	K   float32
	Res time.Duration // delay resolution for nice logs, default=1ms

	next time.Duration
}

// Use scenario:
//
//	for {
//	  err := op()
//	  time.Sleep(backoff.DelayAfter(err==nil))
//	}
func (b *Backoff) DelayAfter(success bool) time.Duration {
	if success {
		b.Reset()
	} else {
		b.Failure()
	}
	return b.next
}

func (b *Backoff) Failure() {
	if b.next == 0 {
		b.next = b.limit(b.Min)
		return
	}
	b.next = b.limit(time.Duration(float32(b.next) * b.K))
}

func (b *Backoff) Reset() { b.next = 0 }

func (b *Backoff) limit(d time.Duration) time.Duration {
	if d < b.Min {
		d = b.Min
	}
	if d > b.Max {
		d = b.Max
	}
	res := b.Res
	if res == 0 {
		res = time.Millisecond
	}
	return d / res * res
}
