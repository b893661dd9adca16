package helpers

// Random synchronisation util stash

import (
	"sync"
	"sync/atomic"
)

// WrapErrChan runs f and sends non-nil error to ch, for parallel init tasks.
func WrapErrChan(wg *sync.WaitGroup, ch chan<- error, f func() error) {
	defer wg.Done()
	if err := f(); err != nil {
		ch <- err
	}
}

// Once is sync.Once that remembers error.
type Once struct {
	sync.Mutex
	called uint32 // atomic bool
	err    error
}

func (o *Once) Done() bool {
	return atomic.LoadUint32(&o.called) == 1
}

func (o *Once) Do(f func() error) error {
	if o.Done() { // fast path
		return o.err
	}
	o.Lock()
	defer o.Unlock()
	if o.Done() {
		return o.err
	}
	o.err = f()
	atomic.StoreUint32(&o.called, 1)
	return o.err
}
