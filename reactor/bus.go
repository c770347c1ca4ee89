package reactor

import "github.com/e42s/kernel/queue"

// signalBus is the in-thread continuation queue described in the design
// notes: posting to it schedules a future drain by the dispatcher's own
// thread instead of a synchronous, potentially reentrant call. It is
// registered with the poller under TokenBus via its wakeup eventfd.
type signalBus struct {
	q    *queue.Queue[Signal]
	wake *eventFD
}

func newSignalBus() (*signalBus, error) {
	wake, err := newEventFD()
	if err != nil {
		return nil, err
	}
	return &signalBus{q: queue.New[Signal](), wake: wake}, nil
}

// post appends sig and schedules a wakeup. Safe to call from the
// dispatcher's own thread (a cascading continuation) or, in principle, any
// other goroutine, though in this design only the dispatcher ever does.
func (b *signalBus) post(sig Signal) {
	b.q.Push(sig)
	_ = b.wake.Signal()
}

// drain empties the wakeup fd and returns every currently queued signal.
func (b *signalBus) drain(dst []Signal) []Signal {
	b.wake.Drain()
	return b.q.Drain(dst)
}

func (b *signalBus) fd() int { return b.wake.FD() }

func (b *signalBus) Close() error { return b.wake.Close() }
