package reactor

import "github.com/e42s/kernel/queue"

// requestChannel is the cross-thread request queue: any goroutine may post
// a Request, and the dispatcher drains it on TokenChannel wakeups. It is
// the Go shape of the original's mpsc channel, built on the same unbounded
// queue the signal bus uses rather than a fixed-capacity Go channel, so a
// burst of requests from many goroutines is never dropped or blocked.
type requestChannel struct {
	q    *queue.Queue[Request]
	wake *eventFD
}

func newRequestChannel() (*requestChannel, error) {
	wake, err := newEventFD()
	if err != nil {
		return nil, err
	}
	return &requestChannel{q: queue.New[Request](), wake: wake}, nil
}

// Submit posts req from any goroutine. Never blocks.
func (c *requestChannel) Submit(req Request) {
	c.q.Push(req)
	_ = c.wake.Signal()
}

func (c *requestChannel) drain(dst []Request) []Request {
	c.wake.Drain()
	return c.q.Drain(dst)
}

func (c *requestChannel) fd() int { return c.wake.FD() }

func (c *requestChannel) Close() error { return c.wake.Close() }
