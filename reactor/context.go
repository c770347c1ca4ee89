package reactor

import (
	"time"

	"github.com/e42s/kernel/network"
	"github.com/e42s/kernel/transport"
)

// socketContext implements network.Context. A fresh instance is
// constructed by Dispatcher.applyOnSocket for exactly one callback
// invocation and then marked spent, mirroring the original's
// freshly-built-per-callback SocketEventLoopContext: since Go has no borrow
// checker to make that a compile error, spent is an explicit reentrancy
// guard that panics if a Socket implementation retains and reuses a Context
// past the call that supplied it.
type socketContext struct {
	d     *Dispatcher
	self  network.SocketID
	spent bool
}

var _ network.Context = (*socketContext)(nil)

func (c *socketContext) guard() {
	if c.spent {
		panic("reactor: socket context used after its callback returned")
	}
}

func (c *socketContext) Self() network.SocketID { return c.self }

func (c *socketContext) OpenPipe(spec transport.EndpointSpec) (network.EndpointID, error) {
	c.guard()
	return c.d.openPipe(c.self, spec)
}

func (c *socketContext) OpenAcceptor(spec transport.EndpointSpec) (network.EndpointID, error) {
	c.guard()
	return c.d.openAcceptor(c.self, spec)
}

func (c *socketContext) ClosePipe(id network.EndpointID) {
	c.guard()
	c.d.closeEndpoint(id, false)
}

func (c *socketContext) CloseAcceptor(id network.EndpointID) {
	c.guard()
	c.d.closeEndpoint(id, true)
}

func (c *socketContext) Post(id network.EndpointID, cmd transport.Command) {
	c.guard()
	c.d.postCommand(id, cmd)
}

func (c *socketContext) Reply(r network.Reply) {
	c.guard()
	c.d.session.Reply(r)
}

func (c *socketContext) CloseSelf() {
	c.guard()
	c.d.removeSocket(c.self)
}

func (c *socketContext) Schedule(task network.Schedulable, delay time.Duration) (network.Scheduled, error) {
	c.guard()
	return c.d.scheduleFor(c.self, task, delay)
}

func (c *socketContext) Cancel(s network.Scheduled) {
	c.guard()
	c.d.cancelScheduled(s)
}
