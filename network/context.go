package network

import (
	"time"

	"github.com/e42s/kernel/transport"
)

// Network is the subset of dispatcher operations a Socket may perform on its
// own endpoints: open/close pipes and acceptors, relay a Command to one,
// and reply to whoever issued the originating request.
type Network interface {
	OpenPipe(spec transport.EndpointSpec) (EndpointID, error)
	OpenAcceptor(spec transport.EndpointSpec) (EndpointID, error)
	ClosePipe(id EndpointID)
	CloseAcceptor(id EndpointID)
	Post(id EndpointID, cmd transport.Command)
	Reply(r Reply)
	// CloseSelf removes this socket from the Session. It is the socket's own
	// responsibility to have already closed (or be in the process of
	// closing) every pipe/acceptor it owns before calling this — removal
	// does not cascade to them on its own.
	CloseSelf()
}

// Scheduler is the subset of dispatcher operations a Socket may use to
// arrange for its own future invocation.
type Scheduler interface {
	Schedule(task Schedulable, delay time.Duration) (Scheduled, error)
	Cancel(s Scheduled)
}

// Context is passed to every Socket callback (Device callbacks take none —
// see Device). A fresh Context is
// constructed by the dispatcher for each callback invocation (mirroring the
// Rust original's freshly-built SocketEventLoopContext), scoped to exactly
// one socket, so that a socket can never be reentered from within its own
// callback — see the reactor package's reentrancy guard.
type Context interface {
	Network
	Scheduler
	// Self is the SocketID this Context was constructed for.
	Self() SocketID
}
