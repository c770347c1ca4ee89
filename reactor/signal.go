package reactor

import (
	"github.com/e42s/kernel/network"
	"github.com/e42s/kernel/transport"
)

// Signal is the taxonomy of work posted to the in-thread bus: readiness
// events already resolved to a specific socket, raised either by the
// poller's token lookup (PipeEvt/AcceptorEvt) or by the dispatcher itself
// deferring follow-up work on a socket's behalf to a later drain instead of
// making a reentrant call (SocketEvt).
type Signal interface {
	signal()
}

// PipeEvt reports a transport.Event from a specific pipe, already resolved
// to the socket that owns it.
type PipeEvt struct {
	Socket   network.SocketID
	Endpoint network.EndpointID
	Event    transport.Event
}

// AcceptorEvt reports a transport.Event from a specific acceptor.
type AcceptorEvt struct {
	Socket   network.SocketID
	Endpoint network.EndpointID
	Event    transport.Event
}

// SocketEvtKind discriminates the small set of socket-to-bus notifications
// that are not themselves a transport.Event, namely a socket's
// recv-readiness, announced so that a device it's plugged into can be woken.
type SocketEvtKind int

const (
	SocketCanRecv SocketEvtKind = iota
)

// SocketEvt is posted by the dispatcher itself — never by a socket — as a
// continuation deferred to the next bus drain rather than a reentrant call:
// processPipeEvt posts SocketCanRecv right after delivering OnRecvReady, so
// a device linking this socket learns of recv-readiness without the socket
// needing any bus-posting capability of its own.
type SocketEvt struct {
	Socket network.SocketID
	Kind   SocketEvtKind
}

func (PipeEvt) signal()     {}
func (AcceptorEvt) signal() {}
func (SocketEvt) signal()   {}
