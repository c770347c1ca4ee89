package reactor

import (
	"github.com/e42s/kernel/network"
	"github.com/e42s/kernel/transport"
)

type endpointEntry struct {
	socket     network.SocketID
	isAcceptor bool
	pipe       transport.Pipe
	acceptor   transport.Acceptor
}

// endpointCollection owns every Pipe and Acceptor for the lifetime of a
// reactor, keyed by EndpointID drawn from the same Sequence the owning
// Session uses for SocketID/DeviceID.
type endpointCollection struct {
	seq        *network.Sequence
	transports map[string]transport.Transport
	entries    map[network.EndpointID]*endpointEntry
}

func newEndpointCollection(seq *network.Sequence, transports []transport.Transport) *endpointCollection {
	byScheme := make(map[string]transport.Transport, len(transports))
	for _, tr := range transports {
		byScheme[tr.Scheme()] = tr
	}
	return &endpointCollection{
		seq:        seq,
		transports: byScheme,
		entries:    make(map[network.EndpointID]*endpointEntry),
	}
}

func (c *endpointCollection) resolve(scheme string) (transport.Transport, bool) {
	tr, ok := c.transports[scheme]
	return tr, ok
}

func (c *endpointCollection) insertPipe(socket network.SocketID, p transport.Pipe) network.EndpointID {
	id := c.seq.NextEndpointID()
	c.entries[id] = &endpointEntry{socket: socket, pipe: p}
	return id
}

func (c *endpointCollection) insertAcceptor(socket network.SocketID, a transport.Acceptor) network.EndpointID {
	id := c.seq.NextEndpointID()
	c.entries[id] = &endpointEntry{socket: socket, isAcceptor: true, acceptor: a}
	return id
}

func (c *endpointCollection) getPipe(id network.EndpointID) (transport.Pipe, network.SocketID, bool) {
	e, ok := c.entries[id]
	if !ok || e.isAcceptor {
		return nil, 0, false
	}
	return e.pipe, e.socket, true
}

func (c *endpointCollection) getAcceptor(id network.EndpointID) (transport.Acceptor, network.SocketID, bool) {
	e, ok := c.entries[id]
	if !ok || !e.isAcceptor {
		return nil, 0, false
	}
	return e.acceptor, e.socket, true
}

// lookup reports whatever entry is at id, if any, and whether it is an
// acceptor, for the dispatcher's token-routing step (which doesn't know in
// advance whether a given EndpointID names a pipe or an acceptor).
func (c *endpointCollection) lookup(id network.EndpointID) (socket network.SocketID, isAcceptor bool, ok bool) {
	e, ok := c.entries[id]
	if !ok {
		return 0, false, false
	}
	return e.socket, e.isAcceptor, true
}

func (c *endpointCollection) remove(id network.EndpointID) {
	delete(c.entries, id)
}

// removeAllForSocket is a safety net for socket removal: under normal
// operation a Socket closes its own pipes/acceptors before asking the
// dispatcher to remove it, so this finds nothing. Anything it does find is
// closed here so removal never leaks an fd.
func (c *endpointCollection) removeAllForSocket(socket network.SocketID) []network.EndpointID {
	var removed []network.EndpointID
	for id, e := range c.entries {
		if e.socket == socket {
			removed = append(removed, id)
			if e.isAcceptor {
				_ = e.acceptor.Close()
			} else {
				_ = e.pipe.Close()
			}
			delete(c.entries, id)
		}
	}
	return removed
}

func (c *endpointCollection) len() int { return len(c.entries) }
