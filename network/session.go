package network

import "fmt"

// Session owns every Socket and Device for the lifetime of a reactor,
// keyed by the IDs drawn from a Sequence shared with the paired
// EndpointCollection (mirroring the Rust original's Session/EndpointCollection
// id_seq sharing).
type Session struct {
	seq     *Sequence
	replies ReplySink

	sockets map[SocketID]Socket
	devices map[DeviceID]*Device
	// deviceOf maps a socket leg back to the device it's plugged into, for
	// CanRecv routing (spec.md §4.2's device lookup by socket).
	deviceOf map[SocketID]DeviceID
}

// NewSession constructs an empty Session. seq is shared with the
// EndpointCollection constructed alongside it; replies is where Reply
// values are delivered — Session never blocks on it.
func NewSession(seq *Sequence, replies ReplySink) *Session {
	return &Session{
		seq:      seq,
		replies:  replies,
		sockets:  make(map[SocketID]Socket),
		devices:  make(map[DeviceID]*Device),
		deviceOf: make(map[SocketID]DeviceID),
	}
}

// AddSocket allocates a SocketID, constructs the Socket via ctor, and
// records it.
func (s *Session) AddSocket(ctor SocketCtor) SocketID {
	id := s.seq.NextSocketID()
	s.sockets[id] = ctor(id)
	return id
}

// GetSocket looks up a socket by ID.
func (s *Session) GetSocket(id SocketID) (Socket, bool) {
	sock, ok := s.sockets[id]
	return sock, ok
}

// RemoveSocket drops a socket and any device it was plugged into. It does
// not itself close the socket's endpoints — the dispatcher does that via
// the endpoint collection before calling this.
func (s *Session) RemoveSocket(id SocketID) {
	delete(s.sockets, id)
	if did, ok := s.deviceOf[id]; ok {
		if d, ok := s.devices[did]; ok {
			if peer, ok := d.Peer(id); ok {
				delete(s.deviceOf, peer)
			}
		}
		delete(s.devices, did)
		delete(s.deviceOf, id)
	}
}

// AddDevice registers a Device pairing left and right. It does not call
// either socket's OnDevicePlugged — that requires a Context, which only the
// dispatcher can construct; see reactor.Dispatcher's CreateDevice handling,
// which uses ReserveDeviceID and RegisterDevice instead so the callbacks can
// run with the final DeviceID before the pairing becomes visible.
func (s *Session) AddDevice(left, right SocketID) (DeviceID, error) {
	id, err := s.ReserveDeviceID(left, right)
	if err != nil {
		return 0, err
	}
	s.RegisterDevice(id, left, right)
	return id, nil
}

// ReserveDeviceID validates left/right exist and draws the DeviceID they
// will be registered under, without yet making the pairing visible to
// FindDeviceBySocket.
func (s *Session) ReserveDeviceID(left, right SocketID) (DeviceID, error) {
	if _, ok := s.sockets[left]; !ok {
		return 0, fmt.Errorf("network: unknown socket %d", left)
	}
	if _, ok := s.sockets[right]; !ok {
		return 0, fmt.Errorf("network: unknown socket %d", right)
	}
	return s.seq.NextDeviceID(), nil
}

// RegisterDevice records a pairing under a DeviceID previously drawn from
// ReserveDeviceID.
func (s *Session) RegisterDevice(id DeviceID, left, right SocketID) {
	s.devices[id] = NewDevice(id, left, right, s)
	s.deviceOf[left] = id
	s.deviceOf[right] = id
}

// GetDevice looks up a device by ID.
func (s *Session) GetDevice(id DeviceID) (*Device, bool) {
	d, ok := s.devices[id]
	return d, ok
}

// FindDeviceBySocket returns the device sid is plugged into, if any.
func (s *Session) FindDeviceBySocket(sid SocketID) (*Device, bool) {
	did, ok := s.deviceOf[sid]
	if !ok {
		return nil, false
	}
	d, ok := s.devices[did]
	return d, ok
}

// Reply delivers r to the session's reply sink. Never blocks.
func (s *Session) Reply(r Reply) {
	if s.replies != nil {
		s.replies.Send(r)
	}
}

// TakeMessage implements Forwarder by asking sid's socket for a pending
// forward, if it opts into MessageSource.
func (s *Session) TakeMessage(sid SocketID) ([]byte, bool) {
	sock, ok := s.sockets[sid]
	if !ok {
		return nil, false
	}
	src, ok := sock.(MessageSource)
	if !ok {
		return nil, false
	}
	return src.TakeForward()
}

// Deliver implements Forwarder by asking sid's socket to accept a forwarded
// message, if it opts into MessageSink.
func (s *Session) Deliver(sid SocketID, msg []byte) {
	sock, ok := s.sockets[sid]
	if !ok {
		return
	}
	if sink, ok := sock.(MessageSink); ok {
		sink.DeliverForward(msg)
	}
}
