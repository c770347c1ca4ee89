package network

// Forwarder is the narrow view of a Session a Device needs to move a
// message from one plugged socket to its peer. A Session backs this with
// lookups into its own socket table; protocols opt in to forwarding by
// implementing MessageSource/MessageSink (see below) — a socket that
// doesn't is simply never a useful Device leg, which is fine, since pairing
// an arbitrary Socket is the caller's decision, not the reactor's.
type Forwarder interface {
	// TakeMessage pops a pending outbound message from id's forwarding
	// buffer, if any.
	TakeMessage(id SocketID) ([]byte, bool)
	// Deliver hands msg to id's peer-facing send path. Errors are not
	// surfaced to the caller — a device never blocks or retries a
	// forwarding attempt on the dispatcher's behalf; a dropped message on
	// a broken leg resurfaces as that leg's own OnPipeError/OnSendAck.
	Deliver(id SocketID, msg []byte)
}

// MessageSource is implemented by a device-aware Socket to expose a single
// pending message for forwarding.
type MessageSource interface {
	TakeForward() ([]byte, bool)
}

// MessageSink is implemented by a device-aware Socket to accept a forwarded
// message in place of a normal SendMsg request.
type MessageSink interface {
	DeliverForward(msg []byte)
}

// Device pairs two sockets for transparent forwarding, as in the
// traditional nanomsg device. It holds no I/O state of its own — both
// legs' actual send/recv machinery remains in their own Socket
// implementations; Device only knows when to ask for a sweep and which
// direction to sweep in.
//
// Its OnSocketCanRecv/Check signatures deliberately take no Context: the
// original Rust device.rs closure `|device| device.on_socket_can_recv(sid)`
// is called without one, meaning a device can only ever touch state it was
// given at construction — here, its Forwarder, captured once by the Session
// that built it.
type Device struct {
	id          DeviceID
	left, right SocketID
	fwd         Forwarder
	ready       [2]bool
}

// NewDevice builds a Device pairing left and right, using fwd to move
// messages between them.
func NewDevice(id DeviceID, left, right SocketID, fwd Forwarder) *Device {
	return &Device{id: id, left: left, right: right, fwd: fwd}
}

func (d *Device) ID() DeviceID    { return d.id }
func (d *Device) Left() SocketID  { return d.left }
func (d *Device) Right() SocketID { return d.right }

// Peer returns the opposite leg of sid, if sid is one of this device's legs.
func (d *Device) Peer(sid SocketID) (SocketID, bool) {
	switch sid {
	case d.left:
		return d.right, true
	case d.right:
		return d.left, true
	default:
		return 0, false
	}
}

// OnSocketCanRecv marks sid's leg ready to be drained and performs an
// immediate forwarding sweep. Called by the dispatcher when a CanRecv
// signal arrives for a socket that is a device leg.
func (d *Device) OnSocketCanRecv(sid SocketID) {
	switch sid {
	case d.left:
		d.ready[0] = true
	case d.right:
		d.ready[1] = true
	default:
		return
	}
	d.sweep()
}

// Check performs one forwarding sweep, as requested by a Device(id, Check)
// request.
func (d *Device) Check() {
	d.sweep()
}

func (d *Device) sweep() {
	if d.ready[0] {
		d.forward(d.left, d.right)
		d.ready[0] = false
	}
	if d.ready[1] {
		d.forward(d.right, d.left)
		d.ready[1] = false
	}
}

func (d *Device) forward(from, to SocketID) {
	if d.fwd == nil {
		return
	}
	if msg, ok := d.fwd.TakeMessage(from); ok {
		d.fwd.Deliver(to, msg)
	}
}
