package reactor

import "github.com/e42s/kernel/network"

// CreateSocket submits a CreateSocket request and blocks the calling
// goroutine (never the dispatcher's own) until the new SocketID is
// assigned. Safe to call from any goroutine once Run has started.
func (d *Dispatcher) CreateSocket(ctor network.SocketCtor) network.SocketID {
	result := make(chan network.SocketID, 1)
	d.Submit(CreateSocket{Ctor: ctor, Result: result})
	return <-result
}

// CreateDevice submits a CreateDevice request and blocks until the pairing
// has been recorded, returning its DeviceID.
func (d *Dispatcher) CreateDevice(left, right network.SocketID) network.DeviceID {
	result := make(chan network.DeviceID, 1)
	d.Submit(CreateDevice{Left: left, Right: right, Result: result})
	return <-result
}

// Connect submits a Connect request to an existing socket.
func (d *Dispatcher) Connect(socket network.SocketID, spec network.Connect) {
	d.Submit(SocketRequest{Socket: socket, Req: spec})
}

// Send submits a SendMsg request to an existing socket.
func (d *Dispatcher) Send(socket network.SocketID, msg []byte) {
	d.Submit(SocketRequest{Socket: socket, Req: network.SendMsg{Msg: msg}})
}

// Recv submits a RecvMsg request to an existing socket; the result arrives
// asynchronously via the dispatcher's ReplySink.
func (d *Dispatcher) Recv(socket network.SocketID) {
	d.Submit(SocketRequest{Socket: socket, Req: network.RecvMsg{}})
}

// CloseSocket submits a CloseSocket request to an existing socket.
func (d *Dispatcher) CloseSocket(socket network.SocketID) {
	d.Submit(SocketRequest{Socket: socket, Req: network.CloseSocket{}})
}

// Shutdown submits a Shutdown request, ending Run's loop once the current
// tick finishes draining.
func (d *Dispatcher) Shutdown() {
	d.Submit(Shutdown{})
}
