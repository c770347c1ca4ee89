package reactor

import "github.com/e42s/kernel/network"

// Request is the taxonomy of work posted to the cross-thread request
// channel — everything a facade (anything outside the dispatcher's single
// thread) can ask the reactor to do.
type Request interface {
	request()
}

// CreateSocket asks the dispatcher to mint a SocketID and construct a
// Socket via ctor. The resulting ID is delivered on result, which must have
// capacity 1 or be otherwise non-blocking for the dispatcher's send.
type CreateSocket struct {
	Ctor   network.SocketCtor
	Result chan<- network.SocketID
}

// CreateDevice asks the dispatcher to pair two existing sockets into a
// Device, calling OnDevicePlugged on both before the pairing is recorded.
type CreateDevice struct {
	Left, Right network.SocketID
	Result      chan<- network.DeviceID
}

// SocketRequest relays a network.Request to an existing socket.
type SocketRequest struct {
	Socket network.SocketID
	Req    network.Request
}

// EndpointClose asks a socket, through its ClosePipe/CloseAcceptor callback,
// to close one of its endpoints.
type EndpointClose struct {
	Socket     network.SocketID
	Endpoint   network.EndpointID
	IsAcceptor bool
}

// DeviceCheck asks the dispatcher to perform one forwarding sweep on a
// device.
type DeviceCheck struct {
	Device network.DeviceID
}

// Shutdown asks the dispatcher to stop its event loop after draining the
// current tick.
type Shutdown struct{}

func (CreateSocket) request()  {}
func (CreateDevice) request()  {}
func (SocketRequest) request() {}
func (EndpointClose) request() {}
func (DeviceCheck) request()   {}
func (Shutdown) request()      {}
