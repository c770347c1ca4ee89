package network

import "github.com/e42s/kernel/transport"

// SocketCtor builds a Socket once the Session has allocated its SocketID,
// so the protocol state machine can close over its own identity for
// outgoing signals. Carried from the original's CreateSocket(ctor) request.
type SocketCtor func(SocketID) Socket

// Request is the taxonomy of operations a user-facing handle can ask a
// Socket to perform. It crosses the request channel wrapped in a
// reactor-level envelope that pairs it with a SocketID.
type Request interface {
	socketRequest()
}

// Connect asks the socket to add an outbound pipe at the given address.
type Connect struct{ Spec transport.EndpointSpec }

// Bind asks the socket to add a listening acceptor at the given address.
type Bind struct{ Spec transport.EndpointSpec }

// SendMsg asks the socket to deliver a message to its peer(s).
type SendMsg struct{ Msg []byte }

// RecvMsg asks the socket to deliver its next inbound message via Reply.
type RecvMsg struct{}

// CloseSocket asks the socket, and everything it owns, to shut down.
type CloseSocket struct{}

func (Connect) socketRequest()     {}
func (Bind) socketRequest()        {}
func (SendMsg) socketRequest()     {}
func (RecvMsg) socketRequest()     {}
func (CloseSocket) socketRequest() {}

// Socket is the protocol state machine the reactor drives. Every method is
// invoked with a Context scoped to this socket's own callback; a Socket
// implementation must not retain a Context past the call that supplied it.
//
// Protocol semantics (REQ/REP framing, PUB/SUB filtering, and so on) are
// explicitly out of scope here — Socket is the seam the reactor exposes for
// protocols to be plugged into, not a protocol itself. See
// github.com/e42s/kernel/protocol/pair for a minimal concrete example.
type Socket interface {
	ID() SocketID

	// HandleRequest executes one user-facing Request.
	HandleRequest(ctx Context, req Request)

	// OnPipeOpened reports a pipe has completed its handshake.
	OnPipeOpened(ctx Context, id EndpointID)
	// OnSendReady reports a pipe is currently writable.
	OnSendReady(ctx Context, id EndpointID)
	// OnSendAck reports a previously queued write has completed.
	OnSendAck(ctx Context, id EndpointID)
	// OnRecvReady reports a pipe has a message ready to read.
	OnRecvReady(ctx Context, id EndpointID)
	// OnRecvAck delivers a message read from a pipe.
	OnRecvAck(ctx Context, id EndpointID, msg []byte)
	// OnPipeError reports a pipe-level transport failure. The pipe is not
	// implicitly removed; the socket decides whether to close/reconnect.
	OnPipeError(ctx Context, id EndpointID, err error)
	// OnPipeClosed reports a pipe has finished shutting down and has been
	// removed from the endpoint collection.
	OnPipeClosed(ctx Context, id EndpointID)
	// OnPipeAccepted reports an acceptor produced a new inbound pipe,
	// already inserted into the endpoint collection under id.
	OnPipeAccepted(ctx Context, acceptor EndpointID, id EndpointID)
	// OnAcceptorError reports an acceptor-level transport failure. The
	// acceptor is not implicitly removed.
	OnAcceptorError(ctx Context, id EndpointID, err error)
	// OnAcceptorClosed reports an acceptor has finished shutting down.
	OnAcceptorClosed(ctx Context, id EndpointID)

	// ClosePipe asks the socket to tear down the pipe named by id, in
	// response to an external Endpoint(Close(remote=true)) request.
	ClosePipe(ctx Context, id EndpointID)
	// CloseAcceptor asks the socket to tear down the acceptor named by id,
	// in response to an external Endpoint(Close(remote=false)) request.
	CloseAcceptor(ctx Context, id EndpointID)

	// OnSendTimeout fires when a scheduled SendTimeout task elapses.
	OnSendTimeout(ctx Context, s Scheduled)
	// OnRecvTimeout fires when a scheduled RecvTimeout task elapses.
	OnRecvTimeout(ctx Context, s Scheduled)
	// OnReconnect fires when a scheduled Reconnect task elapses, naming the
	// endpoint and dial spec to retry.
	OnReconnect(ctx Context, id EndpointID, spec transport.EndpointSpec)
	// OnRebind fires when a scheduled Rebind task elapses, naming the
	// endpoint and listen spec to retry.
	OnRebind(ctx Context, id EndpointID, spec transport.EndpointSpec)
	// OnTimerTick fires for any other Schedulable the socket itself
	// scheduled (ReqResend, SurveyCancel).
	OnTimerTick(ctx Context, s Scheduled, task Schedulable)

	// OnDevicePlugged notifies the socket it has been bound into a Device
	// as either leg; from this point its recv completions are expected to
	// be forwarded rather than delivered to a user-facing Reply.
	OnDevicePlugged(ctx Context, device DeviceID, peer SocketID)
}
