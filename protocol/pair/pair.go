// Package pair is a minimal, full-duplex, exactly-one-peer Socket — the
// traditional nanomsg PAIR protocol, with no envelope or framing logic
// layered on top of whatever the underlying transport already frames. It
// exists to exercise network.Socket end to end (connect, bind, send, recv,
// reconnect-on-error, device forwarding) rather than as a complete protocol
// suite.
package pair

import (
	"time"

	"github.com/e42s/kernel/network"
	"github.com/e42s/kernel/transport"
	"github.com/e42s/kernel/transport/mock"
)

// CommandSet adapts a Socket to whichever transport it is wired to, since
// transport.Command is opaque and transport-defined: the core never
// interprets it, so a protocol has to know the vocabulary of the transport
// it's paired with. The default wires to transport/mock's SendCommand and
// RecvCommand; a caller dialing a different transport (such as
// transport/tcp) passes its own CommandSet via WithCommands.
type CommandSet struct {
	Send func(msg []byte) transport.Command
	Recv func() transport.Command
}

var defaultCommands = CommandSet{
	Send: func(msg []byte) transport.Command { return mock.SendCommand{Msg: msg} },
	Recv: func() transport.Command { return mock.RecvCommand{} },
}

// Option configures a Socket at construction.
type Option func(*Socket)

// WithCommands overrides the transport command vocabulary.
func WithCommands(cmds CommandSet) Option {
	return func(s *Socket) { s.cmds = cmds }
}

// WithReconnectBase sets the base delay before retrying a dialed endpoint
// that closed or errored. Zero disables automatic reconnection.
func WithReconnectBase(d time.Duration) Option {
	return func(s *Socket) { s.reconnectBase = d }
}

// New returns a SocketCtor producing a pair Socket.
func New(opts ...Option) network.SocketCtor {
	return func(id network.SocketID) network.Socket {
		s := &Socket{id: id, cmds: defaultCommands}
		for _, o := range opts {
			o(s)
		}
		return s
	}
}

// Socket implements network.Socket. It holds at most one live pipe; a
// second inbound connection on a bound acceptor is refused by closing it
// immediately. A repeated Connect or Bind records the new spec and dials or
// listens again; it does not close an endpoint opened by an earlier one.
type Socket struct {
	id   network.SocketID
	cmds CommandSet

	reconnectBase   time.Duration
	dialSpec        transport.EndpointSpec
	haveDialSpec    bool
	reconnectHandle network.Scheduled
	haveReconnect   bool

	bindSpec      transport.EndpointSpec
	haveBindSpec  bool
	rebindHandle  network.Scheduled
	haveRebind    bool

	acceptor     network.EndpointID
	haveAcceptor bool

	pipe     network.EndpointID
	havePipe bool
	writable bool

	outbox      [][]byte
	sendPending int

	inbox       [][]byte
	pendingRecv bool

	plugged bool
	closing bool
}

var _ network.Socket = (*Socket)(nil)
var _ network.MessageSource = (*Socket)(nil)
var _ network.MessageSink = (*Socket)(nil)

func (s *Socket) ID() network.SocketID { return s.id }

func (s *Socket) HandleRequest(ctx network.Context, req network.Request) {
	switch v := req.(type) {
	case network.Connect:
		s.dialSpec = v.Spec
		s.haveDialSpec = true
		s.cancelReconnect(ctx)
		s.dial(ctx, v.Spec)
	case network.Bind:
		s.bindSpec = v.Spec
		s.haveBindSpec = true
		s.cancelRebind(ctx)
		s.bind(ctx, v.Spec)
	case network.SendMsg:
		s.queueSend(ctx, v.Msg)
	case network.RecvMsg:
		s.pendingRecv = true
		s.tryDeliverRecv(ctx)
	case network.CloseSocket:
		s.closing = true
		s.cancelReconnect(ctx)
		s.cancelRebind(ctx)
		if s.havePipe {
			ctx.ClosePipe(s.pipe)
		}
		if s.haveAcceptor {
			ctx.CloseAcceptor(s.acceptor)
		}
		s.maybeFinishClosing(ctx)
	}
}

func (s *Socket) dial(ctx network.Context, spec transport.EndpointSpec) {
	id, err := ctx.OpenPipe(spec)
	if err != nil {
		ctx.Reply(network.Reply{Socket: s.id, Kind: network.ReplyError, Err: err})
		s.scheduleReconnect(ctx, spec)
		return
	}
	s.pipe = id
	s.havePipe = true
}

func (s *Socket) scheduleReconnect(ctx network.Context, spec transport.EndpointSpec) {
	if s.reconnectBase <= 0 {
		return
	}
	s.cancelReconnect(ctx)
	h, err := ctx.Schedule(network.Reconnect{Endpoint: s.pipe, Spec: spec}, s.reconnectBase)
	if err != nil {
		return
	}
	s.reconnectHandle = h
	s.haveReconnect = true
}

// cancelReconnect drops any outstanding reconnect timer. Needed whenever the
// socket is about to dial on its own terms (a fresh Connect request, or the
// timer itself firing) so a stale handle never fires a second, redundant
// dial against a pipe that already succeeded or moved on to a different
// spec — cancellation is idempotent, so calling this with nothing pending
// is harmless.
func (s *Socket) cancelReconnect(ctx network.Context) {
	if !s.haveReconnect {
		return
	}
	ctx.Cancel(s.reconnectHandle)
	s.haveReconnect = false
}

func (s *Socket) bind(ctx network.Context, spec transport.EndpointSpec) {
	id, err := ctx.OpenAcceptor(spec)
	if err != nil {
		ctx.Reply(network.Reply{Socket: s.id, Kind: network.ReplyError, Err: err})
		s.scheduleRebind(ctx, spec)
		return
	}
	s.acceptor = id
	s.haveAcceptor = true
}

// scheduleRebind mirrors scheduleReconnect for the listening side: a Bind
// that fails, or whose acceptor later closes on its own, is retried at the
// same base delay rather than left dead.
func (s *Socket) scheduleRebind(ctx network.Context, spec transport.EndpointSpec) {
	if s.reconnectBase <= 0 {
		return
	}
	s.cancelRebind(ctx)
	h, err := ctx.Schedule(network.Rebind{Endpoint: s.acceptor, Spec: spec}, s.reconnectBase)
	if err != nil {
		return
	}
	s.rebindHandle = h
	s.haveRebind = true
}

// cancelRebind mirrors cancelReconnect for the listening side.
func (s *Socket) cancelRebind(ctx network.Context) {
	if !s.haveRebind {
		return
	}
	ctx.Cancel(s.rebindHandle)
	s.haveRebind = false
}

func (s *Socket) queueSend(ctx network.Context, msg []byte) {
	s.outbox = append(s.outbox, msg)
	s.flushSend(ctx)
}

func (s *Socket) flushSend(ctx network.Context) {
	if !s.havePipe || !s.writable || s.sendPending > 0 {
		return
	}
	if len(s.outbox) == 0 {
		return
	}
	msg := s.outbox[0]
	s.outbox = s.outbox[1:]
	s.sendPending++
	ctx.Post(s.pipe, s.cmds.Send(msg))
}

// maybeFinishClosing tells the dispatcher to remove this socket once a
// pending CloseSocket has drained every pipe/acceptor it owned. Must be
// called after setting s.closing and after any state change that might
// leave both havePipe and haveAcceptor false.
func (s *Socket) maybeFinishClosing(ctx network.Context) {
	if s.closing && !s.havePipe && !s.haveAcceptor {
		ctx.CloseSelf()
	}
}

func (s *Socket) tryDeliverRecv(ctx network.Context) {
	if !s.pendingRecv || len(s.inbox) == 0 {
		return
	}
	msg := s.inbox[0]
	s.inbox = s.inbox[1:]
	s.pendingRecv = false
	ctx.Reply(network.Reply{Socket: s.id, Kind: network.ReplyRecvAck, Msg: msg})
}

func (s *Socket) OnPipeOpened(ctx network.Context, id network.EndpointID) {
	s.writable = true
	s.flushSend(ctx)
}

func (s *Socket) OnSendReady(ctx network.Context, id network.EndpointID) {
	s.writable = true
	s.flushSend(ctx)
}

func (s *Socket) OnSendAck(ctx network.Context, id network.EndpointID) {
	if s.sendPending > 0 {
		s.sendPending--
	}
	ctx.Reply(network.Reply{Socket: s.id, Kind: network.ReplySendAck})
	s.flushSend(ctx)
}

func (s *Socket) OnRecvReady(ctx network.Context, id network.EndpointID) {
	ctx.Post(id, s.cmds.Recv())
}

func (s *Socket) OnRecvAck(ctx network.Context, id network.EndpointID, msg []byte) {
	s.inbox = append(s.inbox, msg)
	if s.plugged {
		return
	}
	s.tryDeliverRecv(ctx)
}

func (s *Socket) OnPipeError(ctx network.Context, id network.EndpointID, err error) {
	ctx.Reply(network.Reply{Socket: s.id, Kind: network.ReplyError, Err: err})
}

func (s *Socket) OnPipeClosed(ctx network.Context, id network.EndpointID) {
	s.havePipe = false
	s.writable = false
	s.sendPending = 0
	ctx.Reply(network.Reply{Socket: s.id, Kind: network.ReplyClosed})
	if s.closing {
		s.maybeFinishClosing(ctx)
		return
	}
	if s.haveDialSpec {
		s.scheduleReconnect(ctx, s.dialSpec)
	}
}

func (s *Socket) OnPipeAccepted(ctx network.Context, acceptor, id network.EndpointID) {
	if s.havePipe {
		// A PAIR socket serves exactly one peer; refuse the second.
		ctx.ClosePipe(id)
		return
	}
	s.pipe = id
	s.havePipe = true
	s.writable = true
	s.flushSend(ctx)
}

func (s *Socket) OnAcceptorError(ctx network.Context, id network.EndpointID, err error) {
	ctx.Reply(network.Reply{Socket: s.id, Kind: network.ReplyError, Err: err})
}

func (s *Socket) OnAcceptorClosed(ctx network.Context, id network.EndpointID) {
	s.haveAcceptor = false
	if s.closing {
		s.maybeFinishClosing(ctx)
		return
	}
	if s.haveBindSpec {
		s.scheduleRebind(ctx, s.bindSpec)
	}
}

// ClosePipe tears down id in response to an Endpoint(Close(remote=true))
// request; the actual close and the resulting OnPipeClosed callback happen
// through the normal ctx.ClosePipe -> bus -> Closed event path.
func (s *Socket) ClosePipe(ctx network.Context, id network.EndpointID) {
	ctx.ClosePipe(id)
}

// CloseAcceptor tears down id in response to an Endpoint(Close(remote=false))
// request, mirroring ClosePipe.
func (s *Socket) CloseAcceptor(ctx network.Context, id network.EndpointID) {
	ctx.CloseAcceptor(id)
}

func (s *Socket) OnSendTimeout(ctx network.Context, h network.Scheduled) {}

func (s *Socket) OnRecvTimeout(ctx network.Context, h network.Scheduled) {}

// OnReconnect fires once the wheel delivers a previously scheduled
// Reconnect task; the wheel has already dropped the entry, so the handle is
// always the one currently tracked (cancelReconnect always clears any prior
// one before a fresh schedule).
func (s *Socket) OnReconnect(ctx network.Context, id network.EndpointID, spec transport.EndpointSpec) {
	s.haveReconnect = false
	s.dial(ctx, spec)
}

// OnRebind mirrors OnReconnect for the listening side.
func (s *Socket) OnRebind(ctx network.Context, id network.EndpointID, spec transport.EndpointSpec) {
	s.haveRebind = false
	s.bind(ctx, spec)
}

func (s *Socket) OnTimerTick(ctx network.Context, h network.Scheduled, task network.Schedulable) {}

func (s *Socket) OnDevicePlugged(ctx network.Context, device network.DeviceID, peer network.SocketID) {
	s.plugged = true
}

// TakeForward implements network.MessageSource for a Device leg.
func (s *Socket) TakeForward() ([]byte, bool) {
	if len(s.inbox) == 0 {
		return nil, false
	}
	msg := s.inbox[0]
	s.inbox = s.inbox[1:]
	return msg, true
}

// DeliverForward implements network.MessageSink for a Device leg: the
// Context isn't available here (Device forwarding happens outside any
// socket's own callback — see network.Device), so the message is simply
// queued and flushed the next time this leg's own callback runs.
func (s *Socket) DeliverForward(msg []byte) {
	s.outbox = append(s.outbox, msg)
}
