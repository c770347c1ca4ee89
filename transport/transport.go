// Package transport defines the boundary between the reactor core and the
// byte-moving layer underneath it: dialing, listening, and readiness-driven
// I/O. It is deliberately thin — spec scope stops at "a transport exists and
// exposes these interfaces" — and it imports nothing from reactor or
// network, so that either can depend on it without a cycle.
package transport

import "fmt"

// EndpointSpec names an address a Transport knows how to dial or listen on,
// e.g. {Scheme: "tcp", URL: "127.0.0.1:9000"}.
type EndpointSpec struct {
	Scheme string
	URL    string
}

func (s EndpointSpec) String() string {
	return fmt.Sprintf("%s://%s", s.Scheme, s.URL)
}

// Command is an opaque, transport-defined instruction relayed from a socket
// down to one of its pipes or acceptors (e.g. "send this buffer", "start
// graceful shutdown"). The core never inspects it.
type Command any

// EventKind discriminates the fixed set of notifications a Pipe or Acceptor
// can raise back up through the dispatcher.
type EventKind int

const (
	// EventOpened reports a pipe has completed its handshake and is usable.
	EventOpened EventKind = iota
	// EventCanSend reports the pipe is currently writable.
	EventCanSend
	// EventSent reports a previously queued write has completed.
	EventSent
	// EventCanRecv reports the pipe has data ready to be read.
	EventCanRecv
	// EventReceived carries a fully read message.
	EventReceived
	// EventAccepted reports an acceptor has produced new inbound pipes.
	EventAccepted
	// EventError reports a transport-level failure; the endpoint is not
	// implicitly removed — see reactor's handling of this event.
	EventError
	// EventClosed reports the endpoint has finished shutting down.
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventCanSend:
		return "can-send"
	case EventSent:
		return "sent"
	case EventCanRecv:
		return "can-recv"
	case EventReceived:
		return "received"
	case EventAccepted:
		return "accepted"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a notification raised by a Pipe or Acceptor. Only the field(s)
// relevant to Kind are populated.
type Event struct {
	Kind     EventKind
	Message  []byte  // EventReceived
	Accepted []Pipe  // EventAccepted
	Err      error   // EventError
}

// IOEvents is a bitmask of readiness conditions, deliberately small and
// platform-neutral; pollers translate it to/from epoll/kqueue bits.
type IOEvents uint8

const (
	Readable IOEvents = 1 << iota
	Writable
)

func (e IOEvents) Readable() bool { return e&Readable != 0 }
func (e IOEvents) Writable() bool { return e&Writable != 0 }

// Registrar is the narrow slice of the reactor's poller a transport needs:
// enough to (de)register a raw file descriptor under a token. The reactor's
// EventLoop implements this directly.
type Registrar interface {
	RegisterFD(fd int, token uint64, interest IOEvents) error
	ReregisterFD(fd int, token uint64, interest IOEvents) error
	DeregisterFD(fd int) error
}

// SignalPoster lets a Pipe or Acceptor raise an Event without knowing its
// own SocketID/EndpointID — the reactor binds those when it constructs the
// poster for a given call.
type SignalPoster interface {
	PostEvent(evt Event)
}

// Pipe is one end of a byte-moving connection, owned by an
// EndpointCollection and driven entirely by the dispatcher. Register is
// called exactly once, immediately after the dispatcher has assigned this
// pipe's EndpointID — whether the pipe came from Dial (registered before the
// caller sees it return) or from an Acceptor's EventAccepted (registered
// only once the dispatcher has minted an ID for it) — since the fd's token
// isn't known until that assignment happens. Ready is then called with the
// readiness bits the poller observed for its fd, Process relays an opaque
// Command down from the owning socket.
type Pipe interface {
	Register(reg Registrar, token uint64) error
	Ready(reg Registrar, post SignalPoster, readiness IOEvents)
	Process(reg Registrar, post SignalPoster, cmd Command)
	Close() error
}

// Acceptor listens for inbound connections and produces Pipes via
// EventAccepted. Register follows the same one-time, post-ID-assignment
// contract as Pipe.Register.
type Acceptor interface {
	Register(reg Registrar, token uint64) error
	Ready(reg Registrar, post SignalPoster, readiness IOEvents)
	Process(reg Registrar, post SignalPoster, cmd Command)
	Close() error
}

// Transport resolves an EndpointSpec's scheme to Dial/Listen behavior. One
// Transport is registered per scheme at reactor construction time —
// transports discovered or loaded later are out of scope. Dial/Listen open
// the underlying resource but must not register its fd with reg themselves —
// the dispatcher calls Register once it has assigned the resulting Pipe or
// Acceptor its EndpointID.
type Transport interface {
	Scheme() string
	Dial(reg Registrar, spec EndpointSpec) (Pipe, error)
	Listen(reg Registrar, spec EndpointSpec) (Acceptor, error)
}
