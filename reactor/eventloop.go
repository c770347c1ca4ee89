package reactor

import (
	"sync"

	"github.com/e42s/kernel/transport"
)

// EventLoop owns the one blocking readiness wait the reactor ever performs
// per tick. It is the Go analogue of the original's EventLoop (mio::Poll +
// mio::Events), generalized so every caller — the request channel, the
// signal bus, the timer, and every transport Pipe/Acceptor — registers
// under a Token rather than receiving a bespoke callback closure.
//
// RegisterFD/ReregisterFD/DeregisterFD implement transport.Registrar, so a
// Transport can be handed an *EventLoop directly without reactor needing to
// expose any more surface than that interface already requires.
type EventLoop struct {
	p       poller
	mu      sync.Mutex
	tokenOf map[int]Token
	running bool
}

// Ready is one readiness notification translated back to its Token.
type Ready struct {
	Token  Token
	Events transport.IOEvents
}

// NewEventLoop constructs an EventLoop backed by the platform poller.
func NewEventLoop() (*EventLoop, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	return &EventLoop{p: p, tokenOf: make(map[int]Token)}, nil
}

// RegisterFD implements transport.Registrar.
func (l *EventLoop) RegisterFD(fd int, token uint64, interest transport.IOEvents) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.tokenOf[fd]; exists {
		return ErrFDAlreadyRegistered
	}
	if err := l.p.Add(fd, interest); err != nil {
		return err
	}
	l.tokenOf[fd] = Token(token)
	return nil
}

// ReregisterFD implements transport.Registrar.
func (l *EventLoop) ReregisterFD(fd int, token uint64, interest transport.IOEvents) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.tokenOf[fd]; !exists {
		return ErrFDNotRegistered
	}
	if err := l.p.Modify(fd, interest); err != nil {
		return err
	}
	l.tokenOf[fd] = Token(token)
	return nil
}

// DeregisterFD implements transport.Registrar.
func (l *EventLoop) DeregisterFD(fd int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.tokenOf[fd]; !exists {
		return ErrFDNotRegistered
	}
	delete(l.tokenOf, fd)
	return l.p.Remove(fd)
}

// registerReserved registers one of the reactor's own fixed-token sources
// (channel/bus/timer wakeup fds), bypassing the "already registered" guard
// used for transport fds since it's only ever called once at startup.
func (l *EventLoop) registerReserved(fd int, token Token) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.p.Add(fd, transport.Readable); err != nil {
		return err
	}
	l.tokenOf[fd] = token
	return nil
}

// wait blocks for up to timeoutMs milliseconds and returns every readiness
// notification observed, translated to Token.
func (l *EventLoop) wait(timeoutMs int, dst []Ready) ([]Ready, error) {
	raw, err := l.p.Wait(timeoutMs, nil)
	if err != nil {
		return dst, err
	}
	l.mu.Lock()
	for _, r := range raw {
		if tok, ok := l.tokenOf[r.FD]; ok {
			dst = append(dst, Ready{Token: tok, Events: r.Events})
		}
	}
	l.mu.Unlock()
	return dst, nil
}

func (l *EventLoop) Close() error {
	return l.p.Close()
}
