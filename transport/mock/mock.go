// Package mock is an in-process, loopback Transport: Dial and Listen pair
// directly with each other inside the same address space rather than over a
// real socket, while still going through a genuine readiness fd (a
// non-blocking pipe(2)) so it exercises the poller the same way a real
// transport would. It exists for tests and examples —
// github.com/e42s/kernel/transport/tcp is the transport meant for actual use.
package mock

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/e42s/kernel/transport"
)

// Transport resolves EndpointSpec.URL to a registered listener within this
// process. Two sockets sharing one *Transport (the common case: one
// Dispatcher registers it once under one scheme) can Dial one another.
type Transport struct {
	scheme string

	mu        sync.Mutex
	listeners map[string]*Acceptor
}

// New constructs a Transport registered under scheme (commonly "mock").
func New(scheme string) *Transport {
	return &Transport{scheme: scheme, listeners: make(map[string]*Acceptor)}
}

func (t *Transport) Scheme() string { return t.scheme }

// Listen opens the listener's signal fd but does not register it — the
// caller must call Register once it has assigned the resulting Acceptor its
// EndpointID.
func (t *Transport) Listen(reg transport.Registrar, spec transport.EndpointSpec) (transport.Acceptor, error) {
	sig, err := newSignalFD()
	if err != nil {
		return nil, err
	}
	a := &Acceptor{t: t, url: spec.URL, sig: sig}

	t.mu.Lock()
	if _, exists := t.listeners[spec.URL]; exists {
		t.mu.Unlock()
		_ = sig.close()
		return nil, fmt.Errorf("mock: address %q already bound", spec.URL)
	}
	t.listeners[spec.URL] = a
	t.mu.Unlock()
	return a, nil
}

// Dial opens a connected pair of loopback pipes: the returned client end and
// a server end enqueued on the matching Acceptor's pending list. Neither end
// is registered with reg yet.
func (t *Transport) Dial(reg transport.Registrar, spec transport.EndpointSpec) (transport.Pipe, error) {
	t.mu.Lock()
	a, ok := t.listeners[spec.URL]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("mock: no listener at %q", spec.URL)
	}

	clientSig, err := newSignalFD()
	if err != nil {
		return nil, err
	}
	serverSig, err := newSignalFD()
	if err != nil {
		_ = clientSig.close()
		return nil, err
	}

	client := &Pipe{sig: clientSig, opening: true}
	server := &Pipe{sig: serverSig}
	client.peer = server
	server.peer = client

	a.enqueue(server)
	// Leave the client's fd readable so its first Ready reports Opened.
	clientSig.signal()
	return client, nil
}

// Acceptor holds inbound pipes until the dispatcher's Ready call drains them.
type Acceptor struct {
	t   *Transport
	url string
	sig *signalFD

	mu      sync.Mutex
	pending []*Pipe
}

func (a *Acceptor) enqueue(p *Pipe) {
	a.mu.Lock()
	a.pending = append(a.pending, p)
	a.mu.Unlock()
	a.sig.signal()
}

func (a *Acceptor) Register(reg transport.Registrar, token uint64) error {
	return reg.RegisterFD(a.sig.readFD(), token, transport.Readable)
}

func (a *Acceptor) Ready(reg transport.Registrar, post transport.SignalPoster, readiness transport.IOEvents) {
	a.sig.drain()
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	accepted := make([]transport.Pipe, len(batch))
	for i, p := range batch {
		accepted[i] = p
	}
	post.PostEvent(transport.Event{Kind: transport.EventAccepted, Accepted: accepted})
}

func (a *Acceptor) Process(reg transport.Registrar, post transport.SignalPoster, cmd transport.Command) {}

func (a *Acceptor) Close() error {
	a.t.mu.Lock()
	delete(a.t.listeners, a.url)
	a.t.mu.Unlock()
	return a.sig.close()
}

// SendCommand asks a Pipe to deliver msg to its peer's inbox.
type SendCommand struct{ Msg []byte }

// RecvCommand asks a Pipe to pop its next buffered inbound message.
type RecvCommand struct{}

// Pipe is one loopback endpoint; every write to it lands directly in its
// peer's inbox, and every read comes from its own.
type Pipe struct {
	sig  *signalFD
	peer *Pipe

	mu         sync.Mutex
	inbox      [][]byte
	closed     bool
	peerClosed bool
	// opening is set on a dialed end until its first Ready reports Opened.
	opening bool
}

func (p *Pipe) push(msg []byte) {
	p.mu.Lock()
	if !p.closed {
		p.inbox = append(p.inbox, msg)
	}
	p.mu.Unlock()
	p.sig.signal()
}

func (p *Pipe) pop() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.inbox) == 0 {
		return nil, false
	}
	msg := p.inbox[0]
	p.inbox = p.inbox[1:]
	return msg, true
}

func (p *Pipe) Register(reg transport.Registrar, token uint64) error {
	return reg.RegisterFD(p.sig.readFD(), token, transport.Readable)
}

func (p *Pipe) Ready(reg transport.Registrar, post transport.SignalPoster, readiness transport.IOEvents) {
	p.sig.drain()
	p.mu.Lock()
	has := len(p.inbox) > 0
	closed := p.peerClosed
	opening := p.opening
	p.opening = false
	p.mu.Unlock()
	if opening && !closed {
		post.PostEvent(transport.Event{Kind: transport.EventOpened})
		post.PostEvent(transport.Event{Kind: transport.EventCanSend})
	}
	if has {
		post.PostEvent(transport.Event{Kind: transport.EventCanRecv})
	}
	if closed {
		post.PostEvent(transport.Event{Kind: transport.EventClosed})
	}
}

func (p *Pipe) Process(reg transport.Registrar, post transport.SignalPoster, cmd transport.Command) {
	switch c := cmd.(type) {
	case SendCommand:
		if p.peer != nil {
			p.peer.push(c.Msg)
		}
		post.PostEvent(transport.Event{Kind: transport.EventSent})
	case RecvCommand:
		if msg, ok := p.pop(); ok {
			post.PostEvent(transport.Event{Kind: transport.EventReceived, Message: msg})
		}
	}
}

// Close marks this end closed and wakes the peer so it can observe the
// closure on its own next Ready call — mock has no kernel-level EOF to rely
// on, so the peer notification has to be pushed explicitly.
func (p *Pipe) Close() error {
	p.mu.Lock()
	alreadyClosed := p.closed
	p.closed = true
	p.mu.Unlock()
	if !alreadyClosed && p.peer != nil {
		p.peer.mu.Lock()
		alreadySignaled := p.peer.peerClosed
		p.peer.peerClosed = true
		p.peer.mu.Unlock()
		if !alreadySignaled {
			p.peer.sig.signal()
		}
	}
	return p.sig.close()
}

// signalFD is a pollable wakeup built on a non-blocking pipe(2), the same
// shape as the reactor's own eventfd wakeup: edge-triggered readers must
// drain it to emptiness (EAGAIN) on every wakeup.
type signalFD struct {
	r, w int
}

func newSignalFD() (*signalFD, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &signalFD{r: fds[0], w: fds[1]}, nil
}

func (s *signalFD) readFD() int { return s.r }

func (s *signalFD) signal() {
	_, _ = unix.Write(s.w, []byte{1})
}

func (s *signalFD) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(s.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (s *signalFD) close() error {
	err1 := unix.Close(s.r)
	err2 := unix.Close(s.w)
	if err1 != nil {
		return err1
	}
	return err2
}
