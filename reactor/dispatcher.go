package reactor

import (
	"context"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/e42s/kernel/network"
	"github.com/e42s/kernel/transport"
)

// Dispatcher is the reactor core: one goroutine, one blocking readiness
// wait per tick, multiplexing the request channel, the signal bus, the
// timing wheel and every registered transport's I/O across a single
// EventLoop. Everything it touches — Session, EndpointCollection, the
// wheel — is owned exclusively by the goroutine that calls Run; every other
// goroutine talks to it only through Submit (the request channel) and the
// ReplySink it was constructed with.
type Dispatcher struct {
	loop      *EventLoop
	channel   *requestChannel
	bus       *signalBus
	timer     *timerSource
	wheel     *schedule
	session   *network.Session
	endpoints *endpointCollection
	reconnect *catrate.Limiter
	logger    *Logger

	stopping bool

	readyBuf []Ready
	reqBuf   []Request
	sigBuf   []Signal
}

// New constructs a Dispatcher. transports are resolved by EndpointSpec.Scheme
// and must all be registered up front — transports discovered after Run has
// started are out of scope. replies receives every Reply the session's
// sockets produce; with a nil replies every Reply is discarded.
func New(transports []transport.Transport, replies network.ReplySink, opts ...Option) (*Dispatcher, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	loop, err := NewEventLoop()
	if err != nil {
		return nil, err
	}
	ch, err := newRequestChannel()
	if err != nil {
		_ = loop.Close()
		return nil, err
	}
	bus, err := newSignalBus()
	if err != nil {
		_ = loop.Close()
		_ = ch.Close()
		return nil, err
	}
	tm, err := newTimerSource(cfg.tickDuration)
	if err != nil {
		_ = loop.Close()
		_ = ch.Close()
		_ = bus.Close()
		return nil, err
	}

	seq := network.NewSequence()

	return &Dispatcher{
		loop:      loop,
		channel:   ch,
		bus:       bus,
		timer:     tm,
		wheel:     newSchedule(cfg.tickDuration, cfg.wheelSlots, cfg.wheelCapacity),
		session:   network.NewSession(seq, replies),
		endpoints: newEndpointCollection(seq, transports),
		reconnect: cfg.reconnect,
		logger:    cfg.logger,
	}, nil
}

// Submit posts req to the request channel from any goroutine. Never blocks.
func (d *Dispatcher) Submit(req Request) { d.channel.Submit(req) }

// Run registers the three reserved tokens — channel, then bus, then timer,
// preserving the original's registration order — and blocks, processing
// readiness until ctx is cancelled or a Shutdown request is handled. The
// timer's periodic wakeup bounds how long a cancelled ctx takes to be
// noticed to one tick.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.loop.registerReserved(d.channel.fd(), TokenChannel); err != nil {
		return err
	}
	if err := d.loop.registerReserved(d.bus.fd(), TokenBus); err != nil {
		return err
	}
	if err := d.loop.registerReserved(d.timer.fd(), TokenTimer); err != nil {
		return err
	}

	for {
		if d.stopping || ctx.Err() != nil {
			return nil
		}

		ready, err := d.loop.wait(-1, d.readyBuf[:0])
		if err != nil {
			return err
		}
		d.readyBuf = ready

		for _, r := range d.readyBuf {
			d.processReady(r)
		}
		d.drainBusUntilEmpty()
	}
}

// Close releases the dispatcher's OS resources. Call after Run returns.
func (d *Dispatcher) Close() error {
	_ = d.timer.Close()
	_ = d.bus.Close()
	_ = d.channel.Close()
	return d.loop.Close()
}

func (d *Dispatcher) processReady(r Ready) {
	switch r.Token {
	case TokenChannel:
		reqs := d.channel.drain(d.reqBuf[:0])
		d.reqBuf = reqs
		for _, req := range reqs {
			d.handleRequest(req)
		}
	case TokenTimer:
		ticks := d.timer.Drain()
		if ticks == 0 {
			return
		}
		for _, t := range d.wheel.advance(ticks) {
			d.fireTask(t)
		}
	case TokenBus:
		// handled uniformly by drainBusUntilEmpty after the ready batch.
	default:
		d.processIO(network.EndpointID(r.Token), r.Events)
	}
}

// drainBusUntilEmpty exhausts the signal bus, including signals posted as a
// continuation of processing earlier ones, before the dispatcher returns to
// its blocking wait — the "drain completeness" contract every edge-triggered
// source in this design follows.
func (d *Dispatcher) drainBusUntilEmpty() {
	for {
		sigs := d.bus.drain(d.sigBuf[:0])
		d.sigBuf = sigs
		if len(sigs) == 0 {
			return
		}
		for _, s := range sigs {
			d.processSignal(s)
		}
	}
}

func (d *Dispatcher) processSignal(s Signal) {
	switch v := s.(type) {
	case PipeEvt:
		d.processPipeEvt(v)
	case AcceptorEvt:
		d.processAcceptorEvt(v)
	case SocketEvt:
		d.processSocketEvt(v)
	}
}

func (d *Dispatcher) processPipeEvt(v PipeEvt) {
	d.applyOnSocket(v.Socket, func(ctx network.Context, sock network.Socket) {
		switch v.Event.Kind {
		case transport.EventOpened:
			sock.OnPipeOpened(ctx, v.Endpoint)
		case transport.EventCanSend:
			sock.OnSendReady(ctx, v.Endpoint)
		case transport.EventSent:
			sock.OnSendAck(ctx, v.Endpoint)
		case transport.EventCanRecv:
			sock.OnRecvReady(ctx, v.Endpoint)
			d.bus.post(SocketEvt{Socket: v.Socket, Kind: SocketCanRecv})
		case transport.EventReceived:
			sock.OnRecvAck(ctx, v.Endpoint, v.Event.Message)
		case transport.EventAccepted:
			// Unreachable by design: Accepted belongs to an acceptor
			// channel, never a pipe. Asserted via debug log, not a
			// panic, per the original's silent `Event::Accepted(_) => {}`.
			d.logger.Debug().Uint64("endpoint", uint64(v.Endpoint)).Log("accepted event received on a pipe channel")
		case transport.EventError:
			sock.OnPipeError(ctx, v.Endpoint, v.Event.Err)
		case transport.EventClosed:
			// A Closed event can arrive two ways: the dispatcher's own
			// closeEndpoint already closed the resource before posting this
			// (an explicit ClosePipe), or a transport detected the peer
			// went away on its own (e.g. mock's peer-close propagation) and
			// never closed anything itself. Close is idempotent on every
			// Pipe this module ships, so closing unconditionally here
			// covers both without needing to know which one happened.
			if p, _, ok := d.endpoints.getPipe(v.Endpoint); ok {
				_ = p.Close()
			}
			d.endpoints.remove(v.Endpoint)
			sock.OnPipeClosed(ctx, v.Endpoint)
		}
	})
}

func (d *Dispatcher) processAcceptorEvt(v AcceptorEvt) {
	d.applyOnSocket(v.Socket, func(ctx network.Context, sock network.Socket) {
		switch v.Event.Kind {
		case transport.EventAccepted:
			for _, p := range v.Event.Accepted {
				newID := d.endpoints.insertPipe(v.Socket, p)
				if err := p.Register(d.loop, uint64(newID)); err != nil {
					d.logger.Warning().Uint64("endpoint", uint64(newID)).Err(err).Log("failed to register accepted pipe")
					d.endpoints.remove(newID)
					_ = p.Close()
					continue
				}
				sock.OnPipeAccepted(ctx, v.Endpoint, newID)
			}
		case transport.EventError:
			// The acceptor is not removed on error — only a Closed event
			// or an explicit close request removes it, matching the
			// "errors surface to the socket, the dispatcher never
			// unilaterally tears down an endpoint" rule applied to pipes.
			sock.OnAcceptorError(ctx, v.Endpoint, v.Event.Err)
		case transport.EventClosed:
			if a, _, ok := d.endpoints.getAcceptor(v.Endpoint); ok {
				_ = a.Close()
			}
			d.endpoints.remove(v.Endpoint)
			sock.OnAcceptorClosed(ctx, v.Endpoint)
		default:
			d.logger.Debug().Uint64("endpoint", uint64(v.Endpoint)).Str("kind", v.Event.Kind.String()).Log("unexpected event on an acceptor channel")
		}
	})
}

func (d *Dispatcher) processSocketEvt(v SocketEvt) {
	switch v.Kind {
	case SocketCanRecv:
		if dev, ok := d.session.FindDeviceBySocket(v.Socket); ok {
			dev.OnSocketCanRecv(v.Socket)
		}
	}
}

func (d *Dispatcher) fireTask(t *task) {
	d.applyOnSocket(t.socket, func(ctx network.Context, sock network.Socket) {
		switch w := t.work.(type) {
		case network.SendTimeout:
			sock.OnSendTimeout(ctx, t.handle)
		case network.RecvTimeout:
			sock.OnRecvTimeout(ctx, t.handle)
		case network.Reconnect:
			sock.OnReconnect(ctx, w.Endpoint, w.Spec)
		case network.Rebind:
			sock.OnRebind(ctx, w.Endpoint, w.Spec)
		default:
			sock.OnTimerTick(ctx, t.handle, w)
		}
	})
}

func (d *Dispatcher) handleRequest(req Request) {
	switch v := req.(type) {
	case CreateSocket:
		id := d.session.AddSocket(v.Ctor)
		trySend(v.Result, id)
	case CreateDevice:
		d.handleCreateDevice(v)
	case SocketRequest:
		d.applyOnSocket(v.Socket, func(ctx network.Context, sock network.Socket) {
			sock.HandleRequest(ctx, v.Req)
		})
	case EndpointClose:
		d.applyOnSocket(v.Socket, func(ctx network.Context, sock network.Socket) {
			if v.IsAcceptor {
				sock.CloseAcceptor(ctx, v.Endpoint)
			} else {
				sock.ClosePipe(ctx, v.Endpoint)
			}
		})
	case DeviceCheck:
		if dev, ok := d.session.GetDevice(v.Device); ok {
			dev.Check()
		}
	case Shutdown:
		d.stopping = true
	}
}

func (d *Dispatcher) handleCreateDevice(v CreateDevice) {
	id, err := d.session.ReserveDeviceID(v.Left, v.Right)
	if err != nil {
		d.logger.Warning().Err(err).Log("create device failed")
		trySend(v.Result, network.DeviceID(0))
		return
	}
	// Both legs are told about the pairing before it becomes visible to
	// FindDeviceBySocket, matching the original's CreateDevice ordering.
	d.applyOnSocket(v.Left, func(ctx network.Context, sock network.Socket) {
		sock.OnDevicePlugged(ctx, id, v.Right)
	})
	d.applyOnSocket(v.Right, func(ctx network.Context, sock network.Socket) {
		sock.OnDevicePlugged(ctx, id, v.Left)
	})
	d.session.RegisterDevice(id, v.Left, v.Right)
	trySend(v.Result, id)
}

// processIO routes a poller readiness notification for a non-reserved
// token, i.e. an network.EndpointID, to its owning Pipe or Acceptor.
func (d *Dispatcher) processIO(id network.EndpointID, readiness transport.IOEvents) {
	socket, isAcceptor, ok := d.endpoints.lookup(id)
	if !ok {
		d.logger.Debug().Uint64("endpoint", uint64(id)).Log("io readiness for removed endpoint, dropping")
		return
	}
	poster := &signalPoster{d: d, socket: socket, endpoint: id, isAcceptor: isAcceptor}
	if isAcceptor {
		a, _, _ := d.endpoints.getAcceptor(id)
		a.Ready(d.loop, poster, readiness)
		return
	}
	p, _, _ := d.endpoints.getPipe(id)
	p.Ready(d.loop, poster, readiness)
}

// applyOnSocket constructs a fresh Context scoped to id and invokes fn,
// then marks the Context spent. Events for a socket that no longer exists
// (already removed) are dropped with a debug log rather than causing a
// panic or a spurious recreation.
func (d *Dispatcher) applyOnSocket(id network.SocketID, fn func(network.Context, network.Socket)) {
	sock, ok := d.session.GetSocket(id)
	if !ok {
		d.logger.Debug().Uint64("socket", uint64(id)).Log("late event for removed socket, dropping")
		return
	}
	ctx := &socketContext{d: d, self: id}
	fn(ctx, sock)
	ctx.spent = true
}

func (d *Dispatcher) openPipe(socket network.SocketID, spec transport.EndpointSpec) (network.EndpointID, error) {
	tr, ok := d.endpoints.resolve(spec.Scheme)
	if !ok {
		return 0, ErrUnknownScheme
	}
	p, err := tr.Dial(d.loop, spec)
	if err != nil {
		return 0, err
	}
	id := d.endpoints.insertPipe(socket, p)
	if err := p.Register(d.loop, uint64(id)); err != nil {
		d.endpoints.remove(id)
		_ = p.Close()
		return 0, err
	}
	return id, nil
}

func (d *Dispatcher) openAcceptor(socket network.SocketID, spec transport.EndpointSpec) (network.EndpointID, error) {
	tr, ok := d.endpoints.resolve(spec.Scheme)
	if !ok {
		return 0, ErrUnknownScheme
	}
	a, err := tr.Listen(d.loop, spec)
	if err != nil {
		return 0, err
	}
	id := d.endpoints.insertAcceptor(socket, a)
	if err := a.Register(d.loop, uint64(id)); err != nil {
		d.endpoints.remove(id)
		_ = a.Close()
		return 0, err
	}
	return id, nil
}

// closeEndpoint closes the underlying transport resource and posts a
// Closed signal rather than calling the owning socket back synchronously.
// It is reached only via socketContext.ClosePipe/CloseAcceptor, called
// either from a socket's own callback or from its dedicated
// ClosePipe/CloseAcceptor callback handling an EndpointClose request — in
// both cases it must never reenter the socket on the same stack, see
// socketContext and the design notes on the signal bus.
func (d *Dispatcher) closeEndpoint(id network.EndpointID, isAcceptor bool) {
	if isAcceptor {
		a, sid, ok := d.endpoints.getAcceptor(id)
		if !ok {
			return
		}
		_ = a.Close()
		d.bus.post(AcceptorEvt{Socket: sid, Endpoint: id, Event: transport.Event{Kind: transport.EventClosed}})
		return
	}
	p, sid, ok := d.endpoints.getPipe(id)
	if !ok {
		return
	}
	_ = p.Close()
	d.bus.post(PipeEvt{Socket: sid, Endpoint: id, Event: transport.Event{Kind: transport.EventClosed}})
}

func (d *Dispatcher) postCommand(id network.EndpointID, cmd transport.Command) {
	if p, sid, ok := d.endpoints.getPipe(id); ok {
		poster := &signalPoster{d: d, socket: sid, endpoint: id}
		p.Process(d.loop, poster, cmd)
		return
	}
	if a, sid, ok := d.endpoints.getAcceptor(id); ok {
		poster := &signalPoster{d: d, socket: sid, endpoint: id, isAcceptor: true}
		a.Process(d.loop, poster, cmd)
		return
	}
	d.logger.Debug().Uint64("endpoint", uint64(id)).Log("command for unknown endpoint, dropping")
}

// removeSocket drops id from the Session once it has asked to be removed via
// Context.CloseSelf. Any endpoint still on file for id is closed here as a
// safety net, though under normal operation a socket has already closed its
// own pipes/acceptors before calling CloseSelf. Any timer task still
// outstanding for id is left as a tombstone-free entry in the wheel — it
// fires normally but applyOnSocket drops it as a late event for a removed
// socket, the same path used for endpoint readiness after removal.
func (d *Dispatcher) removeSocket(id network.SocketID) {
	for _, epID := range d.endpoints.removeAllForSocket(id) {
		d.logger.Debug().Uint64("endpoint", uint64(epID)).Log("closed leftover endpoint on socket removal")
	}
	d.session.RemoveSocket(id)
}

// scheduleFor arms a Schedulable in the timing wheel. Reconnect/Rebind tasks
// pass through throttledDelay first, so a socket asking for the same fixed
// base delay every retry still degrades automatically once its endpoint's
// scheme is being throttled — the socket never needs to know a limiter is
// configured at all, let alone reach into it itself.
func (d *Dispatcher) scheduleFor(socket network.SocketID, w network.Schedulable, delay time.Duration) (network.Scheduled, error) {
	switch v := w.(type) {
	case network.Reconnect:
		delay = d.throttledDelay(v.Spec, delay)
	case network.Rebind:
		delay = d.throttledDelay(v.Spec, delay)
	}
	return d.wheel.add(socket, w, delay)
}

func (d *Dispatcher) cancelScheduled(s network.Scheduled) {
	d.wheel.cancel(s)
}

// signalPoster adapts a specific (socket, endpoint) pair to
// transport.SignalPoster, so a Pipe/Acceptor implementation never needs to
// know its own identifiers.
type signalPoster struct {
	d          *Dispatcher
	socket     network.SocketID
	endpoint   network.EndpointID
	isAcceptor bool
}

func (p *signalPoster) PostEvent(evt transport.Event) {
	if p.isAcceptor {
		p.d.bus.post(AcceptorEvt{Socket: p.socket, Endpoint: p.endpoint, Event: evt})
		return
	}
	p.d.bus.post(PipeEvt{Socket: p.socket, Endpoint: p.endpoint, Event: evt})
}

func trySend[T any](ch chan<- T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}
