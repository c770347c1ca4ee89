package pair_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e42s/kernel/network"
	"github.com/e42s/kernel/protocol/pair"
	"github.com/e42s/kernel/transport"
)

// fakeContext is a hand-built network.Context that records every call a
// Socket makes against it, so protocol/pair's state machine can be driven
// and asserted on without a real Dispatcher or poller behind it.
type fakeContext struct {
	self network.SocketID

	nextEndpoint network.EndpointID
	openPipeErr  error
	openAccErr   error

	opened      []transport.EndpointSpec
	openedAccs  []transport.EndpointSpec
	closedPipes []network.EndpointID
	closedAccs  []network.EndpointID
	posted      []struct {
		id  network.EndpointID
		cmd transport.Command
	}
	replies []network.Reply
	closed  bool

	nextHandle network.Scheduled
	scheduled  []struct {
		task  network.Schedulable
		delay time.Duration
	}
	cancelled []network.Scheduled
}

var _ network.Context = (*fakeContext)(nil)

func newFakeContext(self network.SocketID) *fakeContext {
	return &fakeContext{self: self, nextEndpoint: 1, nextHandle: 1}
}

func (c *fakeContext) OpenPipe(spec transport.EndpointSpec) (network.EndpointID, error) {
	if c.openPipeErr != nil {
		return 0, c.openPipeErr
	}
	c.opened = append(c.opened, spec)
	id := c.nextEndpoint
	c.nextEndpoint++
	return id, nil
}

func (c *fakeContext) OpenAcceptor(spec transport.EndpointSpec) (network.EndpointID, error) {
	if c.openAccErr != nil {
		return 0, c.openAccErr
	}
	c.openedAccs = append(c.openedAccs, spec)
	id := c.nextEndpoint
	c.nextEndpoint++
	return id, nil
}

func (c *fakeContext) ClosePipe(id network.EndpointID)     { c.closedPipes = append(c.closedPipes, id) }
func (c *fakeContext) CloseAcceptor(id network.EndpointID) { c.closedAccs = append(c.closedAccs, id) }

func (c *fakeContext) Post(id network.EndpointID, cmd transport.Command) {
	c.posted = append(c.posted, struct {
		id  network.EndpointID
		cmd transport.Command
	}{id, cmd})
}

func (c *fakeContext) Reply(r network.Reply) { c.replies = append(c.replies, r) }
func (c *fakeContext) CloseSelf()             { c.closed = true }

func (c *fakeContext) Schedule(task network.Schedulable, delay time.Duration) (network.Scheduled, error) {
	h := c.nextHandle
	c.nextHandle++
	c.scheduled = append(c.scheduled, struct {
		task  network.Schedulable
		delay time.Duration
	}{task, delay})
	return h, nil
}

func (c *fakeContext) Cancel(s network.Scheduled) { c.cancelled = append(c.cancelled, s) }

func (c *fakeContext) Self() network.SocketID { return c.self }

func (c *fakeContext) lastReply() network.Reply {
	return c.replies[len(c.replies)-1]
}

func newSocket(opts ...pair.Option) network.Socket {
	return pair.New(opts...)(1)
}

func TestConnectOpensPipe(t *testing.T) {
	s := newSocket()
	ctx := newFakeContext(1)

	spec := transport.EndpointSpec{Scheme: "mock", URL: "x"}
	s.HandleRequest(ctx, network.Connect{Spec: spec})

	require.Len(t, ctx.opened, 1)
	assert.Equal(t, spec, ctx.opened[0])
}

func TestConnectFailureSchedulesReconnect(t *testing.T) {
	s := newSocket(pair.WithReconnectBase(50 * time.Millisecond))
	ctx := newFakeContext(1)
	ctx.openPipeErr = assert.AnError

	s.HandleRequest(ctx, network.Connect{Spec: transport.EndpointSpec{Scheme: "mock", URL: "x"}})

	require.Len(t, ctx.replies, 1)
	assert.Equal(t, network.ReplyError, ctx.lastReply().Kind)
	require.Len(t, ctx.scheduled, 1)
	assert.Equal(t, 50*time.Millisecond, ctx.scheduled[0].delay)
	_, ok := ctx.scheduled[0].task.(network.Reconnect)
	assert.True(t, ok)
}

func TestBindOpensAcceptor(t *testing.T) {
	s := newSocket()
	ctx := newFakeContext(1)

	spec := transport.EndpointSpec{Scheme: "mock", URL: "b"}
	s.HandleRequest(ctx, network.Bind{Spec: spec})

	require.Len(t, ctx.openedAccs, 1)
	assert.Equal(t, spec, ctx.openedAccs[0])
}

func TestSendQueuesUntilPipeWritable(t *testing.T) {
	s := newSocket()
	ctx := newFakeContext(1)

	s.HandleRequest(ctx, network.SendMsg{Msg: []byte("queued before pipe")})
	assert.Empty(t, ctx.posted, "nothing to send to until a pipe exists")

	s.HandleRequest(ctx, network.Connect{Spec: transport.EndpointSpec{Scheme: "mock", URL: "x"}})
	s.OnPipeOpened(ctx, 1)

	require.Len(t, ctx.posted, 1)
	assert.Equal(t, network.EndpointID(1), ctx.posted[0].id)
}

func TestSendAckUnblocksNextQueuedMessage(t *testing.T) {
	s := newSocket()
	ctx := newFakeContext(1)
	s.HandleRequest(ctx, network.Connect{Spec: transport.EndpointSpec{Scheme: "mock", URL: "x"}})
	s.OnPipeOpened(ctx, 1)

	s.HandleRequest(ctx, network.SendMsg{Msg: []byte("one")})
	s.HandleRequest(ctx, network.SendMsg{Msg: []byte("two")})
	require.Len(t, ctx.posted, 1, "a second send must wait for the first's ack")

	s.OnSendAck(ctx, 1)
	require.Len(t, ctx.posted, 2)
	assert.Equal(t, network.ReplySendAck, ctx.lastReply().Kind)
}

func TestRecvDeliversQueuedMessageImmediately(t *testing.T) {
	s := newSocket()
	ctx := newFakeContext(1)
	s.HandleRequest(ctx, network.Connect{Spec: transport.EndpointSpec{Scheme: "mock", URL: "x"}})
	s.OnPipeOpened(ctx, 1)

	s.OnRecvAck(ctx, 1, []byte("arrived early"))
	s.HandleRequest(ctx, network.RecvMsg{})

	require.Len(t, ctx.replies, 1)
	r := ctx.lastReply()
	assert.Equal(t, network.ReplyRecvAck, r.Kind)
	assert.Equal(t, []byte("arrived early"), r.Msg)
}

func TestSecondInboundPipeIsRefused(t *testing.T) {
	s := newSocket()
	ctx := newFakeContext(1)
	s.HandleRequest(ctx, network.Bind{Spec: transport.EndpointSpec{Scheme: "mock", URL: "b"}})
	s.OnPipeAccepted(ctx, 1, 2)
	s.OnPipeAccepted(ctx, 1, 3)

	assert.Equal(t, []network.EndpointID{3}, ctx.closedPipes, "a PAIR socket serves exactly one peer")
}

func TestPipeClosedSchedulesReconnectWhenDialSpecKnown(t *testing.T) {
	s := newSocket(pair.WithReconnectBase(10 * time.Millisecond))
	ctx := newFakeContext(1)
	s.HandleRequest(ctx, network.Connect{Spec: transport.EndpointSpec{Scheme: "mock", URL: "x"}})
	s.OnPipeOpened(ctx, 1)

	s.OnPipeClosed(ctx, 1)

	require.Len(t, ctx.scheduled, 1)
	_, ok := ctx.scheduled[0].task.(network.Reconnect)
	assert.True(t, ok)
	assert.Equal(t, network.ReplyClosed, ctx.lastReply().Kind)
}

func TestFreshConnectCancelsStaleReconnectTimer(t *testing.T) {
	s := newSocket(pair.WithReconnectBase(10 * time.Millisecond))
	ctx := newFakeContext(1)
	ctx.openPipeErr = assert.AnError
	s.HandleRequest(ctx, network.Connect{Spec: transport.EndpointSpec{Scheme: "mock", URL: "x"}})
	require.Len(t, ctx.scheduled, 1)

	ctx.openPipeErr = nil
	s.HandleRequest(ctx, network.Connect{Spec: transport.EndpointSpec{Scheme: "mock", URL: "x"}})

	require.Len(t, ctx.cancelled, 1, "the stale reconnect handle must be cancelled on the fresh Connect")
	assert.Equal(t, network.Scheduled(1), ctx.cancelled[0])
}

func TestCloseSocketWithNoEndpointsClosesSelfImmediately(t *testing.T) {
	s := newSocket()
	ctx := newFakeContext(1)

	s.HandleRequest(ctx, network.CloseSocket{})

	assert.True(t, ctx.closed)
}

func TestCloseSocketWaitsForPipeAndAcceptorToDrain(t *testing.T) {
	s := newSocket()
	ctx := newFakeContext(1)
	s.HandleRequest(ctx, network.Connect{Spec: transport.EndpointSpec{Scheme: "mock", URL: "x"}})
	s.HandleRequest(ctx, network.Bind{Spec: transport.EndpointSpec{Scheme: "mock", URL: "b"}})

	s.HandleRequest(ctx, network.CloseSocket{})
	assert.False(t, ctx.closed, "must wait for OnPipeClosed/OnAcceptorClosed")
	require.Len(t, ctx.closedPipes, 1)
	require.Len(t, ctx.closedAccs, 1)

	s.OnPipeClosed(ctx, 1)
	assert.False(t, ctx.closed, "acceptor still outstanding")

	s.OnAcceptorClosed(ctx, 2)
	assert.True(t, ctx.closed)
}

func TestOnReconnectRedials(t *testing.T) {
	s := newSocket(pair.WithReconnectBase(10 * time.Millisecond))
	ctx := newFakeContext(1)
	spec := transport.EndpointSpec{Scheme: "mock", URL: "x"}

	s.OnReconnect(ctx, 0, spec)

	require.Len(t, ctx.opened, 1)
	assert.Equal(t, spec, ctx.opened[0])
}

func TestBindFailureSchedulesRebind(t *testing.T) {
	s := newSocket(pair.WithReconnectBase(50 * time.Millisecond))
	ctx := newFakeContext(1)
	ctx.openAccErr = assert.AnError

	s.HandleRequest(ctx, network.Bind{Spec: transport.EndpointSpec{Scheme: "mock", URL: "b"}})

	require.Len(t, ctx.replies, 1)
	assert.Equal(t, network.ReplyError, ctx.lastReply().Kind)
	require.Len(t, ctx.scheduled, 1)
	assert.Equal(t, 50*time.Millisecond, ctx.scheduled[0].delay)
	_, ok := ctx.scheduled[0].task.(network.Rebind)
	assert.True(t, ok)
}

func TestOnRebindRelistens(t *testing.T) {
	s := newSocket(pair.WithReconnectBase(10 * time.Millisecond))
	ctx := newFakeContext(1)
	spec := transport.EndpointSpec{Scheme: "mock", URL: "b"}

	s.OnRebind(ctx, 0, spec)

	require.Len(t, ctx.openedAccs, 1)
	assert.Equal(t, spec, ctx.openedAccs[0])
}

func TestAcceptorClosedSchedulesRebindWhenBindSpecKnown(t *testing.T) {
	s := newSocket(pair.WithReconnectBase(10 * time.Millisecond))
	ctx := newFakeContext(1)
	s.HandleRequest(ctx, network.Bind{Spec: transport.EndpointSpec{Scheme: "mock", URL: "b"}})

	s.OnAcceptorClosed(ctx, 1)

	require.Len(t, ctx.scheduled, 1)
	_, ok := ctx.scheduled[0].task.(network.Rebind)
	assert.True(t, ok)
}

func TestClosePipeCallbackDelegatesToContext(t *testing.T) {
	s := newSocket()
	ctx := newFakeContext(1)

	s.ClosePipe(ctx, 5)

	assert.Equal(t, []network.EndpointID{5}, ctx.closedPipes)
}

func TestCloseAcceptorCallbackDelegatesToContext(t *testing.T) {
	s := newSocket()
	ctx := newFakeContext(1)

	s.CloseAcceptor(ctx, 7)

	assert.Equal(t, []network.EndpointID{7}, ctx.closedAccs)
}
