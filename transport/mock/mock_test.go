package mock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e42s/kernel/transport"
	"github.com/e42s/kernel/transport/mock"
)

// fakeRegistrar is a no-op transport.Registrar: these tests drive Ready and
// Process directly rather than through a real poller.
type fakeRegistrar struct{}

func (fakeRegistrar) RegisterFD(fd int, token uint64, interest transport.IOEvents) error   { return nil }
func (fakeRegistrar) ReregisterFD(fd int, token uint64, interest transport.IOEvents) error { return nil }
func (fakeRegistrar) DeregisterFD(fd int) error                                            { return nil }

// fakePoster collects every Event posted against it, for assertion.
type fakePoster struct {
	events []transport.Event
}

func (p *fakePoster) PostEvent(evt transport.Event) { p.events = append(p.events, evt) }

func (p *fakePoster) kinds() []transport.EventKind {
	out := make([]transport.EventKind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

func TestMockDialWithoutListenerFails(t *testing.T) {
	tr := mock.New("mock")
	_, err := tr.Dial(fakeRegistrar{}, transport.EndpointSpec{Scheme: "mock", URL: "nowhere"})
	assert.Error(t, err)
}

func TestMockListenTwiceSameURLFails(t *testing.T) {
	tr := mock.New("mock")
	_, err := tr.Listen(fakeRegistrar{}, transport.EndpointSpec{Scheme: "mock", URL: "dup"})
	require.NoError(t, err)
	_, err = tr.Listen(fakeRegistrar{}, transport.EndpointSpec{Scheme: "mock", URL: "dup"})
	assert.Error(t, err)
}

func TestMockAcceptorProducesPipeOnDial(t *testing.T) {
	tr := mock.New("mock")
	acc, err := tr.Listen(fakeRegistrar{}, transport.EndpointSpec{Scheme: "mock", URL: "a"})
	require.NoError(t, err)
	require.NoError(t, acc.Register(fakeRegistrar{}, 1))

	client, err := tr.Dial(fakeRegistrar{}, transport.EndpointSpec{Scheme: "mock", URL: "a"})
	require.NoError(t, err)
	require.NoError(t, client.Register(fakeRegistrar{}, 2))

	post := &fakePoster{}
	acc.Ready(fakeRegistrar{}, post, transport.Readable)
	require.Len(t, post.events, 1)
	assert.Equal(t, transport.EventAccepted, post.events[0].Kind)
	require.Len(t, post.events[0].Accepted, 1)

	// A second Ready with nothing pending must post nothing.
	post2 := &fakePoster{}
	acc.Ready(fakeRegistrar{}, post2, transport.Readable)
	assert.Empty(t, post2.events)
}

func TestMockSendRecvRoundTrip(t *testing.T) {
	tr := mock.New("mock")
	acc, err := tr.Listen(fakeRegistrar{}, transport.EndpointSpec{Scheme: "mock", URL: "b"})
	require.NoError(t, err)
	require.NoError(t, acc.Register(fakeRegistrar{}, 1))

	client, err := tr.Dial(fakeRegistrar{}, transport.EndpointSpec{Scheme: "mock", URL: "b"})
	require.NoError(t, err)
	require.NoError(t, client.Register(fakeRegistrar{}, 2))

	accPost := &fakePoster{}
	acc.Ready(fakeRegistrar{}, accPost, transport.Readable)
	server := accPost.events[0].Accepted[0]
	require.NoError(t, server.Register(fakeRegistrar{}, 3))

	sendPost := &fakePoster{}
	client.Process(fakeRegistrar{}, sendPost, mock.SendCommand{Msg: []byte("ping")})
	require.Equal(t, []transport.EventKind{transport.EventSent}, sendPost.kinds())

	serverReady := &fakePoster{}
	server.Ready(fakeRegistrar{}, serverReady, transport.Readable)
	require.Equal(t, []transport.EventKind{transport.EventCanRecv}, serverReady.kinds())

	recvPost := &fakePoster{}
	server.Process(fakeRegistrar{}, recvPost, mock.RecvCommand{})
	require.Len(t, recvPost.events, 1)
	assert.Equal(t, transport.EventReceived, recvPost.events[0].Kind)
	assert.Equal(t, []byte("ping"), recvPost.events[0].Message)

	// Nothing left to receive: a second RecvCommand posts nothing.
	drainedPost := &fakePoster{}
	server.Process(fakeRegistrar{}, drainedPost, mock.RecvCommand{})
	assert.Empty(t, drainedPost.events)
}

func TestMockCloseNotifiesPeer(t *testing.T) {
	tr := mock.New("mock")
	acc, err := tr.Listen(fakeRegistrar{}, transport.EndpointSpec{Scheme: "mock", URL: "c"})
	require.NoError(t, err)
	require.NoError(t, acc.Register(fakeRegistrar{}, 1))

	client, err := tr.Dial(fakeRegistrar{}, transport.EndpointSpec{Scheme: "mock", URL: "c"})
	require.NoError(t, err)
	require.NoError(t, client.Register(fakeRegistrar{}, 2))

	accPost := &fakePoster{}
	acc.Ready(fakeRegistrar{}, accPost, transport.Readable)
	server := accPost.events[0].Accepted[0]
	require.NoError(t, server.Register(fakeRegistrar{}, 3))

	require.NoError(t, server.Close())

	clientReady := &fakePoster{}
	client.Ready(fakeRegistrar{}, clientReady, transport.Readable)
	assert.Equal(t, []transport.EventKind{transport.EventClosed}, clientReady.kinds())

	// Idempotent: closing the already-closed side again must not panic.
	require.NoError(t, server.Close())
}
