package network

import "github.com/e42s/kernel/queue"

// ChannelReplySink is the default ReplySink: an unbounded queue a facade
// drains at its own pace, so Session.Reply (called from the dispatcher's
// single thread) never blocks regardless of how slowly the facade consumes.
type ChannelReplySink struct {
	q *queue.Queue[Reply]
}

// NewChannelReplySink constructs an empty ChannelReplySink.
func NewChannelReplySink() *ChannelReplySink {
	return &ChannelReplySink{q: queue.New[Reply]()}
}

func (s *ChannelReplySink) Send(r Reply) { s.q.Push(r) }

// Drain returns every Reply queued since the last Drain, in order.
func (s *ChannelReplySink) Drain(dst []Reply) []Reply { return s.q.Drain(dst) }

func (s *ChannelReplySink) Len() int { return s.q.Len() }
