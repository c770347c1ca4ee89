// Package reactor implements the single-threaded dispatcher: the request
// channel, the in-thread signal bus, the hashed timing wheel, and the
// readiness poller, multiplexed over one blocking wait per tick of the
// event loop. See poller_linux.go/poller_other.go for the platform split,
// mirroring the teacher's poller_linux.go/poller_darwin.go convention.
package reactor

import "github.com/e42s/kernel/transport"

// readyFD is one readiness notification returned by a poller's Wait.
type readyFD struct {
	FD     int
	Events transport.IOEvents
}

// poller is the minimal readiness multiplexer behind EventLoop. It operates
// purely in terms of raw file descriptors; EventLoop is responsible for
// translating a registered fd back to the Token the dispatcher routes on.
type poller interface {
	Add(fd int, interest transport.IOEvents) error
	Modify(fd int, interest transport.IOEvents) error
	Remove(fd int) error
	// Wait blocks for up to timeoutMs milliseconds (negative means forever)
	// and appends ready notifications to dst, returning the extended slice.
	// A syscall interrupted by a signal (EINTR) is absorbed as zero ready
	// events, never returned as an error, matching the original's
	// run_once.
	Wait(timeoutMs int, dst []readyFD) ([]readyFD, error)
	Close() error
}
