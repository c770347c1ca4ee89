package reactor

import "errors"

// Sentinel errors, matching the teacher's poller vocabulary
// (joeycumines-go-utilpkg/eventloop's errors.go / poller_linux.go) applied
// to this package's own epoll wrapper.
var (
	ErrFDOutOfRange         = errors.New("reactor: file descriptor out of range")
	ErrFDAlreadyRegistered  = errors.New("reactor: file descriptor already registered")
	ErrFDNotRegistered      = errors.New("reactor: file descriptor not registered")
	ErrScheduleOverflow     = errors.New("reactor: timing wheel at capacity")
	ErrUnknownScheme        = errors.New("reactor: no transport registered for scheme")
	ErrUnknownEndpoint      = errors.New("reactor: unknown endpoint")
	ErrUnknownSocket        = errors.New("reactor: unknown socket")
	ErrUnknownDevice        = errors.New("reactor: unknown device")
	ErrShutdown             = errors.New("reactor: dispatcher is shutting down")
	ErrUnsupportedPlatform  = errors.New("reactor: no poller implementation for this platform")
)

// PollError wraps an underlying OS error surfaced by a single poll
// iteration, for every case other than EINTR (which the event loop absorbs
// as zero ready events, matching the Rust original's run_once).
type PollError struct {
	Op  string
	Err error
}

func (e *PollError) Error() string {
	return "reactor: poll " + e.Op + ": " + e.Err.Error()
}

func (e *PollError) Unwrap() error { return e.Err }

// WrapError annotates err with op, preserving it for errors.Is/As.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &wrappedError{op: op, err: err}
}

type wrappedError struct {
	op  string
	err error
}

func (e *wrappedError) Error() string { return "reactor: " + e.op + ": " + e.err.Error() }
func (e *wrappedError) Unwrap() error { return e.err }
