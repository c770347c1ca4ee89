//go:build !linux

package reactor

type eventFD struct{}

func newEventFD() (*eventFD, error) { return nil, ErrUnsupportedPlatform }

func (e *eventFD) Signal() error { return ErrUnsupportedPlatform }
func (e *eventFD) Drain()        {}
func (e *eventFD) FD() int       { return -1 }
func (e *eventFD) Close() error  { return nil }
