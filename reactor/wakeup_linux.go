//go:build linux

package reactor

import "golang.org/x/sys/unix"

// eventFD is the eventfd-based wakeup primitive used by both the request
// channel and the signal bus: a producer writes to it to schedule a future
// drain by the dispatcher's single thread, rather than calling back into it
// synchronously and reentrantly. Grounded on the teacher's
// createWakeFd/drainWakeUpPipe (eventloop/wakeup_linux.go), generalized from
// a single loop-wide wake source into one instance per queue.
type eventFD struct {
	fd int
}

func newEventFD() (*eventFD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, WrapError("eventfd", err)
	}
	return &eventFD{fd: fd}, nil
}

// Signal schedules a wakeup. Safe to call from any goroutine.
func (e *eventFD) Signal() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(e.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return WrapError("eventfd write", err)
	}
	return nil
}

// Drain reads and discards every pending wakeup, per the edge-triggered
// contract that each source must be drained to emptiness on each wakeup.
func (e *eventFD) Drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(e.fd, buf[:])
		if err != nil {
			return
		}
	}
}

func (e *eventFD) FD() int { return e.fd }

func (e *eventFD) Close() error {
	return unix.Close(e.fd)
}
