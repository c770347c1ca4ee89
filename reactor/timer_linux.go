//go:build linux

package reactor

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"
)

// timerSource is a periodic timerfd firing every tickDuration, registered
// with the poller under TokenTimer exactly like the request channel and bus
// are registered under their own reserved tokens. It is the reactor's
// answer to mio::Timer in the original: one readiness source the poller
// already knows how to wait on, rather than a separate sleep/deadline
// computation bolted onto the poll call.
type timerSource struct {
	fd int
}

func newTimerSource(tick time.Duration) (*timerSource, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, WrapError("timerfd_create", err)
	}
	spec := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(tick.Nanoseconds()),
		Value:    unix.NsecToTimespec(tick.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		_ = unix.Close(fd)
		return nil, WrapError("timerfd_settime", err)
	}
	return &timerSource{fd: fd}, nil
}

// Drain reads the expiration count accumulated since the last drain,
// reporting how many ticks have elapsed (normally 1, but may exceed 1 if
// the dispatcher fell behind).
func (t *timerSource) Drain() int {
	var buf [8]byte
	n, err := unix.Read(t.fd, buf[:])
	if err != nil || n != 8 {
		return 0
	}
	count := binary.LittleEndian.Uint64(buf[:])
	if count > 1<<20 {
		// Defensive clamp: never ask the wheel to advance an absurd
		// number of ticks after e.g. a suspended process resumes.
		count = 1 << 20
	}
	return int(count)
}

func (t *timerSource) FD() int { return t.fd }

func (t *timerSource) Close() error { return unix.Close(t.fd) }
