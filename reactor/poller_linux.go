//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"

	"github.com/e42s/kernel/transport"
)

const maxEpollEvents = 256

// epollPoller backs poller on Linux via epoll, the direct analogue of the
// teacher's FastPoller (eventloop/poller_linux.go) stripped of its
// callback-per-fd dispatch: this reactor routes by Token, looked up by
// EventLoop from the fd epoll_wait reports, not by an fd-keyed callback.
type epollPoller struct {
	epfd     int
	eventBuf [maxEpollEvents]unix.EpollEvent
}

func newPoller() (poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, WrapError("epoll_create1", err)
	}
	return &epollPoller{epfd: fd}, nil
}

func (p *epollPoller) Add(fd int, interest transport.IOEvents) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		if err == unix.EEXIST {
			return ErrFDAlreadyRegistered
		}
		return WrapError("epoll_ctl add", err)
	}
	return nil
}

func (p *epollPoller) Modify(fd int, interest transport.IOEvents) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		if err == unix.ENOENT {
			return ErrFDNotRegistered
		}
		return WrapError("epoll_ctl mod", err)
	}
	return nil
}

func (p *epollPoller) Remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		if err == unix.ENOENT {
			return ErrFDNotRegistered
		}
		return WrapError("epoll_ctl del", err)
	}
	return nil
}

func (p *epollPoller) Wait(timeoutMs int, dst []readyFD) ([]readyFD, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, &PollError{Op: "epoll_wait", Err: err}
	}
	for i := 0; i < n; i++ {
		dst = append(dst, readyFD{
			FD:     int(p.eventBuf[i].Fd),
			Events: fromEpollEvents(p.eventBuf[i].Events),
		})
	}
	return dst, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func toEpollEvents(e transport.IOEvents) uint32 {
	var out uint32
	// edge-triggered: every registered fd must be drained to emptiness on
	// each wakeup, per the reactor's edge-triggered polling contract.
	out |= unix.EPOLLET
	if e.Readable() {
		out |= unix.EPOLLIN
	}
	if e.Writable() {
		out |= unix.EPOLLOUT
	}
	return out
}

func fromEpollEvents(e uint32) transport.IOEvents {
	var out transport.IOEvents
	if e&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		out |= transport.Readable
	}
	if e&unix.EPOLLOUT != 0 {
		out |= transport.Writable
	}
	return out
}
