//go:build !linux

package reactor

// newPoller has no implementation outside Linux. The teacher's own
// eventloop package splits this the same way (poller_linux.go vs
// poller_darwin.go vs poller_windows.go); this module carries the file
// split but, given the scope of this exercise, only implements the epoll
// backend — see DESIGN.md's "Scope cuts" section for why a kqueue backend is
// not included.
func newPoller() (poller, error) {
	return nil, ErrUnsupportedPlatform
}
