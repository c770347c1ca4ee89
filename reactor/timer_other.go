//go:build !linux

package reactor

import "time"

type timerSource struct{}

func newTimerSource(tick time.Duration) (*timerSource, error) { return nil, ErrUnsupportedPlatform }

func (t *timerSource) Drain() int   { return 0 }
func (t *timerSource) FD() int      { return -1 }
func (t *timerSource) Close() error { return nil }
