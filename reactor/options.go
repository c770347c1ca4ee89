package reactor

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// dispatcherOptions holds configuration for New.
type dispatcherOptions struct {
	logger        *Logger
	tickDuration  time.Duration
	wheelSlots    int
	wheelCapacity int
	reconnect     *catrate.Limiter
}

// Option configures a Dispatcher at construction time.
type Option interface {
	apply(*dispatcherOptions) error
}

type optionFunc struct {
	fn func(*dispatcherOptions) error
}

func (o *optionFunc) apply(opts *dispatcherOptions) error { return o.fn(opts) }

// WithLogger sets the structured logger used for dispatch routing
// decisions, late-event drops and reconnect throttling. Drain completeness
// and scheduling overflow are not logged. Defaults to a no-op logger.
func WithLogger(l *Logger) Option {
	return &optionFunc{func(opts *dispatcherOptions) error {
		opts.logger = l
		return nil
	}}
}

// WithTickDuration overrides the timing wheel's tick resolution (default
// 25ms, matching the original).
func WithTickDuration(d time.Duration) Option {
	return &optionFunc{func(opts *dispatcherOptions) error {
		opts.tickDuration = d
		return nil
	}}
}

// WithWheelSlots overrides the timing wheel's slot count (default 1024).
func WithWheelSlots(n int) Option {
	return &optionFunc{func(opts *dispatcherOptions) error {
		opts.wheelSlots = n
		return nil
	}}
}

// WithWheelCapacity overrides the timing wheel's max pending-task count
// (default 8192).
func WithWheelCapacity(n int) Option {
	return &optionFunc{func(opts *dispatcherOptions) error {
		opts.wheelCapacity = n
		return nil
	}}
}

// WithReconnectLimiter installs a sliding-window rate limiter consulted
// before scheduling a Reconnect/Rebind task, keyed by endpoint scheme. A
// socket whose peer is flapping degrades to slower retries instead of
// hammering the wheel. Defaults to no limiting.
func WithReconnectLimiter(l *catrate.Limiter) Option {
	return &optionFunc{func(opts *dispatcherOptions) error {
		opts.reconnect = l
		return nil
	}}
}

const (
	defaultTickDuration  = 25 * time.Millisecond
	defaultWheelSlots    = 1024
	defaultWheelCapacity = 8192
)

func resolveOptions(opts []Option) (*dispatcherOptions, error) {
	cfg := &dispatcherOptions{
		logger:        noopLogger(),
		tickDuration:  defaultTickDuration,
		wheelSlots:    defaultWheelSlots,
		wheelCapacity: defaultWheelCapacity,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
