package reactor

import (
	"time"

	"github.com/e42s/kernel/transport"
)

// throttledDelay consults the configured catrate.Limiter, keyed by endpoint
// scheme, to decide how long a Reconnect/Rebind task should wait before
// retrying. Without a limiter configured, it returns base unchanged — no
// throttling is applied. With one configured and the scheme currently rate
// limited, it returns whichever is larger: base, or the limiter's reported
// wait, so a flapping peer degrades to slower retries instead of hammering
// the timing wheel (spec §7's "degrade rather than abort"). Called from
// scheduleFor, so every socket's Reconnect/Rebind request is throttled
// transparently — a protocol never needs to know a limiter exists, let
// alone consult it directly.
func (d *Dispatcher) throttledDelay(spec transport.EndpointSpec, base time.Duration) time.Duration {
	if d.reconnect == nil {
		return base
	}
	next, allowed := d.reconnect.Allow(spec.Scheme)
	if allowed {
		return base
	}
	delay := base
	if wait := time.Until(next); wait > delay {
		delay = wait
	}
	if delay > base {
		d.logger.Debug().Str("scheme", spec.Scheme).Dur("delay", delay).Log("reconnect throttled")
	}
	return delay
}
