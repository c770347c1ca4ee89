package reactor

import (
	"time"

	"github.com/e42s/kernel/network"
)

// task pairs a Schedulable with the socket that scheduled it, mirroring the
// original's Task(SocketId, Schedulable).
type task struct {
	handle network.Scheduled
	socket network.SocketID
	work   network.Schedulable
	// cancelled is a tombstone: a cancelled task is left in its slot (cheap
	// removal, matching the original's "cancellation is cooperative")
	// rather than spliced out, and skipped when its slot is swept.
	cancelled bool
}

// schedule is a hashed timing wheel: tickDuration-wide slots arranged in a
// ring of slotCount, advanced one slot per tick. A task's deadline maps to
// the slot it will next pass through; tasks with delays longer than one
// full revolution simply wait for the wheel to come back around to their
// slot the appropriate number of revolutions later, tracked via rounds.
//
// Same-tick tasks fire in insertion order (each slot is a plain append-only
// slice, swept front to back).
type schedule struct {
	tickDuration time.Duration
	slots        [][]*entry
	index        map[network.Scheduled]*entry
	cursor       int
	capacity     int
	pending      int
	nextHandle   uint64
}

type entry struct {
	handle network.Scheduled
	rounds int
	t      *task
}

func newSchedule(tickDuration time.Duration, slotCount, capacity int) *schedule {
	return &schedule{
		tickDuration: tickDuration,
		slots:        make([][]*entry, slotCount),
		index:        make(map[network.Scheduled]*entry, capacity),
		capacity:     capacity,
	}
}

// add schedules work to fire after delay, returning a handle that survives
// across wheel revolutions and can be passed to cancel. Returns
// ErrScheduleOverflow once capacity pending tasks are outstanding.
func (s *schedule) add(socket network.SocketID, work network.Schedulable, delay time.Duration) (network.Scheduled, error) {
	if s.pending >= s.capacity {
		return 0, ErrScheduleOverflow
	}
	if delay < 0 {
		delay = 0
	}
	// The task fires on the advance that brings the elapsed tick count up to
	// ceil(delay/tickDuration), and never sooner than the next advance.
	ticks := int((delay + s.tickDuration - 1) / s.tickDuration)
	if ticks < 1 {
		ticks = 1
	}
	n := len(s.slots)
	slot := (s.cursor + ticks - 1) % n
	rounds := (ticks - 1) / n

	s.nextHandle++
	h := network.Scheduled(s.nextHandle)
	e := &entry{handle: h, rounds: rounds, t: &task{socket: socket, work: work}}
	s.slots[slot] = append(s.slots[slot], e)
	s.index[h] = e
	s.pending++
	return h, nil
}

// cancel marks a scheduled task as cancelled. Idempotent: cancelling an
// already-fired or already-cancelled handle is a no-op. The entry stays in
// its slot as a tombstone, preserving insertion order for the rest of the
// slot, and is dropped when the wheel sweeps past it.
func (s *schedule) cancel(h network.Scheduled) {
	e, ok := s.index[h]
	if !ok {
		return
	}
	if !e.t.cancelled {
		e.t.cancelled = true
		s.pending--
	}
	delete(s.index, h)
}

// advance moves the wheel forward by n ticks, returning every non-cancelled
// task whose deadline fell within those ticks, in fire order (tick order,
// then insertion order within a tick).
func (s *schedule) advance(n int) []*task {
	if n <= 0 {
		return nil
	}
	var fired []*task
	slots := len(s.slots)
	for i := 0; i < n; i++ {
		slot := s.slots[s.cursor]
		var kept []*entry
		for _, e := range slot {
			if e.rounds > 0 {
				e.rounds--
				kept = append(kept, e)
				continue
			}
			delete(s.index, e.handle)
			if !e.t.cancelled {
				e.t.handle = e.handle
				fired = append(fired, e.t)
				s.pending--
			}
		}
		s.slots[s.cursor] = kept
		s.cursor = (s.cursor + 1) % slots
	}
	return fired
}

// Pending reports the number of non-cancelled tasks currently scheduled.
func (s *schedule) Pending() int { return s.pending }
