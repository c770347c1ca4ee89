// Package network holds the reactor's data model: sockets, devices and the
// endpoint identifiers that tie them to transports. It knows nothing about
// polling, wheels or signal buses — those live in package reactor, which
// depends on network, never the other way around.
package network

import (
	"fmt"
	"sync/atomic"
)

// SocketID identifies a Socket for the lifetime of a Session. Never reused.
type SocketID uint64

// DeviceID identifies a Device for the lifetime of a Session. Never reused.
type DeviceID uint64

// EndpointID identifies a Pipe or Acceptor owned by an EndpointCollection.
// It doubles as the poller token for every non-reserved readiness event, so
// its value space is shared with (and excludes) the three reserved tokens
// the reactor package reserves for itself.
type EndpointID uint64

// reservedFloor is the first value (inclusive) in the top-of-range band the
// reactor package carves out for its three fixed tokens (channel, bus,
// timer — see reactor.TokenChannel et al). Session and EndpointCollection
// share a Sequence and must never hand out an ID in this band.
const reservedFloor = ^uint64(0) - 3

// Sequence is a monotonic, never-reused ID generator shared by a Session
// (for SocketID/DeviceID) and its paired EndpointCollection (for
// EndpointID), mirroring the original Rust id_seq shared between the two by
// clone of a reference-counted cell. Safe for concurrent use, though in
// practice the reactor only ever calls it from its single dispatch thread.
type Sequence struct {
	next atomic.Uint64
}

// NewSequence returns a Sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next value in the sequence. It panics if the sequence has
// been exhausted into the reserved token band — a practical impossibility
// (2^64-4 allocations) kept as a hard assertion per the "reserved tokens are
// never produced by the id sequence" invariant, rather than left silent.
func (s *Sequence) Next() uint64 {
	v := s.next.Add(1) - 1
	if v >= reservedFloor {
		panic(fmt.Sprintf("network: id sequence exhausted into reserved token band (%d)", v))
	}
	return v
}

// NextSocketID draws the next SocketID from the sequence.
func (s *Sequence) NextSocketID() SocketID { return SocketID(s.Next()) }

// NextDeviceID draws the next DeviceID from the sequence.
func (s *Sequence) NextDeviceID() DeviceID { return DeviceID(s.Next()) }

// NextEndpointID draws the next EndpointID from the sequence.
func (s *Sequence) NextEndpointID() EndpointID { return EndpointID(s.Next()) }
