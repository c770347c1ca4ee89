package network

import "github.com/e42s/kernel/transport"

// Scheduled is a handle to a task pending in the reactor's timing wheel.
// Values are monotonic and never reused; a Scheduled handle for a task that
// has already fired or been cancelled is simply inert.
type Scheduled uint64

// Schedulable is the taxonomy of work a Socket can ask the reactor to run
// after a delay. It is a closed set, matching the Rust original's enum —
// new variants are added here, not invented ad hoc by sockets.
type Schedulable interface {
	schedulable()
}

// Reconnect asks the dispatcher to retry dialing an endpoint that previously
// failed or closed, at the given spec.
type Reconnect struct {
	Endpoint EndpointID
	Spec     transport.EndpointSpec
}

// Rebind asks the dispatcher to retry listening on an endpoint that
// previously failed, at the given spec.
type Rebind struct {
	Endpoint EndpointID
	Spec     transport.EndpointSpec
}

// SendTimeout fires when a pending send on a socket has waited too long.
type SendTimeout struct{}

// RecvTimeout fires when a pending receive on a socket has waited too long.
type RecvTimeout struct{}

// ReqResend re-arms a REQ-style socket's retry of an unanswered request.
type ReqResend struct{}

// SurveyCancel ends a survey's collection window.
type SurveyCancel struct{}

func (Reconnect) schedulable()    {}
func (Rebind) schedulable()       {}
func (SendTimeout) schedulable()  {}
func (RecvTimeout) schedulable()  {}
func (ReqResend) schedulable()    {}
func (SurveyCancel) schedulable() {}
