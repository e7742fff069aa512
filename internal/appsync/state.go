package appsync

import "time"

// State is the request state of an Engine.
type State int

const (
	StateIdle State = iota
	StateRequestPending
	// StateError is reported on a non-retriable send failure and left immediately for Idle.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestPending:
		return "request_pending"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is a diagnostic snapshot of an Engine.
type Status struct {
	State            State
	PendingHandle    string
	RequestsSent     uint64
	RequestsRejected uint64
	SendFailures     uint64
	InboundApplied   uint64
	InboundDropped   uint64
	KeysRejected     uint64
	LastError        error
	LastUpdate       time.Time
}
