// Package transport defines the narrow asynchronous message contract between the
// device and its companion.
//
// Ownership boundary:
//   - outbound handle lifecycle (open -> submit -> sent|failed)
//   - inbound delivery to a Sink
//   - failure classification
//
// Concrete transports live in subpackages (loopback, ws).
package transport

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrBusy          = errors.New("transport: outbox busy")
	ErrClosed        = errors.New("transport: closed")
	ErrNotConnected  = errors.New("transport: peer not connected")
	ErrUnknownHandle = errors.New("transport: unknown outbound handle")
)

// Handle identifies one outbound message from open to completion.
type Handle struct {
	ID string
}

func NewHandle() Handle {
	return Handle{ID: uuid.Must(uuid.NewV7()).String()}
}

func (h Handle) IsZero() bool { return h.ID == "" }

func (h Handle) String() string { return h.ID }

// Sink receives completions and inbound payloads. Calls arrive in the order the
// transport surfaces them.
type Sink interface {
	OutboxSent(h Handle)
	OutboxFailed(h Handle, err error)
	InboxReceived(payload []byte)
}

// Transport is the device-facing send/receive primitive.
type Transport interface {
	// OpenOutbound reserves the single outbound slot or returns ErrBusy.
	OpenOutbound() (Handle, error)
	// Submit hands payload to the transport and returns immediately. Completion
	// is reported to the attached Sink. A non-nil error means the submission
	// never started and no completion will follow.
	Submit(h Handle, payload []byte) error
	Attach(sink Sink)
	Close() error
}

// Failure is a classified send failure.
type Failure struct {
	Reason    string
	Retriable bool
	Err       error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("transport: %s", f.Reason)
	}
	return fmt.Sprintf("transport: %s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func Retriable(reason string, err error) error {
	return &Failure{Reason: reason, Retriable: true, Err: err}
}

func Fatal(reason string, err error) error {
	return &Failure{Reason: reason, Retriable: false, Err: err}
}

// IsRetriable classifies err. Unclassified errors are retriable except ErrClosed.
func IsRetriable(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Retriable
	}
	return !errors.Is(err, ErrClosed)
}
