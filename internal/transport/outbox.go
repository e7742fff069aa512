package transport

import (
	"sync"
	"time"
)

// Pending is the outbound message currently holding the slot.
type Pending struct {
	Handle      Handle
	OpenedAt    time.Time
	SubmittedAt time.Time
	Submitted   bool
}

// Outbox is a single-slot outbound reservation shared by the concrete transports.
type Outbox struct {
	mu      sync.Mutex
	current *Pending
	now     func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{now: time.Now}
}

// Open reserves the slot for a new handle or returns ErrBusy.
func (o *Outbox) Open() (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		return Handle{}, ErrBusy
	}
	h := NewHandle()
	o.current = &Pending{Handle: h, OpenedAt: o.now()}
	return h, nil
}

// MarkSubmitted records that h was handed to the wire.
func (o *Outbox) MarkSubmitted(h Handle) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || o.current.Handle != h {
		return ErrUnknownHandle
	}
	if o.current.Submitted {
		return ErrBusy
	}
	o.current.Submitted = true
	o.current.SubmittedAt = o.now()
	return nil
}

// Release frees the slot if h still holds it.
func (o *Outbox) Release(h Handle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || o.current.Handle != h {
		return false
	}
	o.current = nil
	return true
}

func (o *Outbox) Current() (Pending, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return Pending{}, false
	}
	return *o.current, true
}
