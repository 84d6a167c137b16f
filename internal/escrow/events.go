package escrow

import (
	"context"
	"math/big"
	"time"
)

// EventKind names an escrow state change. The set mirrors the events the
// settlement authority emits.
type EventKind string

const (
	EventJobCreated        EventKind = "job_created"
	EventMilestoneCreated  EventKind = "milestone_created"
	EventMilestoneApproved EventKind = "milestone_approved"
	EventPaymentReleased   EventKind = "payment_released"
	EventWithdrawn         EventKind = "withdrawn"
)

// Event is published after a backend confirms a state change.
type Event struct {
	Kind    EventKind `json:"kind"`
	Backend string    `json:"backend"`

	JobID       JobID       `json:"job_id,omitempty"`
	MilestoneID MilestoneID `json:"milestone_id,omitempty"`

	// Client is set for job creation. Freelancer is set for job creation,
	// release and withdrawal (the withdrawing party).
	Client     Address `json:"client,omitempty"`
	Freelancer Address `json:"freelancer,omitempty"`

	// Amount is set for milestone creation, release and withdrawal.
	Amount *big.Int `json:"amount,omitempty"`

	At time.Time `json:"at"`
}

// Observer receives events. Observers must not block for long and cannot
// fail the operation that produced the event.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// ErrorObserver is implemented by observers that also want failed
// operations.
type ErrorObserver interface {
	ObserveError(ctx context.Context, op string, err error)
}
