package escrow

import (
	"context"
	"log/slog"
	"math/big"
	"time"
)

// Engine is the escrow entry point. It validates arguments at the boundary,
// runs the operation on its Backend and publishes an Event once the backend
// confirms the change. It holds no entity state of its own.
type Engine struct {
	backend   Backend
	logger    *slog.Logger
	observers []Observer
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithObserver registers observers, called in registration order.
func WithObserver(observers ...Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, observers...) }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over backend.
func NewEngine(backend Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backend returns the backend the engine runs on.
func (e *Engine) Backend() Backend { return e.backend }

// CreateJob opens a job between client and freelancer. No funds move.
func (e *Engine) CreateJob(ctx context.Context, client, freelancer Address) (Job, error) {
	const op = "create job"
	c, err := ParseAddress(string(client))
	if err != nil {
		return Job{}, e.fail(ctx, op, withOp(err, op))
	}
	f, err := ParseAddress(string(freelancer))
	if err != nil {
		return Job{}, e.fail(ctx, op, withOp(err, op))
	}

	j, err := e.backend.CreateJob(ctx, c, f)
	if err != nil {
		return Job{}, e.fail(ctx, op, err)
	}
	e.logger.Info("job created",
		"backend", e.backend.Name(),
		"job_id", j.ID,
		"client", j.Client,
		"freelancer", j.Freelancer,
	)
	e.publish(ctx, Event{Kind: EventJobCreated, JobID: j.ID, Client: j.Client, Freelancer: j.Freelancer})
	return j, nil
}

// CreateMilestone creates a milestone under job and locks amount for it.
func (e *Engine) CreateMilestone(ctx context.Context, job JobID, amount *big.Int) (Milestone, error) {
	const op = "create milestone"
	if err := checkAmount(op, amount); err != nil {
		return Milestone{}, e.fail(ctx, op, err)
	}
	m, err := e.backend.CreateMilestone(ctx, job, amount)
	if err != nil {
		return Milestone{}, e.fail(ctx, op, err)
	}
	e.logger.Info("milestone funded",
		"backend", e.backend.Name(),
		"job_id", m.JobID,
		"milestone_id", m.MilestoneID,
		"amount", m.Amount.String(),
	)
	e.publish(ctx, Event{Kind: EventMilestoneCreated, JobID: m.JobID, MilestoneID: m.MilestoneID, Amount: copyAmount(m.Amount)})
	return m, nil
}

// ApproveMilestone marks a milestone approved. Approving an approved
// milestone succeeds without changing anything.
func (e *Engine) ApproveMilestone(ctx context.Context, job JobID, id MilestoneID) (Milestone, error) {
	const op = "approve milestone"
	m, err := e.backend.ApproveMilestone(ctx, job, id)
	if err != nil {
		return Milestone{}, e.fail(ctx, op, err)
	}
	e.logger.Info("milestone approved",
		"backend", e.backend.Name(),
		"job_id", job,
		"milestone_id", id,
	)
	e.publish(ctx, Event{Kind: EventMilestoneApproved, JobID: job, MilestoneID: id})
	return m, nil
}

// ReleasePayment moves an approved milestone's amount from the job's locked
// funds to the freelancer's balance. It applies fully or not at all.
func (e *Engine) ReleasePayment(ctx context.Context, job JobID, id MilestoneID) (Release, error) {
	const op = "release payment"
	r, err := e.backend.ReleasePayment(ctx, job, id)
	if err != nil {
		return Release{}, e.fail(ctx, op, err)
	}
	e.logger.Info("payment released",
		"backend", e.backend.Name(),
		"job_id", r.JobID,
		"milestone_id", r.MilestoneID,
		"freelancer", r.Freelancer,
		"amount", r.Amount.String(),
	)
	e.publish(ctx, Event{
		Kind:        EventPaymentReleased,
		JobID:       r.JobID,
		MilestoneID: r.MilestoneID,
		Freelancer:  r.Freelancer,
		Amount:      copyAmount(r.Amount),
	})
	return r, nil
}

// Withdraw zeroes addr's balance and returns what it held. Withdrawing
// nothing returns 0 and publishes no event.
func (e *Engine) Withdraw(ctx context.Context, addr Address) (*big.Int, error) {
	const op = "withdraw"
	a, err := ParseAddress(string(addr))
	if err != nil {
		return nil, e.fail(ctx, op, withOp(err, op))
	}
	amount, err := e.backend.Withdraw(ctx, a)
	if err != nil {
		return nil, e.fail(ctx, op, err)
	}
	if amount.Sign() == 0 {
		return amount, nil
	}
	e.logger.Info("balance withdrawn",
		"backend", e.backend.Name(),
		"address", a,
		"amount", amount.String(),
	)
	e.publish(ctx, Event{Kind: EventWithdrawn, Freelancer: a, Amount: copyAmount(amount)})
	return amount, nil
}

// BalanceOf returns addr's withdrawable balance.
func (e *Engine) BalanceOf(ctx context.Context, addr Address) (*big.Int, error) {
	a, err := ParseAddress(string(addr))
	if err != nil {
		return nil, withOp(err, "balance of")
	}
	return e.backend.BalanceOf(ctx, a)
}

// GetJob looks up a job.
func (e *Engine) GetJob(ctx context.Context, job JobID) (Job, error) {
	return e.backend.GetJob(ctx, job)
}

// GetMilestone looks up a milestone.
func (e *Engine) GetMilestone(ctx context.Context, job JobID, id MilestoneID) (Milestone, error) {
	return e.backend.GetMilestone(ctx, job, id)
}

// JobCount returns the number of jobs created so far.
func (e *Engine) JobCount(ctx context.Context) (uint64, error) {
	return e.backend.JobCount(ctx)
}

// Snapshot returns the backend's full state for debugging and tests.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	return e.backend.Snapshot(ctx)
}

func (e *Engine) publish(ctx context.Context, ev Event) {
	ev.Backend = e.backend.Name()
	ev.At = e.now()
	for _, o := range e.observers {
		o.Observe(ctx, ev)
	}
}

func (e *Engine) fail(ctx context.Context, op string, err error) error {
	e.logger.Warn("escrow operation failed",
		"backend", e.backend.Name(),
		"op", op,
		"code", CodeOf(err),
		"error", err,
	)
	for _, o := range e.observers {
		if eo, ok := o.(ErrorObserver); ok {
			eo.ObserveError(ctx, op, err)
		}
	}
	return err
}
