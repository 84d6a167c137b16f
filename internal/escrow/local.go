package escrow

import (
	"context"
	"math/big"
	"sync"
)

// LocalLedger is the in-process Backend. State lives only as long as the
// ledger value does.
//
// Concurrency: operations on the same job are serialized by a per-job lock
// held for the whole operation. Mutations share state.RLock while Snapshot
// takes state.Lock, so a snapshot never observes a release whose locked
// funds have moved but whose balance credit has not landed.
type LocalLedger struct {
	jobs       *JobRegistry
	milestones *MilestoneLedger
	vault      *BalanceVault

	state sync.RWMutex

	locksMu sync.Mutex
	locks   map[JobID]*sync.Mutex
}

var _ Backend = (*LocalLedger)(nil)

// NewLocalLedger creates an empty ledger with its own id sequences.
func NewLocalLedger() *LocalLedger {
	ids := NewAllocator()
	return &LocalLedger{
		jobs:       NewJobRegistry(ids),
		milestones: NewMilestoneLedger(ids),
		vault:      NewBalanceVault(),
		locks:      make(map[JobID]*sync.Mutex),
	}
}

func (l *LocalLedger) Name() string { return "local" }

// jobLock returns the lock of an existing job. Jobs are never removed, so
// there is at most one lock per created job.
func (l *LocalLedger) jobLock(op string, id JobID) (*sync.Mutex, error) {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()
	if mu, ok := l.locks[id]; ok {
		return mu, nil
	}
	if _, err := l.jobs.Get(id); err != nil {
		return nil, withOp(err, op)
	}
	mu := &sync.Mutex{}
	l.locks[id] = mu
	return mu, nil
}

func (l *LocalLedger) CreateJob(_ context.Context, client, freelancer Address) (Job, error) {
	l.state.RLock()
	defer l.state.RUnlock()
	return l.jobs.Create(client, freelancer)
}

func (l *LocalLedger) CreateMilestone(_ context.Context, job JobID, amount *big.Int) (Milestone, error) {
	if err := checkAmount("create milestone", amount); err != nil {
		return Milestone{}, err
	}

	l.state.RLock()
	defer l.state.RUnlock()
	mu, err := l.jobLock("create milestone", job)
	if err != nil {
		return Milestone{}, err
	}
	mu.Lock()
	defer mu.Unlock()

	// The job exists and its lock is held, so none of these can fail.
	if err := l.jobs.addLocked(job, amount); err != nil {
		return Milestone{}, err
	}
	if err := l.jobs.countMilestone(job); err != nil {
		return Milestone{}, err
	}
	return l.milestones.Create(job, amount)
}

func (l *LocalLedger) ApproveMilestone(_ context.Context, job JobID, id MilestoneID) (Milestone, error) {
	l.state.RLock()
	defer l.state.RUnlock()
	mu, err := l.jobLock("approve milestone", job)
	if err != nil {
		return Milestone{}, err
	}
	mu.Lock()
	defer mu.Unlock()
	return l.milestones.Approve(job, id)
}

// ReleasePayment validates every step before applying any of them, so a
// failed release leaves all three stores untouched.
func (l *LocalLedger) ReleasePayment(_ context.Context, job JobID, id MilestoneID) (Release, error) {
	l.state.RLock()
	defer l.state.RUnlock()
	mu, err := l.jobLock("release payment", job)
	if err != nil {
		return Release{}, err
	}
	mu.Lock()
	defer mu.Unlock()

	j, err := l.jobs.Get(job)
	if err != nil {
		return Release{}, withOp(err, "release payment")
	}
	m, err := l.milestones.checkReleasable(job, id)
	if err != nil {
		return Release{}, err
	}
	if j.Locked.Cmp(m.Amount) < 0 {
		return Release{}, newError(CodeInsufficientLocked, "release payment",
			"job %d has %s locked, milestone %d needs %s", job, j.Locked, id, m.Amount)
	}

	if _, err := l.milestones.markReleased(job, id); err != nil {
		return Release{}, err
	}
	if err := l.jobs.subLocked(job, m.Amount); err != nil {
		return Release{}, err
	}
	if err := l.vault.Credit(j.Freelancer, m.Amount); err != nil {
		return Release{}, err
	}
	return Release{JobID: job, MilestoneID: id, Freelancer: j.Freelancer, Amount: m.Amount}, nil
}

func (l *LocalLedger) Withdraw(_ context.Context, addr Address) (*big.Int, error) {
	l.state.RLock()
	defer l.state.RUnlock()
	return l.vault.Withdraw(addr), nil
}

func (l *LocalLedger) BalanceOf(_ context.Context, addr Address) (*big.Int, error) {
	return l.vault.Peek(addr), nil
}

func (l *LocalLedger) GetJob(_ context.Context, job JobID) (Job, error) {
	return l.jobs.Get(job)
}

func (l *LocalLedger) GetMilestone(_ context.Context, job JobID, id MilestoneID) (Milestone, error) {
	return l.milestones.Get(job, id)
}

func (l *LocalLedger) JobCount(_ context.Context) (uint64, error) {
	return l.jobs.Count(), nil
}

func (l *LocalLedger) Snapshot(_ context.Context) (Snapshot, error) {
	l.state.Lock()
	defer l.state.Unlock()
	return Snapshot{
		Jobs:       l.jobs.List(),
		Milestones: l.milestones.List(),
		Balances:   l.vault.NonZero(),
	}, nil
}
