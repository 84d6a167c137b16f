package escrow

import (
	"math/big"
	"sort"
	"sync"
)

type milestoneKey struct {
	job JobID
	id  MilestoneID
}

// MilestoneLedger owns milestone records. Each record refers back to its job
// by id only; job existence is checked by the caller.
type MilestoneLedger struct {
	ids *Allocator

	mu         sync.RWMutex
	milestones map[milestoneKey]*Milestone
}

// NewMilestoneLedger creates an empty ledger drawing ids from ids.
func NewMilestoneLedger(ids *Allocator) *MilestoneLedger {
	return &MilestoneLedger{ids: ids, milestones: make(map[milestoneKey]*Milestone)}
}

// Create stores a new unapproved, unreleased milestone under job. A zero
// amount is accepted.
func (l *MilestoneLedger) Create(job JobID, amount *big.Int) (Milestone, error) {
	if err := checkAmount("create milestone", amount); err != nil {
		return Milestone{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	m := &Milestone{
		JobID:       job,
		MilestoneID: l.ids.NextMilestoneID(job),
		Amount:      new(big.Int).Set(amount),
	}
	l.milestones[milestoneKey{job, m.MilestoneID}] = m
	return m.clone(), nil
}

// Get returns a copy of the milestone.
func (l *MilestoneLedger) Get(job JobID, id MilestoneID) (Milestone, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.milestones[milestoneKey{job, id}]
	if !ok {
		return Milestone{}, notFoundMilestone("get milestone", job, id)
	}
	return m.clone(), nil
}

// Approve marks the milestone approved. Approving twice succeeds and changes
// nothing.
func (l *MilestoneLedger) Approve(job JobID, id MilestoneID) (Milestone, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.milestones[milestoneKey{job, id}]
	if !ok {
		return Milestone{}, notFoundMilestone("approve milestone", job, id)
	}
	m.Approved = true
	return m.clone(), nil
}

// checkReleasable reports why the milestone cannot be released, if anything.
func (l *MilestoneLedger) checkReleasable(job JobID, id MilestoneID) (Milestone, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.milestones[milestoneKey{job, id}]
	if !ok {
		return Milestone{}, notFoundMilestone("release payment", job, id)
	}
	return m.clone(), releasable(m)
}

// markReleased flips the released flag of an approved milestone.
func (l *MilestoneLedger) markReleased(job JobID, id MilestoneID) (Milestone, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.milestones[milestoneKey{job, id}]
	if !ok {
		return Milestone{}, notFoundMilestone("release payment", job, id)
	}
	if err := releasable(m); err != nil {
		return Milestone{}, err
	}
	m.Released = true
	return m.clone(), nil
}

// List returns copies of all milestones ordered by job, then milestone id.
func (l *MilestoneLedger) List() []Milestone {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Milestone, 0, len(l.milestones))
	for _, m := range l.milestones {
		out = append(out, m.clone())
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].JobID != out[b].JobID {
			return out[a].JobID < out[b].JobID
		}
		return out[a].MilestoneID < out[b].MilestoneID
	})
	return out
}

func releasable(m *Milestone) error {
	if !m.Approved {
		return newError(CodeNotApproved, "release payment", "milestone %d of job %d is not approved", m.MilestoneID, m.JobID)
	}
	if m.Released {
		return newError(CodeAlreadyReleased, "release payment", "milestone %d of job %d is already released", m.MilestoneID, m.JobID)
	}
	return nil
}

func notFoundMilestone(op string, job JobID, id MilestoneID) *Error {
	return newError(CodeNotFound, op, "milestone %d of job %d not found", id, job)
}
