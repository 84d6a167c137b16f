package escrow

import "sync"

// Allocator hands out job ids and per-job milestone ids. Each ledger owns its
// own Allocator, so independent ledgers never share sequences.
//
// Thread-safety: safe for concurrent use.
type Allocator struct {
	mu         sync.Mutex
	job        uint64
	milestones map[JobID]uint64
}

// NewAllocator creates an allocator whose first job id is 1.
func NewAllocator() *Allocator {
	return &Allocator{milestones: make(map[JobID]uint64)}
}

// NextJobID returns the previous job id plus one.
func (a *Allocator) NextJobID() JobID {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.job++
	return JobID(a.job)
}

// NextMilestoneID returns the previous milestone id of job plus one. Jobs
// count independently.
func (a *Allocator) NextMilestoneID(job JobID) MilestoneID {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.milestones[job]++
	return MilestoneID(a.milestones[job])
}
