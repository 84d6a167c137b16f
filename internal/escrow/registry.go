package escrow

import (
	"math/big"
	"sort"
	"sync"
)

// JobRegistry owns job records.
type JobRegistry struct {
	ids *Allocator

	mu   sync.RWMutex
	jobs map[JobID]*Job
}

// NewJobRegistry creates an empty registry drawing ids from ids.
func NewJobRegistry(ids *Allocator) *JobRegistry {
	return &JobRegistry{ids: ids, jobs: make(map[JobID]*Job)}
}

// Create stores a new job with nothing locked. Both parties must be valid
// addresses.
func (r *JobRegistry) Create(client, freelancer Address) (Job, error) {
	c, err := ParseAddress(string(client))
	if err != nil {
		return Job{}, withOp(err, "create job")
	}
	f, err := ParseAddress(string(freelancer))
	if err != nil {
		return Job{}, withOp(err, "create job")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	j := &Job{
		ID:         r.ids.NextJobID(),
		Client:     c,
		Freelancer: f,
		Locked:     new(big.Int),
	}
	r.jobs[j.ID] = j
	return j.clone(), nil
}

// Get returns a copy of the job.
func (r *JobRegistry) Get(id JobID) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, newError(CodeNotFound, "get job", "job %d not found", id)
	}
	return j.clone(), nil
}

// Count returns the number of jobs created.
func (r *JobRegistry) Count() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.jobs))
}

// List returns copies of all jobs ordered by id.
func (r *JobRegistry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.clone())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// countMilestone records one more milestone created under the job.
func (r *JobRegistry) countMilestone(id JobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return newError(CodeNotFound, "count milestone", "job %d not found", id)
	}
	j.MilestoneCount++
	return nil
}

// addLocked adds amount to the job's locked funds.
func (r *JobRegistry) addLocked(id JobID, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return newError(CodeNotFound, "add locked", "job %d not found", id)
	}
	j.Locked.Add(j.Locked, amount)
	return nil
}

// subLocked removes amount from the job's locked funds, refusing to go
// below zero.
func (r *JobRegistry) subLocked(id JobID, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return newError(CodeNotFound, "sub locked", "job %d not found", id)
	}
	if j.Locked.Cmp(amount) < 0 {
		return newError(CodeInsufficientLocked, "sub locked", "job %d has %s locked, need %s", id, j.Locked, amount)
	}
	j.Locked.Sub(j.Locked, amount)
	return nil
}
