package escrow

import (
	"context"
	"errors"
	"math/big"
	"strings"
)

// Authority is the settlement authority's operation surface. The client of
// a job is whoever sends createJob, and withdraw acts on the sender's own
// balance.
//
// Implementations return *Rejection when the authority refuses an operation
// and any other error when it could not be reached or did not answer.
type Authority interface {
	Sender() Address

	CreateJob(ctx context.Context, freelancer Address) (JobID, error)
	CreateMilestone(ctx context.Context, job JobID, amount *big.Int) (MilestoneID, error)
	ApproveMilestone(ctx context.Context, job JobID, id MilestoneID) error
	ReleasePayment(ctx context.Context, job JobID, id MilestoneID) (*big.Int, error)
	Withdraw(ctx context.Context) (*big.Int, error)

	GetJob(ctx context.Context, job JobID) (JobRecord, error)
	GetMilestone(ctx context.Context, job JobID, id MilestoneID) (MilestoneRecord, error)
	Available(ctx context.Context, addr Address) (*big.Int, error)
	JobCount(ctx context.Context) (uint64, error)
}

// JobRecord is the authority's view of a job. Missing jobs come back with
// zero-address parties.
type JobRecord struct {
	Client         Address
	Freelancer     Address
	Locked         *big.Int
	MilestoneCount uint64
}

// MilestoneRecord is the authority's view of a milestone.
type MilestoneRecord struct {
	Amount   *big.Int
	Approved bool
	Released bool
}

// Rejection is an authority refusal carrying its raw reason.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return "rejected: " + r.Reason }

// Delegated is the Backend that forwards every operation to an Authority.
// It keeps no local state: every read goes to the authority, and nothing is
// recorded before the authority confirms a change.
type Delegated struct {
	auth Authority
}

var _ Backend = (*Delegated)(nil)

// NewDelegated wraps auth.
func NewDelegated(auth Authority) *Delegated {
	return &Delegated{auth: auth}
}

func (d *Delegated) Name() string { return "delegated" }

// Write results are built from the arguments and what the authority
// returned. Nothing is read back after a confirmed write, so a failed read
// can never turn a settled change into an error the caller might retry.

func (d *Delegated) CreateJob(ctx context.Context, client, freelancer Address) (Job, error) {
	const op = "create job"
	if client != d.auth.Sender() {
		return Job{}, newError(CodeInvalidParty, op, "client %s is not the authority sender %s", client, d.auth.Sender())
	}
	id, err := d.auth.CreateJob(ctx, freelancer)
	if err != nil {
		return Job{}, translate(op, err)
	}
	return Job{ID: id, Client: client, Freelancer: freelancer, Locked: new(big.Int)}, nil
}

// CreateMilestone returns the new milestone. The job's locked total is not
// part of the result.
func (d *Delegated) CreateMilestone(ctx context.Context, job JobID, amount *big.Int) (Milestone, error) {
	id, err := d.auth.CreateMilestone(ctx, job, amount)
	if err != nil {
		return Milestone{}, translate("create milestone", err)
	}
	return Milestone{JobID: job, MilestoneID: id, Amount: copyAmount(amount)}, nil
}

// ApproveMilestone reads the milestone before approving it, so a failed
// read happens before anything is sent.
func (d *Delegated) ApproveMilestone(ctx context.Context, job JobID, id MilestoneID) (Milestone, error) {
	const op = "approve milestone"
	m, err := d.GetMilestone(ctx, job, id)
	if err != nil {
		return Milestone{}, withOp(err, op)
	}
	if err := d.auth.ApproveMilestone(ctx, job, id); err != nil {
		return Milestone{}, translate(op, err)
	}
	m.Approved = true
	return m, nil
}

// ReleasePayment reads the payee before releasing. Parties never change
// once a job exists.
func (d *Delegated) ReleasePayment(ctx context.Context, job JobID, id MilestoneID) (Release, error) {
	const op = "release payment"
	j, err := d.GetJob(ctx, job)
	if err != nil {
		return Release{}, withOp(err, op)
	}
	amount, err := d.auth.ReleasePayment(ctx, job, id)
	if err != nil {
		return Release{}, translate(op, err)
	}
	return Release{JobID: job, MilestoneID: id, Freelancer: j.Freelancer, Amount: copyAmount(amount)}, nil
}

// Withdraw only acts on the authority sender's balance. A zero balance
// returns 0 without contacting the authority's write path.
func (d *Delegated) Withdraw(ctx context.Context, addr Address) (*big.Int, error) {
	const op = "withdraw"
	if addr != d.auth.Sender() {
		return nil, newError(CodeInvalidParty, op, "only the authority sender %s can withdraw", d.auth.Sender())
	}
	bal, err := d.auth.Available(ctx, addr)
	if err != nil {
		return nil, translate(op, err)
	}
	if bal == nil || bal.Sign() == 0 {
		return new(big.Int), nil
	}
	out, err := d.auth.Withdraw(ctx)
	if err != nil {
		return nil, translate(op, err)
	}
	return copyAmount(out), nil
}

func (d *Delegated) BalanceOf(ctx context.Context, addr Address) (*big.Int, error) {
	bal, err := d.auth.Available(ctx, addr)
	if err != nil {
		return nil, translate("balance of", err)
	}
	return copyAmount(bal), nil
}

func (d *Delegated) GetJob(ctx context.Context, job JobID) (Job, error) {
	const op = "get job"
	rec, err := d.auth.GetJob(ctx, job)
	if err != nil {
		return Job{}, translate(op, err)
	}
	if rec.Client == "" || rec.Client == ZeroAddress {
		return Job{}, newError(CodeNotFound, op, "job %d not found", job)
	}
	return Job{
		ID:             job,
		Client:         rec.Client,
		Freelancer:     rec.Freelancer,
		Locked:         copyAmount(rec.Locked),
		MilestoneCount: rec.MilestoneCount,
	}, nil
}

func (d *Delegated) GetMilestone(ctx context.Context, job JobID, id MilestoneID) (Milestone, error) {
	const op = "get milestone"
	j, err := d.GetJob(ctx, job)
	if err != nil {
		return Milestone{}, withOp(err, op)
	}
	if id == 0 || uint64(id) > j.MilestoneCount {
		return Milestone{}, notFoundMilestone(op, job, id)
	}
	rec, err := d.auth.GetMilestone(ctx, job, id)
	if err != nil {
		return Milestone{}, translate(op, err)
	}
	return Milestone{
		JobID:       job,
		MilestoneID: id,
		Amount:      copyAmount(rec.Amount),
		Approved:    rec.Approved,
		Released:    rec.Released,
	}, nil
}

func (d *Delegated) JobCount(ctx context.Context) (uint64, error) {
	n, err := d.auth.JobCount(ctx)
	if err != nil {
		return 0, translate("job count", err)
	}
	return n, nil
}

// Snapshot walks every job and milestone the authority knows about. Balances
// cover the parties of those jobs.
func (d *Delegated) Snapshot(ctx context.Context) (Snapshot, error) {
	n, err := d.JobCount(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Jobs:       make([]Job, 0, n),
		Milestones: []Milestone{},
		Balances:   make(map[Address]*big.Int),
	}
	parties := make(map[Address]struct{})
	for id := JobID(1); uint64(id) <= n; id++ {
		j, err := d.GetJob(ctx, id)
		if err != nil {
			return Snapshot{}, withOp(err, "snapshot")
		}
		snap.Jobs = append(snap.Jobs, j)
		parties[j.Client] = struct{}{}
		parties[j.Freelancer] = struct{}{}
		for m := MilestoneID(1); uint64(m) <= j.MilestoneCount; m++ {
			ms, err := d.GetMilestone(ctx, id, m)
			if err != nil {
				return Snapshot{}, withOp(err, "snapshot")
			}
			snap.Milestones = append(snap.Milestones, ms)
		}
	}
	for p := range parties {
		bal, err := d.BalanceOf(ctx, p)
		if err != nil {
			return Snapshot{}, withOp(err, "snapshot")
		}
		if bal.Sign() > 0 {
			snap.Balances[p] = bal
		}
	}
	return snap, nil
}

// translate maps an authority failure onto the escrow taxonomy, keeping the
// raw reason.
func translate(op string, err error) error {
	var rej *Rejection
	if errors.As(err, &rej) {
		return &Error{Code: ClassifyReason(rej.Reason), Op: op, Reason: rej.Reason, Err: err}
	}
	var e *Error
	if errors.As(err, &e) {
		return withOp(err, op)
	}
	return &Error{Code: CodeAuthority, Op: op, Err: err}
}

// ClassifyReason maps an authority rejection reason onto a Code. Unknown
// reasons classify as CodeAuthority.
func ClassifyReason(reason string) Code {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "not approved"):
		return CodeNotApproved
	case strings.Contains(r, "already released"):
		return CodeAlreadyReleased
	case strings.Contains(r, "not found"), strings.Contains(r, "no such"),
		strings.Contains(r, "does not exist"), strings.Contains(r, "invalid job"),
		strings.Contains(r, "invalid milestone"):
		return CodeNotFound
	case strings.Contains(r, "insufficient locked"), strings.Contains(r, "insufficient escrow"):
		return CodeInsufficientLocked
	case strings.Contains(r, "amount"), strings.Contains(r, "value"):
		return CodeInvalidAmount
	case strings.Contains(r, "freelancer"), strings.Contains(r, "address"),
		strings.Contains(r, "client"), strings.Contains(r, "party"):
		return CodeInvalidParty
	default:
		return CodeAuthority
	}
}
