package escrow

import (
	"context"
	"math/big"
)

// Backend executes escrow operations. LocalLedger runs them in process;
// Delegated forwards them to a settlement authority. Both report failures
// with the same Codes, so callers never need to know which one is active.
//
// Addresses and amounts reaching a Backend have already been validated by
// the Engine.
type Backend interface {
	// Name identifies the backend in logs and events ("local", "delegated").
	Name() string

	CreateJob(ctx context.Context, client, freelancer Address) (Job, error)
	CreateMilestone(ctx context.Context, job JobID, amount *big.Int) (Milestone, error)
	ApproveMilestone(ctx context.Context, job JobID, id MilestoneID) (Milestone, error)
	ReleasePayment(ctx context.Context, job JobID, id MilestoneID) (Release, error)
	Withdraw(ctx context.Context, addr Address) (*big.Int, error)

	BalanceOf(ctx context.Context, addr Address) (*big.Int, error)
	GetJob(ctx context.Context, job JobID) (Job, error)
	GetMilestone(ctx context.Context, job JobID, id MilestoneID) (Milestone, error)
	JobCount(ctx context.Context) (uint64, error)
	Snapshot(ctx context.Context) (Snapshot, error)
}
