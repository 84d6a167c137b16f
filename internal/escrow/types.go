package escrow

import (
	"errors"
	"math/big"

	"github.com/sudo-init-do/mintaro/internal/address"
)

// JobID identifies a job. Ids start at 1 and are never reused.
type JobID uint64

// MilestoneID identifies a milestone within its job. Ids start at 1 per job.
type MilestoneID uint64

// Address is a party identifier in canonical lowercase 0x form. It is used
// as an opaque map key; construct it with ParseAddress.
type Address string

// ZeroAddress is what an authority reports for parties of a job that does not
// exist.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates s and returns its canonical form.
func ParseAddress(s string) (Address, error) {
	a, err := address.Normalize(s)
	if err != nil {
		code := CodeInvalidParty
		if errors.Is(err, address.ErrEmpty) {
			return "", newError(code, "parse address", "address is empty")
		}
		return "", &Error{Code: code, Op: "parse address", Message: s, Err: err}
	}
	return Address(a), nil
}

// MustAddress is ParseAddress for constants and tests.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return string(a) }

// Job is a client-freelancer engagement funded milestone by milestone.
type Job struct {
	ID             JobID    `json:"id"`
	Client         Address  `json:"client"`
	Freelancer     Address  `json:"freelancer"`
	Locked         *big.Int `json:"locked"`
	MilestoneCount uint64   `json:"milestone_count"`
}

func (j Job) clone() Job {
	j.Locked = copyAmount(j.Locked)
	return j
}

// Milestone is a funded slice of a job's payment.
type Milestone struct {
	JobID       JobID       `json:"job_id"`
	MilestoneID MilestoneID `json:"milestone_id"`
	Amount      *big.Int    `json:"amount"`
	Approved    bool        `json:"approved"`
	Released    bool        `json:"released"`
}

func (m Milestone) clone() Milestone {
	m.Amount = copyAmount(m.Amount)
	return m
}

// Release describes a completed payment release.
type Release struct {
	JobID       JobID       `json:"job_id"`
	MilestoneID MilestoneID `json:"milestone_id"`
	Freelancer  Address     `json:"freelancer"`
	Amount      *big.Int    `json:"amount"`
}

// Snapshot is a read-only view of a ledger's full state. Balances lists only
// non-zero entries.
type Snapshot struct {
	Jobs       []Job                `json:"jobs"`
	Milestones []Milestone          `json:"milestones"`
	Balances   map[Address]*big.Int `json:"balances"`
}

func copyAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func checkAmount(op string, amount *big.Int) error {
	if amount == nil {
		return newError(CodeInvalidAmount, op, "amount is required")
	}
	if amount.Sign() < 0 {
		return newError(CodeInvalidAmount, op, "amount %s is negative", amount)
	}
	return nil
}
