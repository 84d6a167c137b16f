package marketplace

import "encoding/json"

// CreateJobRequest opens a job with the caller as client.
type CreateJobRequest struct {
	Freelancer string `json:"freelancer"`
}

// FundMilestoneRequest funds a new milestone. Amount is a JSON number or a
// decimal string.
type FundMilestoneRequest struct {
	Amount json.RawMessage `json:"amount"`
}
