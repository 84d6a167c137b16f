// Package escrow implements the milestone escrow ledger.
//
// A client opens a Job with a freelancer, funds it one Milestone at a time,
// approves milestones, and releases approved milestones into the
// freelancer's withdrawable balance. Each milestone moves through
//
//	(approved=false, released=false) -> (true, false) -> (true, true)
//
// and never back. For every job, locked funds plus the amounts of released
// milestones equal the amounts of all funded milestones.
//
// The Engine runs on a Backend. LocalLedger keeps the state in process
// (JobRegistry, MilestoneLedger and BalanceVault sharing one Allocator);
// Delegated forwards to an external settlement Authority and keeps nothing.
// Both report failures with the same error Codes.
package escrow
