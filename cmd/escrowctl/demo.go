package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/sudo-init-do/mintaro/internal/escrow"
)

// DemoResult is the walkthrough's outcome.
type DemoResult struct {
	Steps    []DemoStep      `json:"steps"`
	Snapshot escrow.Snapshot `json:"snapshot"`
}

// DemoStep records one operation and the code it failed with, if any.
type DemoStep struct {
	Op     string      `json:"op"`
	Code   escrow.Code `json:"code,omitempty"`
	Result string      `json:"result,omitempty"`
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	var client, freelancer string
	var amounts []int64

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run an escrow walkthrough on an in-process ledger",
		Long: `Opens a job, funds one milestone per --amount, tries to release the
first milestone before and after approving it, releases it a second time and
prints the resulting ledger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			if rootOpts.Verbose {
				logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			}
			res, err := runDemo(cmd.Context(), logger, escrow.Address(client), escrow.Address(freelancer), amounts)
			if err != nil {
				return err
			}
			return writeDemo(cmd.OutOrStdout(), rootOpts.Format, res)
		},
	}

	cmd.Flags().StringVar(&client, "client", "0x1111111111111111111111111111111111111111", "client address")
	cmd.Flags().StringVar(&freelancer, "freelancer", "0x2222222222222222222222222222222222222222", "freelancer address")
	cmd.Flags().Int64SliceVar(&amounts, "amount", []int64{30, 70}, "milestone amounts")
	return cmd
}

func runDemo(ctx context.Context, logger *slog.Logger, client, freelancer escrow.Address, amounts []int64) (DemoResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(amounts) == 0 {
		return DemoResult{}, fmt.Errorf("at least one --amount is required")
	}
	e := escrow.NewEngine(escrow.NewLocalLedger(), escrow.WithLogger(logger))
	var res DemoResult
	record := func(op string, result fmt.Stringer, err error) {
		step := DemoStep{Op: op, Code: escrow.CodeOf(err)}
		if err == nil && result != nil {
			step.Result = result.String()
		}
		res.Steps = append(res.Steps, step)
	}

	job, err := e.CreateJob(ctx, client, freelancer)
	if err != nil {
		return DemoResult{}, err
	}
	record(fmt.Sprintf("create job %d", job.ID), nil, nil)

	for _, a := range amounts {
		m, err := e.CreateMilestone(ctx, job.ID, big.NewInt(a))
		if err != nil {
			return DemoResult{}, err
		}
		record(fmt.Sprintf("fund milestone %d", m.MilestoneID), m.Amount, nil)
	}

	_, err = e.ReleasePayment(ctx, job.ID, 1)
	record("release milestone 1 before approval", nil, err)
	_, err = e.ApproveMilestone(ctx, job.ID, 1)
	record("approve milestone 1", nil, err)
	r, err := e.ReleasePayment(ctx, job.ID, 1)
	record("release milestone 1", r.Amount, err)
	_, err = e.ReleasePayment(ctx, job.ID, 1)
	record("release milestone 1 again", nil, err)
	_, err = e.ReleasePayment(ctx, job.ID, escrow.MilestoneID(len(amounts)+1))
	record(fmt.Sprintf("release unknown milestone %d", len(amounts)+1), nil, err)

	if res.Snapshot, err = e.Snapshot(ctx); err != nil {
		return DemoResult{}, err
	}
	return res, nil
}

func writeDemo(w io.Writer, format string, res DemoResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	for _, s := range res.Steps {
		switch {
		case s.Code != "":
			fmt.Fprintf(w, "%-40s %s\n", s.Op, s.Code)
		case s.Result != "":
			fmt.Fprintf(w, "%-40s ok (%s)\n", s.Op, s.Result)
		default:
			fmt.Fprintf(w, "%-40s ok\n", s.Op)
		}
	}
	fmt.Fprintln(w)
	for _, j := range res.Snapshot.Jobs {
		fmt.Fprintf(w, "job %d locked %s across %d milestones\n", j.ID, j.Locked, j.MilestoneCount)
	}
	for addr, bal := range res.Snapshot.Balances {
		fmt.Fprintf(w, "balance %s %s\n", addr, bal)
	}
	return nil
}
