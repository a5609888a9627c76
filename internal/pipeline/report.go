package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lmoraga/lakeflow/internal/clean"
	"github.com/lmoraga/lakeflow/internal/gateway"
	"github.com/lmoraga/lakeflow/internal/logging"
	"github.com/lmoraga/lakeflow/internal/merge"
	"github.com/lmoraga/lakeflow/internal/tier"
	"github.com/lmoraga/lakeflow/internal/verify"
)

// Report is the structured summary of one run, persisted into the
// results tier for auditability. It always reflects the true terminal
// state of every attempted phase — a halted run produces a report too,
// never a silently truncated one.
type Report struct {
	RunID     string    `json:"run_id"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Error     string    `json:"error,omitempty"`

	Phases         []*Phase           `json:"phases"`
	CleanReports   []*clean.Report    `json:"clean_reports,omitempty"`
	MergeStats     *merge.Stats       `json:"merge_stats,omitempty"`
	Artifacts      []gateway.Artifact `json:"artifacts,omitempty"`
	Reconciliation *verify.Report     `json:"reconciliation,omitempty"`
}

// JSON renders the report for persistence.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func (o *Orchestrator) buildReport(state *runState, runErr error) *Report {
	report := &Report{
		RunID:          state.run.ID,
		Status:         state.run.Status,
		StartedAt:      state.run.StartedAt,
		EndedAt:        state.run.EndedAt,
		Phases:         state.run.Phases,
		CleanReports:   state.cleanReports,
		MergeStats:     state.mergeStats,
		Artifacts:      state.artifacts,
		Reconciliation: state.reconciliation,
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}
	return report
}

// persistReport writes the run report into the results tier. Best
// effort: a report that cannot be stored is still returned to the
// caller, and the failure never masks the run's own outcome.
func (o *Orchestrator) persistReport(ctx context.Context, state *runState, report *Report) {
	data, err := report.JSON()
	if err != nil {
		o.log.Error("encode run report", "error", err)
		return
	}

	// The surrounding run may have been cancelled; the report should
	// still be written if the backend is reachable.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}

	name := "runs/" + state.run.ID + ".json"
	if _, _, err := o.gw.Put(ctx, tier.TierResults, name, data, gateway.FormatJSON); err != nil {
		logging.WithContext(ctx).Error("persist run report", "error", err, "name", name)
	}
}

func nowUTC() time.Time { return time.Now().UTC() }
