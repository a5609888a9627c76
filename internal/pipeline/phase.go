// Package pipeline implements the staged promotion orchestrator: the
// ordered phases that take raw records to a verified, queryable merged
// dataset across the lake tiers.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PhaseID identifies one pipeline phase. Phases execute strictly in
// this order; a later phase never starts before the prior one reaches a
// terminal state.
type PhaseID int

const (
	PhaseIngestRaw PhaseID = iota
	PhaseClean
	PhaseMerge
	PhaseWriteCleaned
	PhaseMirror
	PhaseWriteResults
	PhaseVerify
)

// String returns the phase name.
func (p PhaseID) String() string {
	switch p {
	case PhaseIngestRaw:
		return "ingest-raw"
	case PhaseClean:
		return "clean"
	case PhaseMerge:
		return "merge"
	case PhaseWriteCleaned:
		return "write-cleaned"
	case PhaseMirror:
		return "mirror"
	case PhaseWriteResults:
		return "write-results"
	case PhaseVerify:
		return "verify"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler for JSON reports.
func (p PhaseID) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// AllPhases returns the phases in execution order.
func AllPhases() []PhaseID {
	return []PhaseID{
		PhaseIngestRaw,
		PhaseClean,
		PhaseMerge,
		PhaseWriteCleaned,
		PhaseMirror,
		PhaseWriteResults,
		PhaseVerify,
	}
}

// Status is the state of a phase or a whole run.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed

	// StatusSkipped is skipped-idempotent: the gateway reported every
	// write in the phase as a checksum no-op. Downstream phases treat
	// it identically to succeeded.
	StatusSkipped
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped-idempotent"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler for JSON reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// Ok reports whether downstream phases may proceed after this status.
func (s Status) Ok() bool {
	return s == StatusSucceeded || s == StatusSkipped
}

// Phase is one phase of one run. Phases are owned by their run and do
// not outlive it.
type Phase struct {
	ID        PhaseID   `json:"id"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Run is a single pipeline execution.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Status    Status    `json:"status"`
	Phases    []*Phase  `json:"phases"`
}

// NewRun creates a run with every phase pending.
func NewRun() *Run {
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    StatusRunning,
	}
	for _, id := range AllPhases() {
		run.Phases = append(run.Phases, &Phase{ID: id, Status: StatusPending})
	}
	return run
}

// Phase returns the run's phase with the given ID.
func (r *Run) Phase(id PhaseID) *Phase {
	for _, p := range r.Phases {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Finish marks the run terminal: failed if any phase failed, succeeded
// otherwise.
func (r *Run) Finish() {
	r.EndedAt = time.Now().UTC()
	r.Status = StatusSucceeded
	for _, p := range r.Phases {
		if p.Status == StatusFailed {
			r.Status = StatusFailed
			return
		}
	}
}
