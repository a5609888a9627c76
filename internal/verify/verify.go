// Package verify reconciles artifact metadata recorded at write time
// against a fresh read of each tier.
package verify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lmoraga/lakeflow/internal/fault"
	"github.com/lmoraga/lakeflow/internal/gateway"
	"github.com/lmoraga/lakeflow/internal/logging"
	"github.com/lmoraga/lakeflow/internal/tier"
)

// Status is the reconciliation outcome for one artifact.
type Status string

const (
	// StatusMatch means checksum and size both agree.
	StatusMatch Status = "match"

	// StatusMismatch means the tier holds different bytes than the run
	// recorded writing.
	StatusMismatch Status = "mismatch"

	// StatusMissing means the artifact is gone from the tier.
	StatusMissing Status = "missing"

	// StatusExtra means the tier holds an object this run never wrote.
	// Tiers are additive, so extras are reported but never fatal.
	StatusExtra Status = "extra"
)

// Check is the reconciliation result for one artifact.
type Check struct {
	Name   string    `json:"name"`
	Tier   tier.Tier `json:"tier"`
	Status Status    `json:"status"`
	Detail string    `json:"detail,omitempty"`
}

// Report is the full reconciliation of a run.
type Report struct {
	Checks     []Check `json:"checks"`
	Matches    int     `json:"matches"`
	Mismatches int     `json:"mismatches"`
	Missing    int     `json:"missing"`
	Extras     int     `json:"extras"`
}

// Err returns the fatal integrity error for this report, or nil.
// Any mismatch or missing artifact on the cleaned or mirrored tier is
// fatal: it signals corruption, and silent repair could mask it.
// Results-tier problems are reported but do not fail the run.
func (r *Report) Err() error {
	for _, c := range r.Checks {
		if c.Tier != tier.TierCleaned && c.Tier != tier.TierMirrored {
			continue
		}
		switch c.Status {
		case StatusMissing:
			return fmt.Errorf("%w: %s/%s", fault.ErrArtifactMissing, c.Tier, c.Name)
		case StatusMismatch:
			return fmt.Errorf("%w: %s/%s: %s", fault.ErrChecksumMismatch, c.Tier, c.Name, c.Detail)
		}
	}
	return nil
}

// Verifier compares expected artifacts against tier contents.
type Verifier struct {
	gw  *gateway.Gateway
	log *slog.Logger
}

// New creates a verifier over the gateway.
func New(gw *gateway.Gateway) *Verifier {
	return &Verifier{gw: gw, log: logging.Component("verifier")}
}

// Reconcile lists every tier that holds expected artifacts and compares
// checksums and sizes recorded at write time against what the tier
// actually holds now.
func (v *Verifier) Reconcile(ctx context.Context, expected []gateway.Artifact) (*Report, error) {
	report := &Report{}

	byTier := make(map[tier.Tier][]gateway.Artifact)
	for _, art := range expected {
		byTier[art.Tier] = append(byTier[art.Tier], art)
	}

	for _, t := range tier.AllTiers() {
		want, ok := byTier[t]
		if !ok {
			continue
		}

		actual, err := v.gw.List(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("reconcile %s: %w", t, err)
		}
		byName := make(map[string]gateway.Artifact, len(actual))
		for _, a := range actual {
			byName[a.Name] = a
		}

		seen := make(map[string]bool, len(want))
		for _, w := range want {
			seen[w.Name] = true
			report.Checks = append(report.Checks, v.check(w, byName))
		}
		for _, a := range actual {
			if seen[a.Name] {
				continue
			}
			report.Extras++
			report.Checks = append(report.Checks, Check{
				Name:   a.Name,
				Tier:   t,
				Status: StatusExtra,
			})
		}
	}

	for _, c := range report.Checks {
		switch c.Status {
		case StatusMatch:
			report.Matches++
		case StatusMismatch:
			report.Mismatches++
		case StatusMissing:
			report.Missing++
		}
	}

	v.log.Info("reconciliation complete",
		"matches", report.Matches,
		"mismatches", report.Mismatches,
		"missing", report.Missing,
		"extras", report.Extras)
	return report, nil
}

func (v *Verifier) check(want gateway.Artifact, actual map[string]gateway.Artifact) Check {
	got, ok := actual[want.Name]
	if !ok {
		return Check{Name: want.Name, Tier: want.Tier, Status: StatusMissing}
	}
	if got.Checksum != want.Checksum {
		return Check{
			Name:   want.Name,
			Tier:   want.Tier,
			Status: StatusMismatch,
			Detail: fmt.Sprintf("checksum %s, expected %s", short(got.Checksum), short(want.Checksum)),
		}
	}
	if got.Size != want.Size {
		return Check{
			Name:   want.Name,
			Tier:   want.Tier,
			Status: StatusMismatch,
			Detail: fmt.Sprintf("size %d, expected %d", got.Size, want.Size),
		}
	}
	return Check{Name: want.Name, Tier: want.Tier, Status: StatusMatch}
}

func short(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	if checksum == "" {
		return "(none)"
	}
	return checksum
}
