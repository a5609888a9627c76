package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lmoraga/lakeflow/internal/fault"
	"github.com/lmoraga/lakeflow/internal/gateway"
	"github.com/lmoraga/lakeflow/internal/tier"
)

func testSetup() (*gateway.MemoryBackend, *gateway.Gateway, *Verifier) {
	mem := gateway.NewMemoryBackend()
	gw := gateway.New(map[tier.Tier]gateway.Backend{
		tier.TierRaw:      mem,
		tier.TierCleaned:  mem,
		tier.TierMirrored: mem,
		tier.TierResults:  mem,
	}, gateway.Config{CallTimeout: time.Second})
	return mem, gw, New(gw)
}

func put(t *testing.T, gw *gateway.Gateway, tr tier.Tier, name, content string) gateway.Artifact {
	t.Helper()
	art, _, err := gw.Put(context.Background(), tr, name, []byte(content), gateway.FormatForName(name))
	if err != nil {
		t.Fatalf("put %s/%s: %v", tr, name, err)
	}
	return art
}

func TestReconcileAllMatch(t *testing.T) {
	_, gw, v := testSetup()
	expected := []gateway.Artifact{
		put(t, gw, tier.TierCleaned, "weather_cleaned.parquet", "weather bytes"),
		put(t, gw, tier.TierCleaned, "traffic_cleaned.parquet", "traffic bytes"),
		put(t, gw, tier.TierMirrored, "weather/weather_cleaned.parquet", "weather bytes"),
	}

	report, err := v.Reconcile(context.Background(), expected)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Matches != 3 || report.Mismatches != 0 || report.Missing != 0 {
		t.Errorf("match/mismatch/missing = %d/%d/%d, want 3/0/0",
			report.Matches, report.Mismatches, report.Missing)
	}
	if report.Err() != nil {
		t.Errorf("clean reconciliation should not be fatal: %v", report.Err())
	}
}

func TestReconcileMismatch(t *testing.T) {
	mem, gw, v := testSetup()
	art := put(t, gw, tier.TierCleaned, "merged_data.parquet", "original bytes")

	// Out-of-band corruption: the stored object changes after the run
	// recorded its checksum.
	mem.Corrupt(tier.TierCleaned, "merged_data.parquet", []byte("tampered bytes"))

	report, err := v.Reconcile(context.Background(), []gateway.Artifact{art})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Mismatches != 1 {
		t.Fatalf("mismatches = %d, want 1", report.Mismatches)
	}
	if !errors.Is(report.Err(), fault.ErrChecksumMismatch) {
		t.Errorf("cleaned-tier mismatch should be fatal, got %v", report.Err())
	}
	if fault.Classify(report.Err()) != fault.ClassIntegrity {
		t.Errorf("mismatch should classify as integrity, got %v", fault.Classify(report.Err()))
	}
}

func TestReconcileMissing(t *testing.T) {
	_, gw, v := testSetup()
	put(t, gw, tier.TierMirrored, "present.parquet", "here")

	expected := []gateway.Artifact{
		{Name: "present.parquet", Tier: tier.TierMirrored, Checksum: gateway.Checksum([]byte("here")), Size: 4},
		{Name: "vanished.parquet", Tier: tier.TierMirrored, Checksum: "abc", Size: 10},
	}

	report, err := v.Reconcile(context.Background(), expected)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Missing != 1 || report.Matches != 1 {
		t.Errorf("missing/matches = %d/%d, want 1/1", report.Missing, report.Matches)
	}
	if !errors.Is(report.Err(), fault.ErrArtifactMissing) {
		t.Errorf("mirrored-tier absence should be fatal, got %v", report.Err())
	}
}

func TestReconcileExtrasNotFatal(t *testing.T) {
	_, gw, v := testSetup()
	art := put(t, gw, tier.TierCleaned, "expected.parquet", "mine")
	put(t, gw, tier.TierCleaned, "someone-elses.parquet", "not mine")

	report, err := v.Reconcile(context.Background(), []gateway.Artifact{art})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Extras != 1 {
		t.Errorf("extras = %d, want 1", report.Extras)
	}
	if report.Err() != nil {
		t.Errorf("extras must never be fatal, got %v", report.Err())
	}
}

func TestReconcileResultsTierNotFatal(t *testing.T) {
	mem, gw, v := testSetup()
	art := put(t, gw, tier.TierResults, "summary.json", "result bytes")
	mem.Corrupt(tier.TierResults, "summary.json", []byte("mangled"))

	report, err := v.Reconcile(context.Background(), []gateway.Artifact{art})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Mismatches != 1 {
		t.Fatalf("mismatches = %d, want 1", report.Mismatches)
	}
	if report.Err() != nil {
		t.Errorf("results-tier mismatch is reported but not fatal, got %v", report.Err())
	}
}

func TestReconcileSizeMismatch(t *testing.T) {
	_, gw, v := testSetup()
	art := put(t, gw, tier.TierCleaned, "x.parquet", "bytes")

	// Same checksum claim, wrong recorded size.
	art.Size++

	report, err := v.Reconcile(context.Background(), []gateway.Artifact{art})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Mismatches != 1 {
		t.Errorf("mismatches = %d, want 1", report.Mismatches)
	}
}
