package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lmoraga/lakeflow/internal/fault"
	"github.com/lmoraga/lakeflow/internal/tier"
)

func testGateway(b Backend) *Gateway {
	return New(map[tier.Tier]Backend{
		tier.TierRaw:      b,
		tier.TierCleaned:  b,
		tier.TierMirrored: b,
		tier.TierResults:  b,
	}, Config{
		CallTimeout: time.Second,
		Retry: RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2.0,
		},
	})
}

func TestPutGetRoundTrip(t *testing.T) {
	gw := testGateway(NewMemoryBackend())
	ctx := context.Background()
	data := []byte("timestamp,locale\n2024-03-01T08:00:00Z,camden\n")

	art, reused, err := gw.Put(ctx, tier.TierRaw, "weather.csv", data, FormatCSV)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if reused {
		t.Error("first put should not report reuse")
	}
	if art.Checksum != Checksum(data) {
		t.Errorf("artifact checksum = %s, want %s", art.Checksum, Checksum(data))
	}
	if art.Size != int64(len(data)) {
		t.Errorf("artifact size = %d, want %d", art.Size, len(data))
	}

	got, err := gw.Get(ctx, tier.TierRaw, "weather.csv")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Error("read bytes differ from written bytes")
	}
	if Checksum(got) != art.Checksum {
		t.Error("read bytes fail the checksum recorded at write")
	}
}

func TestPutIdempotent(t *testing.T) {
	gw := testGateway(NewMemoryBackend())
	ctx := context.Background()
	data := []byte("identical content")

	first, _, err := gw.Put(ctx, tier.TierCleaned, "weather_cleaned.parquet", data, FormatParquet)
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}

	second, reused, err := gw.Put(ctx, tier.TierCleaned, "weather_cleaned.parquet", data, FormatParquet)
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if !reused {
		t.Error("identical re-put should report reuse")
	}
	if second.Checksum != first.Checksum {
		t.Error("no-op put should return the existing checksum")
	}
	if second.Size != first.Size {
		t.Error("no-op put should return the existing size")
	}
}

func TestPutSupersede(t *testing.T) {
	gw := testGateway(NewMemoryBackend())
	ctx := context.Background()

	old := []byte("version one")
	if _, _, err := gw.Put(ctx, tier.TierCleaned, "merged_data.parquet", old, FormatParquet); err != nil {
		t.Fatalf("Put old: %v", err)
	}

	replacement := []byte("version two, different bytes")
	art, reused, err := gw.Put(ctx, tier.TierCleaned, "merged_data.parquet", replacement, FormatParquet)
	if err != nil {
		t.Fatalf("Put replacement: %v", err)
	}
	if reused {
		t.Error("a different checksum must supersede, not reuse")
	}
	if art.Checksum != Checksum(replacement) {
		t.Error("superseding put should carry the new checksum")
	}

	got, err := gw.Get(ctx, tier.TierCleaned, "merged_data.parquet")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(replacement) {
		t.Error("read should observe only the new bytes")
	}
}

func TestTransientRetry(t *testing.T) {
	mem := NewMemoryBackend()
	failures := 2
	mem.WriteHook = func(tr tier.Tier, name string) error {
		if failures > 0 {
			failures--
			return fault.Transientf("simulated outage")
		}
		return nil
	}
	gw := testGateway(mem)

	_, _, err := gw.Put(context.Background(), tier.TierCleaned, "x.parquet", []byte("data"), FormatParquet)
	if err != nil {
		t.Fatalf("Put should succeed after transient failures: %v", err)
	}
	if failures != 0 {
		t.Errorf("expected the hook to absorb 2 failures, %d left", failures)
	}
}

func TestRetryExhaustion(t *testing.T) {
	mem := NewMemoryBackend()
	calls := 0
	mem.WriteHook = func(tr tier.Tier, name string) error {
		calls++
		return fault.Transientf("still down")
	}
	gw := testGateway(mem)

	_, _, err := gw.Put(context.Background(), tier.TierCleaned, "x.parquet", []byte("data"), FormatParquet)
	if !errors.Is(err, fault.ErrRetryExhausted) {
		t.Errorf("expected retry exhaustion, got %v", err)
	}
	if calls != 3 {
		t.Errorf("write attempted %d times, want 3", calls)
	}
	if !fault.IsTransient(err) {
		t.Error("exhaustion should still classify as transient for reporting")
	}
}

func TestPermanentErrorNotRetried(t *testing.T) {
	mem := NewMemoryBackend()
	calls := 0
	mem.WriteHook = func(tr tier.Tier, name string) error {
		calls++
		return errors.New("access denied")
	}
	gw := testGateway(mem)

	_, _, err := gw.Put(context.Background(), tier.TierCleaned, "x.parquet", []byte("data"), FormatParquet)
	if err == nil {
		t.Fatal("expected the write to fail")
	}
	if calls != 1 {
		t.Errorf("permanent failure attempted %d times, want 1", calls)
	}
}

func TestTierNotBacked(t *testing.T) {
	gw := New(map[tier.Tier]Backend{tier.TierRaw: NewMemoryBackend()}, Config{})

	_, _, err := gw.Put(context.Background(), tier.TierMirrored, "x", nil, FormatBinary)
	if !errors.Is(err, fault.ErrTierNotBacked) {
		t.Errorf("expected tier-not-backed, got %v", err)
	}
}

func TestExists(t *testing.T) {
	gw := testGateway(NewMemoryBackend())
	ctx := context.Background()

	ok, err := gw.Exists(ctx, tier.TierRaw, "absent.csv")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("absent artifact should not exist")
	}

	if _, _, err := gw.Put(ctx, tier.TierRaw, "present.csv", []byte("x"), FormatCSV); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ok, err = gw.Exists(ctx, tier.TierRaw, "present.csv")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Error("written artifact should exist")
	}
}

func TestList(t *testing.T) {
	gw := testGateway(NewMemoryBackend())
	ctx := context.Background()

	for _, name := range []string{"b.parquet", "a.parquet"} {
		if _, _, err := gw.Put(ctx, tier.TierCleaned, name, []byte(name), FormatParquet); err != nil {
			t.Fatalf("Put %s: %v", name, err)
		}
	}

	arts, err := gw.List(ctx, tier.TierCleaned)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(arts) != 2 {
		t.Fatalf("listed %d artifacts, want 2", len(arts))
	}
	if arts[0].Name != "a.parquet" || arts[1].Name != "b.parquet" {
		t.Errorf("listing not sorted by name: %s, %s", arts[0].Name, arts[1].Name)
	}
	if arts[0].Format != FormatParquet {
		t.Errorf("format = %s, want parquet", arts[0].Format)
	}
	if arts[0].Checksum == "" {
		t.Error("listing should carry checksums for reconciliation")
	}
}

func TestFormatForName(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"weather.csv", FormatCSV},
		{"merged_data.parquet", FormatParquet},
		{"runs/abc.json", FormatJSON},
		{"model.bin", FormatBinary},
		{"no-extension", FormatBinary},
	}
	for _, tt := range tests {
		if got := FormatForName(tt.name); got != tt.want {
			t.Errorf("FormatForName(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestChecksumStable(t *testing.T) {
	data := []byte("the same bytes")
	if Checksum(data) != Checksum(data) {
		t.Error("checksum must be deterministic")
	}
	if Checksum(data) == Checksum([]byte("different bytes")) {
		t.Error("different bytes must not collide")
	}
	if len(Checksum(data)) != 64 {
		t.Errorf("checksum length = %d, want 64 hex chars", len(Checksum(data)))
	}
}
