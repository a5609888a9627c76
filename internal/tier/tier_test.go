package tier

import "testing"

func TestTierString(t *testing.T) {
	tests := []struct {
		tier Tier
		want string
	}{
		{TierRaw, "raw"},
		{TierCleaned, "cleaned"},
		{TierMirrored, "mirrored"},
		{TierResults, "results"},
	}

	for _, tt := range tests {
		if got := tt.tier.String(); got != tt.want {
			t.Errorf("Tier(%d).String() = %q, want %q", tt.tier, got, tt.want)
		}
	}
}

func TestParseTier(t *testing.T) {
	for _, tr := range AllTiers() {
		parsed, err := ParseTier(tr.String())
		if err != nil {
			t.Errorf("ParseTier(%q): %v", tr.String(), err)
		}
		if parsed != tr {
			t.Errorf("ParseTier(%q) = %v, want %v", tr.String(), parsed, tr)
		}
	}

	if _, err := ParseTier("bronze"); err == nil {
		t.Error("expected error for unknown tier name")
	}
}

func TestTierOrder(t *testing.T) {
	if TierRaw.Next() != TierCleaned {
		t.Error("raw should promote to cleaned")
	}
	if TierCleaned.Next() != TierMirrored {
		t.Error("cleaned should promote to mirrored")
	}
	if TierMirrored.Next() != TierResults {
		t.Error("mirrored should promote to results")
	}
	if TierResults.Next() != TierResults {
		t.Error("results is the last tier")
	}
	if !TierResults.IsLast() {
		t.Error("results should be last")
	}
	if TierRaw.IsLast() {
		t.Error("raw should not be last")
	}
}

func TestTierMarshalText(t *testing.T) {
	data, err := TierMirrored.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(data) != "mirrored" {
		t.Errorf("MarshalText = %q, want %q", data, "mirrored")
	}

	var parsed Tier
	if err := parsed.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if parsed != TierMirrored {
		t.Errorf("UnmarshalText = %v, want %v", parsed, TierMirrored)
	}
}
