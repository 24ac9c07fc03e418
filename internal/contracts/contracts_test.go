package contracts

import (
	"testing"
	"time"
)

func TestInstrument_ID(t *testing.T) {
	inst := Instrument{Symbol: "AAPL", Exchange: "NASDAQ"}
	if got := inst.ID(); got != "NASDAQ:AAPL" {
		t.Errorf("ID() = %s, want NASDAQ:AAPL", got)
	}
}

func TestInstrument_FloatValue(t *testing.T) {
	tests := []struct {
		name  string
		inst  Instrument
		price float64
		want  float64
	}{
		{"normal", Instrument{FloatShares: 1_000_000}, 50.0, 50_000_000},
		{"zero float", Instrument{FloatShares: 0}, 50.0, 0},
		{"negative float", Instrument{FloatShares: -1}, 50.0, 0},
		{"zero price", Instrument{FloatShares: 1_000_000}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inst.FloatValue(tt.price); got != tt.want {
				t.Errorf("FloatValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProviderSelectionLog_RecordGap(t *testing.T) {
	log := NewProviderSelectionLog(time.Now())
	log.Record("NASDAQ:AAPL", Tier2)
	log.RecordGap("NASDAQ:MSFT")

	if got := log.TierFor("NASDAQ:AAPL"); got != Tier2 {
		t.Errorf("TierFor(AAPL) = %v, want Tier2", got)
	}
	if got := log.TierFor("NASDAQ:MSFT"); got != TierUnavailable {
		t.Errorf("TierFor(MSFT) = %v, want TierUnavailable", got)
	}
	if got := log.TierFor("NASDAQ:UNKNOWN"); got != TierUnavailable {
		t.Errorf("TierFor(unknown) = %v, want TierUnavailable", got)
	}
	if log.GapCount() != 1 {
		t.Errorf("GapCount() = %d, want 1", log.GapCount())
	}
}

func TestTier_String(t *testing.T) {
	if Tier1.String() != "TIER1_DEPTH" {
		t.Errorf("Tier1.String() = %s", Tier1.String())
	}
	if TierUnavailable.String() != "UNAVAILABLE" {
		t.Errorf("TierUnavailable.String() = %s", TierUnavailable.String())
	}
}

func TestCycleResult_Ordered(t *testing.T) {
	result := NewCycleResult(time.Now())
	result.Records["NYSE:ZTS"] = DecisionRecord{InstrumentID: "NYSE:ZTS", Tag: TagHoldNeutral}
	result.Records["NASDAQ:AAPL"] = DecisionRecord{InstrumentID: "NASDAQ:AAPL", Tag: TagCandidate}
	result.Records["NYSE:BAC"] = DecisionRecord{InstrumentID: "NYSE:BAC", Tag: TagRejectWeak}

	ordered := result.Ordered()
	if len(ordered) != 3 {
		t.Fatalf("Ordered() returned %d records, want 3", len(ordered))
	}

	want := []string{"NASDAQ:AAPL", "NYSE:BAC", "NYSE:ZTS"}
	for i, rec := range ordered {
		if rec.InstrumentID != want[i] {
			t.Errorf("Ordered()[%d] = %s, want %s", i, rec.InstrumentID, want[i])
		}
	}
}

func TestRiskVerdict_Has(t *testing.T) {
	v := &RiskVerdict{Signatures: []string{"volume_spike_after_outflow"}}

	if !v.Trapped() {
		t.Error("Trapped() should be true")
	}
	if !v.Has("volume_spike_after_outflow") {
		t.Error("Has(volume_spike_after_outflow) should be true")
	}
	if v.Has("runup_reversal") {
		t.Error("Has(runup_reversal) should be false")
	}
}
