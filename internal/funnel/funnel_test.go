package funnel

import (
	"reflect"
	"testing"
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
)

var asOf = time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC)

type fixture struct {
	ratio     float64
	netFlow5d float64
	upStreak  int
	score     float64
	sigs      []string
}

func buildInputs(id string, fx fixture) (*contracts.FeatureSet, *contracts.RiskSet) {
	features := contracts.NewFeatureSet(asOf)
	features.Features[id] = &contracts.InstrumentFeatures{
		InstrumentID: id,
		State:        contracts.FeatureOK,
		FlowRatio:    fx.ratio,
		NetFlow5D:    fx.netFlow5d,
		UpStreak:     fx.upStreak,
		HistoryDays:  10,
	}

	risks := contracts.NewRiskSet(asOf)
	risks.Verdicts[id] = &contracts.RiskVerdict{
		InstrumentID: id,
		Signatures:   fx.sigs,
		Origin:       contracts.OriginIndeterminate,
		Score:        fx.score,
	}

	return features, risks
}

func evaluateOne(t *testing.T, fx fixture) contracts.DecisionRecord {
	t.Helper()
	f := New(funnelconfig.NewTestConfig())
	features, risks := buildInputs("NYSE:TEST", fx)
	result := f.Evaluate(features, risks)

	rec, ok := result.Records["NYSE:TEST"]
	if !ok {
		t.Fatal("no decision record produced")
	}
	return rec
}

func TestGateSequence(t *testing.T) {
	tests := []struct {
		name     string
		fx       fixture
		wantTag  contracts.DecisionTag
		wantGate string
	}{
		// Ratio 0.3% against a 0.5% minimum.
		{"weak flow rejects", fixture{ratio: 0.003, netFlow5d: 1e6}, contracts.TagRejectWeak, GateWeakSignal},
		// Ratio 6% against a 5% maximum.
		{"anomalous flow rejects", fixture{ratio: 0.06, netFlow5d: 1e8}, contracts.TagRejectAnomaly, GateAnomalousSignal},
		// Ratio 1.8%, risk 0.1, no signature.
		{"qualifying band is a candidate", fixture{ratio: 0.018, netFlow5d: 1e6, score: 0.1}, contracts.TagCandidate, GateCandidate},
		// Three up days, negative multi-day flow, ratio 0.7%.
		{"divergence blocks", fixture{ratio: 0.007, netFlow5d: -2e6, upStreak: 3}, contracts.TagBlock, GateDivergence},
		{"trap with high risk blocks", fixture{ratio: 0.02, netFlow5d: 1e6, score: 0.45, sigs: []string{"runup_reversal"}}, contracts.TagBlock, GateTrapRisk},
		{"trap below risk floor holds", fixture{ratio: 0.02, netFlow5d: 1e6, score: 0.35, sigs: []string{"runup_reversal"}}, contracts.TagHoldNeutral, GateDefault},
		{"clean but risky holds", fixture{ratio: 0.02, netFlow5d: 1e6, score: 0.30}, contracts.TagHoldNeutral, GateDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := evaluateOne(t, tt.fx)
			if rec.Tag != tt.wantTag {
				t.Errorf("Tag = %v, want %v", rec.Tag, tt.wantTag)
			}
			if rec.Gate != tt.wantGate {
				t.Errorf("Gate = %v, want %v", rec.Gate, tt.wantGate)
			}
		})
	}
}

func TestBoundaryConvention(t *testing.T) {
	// Thresholds are inclusive on the reject side: a ratio exactly at the
	// minimum or maximum rejects, never passes through.
	tests := []struct {
		name  string
		ratio float64
		want  contracts.DecisionTag
	}{
		{"exactly at minimum", 0.005, contracts.TagRejectWeak},
		{"just above minimum", 0.0050001, contracts.TagBlock}, // divergence fixture below
		{"exactly at maximum", 0.05, contracts.TagRejectAnomaly},
		{"just below maximum", 0.0499999, contracts.TagCandidate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := fixture{ratio: tt.ratio, netFlow5d: 1e6, score: 0.1}
			if tt.want == contracts.TagBlock {
				fx.netFlow5d = -1e6
				fx.upStreak = 3
			}
			rec := evaluateOne(t, fx)
			if rec.Tag != tt.want {
				t.Errorf("ratio %v: Tag = %v, want %v", tt.ratio, rec.Tag, tt.want)
			}
		})
	}
}

func TestInsufficientHistoryIsDistinctOutcome(t *testing.T) {
	f := New(funnelconfig.NewTestConfig())

	features := contracts.NewFeatureSet(asOf)
	features.Features["NYSE:NEW"] = &contracts.InstrumentFeatures{
		InstrumentID: "NYSE:NEW",
		State:        contracts.FeatureInsufficientHistory,
	}
	features.Features["NYSE:NOFLOAT"] = &contracts.InstrumentFeatures{
		InstrumentID: "NYSE:NOFLOAT",
		State:        contracts.FeatureNoFloat,
	}

	result := f.Evaluate(features, contracts.NewRiskSet(asOf))

	for id, wantGate := range map[string]string{
		"NYSE:NEW":     GateNoHistory,
		"NYSE:NOFLOAT": GateNoFloat,
	} {
		rec := result.Records[id]
		if rec.Tag != contracts.TagInsufficientHistory {
			t.Errorf("%s: Tag = %v, want INSUFFICIENT_HISTORY", id, rec.Tag)
		}
		if rec.Tag == contracts.TagHoldNeutral {
			t.Errorf("%s: folded into HOLD_NEUTRAL", id)
		}
		if rec.Gate != wantGate {
			t.Errorf("%s: Gate = %v, want %v", id, rec.Gate, wantGate)
		}
	}
}

func TestEvaluate_ExactlyOneTagPerInstrument(t *testing.T) {
	f := New(funnelconfig.NewTestConfig())

	features := contracts.NewFeatureSet(asOf)
	risks := contracts.NewRiskSet(asOf)
	fixtures := []fixture{
		{ratio: 0.003},
		{ratio: 0.06},
		{ratio: 0.018, score: 0.1},
		{ratio: 0.007, netFlow5d: -1e6, upStreak: 4},
		{ratio: 0.02, score: 0.5, sigs: []string{"runup_reversal"}},
		{ratio: 0.02, score: 0.3},
	}
	valid := map[contracts.DecisionTag]bool{}
	for _, tag := range contracts.DecisionTags() {
		valid[tag] = true
	}

	for i, fx := range fixtures {
		id := string(rune('A'+i)) + ":SYM"
		fs, rs := buildInputs(id, fx)
		features.Features[id] = fs.Features[id]
		risks.Verdicts[id] = rs.Verdicts[id]
	}

	result := f.Evaluate(features, risks)
	if result.Count() != len(fixtures) {
		t.Fatalf("records = %d, want %d", result.Count(), len(fixtures))
	}
	for id, rec := range result.Records {
		if !valid[rec.Tag] {
			t.Errorf("%s: tag %v outside the closed tag set", id, rec.Tag)
		}
	}
}

func TestEvaluate_IsPure(t *testing.T) {
	f := New(funnelconfig.NewTestConfig())
	features, risks := buildInputs("NASDAQ:DET", fixture{ratio: 0.018, netFlow5d: 3e6, score: 0.1})

	first := f.Evaluate(features, risks)
	second := f.Evaluate(features, risks)

	if !reflect.DeepEqual(first.Records, second.Records) {
		t.Error("identical inputs produced different decisions")
	}
}

func TestEvaluate_MissingVerdictActsAsZeroRisk(t *testing.T) {
	f := New(funnelconfig.NewTestConfig())

	features := contracts.NewFeatureSet(asOf)
	features.Features["NYSE:Q"] = &contracts.InstrumentFeatures{
		InstrumentID: "NYSE:Q",
		State:        contracts.FeatureOK,
		FlowRatio:    0.02,
		NetFlow5D:    1e6,
	}

	result := f.Evaluate(features, nil)
	rec := result.Records["NYSE:Q"]
	if rec.Tag != contracts.TagCandidate {
		t.Errorf("Tag = %v, want CANDIDATE with zero verdict", rec.Tag)
	}
}
