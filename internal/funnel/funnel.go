package funnel

import (
	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
)

// Gate names recorded on each decision for audit.
const (
	GateWeakSignal      = "gate1_weak_signal"
	GateAnomalousSignal = "gate2_anomalous_signal"
	GateTrapRisk        = "gate3_trap_risk"
	GateDivergence      = "gate3_5_divergence"
	GateCandidate       = "gate4_candidate"
	GateDefault         = "default"
	GateNoHistory       = "state_insufficient_history"
	GateNoFloat         = "state_no_float"
)

// Funnel is the strictly ordered gate sequence that assigns one decision tag
// per instrument per cycle. First matching gate wins. The funnel is pure:
// identical features and verdicts always yield identical decisions, which is
// what makes replay determinism possible. Every threshold comes from the
// injected configuration; gate order is fixed in code and is itself part of
// the contract.
// ⭐ SSOT: decision tags are assigned here only.
type Funnel struct {
	cfg *funnelconfig.Config
}

// New creates a funnel over the given thresholds.
func New(cfg *funnelconfig.Config) *Funnel {
	return &Funnel{cfg: cfg}
}

// Evaluate assigns exactly one tag to every instrument in the feature set.
// Non-OK feature states become distinct visible outcomes, never a silent
// pass or a folded-in HOLD_NEUTRAL.
func (f *Funnel) Evaluate(features *contracts.FeatureSet, risks *contracts.RiskSet) *contracts.CycleResult {
	result := contracts.NewCycleResult(features.AsOf)

	for id, feat := range features.Features {
		verdict := verdictFor(risks, id)
		tag, gate := f.decide(feat, verdict)

		result.Records[id] = contracts.DecisionRecord{
			InstrumentID: id,
			Tag:          tag,
			Gate:         gate,
			AsOf:         features.AsOf,
			Summary: contracts.FeatureSummary{
				FlowRatio:  feat.FlowRatio,
				NetFlow5D:  feat.NetFlow5D,
				RiskScore:  verdict.Score,
				Signatures: verdict.Signatures,
				Origin:     verdict.Origin,
				UpStreak:   feat.UpStreak,
			},
		}
	}

	return result
}

// decide walks the gates in order. Boundary convention: thresholds are
// inclusive on the reject and block side, so a ratio exactly at
// FlowRatioMin rejects and exactly at FlowRatioMax rejects.
func (f *Funnel) decide(feat *contracts.InstrumentFeatures, verdict *contracts.RiskVerdict) (contracts.DecisionTag, string) {
	switch feat.State {
	case contracts.FeatureInsufficientHistory:
		return contracts.TagInsufficientHistory, GateNoHistory
	case contracts.FeatureNoFloat:
		return contracts.TagInsufficientHistory, GateNoFloat
	}

	g := f.cfg.Gates

	// Gate 1: not enough directional flow to mean anything.
	if feat.FlowRatio <= g.FlowRatioMin {
		return contracts.TagRejectWeak, GateWeakSignal
	}

	// Gate 2: flow too large relative to float, likely manipulation.
	if feat.FlowRatio >= g.FlowRatioMax {
		return contracts.TagRejectAnomaly, GateAnomalousSignal
	}

	// Gate 3: a trap signature fired and the composite risk confirms it.
	if verdict.Trapped() && verdict.Score >= g.BlockRiskMin {
		return contracts.TagBlock, GateTrapRisk
	}

	// Gate 3.5: sustained price appreciation without flow support.
	if feat.UpStreak >= g.DivergenceUpDays && feat.NetFlow5D < 0 && feat.FlowRatio <= g.DivergenceRatioMax {
		return contracts.TagBlock, GateDivergence
	}

	// Gate 4: the qualifying band. The ratio band is already implied by
	// passing gates 1 and 2.
	if !verdict.Trapped() && verdict.Score <= g.CandidateRiskMax {
		return contracts.TagCandidate, GateCandidate
	}

	return contracts.TagHoldNeutral, GateDefault
}

// verdictFor returns the instrument's verdict, or a zero verdict when the
// classifier produced none. A zero verdict carries no signatures and no
// risk, so it can only pass or hold.
func verdictFor(risks *contracts.RiskSet, id string) *contracts.RiskVerdict {
	if risks != nil {
		if v, ok := risks.Get(id); ok {
			return v
		}
	}
	return &contracts.RiskVerdict{InstrumentID: id, Origin: contracts.OriginIndeterminate}
}
