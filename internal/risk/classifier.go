package risk

import (
	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
)

// Named trap signatures. The names are part of the persisted audit record,
// so they never change casually.
const (
	SigVolumeSpikeAfterOutflow = "volume_spike_after_outflow"
	SigRunupReversal           = "runup_reversal"
)

// FlowHistory exposes the per-instrument daily net-flow series, oldest
// first, newest session included. The feature engine implements this.
type FlowHistory interface {
	FlowSeries(id string) []float64
}

// Classifier detects trap signatures and classifies capital origin, then
// combines the triggered signatures into a weighted composite score in
// [0,1]. Every threshold and weight comes from configuration.
type Classifier struct {
	cfg     *funnelconfig.Config
	history FlowHistory
}

// NewClassifier creates a classifier over the given flow history.
func NewClassifier(cfg *funnelconfig.Config, history FlowHistory) *Classifier {
	return &Classifier{cfg: cfg, history: history}
}

// Classify produces one verdict per usable instrument. Instruments in a
// non-OK feature state get no verdict; the funnel resolves those from the
// feature state directly.
func (c *Classifier) Classify(features *contracts.FeatureSet) *contracts.RiskSet {
	set := contracts.NewRiskSet(features.AsOf)

	for id, f := range features.Features {
		if !f.Usable() {
			continue
		}
		set.Verdicts[id] = c.verdict(id, f)
	}

	return set
}

func (c *Classifier) verdict(id string, f *contracts.InstrumentFeatures) *contracts.RiskVerdict {
	v := &contracts.RiskVerdict{InstrumentID: id}
	flows := c.history.FlowSeries(id)

	if c.volumeSpikeAfterOutflow(f, flows) {
		v.Signatures = append(v.Signatures, SigVolumeSpikeAfterOutflow)
	}
	if c.runupReversal(f) {
		v.Signatures = append(v.Signatures, SigRunupReversal)
	}

	v.Origin = classifyOrigin(flows, c.cfg.Risk.Origin)
	v.Score = c.score(v)

	return v
}

// volumeSpikeAfterOutflow fires on a single-session volume spike after a
// multi-week outflow trend. The trend condition is dimensionless: the
// prior-session flow sum must be at most OutflowTrendMax times today's
// inflow (OutflowTrendMax is negative).
func (c *Classifier) volumeSpikeAfterOutflow(f *contracts.InstrumentFeatures, flows []float64) bool {
	if f.VolumeRatio < c.cfg.Risk.SpikeVolumeRatioMin {
		return false
	}
	if len(flows) == 0 {
		return false
	}

	today := flows[len(flows)-1]
	if today <= 0 {
		return false
	}

	priorSum := f.NetFlow20D - today
	return priorSum <= c.cfg.Risk.OutflowTrendMax*today
}

// runupReversal fires on a rapid multi-day run-up followed by an intraday
// reversal off the session high.
func (c *Classifier) runupReversal(f *contracts.InstrumentFeatures) bool {
	return f.Return5D >= c.cfg.Risk.RunupReturnMin &&
		f.IntradayDrawdown >= c.cfg.Risk.ReversalDrawdownMin
}

// score combines triggered signatures with configured weights. Weights sum
// to 1.0 by validation, so the result is bounded to [0,1].
func (c *Classifier) score(v *contracts.RiskVerdict) float64 {
	w := c.cfg.Risk.Weights

	var score float64
	if v.Has(SigVolumeSpikeAfterOutflow) {
		score += w.VolumeSpikeAfterOutflow
	}
	if v.Has(SigRunupReversal) {
		score += w.RunupReversal
	}
	if v.Origin == contracts.OriginSpeculative {
		score += w.SpeculativeOrigin
	}

	return clamp01(score)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
