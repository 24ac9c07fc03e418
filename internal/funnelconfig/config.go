package funnelconfig

import "time"

// Config is the full trading-threshold configuration for the decision
// funnel, risk classifier and monitor loop. Every gate threshold lives here
// under a named key; funnel logic carries no inline literals.
// ⭐ SSOT: config/funnel.yaml is the only source of these values.
type Config struct {
	Meta    Meta    `yaml:"meta" json:"meta"`
	Monitor Monitor `yaml:"monitor" json:"monitor"`
	Feature Feature `yaml:"feature" json:"feature"`
	Risk    Risk    `yaml:"risk" json:"risk"`
	Gates   Gates   `yaml:"gates" json:"gates"`
}

// Meta identifies the strategy and its trading session.
type Meta struct {
	StrategyID string  `yaml:"strategy_id" json:"strategy_id"`
	Version    string  `yaml:"version" json:"version"`
	Timezone   string  `yaml:"timezone" json:"timezone"`
	Session    Session `yaml:"session" json:"session"`
}

// Session is the market session window in local exchange time.
type Session struct {
	Open  string `yaml:"open" json:"open"`   // HH:MM
	Close string `yaml:"close" json:"close"` // HH:MM
}

// Monitor configures the live polling loop.
type Monitor struct {
	Cadence       time.Duration `yaml:"cadence" json:"cadence"`
	CycleDeadline time.Duration `yaml:"cycle_deadline" json:"cycle_deadline"`
	FetchWorkers  int           `yaml:"fetch_workers" json:"fetch_workers"`
}

// Feature configures the feature engine's windows.
type Feature struct {
	MinHistoryDays int `yaml:"min_history_days" json:"min_history_days"`
	LookbackDays   int `yaml:"lookback_days" json:"lookback_days"`
}

// Risk configures trap-signature weights and origin classification.
// Weights must sum to 1.0 so the composite score stays in [0,1].
type Risk struct {
	Weights RiskWeights `yaml:"weights" json:"weights"`
	Origin  Origin      `yaml:"origin" json:"origin"`

	// Signature trigger thresholds
	SpikeVolumeRatioMin float64 `yaml:"spike_volume_ratio_min" json:"spike_volume_ratio_min"`
	OutflowTrendMax     float64 `yaml:"outflow_trend_max" json:"outflow_trend_max"`
	RunupReturnMin      float64 `yaml:"runup_return_min" json:"runup_return_min"`
	ReversalDrawdownMin float64 `yaml:"reversal_drawdown_min" json:"reversal_drawdown_min"`
}

// RiskWeights weight each named trap signature in the composite score.
type RiskWeights struct {
	VolumeSpikeAfterOutflow float64 `yaml:"volume_spike_after_outflow" json:"volume_spike_after_outflow"`
	RunupReversal           float64 `yaml:"runup_reversal" json:"runup_reversal"`
	SpeculativeOrigin       float64 `yaml:"speculative_origin" json:"speculative_origin"`
}

// Sum returns the total signature weight.
func (w RiskWeights) Sum() float64 {
	return w.VolumeSpikeAfterOutflow + w.RunupReversal + w.SpeculativeOrigin
}

// Origin configures capital-origin classification over the daily flow series.
type Origin struct {
	// FlipRatioMin: fraction of day-over-day sign changes above which the
	// flow is labeled speculative.
	FlipRatioMin float64 `yaml:"flip_ratio_min" json:"flip_ratio_min"`
	// PersistenceMin: fraction of same-sign days above which the flow is
	// labeled accumulative.
	PersistenceMin float64 `yaml:"persistence_min" json:"persistence_min"`
	MinDays        int     `yaml:"min_days" json:"min_days"`
}

// Gates holds every decision-funnel threshold. Gate order is fixed in code;
// these values parameterize each gate. The reject thresholds are disjoint by
// validation: FlowRatioMin < DivergenceRatioMax < FlowRatioMax.
type Gates struct {
	// Gate 1: flow ratio at or below this → REJECT_WEAK
	FlowRatioMin float64 `yaml:"flow_ratio_min" json:"flow_ratio_min"`
	// Gate 2: flow ratio at or above this → REJECT_ANOMALY
	FlowRatioMax float64 `yaml:"flow_ratio_max" json:"flow_ratio_max"`
	// Gate 3: trap signature present AND risk score >= this → BLOCK
	BlockRiskMin float64 `yaml:"block_risk_min" json:"block_risk_min"`
	// Gate 3.5: sustained up-days without flow support
	DivergenceUpDays   int     `yaml:"divergence_up_days" json:"divergence_up_days"`
	DivergenceRatioMax float64 `yaml:"divergence_ratio_max" json:"divergence_ratio_max"`
	// Gate 4: qualifying band requires risk score <= this
	CandidateRiskMax float64 `yaml:"candidate_risk_max" json:"candidate_risk_max"`
}
