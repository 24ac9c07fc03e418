package contracts

import "time"

// FeatureState marks whether an instrument's features are usable this cycle.
// "Insufficient data" is representable data here, never an eaten error.
type FeatureState string

const (
	// FeatureOK means every derived value below is valid.
	FeatureOK FeatureState = "OK"

	// FeatureInsufficientHistory means the rolling buffer holds fewer days
	// than the configured minimum. Derived values are unset and the funnel
	// must emit the distinct non-decision outcome, never treat it as a pass.
	FeatureInsufficientHistory FeatureState = "INSUFFICIENT_HISTORY"

	// FeatureNoFloat means circulating market value was missing or
	// non-positive, so the flow ratio denominator is unusable.
	FeatureNoFloat FeatureState = "NO_FLOAT"
)

// InstrumentFeatures holds the per-cycle derived values for one instrument.
// Created once per cycle by the feature engine and never mutated after.
type InstrumentFeatures struct {
	InstrumentID string       `json:"instrument_id"`
	State        FeatureState `json:"state"`

	// FlowRatio is net signed money flow over the rolling window divided by
	// circulating market value. The primary dimensionless signal.
	FlowRatio float64 `json:"flow_ratio"`

	// Multi-day net-flow sums from the daily ring buffer.
	NetFlow3D  float64 `json:"net_flow_3d"`
	NetFlow5D  float64 `json:"net_flow_5d"`
	NetFlow10D float64 `json:"net_flow_10d"`
	NetFlow20D float64 `json:"net_flow_20d"`

	// Ratios normalized against the instrument's own trailing history,
	// valid across market-cap regimes.
	TurnoverRatio   float64 `json:"turnover_ratio"`
	VolatilityRatio float64 `json:"volatility_ratio"`
	VolumeRatio     float64 `json:"volume_ratio"`

	// Price shape
	Return1D         float64 `json:"return_1d"`
	Return5D         float64 `json:"return_5d"`
	UpStreak         int     `json:"up_streak"`         // consecutive up days incl. today
	IntradayDrawdown float64 `json:"intraday_drawdown"` // (high-last)/high

	HistoryDays int `json:"history_days"`
}

// Usable reports whether the funnel may evaluate this instrument's gates.
func (f *InstrumentFeatures) Usable() bool {
	return f.State == FeatureOK
}

// FeatureSet carries all features for one cycle, keyed by instrument ID.
// ⭐ SSOT: feature engine → risk classifier / funnel handoff.
type FeatureSet struct {
	AsOf     time.Time                      `json:"as_of"`
	Features map[string]*InstrumentFeatures `json:"features"`
}

// NewFeatureSet creates an empty feature set for one cycle.
func NewFeatureSet(asOf time.Time) *FeatureSet {
	return &FeatureSet{
		AsOf:     asOf,
		Features: make(map[string]*InstrumentFeatures),
	}
}

// Get returns features for an instrument.
func (s *FeatureSet) Get(id string) (*InstrumentFeatures, bool) {
	f, ok := s.Features[id]
	return f, ok
}

// Count returns the number of instruments with features.
func (s *FeatureSet) Count() int {
	return len(s.Features)
}
