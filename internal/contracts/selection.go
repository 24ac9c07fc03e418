package contracts

import "time"

// Tier identifies which ranked provider answered a request. Modeled as an
// explicit tagged value so the chain's fallthrough is a match, not type
// inspection.
type Tier int

const (
	TierUnavailable Tier = 0 // no tier answered: coverage gap
	Tier1           Tier = 1 // streaming depth feed
	Tier2           Tier = 2 // intraday REST feed
	Tier3           Tier = 3 // delayed aggregate feed
)

// String returns the tier name used in logs and the archive.
func (t Tier) String() string {
	switch t {
	case Tier1:
		return "TIER1_DEPTH"
	case Tier2:
		return "TIER2_INTRADAY"
	case Tier3:
		return "TIER3_DELAYED"
	default:
		return "UNAVAILABLE"
	}
}

// TierResult is the outcome of one tier attempt for one instrument.
type TierResult struct {
	Tier   Tier
	Sample Sample
	Err    error
}

// Available reports whether this result carries a usable sample.
func (r TierResult) Available() bool {
	return r.Tier != TierUnavailable && r.Err == nil
}

// ProviderSelectionLog records, per cycle and per instrument, which tier
// actually served the answer. Required input to the replay engine so replay
// never silently upgrades data availability relative to what was true live.
type ProviderSelectionLog struct {
	AsOf       time.Time       `json:"as_of"`
	Selections map[string]Tier `json:"selections"` // instrument ID -> serving tier
	Gaps       []string        `json:"gaps"`       // instruments with no usable tier
}

// NewProviderSelectionLog creates an empty selection log for one cycle.
func NewProviderSelectionLog(asOf time.Time) *ProviderSelectionLog {
	return &ProviderSelectionLog{
		AsOf:       asOf,
		Selections: make(map[string]Tier),
	}
}

// Record stores the serving tier for an instrument.
func (l *ProviderSelectionLog) Record(id string, tier Tier) {
	l.Selections[id] = tier
}

// RecordGap marks an instrument as a coverage gap for this cycle.
func (l *ProviderSelectionLog) RecordGap(id string) {
	l.Selections[id] = TierUnavailable
	l.Gaps = append(l.Gaps, id)
}

// TierFor returns the tier that served an instrument.
func (l *ProviderSelectionLog) TierFor(id string) Tier {
	tier, ok := l.Selections[id]
	if !ok {
		return TierUnavailable
	}
	return tier
}

// GapCount returns the number of coverage gaps in this cycle.
func (l *ProviderSelectionLog) GapCount() int {
	return len(l.Gaps)
}
