package contracts

import "time"

// CapitalOrigin is a coarse label for where the multi-day flow appears to
// come from, derived from the shape of the daily flow series.
type CapitalOrigin string

const (
	OriginSpeculative   CapitalOrigin = "SPECULATIVE"   // short-horizon, sign-flipping
	OriginAccumulative  CapitalOrigin = "ACCUMULATIVE"  // long-horizon, persistent
	OriginIndeterminate CapitalOrigin = "INDETERMINATE" // too noisy or too little data
)

// RiskVerdict holds trap-signature flags and the composite risk score for
// one instrument in one cycle. Lifecycle mirrors InstrumentFeatures.
type RiskVerdict struct {
	InstrumentID string        `json:"instrument_id"`
	Signatures   []string      `json:"signatures"` // names of triggered trap detectors
	Origin       CapitalOrigin `json:"origin"`
	Score        float64       `json:"score"` // composite risk in [0,1]
}

// Trapped reports whether any trap signature fired.
func (v *RiskVerdict) Trapped() bool {
	return len(v.Signatures) > 0
}

// Has reports whether a specific signature fired.
func (v *RiskVerdict) Has(name string) bool {
	for _, s := range v.Signatures {
		if s == name {
			return true
		}
	}
	return false
}

// RiskSet carries all verdicts for one cycle, keyed by instrument ID.
type RiskSet struct {
	AsOf     time.Time               `json:"as_of"`
	Verdicts map[string]*RiskVerdict `json:"verdicts"`
}

// NewRiskSet creates an empty risk set for one cycle.
func NewRiskSet(asOf time.Time) *RiskSet {
	return &RiskSet{
		AsOf:     asOf,
		Verdicts: make(map[string]*RiskVerdict),
	}
}

// Get returns the verdict for an instrument.
func (s *RiskSet) Get(id string) (*RiskVerdict, bool) {
	v, ok := s.Verdicts[id]
	return v, ok
}
