package contracts

import (
	"sort"
	"time"
)

// DecisionTag is the terminal outcome the funnel assigns to an instrument.
// Exactly one tag per evaluated instrument per cycle. INSUFFICIENT_HISTORY
// is a distinct visible outcome, deliberately not folded into HOLD_NEUTRAL,
// so consumers can tell "no signal" from "not evaluated".
type DecisionTag string

const (
	TagRejectWeak          DecisionTag = "REJECT_WEAK"          // Gate 1: flow ratio below minimum
	TagRejectAnomaly       DecisionTag = "REJECT_ANOMALY"       // Gate 2: flow ratio above maximum
	TagBlock               DecisionTag = "BLOCK"                // Gate 3 / 3.5: trap or divergence
	TagCandidate           DecisionTag = "CANDIDATE"            // Gate 4: qualifying band
	TagHoldNeutral         DecisionTag = "HOLD_NEUTRAL"         // default: no gate matched
	TagInsufficientHistory DecisionTag = "INSUFFICIENT_HISTORY" // non-decision outcome
)

// DecisionTags lists the five terminal gate tags in funnel order.
func DecisionTags() []DecisionTag {
	return []DecisionTag{
		TagRejectWeak,
		TagRejectAnomaly,
		TagBlock,
		TagCandidate,
		TagHoldNeutral,
	}
}

// FeatureSummary is the audit metadata attached to a decision. Excluded
// from the snapshot fingerprint.
type FeatureSummary struct {
	FlowRatio  float64       `json:"flow_ratio"`
	NetFlow5D  float64       `json:"net_flow_5d"`
	RiskScore  float64       `json:"risk_score"`
	Signatures []string      `json:"signatures,omitempty"`
	Origin     CapitalOrigin `json:"origin,omitempty"`
	UpStreak   int           `json:"up_streak,omitempty"`
}

// DecisionRecord is one instrument's decision for one cycle, plus the inputs
// that produced it.
type DecisionRecord struct {
	InstrumentID string         `json:"instrument_id"`
	Tag          DecisionTag    `json:"tag"`
	Gate         string         `json:"gate"` // which gate fired, for audit
	AsOf         time.Time      `json:"as_of"`
	Summary      FeatureSummary `json:"summary"`
}

// CycleResult is the full output of one pipeline pass: one decision per
// evaluated instrument plus the coverage gaps that were not evaluated.
type CycleResult struct {
	AsOf      time.Time                 `json:"as_of"`
	Records   map[string]DecisionRecord `json:"records"`
	Gaps      []string                  `json:"gaps"` // coverage gaps, visible states
	Selection *ProviderSelectionLog     `json:"selection,omitempty"`
}

// NewCycleResult creates an empty cycle result.
func NewCycleResult(asOf time.Time) *CycleResult {
	return &CycleResult{
		AsOf:    asOf,
		Records: make(map[string]DecisionRecord),
	}
}

// Ordered returns decision records sorted by instrument ID. This is the
// canonical order used by the fingerprint and persisted snapshots.
func (r *CycleResult) Ordered() []DecisionRecord {
	ids := make([]string, 0, len(r.Records))
	for id := range r.Records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]DecisionRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.Records[id])
	}
	return out
}

// TagCounts returns how many instruments carry each tag.
func (r *CycleResult) TagCounts() map[DecisionTag]int {
	counts := make(map[DecisionTag]int)
	for _, rec := range r.Records {
		counts[rec.Tag]++
	}
	return counts
}

// Count returns the number of evaluated instruments.
func (r *CycleResult) Count() int {
	return len(r.Records)
}
