package contracts

import "time"

// Snapshot is the persisted form of one distinct decision state: the full
// ordered DecisionRecord set for a cycle plus its content fingerprint.
// Append-only; never mutated after write.
type Snapshot struct {
	Seq         int64            `json:"seq"` // position in the append-only sequence
	SessionDate string           `json:"session_date"`
	AsOf        time.Time        `json:"as_of"`
	Fingerprint string           `json:"fingerprint"`
	ConfigHash  string           `json:"config_hash"` // funnel config hash at write time
	Records     []DecisionRecord `json:"records"`     // ordered by instrument ID
	Gaps        []string         `json:"gaps"`
}

// TagFor returns the persisted tag for an instrument, if present.
func (s *Snapshot) TagFor(id string) (DecisionTag, bool) {
	for _, rec := range s.Records {
		if rec.InstrumentID == id {
			return rec.Tag, true
		}
	}
	return "", false
}

// ArchivedCycle is one live cycle as stored for replay: the raw samples and
// the provider-selection record, with the cycle index within its session.
type ArchivedCycle struct {
	SessionDate string                `json:"session_date"`
	CycleIndex  int                   `json:"cycle_index"`
	Samples     *SampleSet            `json:"samples"`
	Selection   *ProviderSelectionLog `json:"selection"`
}
