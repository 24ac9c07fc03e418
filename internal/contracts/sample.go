package contracts

import "time"

// Sample is one timestamped observation of an instrument from one provider
// tier. Produced by the provider chain, consumed once by the feature engine,
// not retained beyond the rolling feature window.
type Sample struct {
	InstrumentID string    `json:"instrument_id"`
	Last         float64   `json:"last"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	PrevClose    float64   `json:"prev_close"`
	Bid          float64   `json:"bid"`
	Ask          float64   `json:"ask"`
	Volume       int64     `json:"volume"`
	Value        float64   `json:"value"`    // traded money this session
	NetFlow      float64   `json:"net_flow"` // signed money flow this session
	Timestamp    time.Time `json:"timestamp"`
}

// SampleSet carries every sample for one cycle, keyed by instrument ID, all
// taken against the same as-of timestamp.
type SampleSet struct {
	AsOf    time.Time         `json:"as_of"`
	Samples map[string]Sample `json:"samples"`
}

// NewSampleSet creates an empty sample set for one cycle.
func NewSampleSet(asOf time.Time) *SampleSet {
	return &SampleSet{
		AsOf:    asOf,
		Samples: make(map[string]Sample),
	}
}

// Get returns the sample for an instrument.
func (s *SampleSet) Get(id string) (Sample, bool) {
	sample, ok := s.Samples[id]
	return sample, ok
}

// Count returns the number of covered instruments.
func (s *SampleSet) Count() int {
	return len(s.Samples)
}
