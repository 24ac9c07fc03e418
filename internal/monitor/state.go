package monitor

import (
	"sync"
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
)

// State is the process-wide "latest decisions" surface. The loop is its
// only writer; consumers get copies and can never mutate what the loop
// owns. Explicit init at session start and teardown at session end.
type State struct {
	mu         sync.RWMutex
	active     bool
	cycleIndex int
	updatedAt  time.Time
	result     *contracts.CycleResult
}

// NewState creates an empty, inactive state.
func NewState() *State {
	return &State{}
}

// LatestView is the read-only copy handed to consumers.
type LatestView struct {
	Active     bool                                `json:"active"`
	CycleIndex int                                 `json:"cycle_index"`
	UpdatedAt  time.Time                           `json:"updated_at"`
	AsOf       time.Time                           `json:"as_of"`
	Records    map[string]contracts.DecisionRecord `json:"records"`
	Gaps       []string                            `json:"gaps"`
}

// Latest returns a copy of the current decision state. The second return is
// false when no cycle has completed yet this session.
func (s *State) Latest() (LatestView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.result == nil {
		return LatestView{Active: s.active}, false
	}

	records := make(map[string]contracts.DecisionRecord, len(s.result.Records))
	for id, rec := range s.result.Records {
		records[id] = rec
	}
	gaps := append([]string(nil), s.result.Gaps...)

	return LatestView{
		Active:     s.active,
		CycleIndex: s.cycleIndex,
		UpdatedAt:  s.updatedAt,
		AsOf:       s.result.AsOf,
		Records:    records,
		Gaps:       gaps,
	}, true
}

func (s *State) init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.cycleIndex = 0
	s.result = nil
}

func (s *State) set(result *contracts.CycleResult, cycleIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	s.cycleIndex = cycleIndex
	s.updatedAt = time.Now()
}

func (s *State) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.result = nil
}
