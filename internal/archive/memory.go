package archive

import (
	"context"
	"sort"
	"sync"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
)

// MemoryRepository is an in-process archive used by tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	cycles []contracts.ArchivedCycle
}

// NewMemoryRepository creates an empty in-memory archive.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Append(_ context.Context, cycle *contracts.ArchivedCycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = append(r.cycles, *cycle)
	return nil
}

func (r *MemoryRepository) Session(_ context.Context, sessionDate string) ([]contracts.ArchivedCycle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []contracts.ArchivedCycle
	for _, c := range r.cycles {
		if c.SessionDate == sessionDate {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CycleIndex < out[j].CycleIndex })
	return out, nil
}

func (r *MemoryRepository) Sessions(_ context.Context, beforeDate string, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]bool{}
	for _, c := range r.cycles {
		if c.SessionDate < beforeDate {
			seen[c.SessionDate] = true
		}
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if limit > 0 && len(dates) > limit {
		dates = dates[len(dates)-limit:]
	}
	return dates, nil
}

func (r *MemoryRepository) Purge(_ context.Context, beforeDate string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.cycles[:0]
	var removed int64
	for _, c := range r.cycles {
		if c.SessionDate < beforeDate {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	r.cycles = kept
	return removed, nil
}
