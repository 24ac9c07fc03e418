package snapshot

import (
	"context"
	"sync"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
)

// MemoryRepository is an in-process append-only snapshot log, used by tests
// and by replay runs that must not touch the live log.
type MemoryRepository struct {
	mu    sync.RWMutex
	snaps []contracts.Snapshot
}

// NewMemoryRepository creates an empty in-memory snapshot log.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Append(_ context.Context, snap *contracts.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap.Seq = int64(len(r.snaps) + 1)
	r.snaps = append(r.snaps, *snap)
	return nil
}

func (r *MemoryRepository) Last(_ context.Context) (*contracts.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.snaps) == 0 {
		return nil, nil
	}
	snap := r.snaps[len(r.snaps)-1]
	return &snap, nil
}

func (r *MemoryRepository) LastBefore(_ context.Context, sessionDate string) (*contracts.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.snaps) - 1; i >= 0; i-- {
		if r.snaps[i].SessionDate < sessionDate {
			snap := r.snaps[i]
			return &snap, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) History(_ context.Context, sessionDate string, limit int) ([]contracts.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []contracts.Snapshot
	for _, snap := range r.snaps {
		if snap.SessionDate != sessionDate {
			continue
		}
		out = append(out, snap)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of persisted snapshots.
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snaps)
}
