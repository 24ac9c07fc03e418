package snapshot

import (
	"context"
	"fmt"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// Store decides, per cycle, whether the decision state changed since the
// last persisted snapshot. Unchanged cycles are discarded after live
// consumers have seen them, so the log grows with the number of distinct
// states observed, not the number of polling cycles.
type Store struct {
	repo       Repository
	log        *logger.Logger
	configHash string

	loaded          bool
	lastFingerprint string
}

// NewStore creates a store writing to repo. configHash is the funnel
// configuration hash recorded on every persisted snapshot.
func NewStore(repo Repository, configHash string, log *logger.Logger) *Store {
	return &Store{repo: repo, log: log, configHash: configHash}
}

// Init primes the store with the last persisted fingerprint so a restart
// does not re-persist an unchanged state.
func (s *Store) Init(ctx context.Context) error {
	last, err := s.repo.Last(ctx)
	if err != nil {
		return fmt.Errorf("failed to load last snapshot: %w", err)
	}
	if last != nil {
		s.lastFingerprint = last.Fingerprint
	}
	s.loaded = true
	return nil
}

// Commit fingerprints the cycle and appends a snapshot only when the
// fingerprint differs from the last persisted one. Returns the persisted
// snapshot, or nil when the state was unchanged.
func (s *Store) Commit(ctx context.Context, result *contracts.CycleResult, sessionDate string) (*contracts.Snapshot, error) {
	if !s.loaded {
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
	}

	fp := Fingerprint(result)
	if fp == s.lastFingerprint {
		return nil, nil
	}

	snap := &contracts.Snapshot{
		SessionDate: sessionDate,
		AsOf:        result.AsOf,
		Fingerprint: fp,
		ConfigHash:  s.configHash,
		Records:     result.Ordered(),
		Gaps:        result.Gaps,
	}
	if err := s.repo.Append(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	s.lastFingerprint = fp
	s.log.WithFields(map[string]interface{}{
		"seq":         snap.Seq,
		"fingerprint": fp[:12],
		"records":     len(snap.Records),
		"gaps":        len(snap.Gaps),
	}).Info("Persisted new decision snapshot")

	return snap, nil
}

// LastFingerprint returns the fingerprint of the last persisted snapshot.
func (s *Store) LastFingerprint() string {
	return s.lastFingerprint
}
