package universe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// Exclusion reasons recorded on the daily universe.
const (
	ReasonNoFloat     = "no float shares"
	ReasonOTC         = "otc segment"
	ReasonEmptySymbol = "empty symbol"
)

// ReferenceSource lists the exchange's active instruments. The Tier-1
// client's reference endpoint implements this.
type ReferenceSource interface {
	FetchReference(ctx context.Context, exchange string) ([]contracts.Instrument, error)
}

// Service owns the daily tradable universe: it refreshes the instrument set
// from reference data once per session date, applies exclusion rules, and
// serves both the live loop and the replay engine.
type Service struct {
	source    ReferenceSource
	repo      Repository
	exchanges []string
	log       *logger.Logger

	mu      sync.RWMutex
	current *contracts.Universe
}

// NewService creates a universe service for the given exchanges.
func NewService(source ReferenceSource, repo Repository, exchanges []string, log *logger.Logger) *Service {
	return &Service{
		source:    source,
		repo:      repo,
		exchanges: exchanges,
		log:       log,
	}
}

// Refresh rebuilds the universe for a session date from reference data and
// persists it. Instruments are immutable for the rest of the day.
func (s *Service) Refresh(ctx context.Context, sessionDate string) (*contracts.Universe, error) {
	date, err := time.Parse("2006-01-02", sessionDate)
	if err != nil {
		return nil, fmt.Errorf("invalid session date %q: %w", sessionDate, err)
	}

	universe := &contracts.Universe{
		Date:        date,
		Instruments: make(map[string]contracts.Instrument),
		Excluded:    make(map[string]string),
	}

	for _, exchange := range s.exchanges {
		instruments, err := s.source.FetchReference(ctx, exchange)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch reference data for %s: %w", exchange, err)
		}
		for _, inst := range instruments {
			if reason := excludeReason(inst); reason != "" {
				universe.Excluded[inst.ID()] = reason
				continue
			}
			universe.Instruments[inst.ID()] = inst
		}
	}

	if err := s.repo.Save(ctx, sessionDate, universe); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = universe
	s.mu.Unlock()

	s.log.WithFields(map[string]interface{}{
		"session":  sessionDate,
		"tradable": universe.Count(),
		"excluded": len(universe.Excluded),
	}).Info("Universe refreshed")

	return universe, nil
}

// Current returns the universe for the session date, refreshing if the
// cached one is for a different date. The monitor loop calls this every
// cycle; after the first cycle of a session it is a map lookup.
func (s *Service) Current(ctx context.Context, sessionDate string) (*contracts.Universe, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current != nil && current.Date.Format("2006-01-02") == sessionDate {
		return current, nil
	}

	// A stored universe survives restarts mid-session.
	stored, err := s.repo.ByDate(ctx, sessionDate)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		s.mu.Lock()
		s.current = stored
		s.mu.Unlock()
		return stored, nil
	}

	return s.Refresh(ctx, sessionDate)
}

// ByDate returns the persisted universe for a historical session date.
// Replay reads through this; it never triggers a refresh.
func (s *Service) ByDate(ctx context.Context, sessionDate string) (*contracts.Universe, error) {
	stored, err := s.repo.ByDate(ctx, sessionDate)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("no universe stored for session %s", sessionDate)
	}
	return stored, nil
}

// excludeReason returns why an instrument is untradable, or "" to keep it.
func excludeReason(inst contracts.Instrument) string {
	if inst.Symbol == "" {
		return ReasonEmptySymbol
	}
	if inst.FloatShares <= 0 {
		return ReasonNoFloat
	}
	if inst.Segment == "otc" {
		return ReasonOTC
	}
	return ""
}
