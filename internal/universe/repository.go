package universe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/pkg/database"
)

// Repository persists one universe per session date.
type Repository interface {
	Save(ctx context.Context, sessionDate string, universe *contracts.Universe) error
	// ByDate returns the stored universe, or nil when none exists.
	ByDate(ctx context.Context, sessionDate string) (*contracts.Universe, error)
}

// PostgresRepository stores universes in the universes table, one row per
// session date, replaced on re-refresh.
type PostgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates a universe repository over the shared pool.
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, sessionDate string, universe *contracts.Universe) error {
	instruments, err := json.Marshal(universe.Instruments)
	if err != nil {
		return fmt.Errorf("failed to encode universe instruments: %w", err)
	}
	excluded, err := json.Marshal(universe.Excluded)
	if err != nil {
		return fmt.Errorf("failed to encode universe exclusions: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO universes (session_date, instruments, excluded)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_date)
		DO UPDATE SET instruments = EXCLUDED.instruments, excluded = EXCLUDED.excluded`,
		sessionDate, instruments, excluded)
	if err != nil {
		return fmt.Errorf("failed to save universe: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ByDate(ctx context.Context, sessionDate string) (*contracts.Universe, error) {
	var instruments, excluded []byte
	err := r.db.Pool.QueryRow(ctx, `
		SELECT instruments, excluded FROM universes WHERE session_date = $1`,
		sessionDate).Scan(&instruments, &excluded)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load universe: %w", err)
	}

	date, err := time.Parse("2006-01-02", sessionDate)
	if err != nil {
		return nil, fmt.Errorf("invalid session date %q: %w", sessionDate, err)
	}

	universe := &contracts.Universe{Date: date}
	if err := json.Unmarshal(instruments, &universe.Instruments); err != nil {
		return nil, fmt.Errorf("failed to decode universe instruments: %w", err)
	}
	if err := json.Unmarshal(excluded, &universe.Excluded); err != nil {
		return nil, fmt.Errorf("failed to decode universe exclusions: %w", err)
	}
	return universe, nil
}

// MemoryRepository is an in-process universe store used by tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	byDay map[string]*contracts.Universe
}

// NewMemoryRepository creates an empty in-memory universe store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byDay: make(map[string]*contracts.Universe)}
}

func (r *MemoryRepository) Save(_ context.Context, sessionDate string, universe *contracts.Universe) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byDay[sessionDate] = universe
	return nil
}

func (r *MemoryRepository) ByDate(_ context.Context, sessionDate string) (*contracts.Universe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byDay[sessionDate], nil
}
