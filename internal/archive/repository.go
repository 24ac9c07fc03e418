package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/pkg/database"
)

// Repository stores one (samples, selection) pair per live cycle so the
// replay engine can re-run a session against exactly the data coverage that
// was true live.
type Repository interface {
	// Append stores one live cycle.
	Append(ctx context.Context, cycle *contracts.ArchivedCycle) error
	// Session returns a session's cycles in ascending cycle-index order.
	Session(ctx context.Context, sessionDate string) ([]contracts.ArchivedCycle, error)
	// Sessions returns up to limit archived session dates strictly before
	// beforeDate, ascending.
	Sessions(ctx context.Context, beforeDate string, limit int) ([]string, error)
	// Purge removes sessions strictly older than beforeDate and returns the
	// number of cycles removed.
	Purge(ctx context.Context, beforeDate string) (int64, error)
}

// PostgresRepository stores archived cycles in the archived_cycles table.
type PostgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates an archive repository over the shared pool.
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, cycle *contracts.ArchivedCycle) error {
	samples, err := json.Marshal(cycle.Samples)
	if err != nil {
		return fmt.Errorf("failed to encode archived samples: %w", err)
	}
	selection, err := json.Marshal(cycle.Selection)
	if err != nil {
		return fmt.Errorf("failed to encode archived selection: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO archived_cycles (session_date, cycle_index, samples, selection)
		VALUES ($1, $2, $3, $4)`,
		cycle.SessionDate, cycle.CycleIndex, samples, selection)
	if err != nil {
		return fmt.Errorf("failed to append archived cycle: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Session(ctx context.Context, sessionDate string) ([]contracts.ArchivedCycle, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT session_date, cycle_index, samples, selection
		FROM archived_cycles
		WHERE session_date = $1
		ORDER BY cycle_index ASC`,
		sessionDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived session: %w", err)
	}
	defer rows.Close()

	var out []contracts.ArchivedCycle
	for rows.Next() {
		var cycle contracts.ArchivedCycle
		var samples, selection []byte

		if err := rows.Scan(&cycle.SessionDate, &cycle.CycleIndex, &samples, &selection); err != nil {
			return nil, fmt.Errorf("failed to scan archived cycle: %w", err)
		}
		if err := json.Unmarshal(samples, &cycle.Samples); err != nil {
			return nil, fmt.Errorf("failed to decode archived samples: %w", err)
		}
		if err := json.Unmarshal(selection, &cycle.Selection); err != nil {
			return nil, fmt.Errorf("failed to decode archived selection: %w", err)
		}
		out = append(out, cycle)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Sessions(ctx context.Context, beforeDate string, limit int) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT session_date FROM (
			SELECT DISTINCT session_date
			FROM archived_cycles
			WHERE session_date < $1
			ORDER BY session_date DESC
			LIMIT $2
		) recent
		ORDER BY session_date ASC`,
		beforeDate, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("failed to scan session date: %w", err)
		}
		out = append(out, date)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Purge(ctx context.Context, beforeDate string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM archived_cycles WHERE session_date < $1`, beforeDate)
	if err != nil {
		return 0, fmt.Errorf("failed to purge archived cycles: %w", err)
	}
	return tag.RowsAffected(), nil
}
