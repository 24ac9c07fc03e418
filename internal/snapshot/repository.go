package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/pkg/database"
)

// Repository is the append-only snapshot log. Normal operation never edits
// or deletes a persisted snapshot.
type Repository interface {
	// Append persists a new snapshot and fills in its sequence number.
	Append(ctx context.Context, snap *contracts.Snapshot) error
	// Last returns the most recently persisted snapshot, or nil when the
	// log is empty.
	Last(ctx context.Context) (*contracts.Snapshot, error)
	// LastBefore returns the most recent snapshot persisted before the
	// given session date, or nil when there is none.
	LastBefore(ctx context.Context, sessionDate string) (*contracts.Snapshot, error)
	// History returns a session's snapshots in ascending sequence order.
	History(ctx context.Context, sessionDate string, limit int) ([]contracts.Snapshot, error)
}

// PostgresRepository stores snapshots in the snapshots table.
type PostgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates a snapshot repository over the shared pool.
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, snap *contracts.Snapshot) error {
	records, err := json.Marshal(snap.Records)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot records: %w", err)
	}
	gaps, err := json.Marshal(snap.Gaps)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot gaps: %w", err)
	}

	err = r.db.Pool.QueryRow(ctx, `
		INSERT INTO snapshots (session_date, as_of, fingerprint, config_hash, records, gaps)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq`,
		snap.SessionDate, snap.AsOf, snap.Fingerprint, snap.ConfigHash, records, gaps,
	).Scan(&snap.Seq)
	if err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Last(ctx context.Context) (*contracts.Snapshot, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT seq, session_date, as_of, fingerprint, config_hash, records, gaps
		FROM snapshots
		ORDER BY seq DESC
		LIMIT 1`)

	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last snapshot: %w", err)
	}
	return snap, nil
}

func (r *PostgresRepository) LastBefore(ctx context.Context, sessionDate string) (*contracts.Snapshot, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT seq, session_date, as_of, fingerprint, config_hash, records, gaps
		FROM snapshots
		WHERE session_date < $1
		ORDER BY seq DESC
		LIMIT 1`,
		sessionDate)

	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prior snapshot: %w", err)
	}
	return snap, nil
}

func (r *PostgresRepository) History(ctx context.Context, sessionDate string, limit int) ([]contracts.Snapshot, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT seq, session_date, as_of, fingerprint, config_hash, records, gaps
		FROM snapshots
		WHERE session_date = $1
		ORDER BY seq ASC
		LIMIT $2`,
		sessionDate, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer rows.Close()

	var out []contracts.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, *snap)
	}
	return out, rows.Err()
}

func scanSnapshot(row pgx.Row) (*contracts.Snapshot, error) {
	var snap contracts.Snapshot
	var records, gaps []byte

	if err := row.Scan(&snap.Seq, &snap.SessionDate, &snap.AsOf, &snap.Fingerprint, &snap.ConfigHash, &records, &gaps); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(records, &snap.Records); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot records: %w", err)
	}
	if err := json.Unmarshal(gaps, &snap.Gaps); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot gaps: %w", err)
	}
	return &snap, nil
}
