package repository

import (
	"context"

	"github.com/lib/pq"
	"github.com/threaded-comments-api/internal/database"
	"github.com/threaded-comments-api/internal/models"
)

// counterRepo is the concrete implementation of CounterRepository
type counterRepo struct {
	db *database.DB
}

// NewCounterRepo creates a new counter repository
func NewCounterRepo(db *database.DB) CounterRepository {
	return &counterRepo{db: db}
}

// BatchInsert inserts counters with their original ids using PostgreSQL COPY
func (r *counterRepo) BatchInsert(ctx context.Context, counters []*models.Counter) (int, error) {
	if len(counters) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("counters",
		"id", "url", "time",
		"reaction0", "reaction1", "reaction2", "reaction3", "reaction4",
		"reaction5", "reaction6", "reaction7", "reaction8",
		"created_at", "updated_at",
	))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range counters {
		rx := c.Reactions
		_, err := stmt.ExecContext(ctx,
			c.ID, c.URL, c.Time,
			rx[0], rx[1], rx[2], rx[3], rx[4], rx[5], rx[6], rx[7], rx[8],
			c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			continue
		}
		inserted++
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, err
	}

	if err := realignSequence(ctx, tx, "counters"); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return inserted, nil
}

// DeleteAll removes every counter
func (r *counterRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM counters")
	return err
}

// Count returns the total number of counters
func (r *counterRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM counters").Scan(&count)
	return count, err
}

// StreamAll streams all counters for export
func (r *counterRepo) StreamAll(ctx context.Context, callback func(*models.Counter) error) error {
	query := `
		SELECT id, url, time, reaction0, reaction1, reaction2, reaction3, reaction4,
			reaction5, reaction6, reaction7, reaction8, created_at, updated_at
		FROM counters ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Counter
		rx := &c.Reactions
		err := rows.Scan(
			&c.ID, &c.URL, &c.Time,
			&rx[0], &rx[1], &rx[2], &rx[3], &rx[4], &rx[5], &rx[6], &rx[7], &rx[8],
			&c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return err
		}

		if err := callback(&c); err != nil {
			return err
		}
	}

	return rows.Err()
}
