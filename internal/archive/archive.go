// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package archive copies the bridge's session records into PostgreSQL so
// cost and activity survive bridge restarts and can be queried with SQL.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kyco/cli/internal/bridge/model"
	kerrors "kyco/cli/internal/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kyco_sessions (
	id              TEXT PRIMARY KEY,
	session_type    TEXT NOT NULL,
	cwd             TEXT NOT NULL DEFAULT '',
	model           TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ,
	last_active_at  TIMESTAMPTZ,
	turn_count      INTEGER NOT NULL DEFAULT 0,
	total_cost_usd  DOUBLE PRECISION NOT NULL DEFAULT 0,
	archived_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertSQL = `
INSERT INTO kyco_sessions
	(id, session_type, cwd, model, status, created_at, last_active_at, turn_count, total_cost_usd, archived_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
ON CONFLICT (id) DO UPDATE SET
	status         = EXCLUDED.status,
	last_active_at = EXCLUDED.last_active_at,
	turn_count     = EXCLUDED.turn_count,
	total_cost_usd = EXCLUDED.total_cost_usd,
	archived_at    = now()`

// Store writes session records through a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// Open normalizes dsn, connects and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	normalized, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ConfigInvalid, "archive dsn", err)
	}
	pool, err := pgxpool.New(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("connect archive database: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping archive database: %w", err)
	}
	return &Store{pool: pool, log: logger.With("component", "archive")}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// EnsureSchema creates the sessions table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create kyco_sessions: %w", err)
	}
	return nil
}

// Save upserts records in one batch and returns how many were written.
func (s *Store) Save(ctx context.Context, recs []model.SessionRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, r := range recs {
		batch.Queue(upsertSQL, r.ID, r.Type, r.Cwd, r.Model, r.Status,
			millis(r.CreatedAt), millis(r.LastActiveAt), r.TurnCount, r.TotalCostUSD)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range recs {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("archive session %q: %w", recs[i].ID, err)
		}
	}
	s.log.Info("sessions archived", "count", len(recs))
	return len(recs), nil
}

// Get reads one archived record; ok is false when absent.
func (s *Store) Get(ctx context.Context, id string) (rec model.SessionRecord, ok bool, err error) {
	var created, active *time.Time
	err = s.pool.QueryRow(ctx, `
		SELECT id, session_type, cwd, model, status, created_at, last_active_at, turn_count, total_cost_usd
		FROM kyco_sessions WHERE id = $1`, id).
		Scan(&rec.ID, &rec.Type, &rec.Cwd, &rec.Model, &rec.Status, &created, &active, &rec.TurnCount, &rec.TotalCostUSD)
	if notFound(err) {
		return model.SessionRecord{}, false, nil
	}
	if err != nil {
		return model.SessionRecord{}, false, fmt.Errorf("read archived session %q: %w", id, err)
	}
	if created != nil {
		rec.CreatedAt = created.UnixMilli()
	}
	if active != nil {
		rec.LastActiveAt = active.UnixMilli()
	}
	return rec, true, nil
}

// millis converts unix milliseconds to a timestamp; zero maps to NULL.
func millis(ms int64) *time.Time {
	if ms == 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

// notFound reports whether err, possibly wrapped, means no row matched.
func notFound(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
