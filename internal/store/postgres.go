package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldsnap/internal/db"
	"github.com/sells-group/fieldsnap/internal/model"
)

// PostgresStore implements Store using pgxpool with the lead stored as
// JSONB.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// NewPostgres connects a pool and returns a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

// NewPostgresWithPool wraps an existing pool. The caller owns its lifetime.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'received',
	qualification TEXT NOT NULL DEFAULT '',
	lead_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	data          JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_qualification ON leads(qualification);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, in model.NewLead) (*model.Lead, error) {
	l := newLead(in, s.now())
	data, err := encodeLead(l)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, status, qualification, lead_score, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, string(l.ProcessingStatus), string(l.QualificationStatus), l.LeadScore, data, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return l, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM leads WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return decodeLead(data)
}

func (s *PostgresStore) UpdateLead(ctx context.Context, id string, u model.LeadUpdate) (*model.Lead, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var data []byte
	err = tx.QueryRow(ctx, `SELECT data FROM leads WHERE id = $1 FOR UPDATE`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: update lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load lead %s", id)
	}

	l, err := decodeLead(data)
	if err != nil {
		return nil, err
	}
	if err := u.Apply(l, s.now()); err != nil {
		return nil, eris.Wrapf(err, "postgres: update lead %s", id)
	}
	updated, err := encodeLead(l)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE leads SET status = $1, qualification = $2, lead_score = $3, data = $4, updated_at = $5 WHERE id = $6`,
		string(l.ProcessingStatus), string(l.QualificationStatus), l.LeadScore, updated, l.UpdatedAt, id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update lead %s", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit")
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, f model.LeadFilter) ([]model.Lead, error) {
	query := `SELECT data FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(f.Status))
		argIdx++
	}
	if f.Qualification != "" {
		query += fmt.Sprintf(` AND qualification = $%d`, argIdx)
		args = append(args, string(f.Qualification))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id ASC LIMIT $%d`, argIdx)
	args = append(args, listLimit(f))
	argIdx++

	if f.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		l, err := decodeLead(data)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}
