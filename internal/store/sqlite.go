package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fieldsnap/internal/model"
)

// tsLayout is fixed width so created_at sorts lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using modernc.org/sqlite. The full lead is
// a JSON document; status, qualification and score are copied into
// indexed columns for listing.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer keeps read-modify-write updates serialized.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'received',
	qualification TEXT NOT NULL DEFAULT '',
	lead_score    REAL NOT NULL DEFAULT 0,
	data          TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_qualification ON leads(qualification);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLead(ctx context.Context, in model.NewLead) (*model.Lead, error) {
	l := newLead(in, s.now())
	data, err := encodeLead(l)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, status, qualification, lead_score, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, string(l.ProcessingStatus), string(l.QualificationStatus), l.LeadScore, string(data),
		l.CreatedAt.Format(tsLayout), l.UpdatedAt.Format(tsLayout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return l, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM leads WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return decodeLead([]byte(data))
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, id string, u model.LeadUpdate) (*model.Lead, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM leads WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: update lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load lead %s", id)
	}

	l, err := decodeLead([]byte(data))
	if err != nil {
		return nil, err
	}
	if err := u.Apply(l, s.now()); err != nil {
		return nil, eris.Wrapf(err, "sqlite: update lead %s", id)
	}
	updated, err := encodeLead(l)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE leads SET status = ?, qualification = ?, lead_score = ?, data = ?, updated_at = ? WHERE id = ?`,
		string(l.ProcessingStatus), string(l.QualificationStatus), l.LeadScore, string(updated),
		l.UpdatedAt.Format(tsLayout), id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update lead %s", id)
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, f model.LeadFilter) ([]model.Lead, error) {
	query := `SELECT data FROM leads WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Qualification != "" {
		query += ` AND qualification = ?`
		args = append(args, string(f.Qualification))
	}
	query += ` ORDER BY created_at DESC, id ASC LIMIT ?`
	args = append(args, listLimit(f))

	if f.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	leads := []model.Lead{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		l, err := decodeLead([]byte(data))
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}
