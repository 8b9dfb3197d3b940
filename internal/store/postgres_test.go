package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldsnap/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func leadJSON(t *testing.T, l model.Lead) []byte {
	t.Helper()
	data, err := json.Marshal(l)
	require.NoError(t, err)
	return data
}

func TestPostgresStore_CreateLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), "received", "", 0.0, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	l, err := s.CreateLead(context.Background(), model.NewLead{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReceived, l.ProcessingStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateLead_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO leads`).WillReturnError(errors.New("connection refused"))

	_, err := s.CreateLead(context.Background(), model.NewLead{ImageURL: "https://img.example.com/a.jpg"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert lead")
}

func TestPostgresStore_GetLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM leads WHERE id = \$1`).
		WithArgs("lead-1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(leadJSON(t, model.Lead{
			ID:               "lead-1",
			BusinessName:     "Acme",
			ProcessingStatus: model.StatusCompleted,
		})))

	l, err := s.GetLead(context.Background(), "lead-1")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, "Acme", l.BusinessName)
	assert.NotNil(t, l.Services)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLead_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM leads WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	l, err := s.GetLead(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, l)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM leads WHERE id = \$1 FOR UPDATE`).
		WithArgs("lead-1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(leadJSON(t, model.Lead{
			ID:               "lead-1",
			ProcessingStatus: model.StatusProcessing,
		})))
	mock.ExpectExec(`UPDATE leads SET status = \$1, qualification = \$2, lead_score = \$3, data = \$4, updated_at = \$5 WHERE id = \$6`).
		WithArgs("completed", "qualified", 72.5, pgxmock.AnyArg(), pgxmock.AnyArg(), "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	status := model.StatusCompleted
	l, err := s.UpdateLead(context.Background(), "lead-1", model.LeadUpdate{
		Status: &status,
		Score:  &model.ScoringResult{TotalScore: 72.5, Qualification: model.Qualified},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, l.ProcessingStatus)
	assert.InDelta(t, 72.5, l.LeadScore, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLead_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM leads WHERE id = \$1 FOR UPDATE`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.UpdateLead(context.Background(), "missing", model.LeadUpdate{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLead_InvalidTransitionRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM leads WHERE id = \$1 FOR UPDATE`).
		WithArgs("lead-1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(leadJSON(t, model.Lead{
			ID:               "lead-1",
			ProcessingStatus: model.StatusFailed,
		})))
	mock.ExpectRollback()

	status := model.StatusProcessing
	_, err := s.UpdateLead(context.Background(), "lead-1", model.LeadUpdate{Status: &status})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status transition")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLeads(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM leads WHERE true AND status = \$1 AND qualification = \$2 ORDER BY created_at DESC, id ASC LIMIT \$3 OFFSET \$4`).
		WithArgs("completed", "qualified", 10, 20).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow(leadJSON(t, model.Lead{ID: "a"})).
			AddRow(leadJSON(t, model.Lead{ID: "b"})))

	leads, err := s.ListLeads(context.Background(), model.LeadFilter{
		Status:        model.StatusCompleted,
		Qualification: model.Qualified,
		Limit:         10,
		Offset:        20,
	})
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "b", leads[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLeads_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM leads WHERE true ORDER BY created_at DESC, id ASC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows([]string{"data"}))

	leads, err := s.ListLeads(context.Background(), model.LeadFilter{})
	require.NoError(t, err)
	assert.Empty(t, leads)
	assert.NotNil(t, leads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS leads`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
