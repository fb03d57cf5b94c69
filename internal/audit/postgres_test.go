package audit

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "request_id", "case_id", "source", "checklist_version",
		"status", "fingerprint", "violation_count", "violation_codes", "violated_elements",
		"duration_ms", "created_at",
	})
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.ErrorContains(t, err, "database connection is required")
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := rejectedRecord("case-1", at)
	rec.ID = "11111111-1111-1111-1111-111111111111"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assembly_audit")).
		WithArgs(rec.ID, "req-case-1", "case-1", "http", "cap-breast-dcis-resection-4.4.0.0",
			"rejected", "", 2, "missing_required,invalid_value",
			"closest_margin_distance,nuclear_grade", int64(3), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_Error(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assembly_audit")).
		WillReturnError(sql.ErrConnDone)

	err := store.Save(context.Background(), rejectedRecord("case-1", time.Now()))
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM assembly_audit")).
		WithArgs("rec-1").
		WillReturnRows(recordRows().AddRow(
			"rec-1", "req", "case-9", "mcp", "v1",
			"assembled", "f00d", 0, "", "", int64(5), at))

	rec, err := store.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "case-9", rec.CaseID)
	assert.Equal(t, StatusAssembled, rec.Status)
	assert.Equal(t, "f00d", rec.Fingerprint)
	assert.Nil(t, rec.ViolationCodes)
	assert.Equal(t, at, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM assembly_audit")).
		WithArgs("missing").
		WillReturnRows(recordRows())

	rec, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id")).
		WithArgs(2, 4).
		WillReturnRows(recordRows().
			AddRow("b", "", "case-b", "batch", "v1", "rejected", "", 1, "missing_required", "nuclear_grade", int64(1), at.Add(time.Minute)).
			AddRow("a", "", "case-a", "batch", "v1", "assembled", "aa", 0, "", "", int64(1), at))

	records, err := store.List(context.Background(), 2, 4)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].ID)
	assert.Equal(t, []string{"missing_required"}, records[0].ViolationCodes)
	assert.Equal(t, []string{"nuclear_grade"}, records[0].ViolatedElements)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountAndPurge(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM assembly_audit")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assembly_audit WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	removed, err := store.Purge(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
