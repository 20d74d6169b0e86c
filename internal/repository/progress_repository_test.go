package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novasec/secaware-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestProgressRepositoryIsCompleted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM section_progress WHERE employee_id = $1 AND section_id = $2 LIMIT 1")).
		WithArgs("e1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	done, err := repo.IsCompleted(context.Background(), "e1", "s1")
	require.NoError(t, err)
	assert.True(t, done)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM section_progress WHERE employee_id = $1 AND section_id = $2 LIMIT 1")).
		WithArgs("e1", "s2").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	done, err = repo.IsCompleted(context.Background(), "e1", "s2")
	require.NoError(t, err)
	assert.False(t, done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryMarkCompletedIdempotent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectExec("INSERT INTO section_progress").
		WillReturnResult(sqlmock.NewResult(0, 1))

	progress := &models.SectionProgress{EmployeeID: "e1", CourseID: "c1", SectionID: "s1"}
	require.NoError(t, repo.MarkCompleted(context.Background(), progress))
	assert.NotEmpty(t, progress.ID)
	assert.False(t, progress.CompletedAt.IsZero())

	// Re-marking hits the conflict clause and affects no rows.
	mock.ExpectExec("INSERT INTO section_progress").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.MarkCompleted(context.Background(), progress))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryCountCompleted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM section_progress WHERE employee_id = $1 AND course_id = $2")).
		WithArgs("e1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountCompleted(context.Background(), "e1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	rows := sqlmock.NewRows([]string{"id", "employee_id", "course_id", "section_id", "completed_at"}).
		AddRow("p1", "e1", "c1", "s1", time.Now()).
		AddRow("p2", "e1", "c1", "s2", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, employee_id, course_id, section_id, completed_at FROM section_progress WHERE employee_id = $1 AND course_id = $2")).
		WithArgs("e1", "c1").
		WillReturnRows(rows)

	list, err := repo.ListByCourse(context.Background(), "e1", "c1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
