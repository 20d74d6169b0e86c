package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novasec/secaware-api/internal/models"
)

func TestAttemptRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttemptRepository(db)

	mock.ExpectExec("INSERT INTO exam_attempts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	attempt := &models.ExamAttempt{
		EmployeeID: "e1", ExamID: "x1", AssignmentID: "as1",
		Answers:      models.AnswerMap{1: "a"},
		CorrectCount: 1, TotalCount: 3, Percentage: 33,
		StartedAt: time.Now(), CompletedAt: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), attempt))
	assert.NotEmpty(t, attempt.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryCountByAssignment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttemptRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM exam_attempts WHERE employee_id = $1 AND assignment_id = $2")).
		WithArgs("e1", "as1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountByAssignment(context.Background(), "e1", "as1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryHasPassed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttemptRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM exam_attempts WHERE employee_id = $1 AND exam_id = $2 AND passed = TRUE LIMIT 1")).
		WithArgs("e1", "x1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	passed, err := repo.HasPassed(context.Background(), "e1", "x1")
	require.NoError(t, err)
	assert.False(t, passed)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM exam_attempts WHERE employee_id = $1 AND exam_id = $2 AND passed = TRUE LIMIT 1")).
		WithArgs("e1", "x1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	passed, err = repo.HasPassed(context.Background(), "e1", "x1")
	require.NoError(t, err)
	assert.True(t, passed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryListByExam(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttemptRepository(db)

	rows := sqlmock.NewRows([]string{"id", "employee_id", "exam_id", "assignment_id", "answers", "correct_count", "total_count", "percentage", "passed", "auto_submitted", "started_at", "completed_at", "employee_name", "employee_email"}).
		AddRow("at1", "e1", "x1", "as1", []byte(`{"1":"a"}`), 1, 3, 33, false, false, time.Now(), time.Now(), "Em Ployee", "emp@example.com")
	mock.ExpectQuery("SELECT a.id, a.employee_id").
		WithArgs("x1", 50).
		WillReturnRows(rows)

	attempts, err := repo.ListByExam(context.Background(), "x1", 50)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "Em Ployee", attempts[0].EmployeeName)
	assert.Equal(t, "a", attempts[0].Answers[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryListByExamDefaultLimit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttemptRepository(db)

	mock.ExpectQuery("SELECT a.id, a.employee_id").
		WithArgs("x1", 1000).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.ListByExam(context.Background(), "x1", 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
