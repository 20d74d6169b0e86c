package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/novasec/secaware-api/internal/models"
)

// AttemptRepository persists append-only exam attempt records.
type AttemptRepository struct {
	db *sqlx.DB
}

// NewAttemptRepository constructs the repository.
func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create inserts one immutable attempt row. There is no update path.
func (r *AttemptRepository) Create(ctx context.Context, attempt *models.ExamAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	const query = `INSERT INTO exam_attempts (id, employee_id, exam_id, assignment_id, answers, correct_count, total_count, percentage, passed, auto_submitted, started_at, completed_at)
        VALUES (:id, :employee_id, :exam_id, :assignment_id, :answers, :correct_count, :total_count, :percentage, :passed, :auto_submitted, :started_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("create exam attempt: %w", err)
	}
	return nil
}

// CountByAssignment returns submitted attempts for an assignment. This count
// is the attempt quota; starts do not register here.
func (r *AttemptRepository) CountByAssignment(ctx context.Context, employeeID, assignmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM exam_attempts WHERE employee_id = $1 AND assignment_id = $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, employeeID, assignmentID); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return total, nil
}

// HasPassed reports whether the employee has any passing attempt for the exam.
func (r *AttemptRepository) HasPassed(ctx context.Context, employeeID, examID string) (bool, error) {
	const query = `SELECT 1 FROM exam_attempts WHERE employee_id = $1 AND exam_id = $2 AND passed = TRUE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, employeeID, examID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check passing attempt: %w", err)
	}
	return true, nil
}

// ListByEmployeeAndExam returns the employee's attempt history, newest first.
func (r *AttemptRepository) ListByEmployeeAndExam(ctx context.Context, employeeID, examID string) ([]models.ExamAttempt, error) {
	const query = `SELECT id, employee_id, exam_id, assignment_id, answers, correct_count, total_count, percentage, passed, auto_submitted, started_at, completed_at
        FROM exam_attempts WHERE employee_id = $1 AND exam_id = $2 ORDER BY completed_at DESC`
	var attempts []models.ExamAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, employeeID, examID); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// AttemptDetail joins an attempt with employee context for admin exports.
type AttemptDetail struct {
	models.ExamAttempt
	EmployeeName  string `db:"employee_name"`
	EmployeeEmail string `db:"employee_email"`
}

// ListByExam returns all attempts for an exam with employee context.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID string, limit int) ([]AttemptDetail, error) {
	if limit <= 0 {
		limit = 1000
	}
	const query = `SELECT a.id, a.employee_id, a.exam_id, a.assignment_id, a.answers, a.correct_count, a.total_count, a.percentage, a.passed, a.auto_submitted, a.started_at, a.completed_at,
        u.full_name AS employee_name, u.email AS employee_email
        FROM exam_attempts a
        JOIN users u ON u.id = a.employee_id
        WHERE a.exam_id = $1
        ORDER BY a.completed_at DESC
        LIMIT $2`
	var attempts []AttemptDetail
	if err := r.db.SelectContext(ctx, &attempts, query, examID, limit); err != nil {
		return nil, fmt.Errorf("list exam attempts: %w", err)
	}
	return attempts, nil
}
