package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/novasec/secaware-api/internal/models"
)

// ProgressRepository persists per-employee section completion rows.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs the repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// IsCompleted reports whether the employee has completed the given section.
func (r *ProgressRepository) IsCompleted(ctx context.Context, employeeID, sectionID string) (bool, error) {
	const query = `SELECT 1 FROM section_progress WHERE employee_id = $1 AND section_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, employeeID, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check section progress: %w", err)
	}
	return true, nil
}

// MarkCompleted records a completion. Re-marking an already completed section
// is a no-op; the original completed_at is kept.
func (r *ProgressRepository) MarkCompleted(ctx context.Context, progress *models.SectionProgress) error {
	if progress.ID == "" {
		progress.ID = uuid.NewString()
	}
	if progress.CompletedAt.IsZero() {
		progress.CompletedAt = time.Now().UTC()
	}
	const query = `INSERT INTO section_progress (id, employee_id, course_id, section_id, completed_at)
        VALUES (:id, :employee_id, :course_id, :section_id, :completed_at)
        ON CONFLICT (employee_id, section_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, progress); err != nil {
		return fmt.Errorf("mark section completed: %w", err)
	}
	return nil
}

// CountCompleted re-counts completed sections for the employee and course.
// Progress percentages are always derived from this count, never incremented.
func (r *ProgressRepository) CountCompleted(ctx context.Context, employeeID, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM section_progress WHERE employee_id = $1 AND course_id = $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, employeeID, courseID); err != nil {
		return 0, fmt.Errorf("count completed sections: %w", err)
	}
	return total, nil
}

// ListByCourse returns all completion rows for the employee within a course.
func (r *ProgressRepository) ListByCourse(ctx context.Context, employeeID, courseID string) ([]models.SectionProgress, error) {
	const query = `SELECT id, employee_id, course_id, section_id, completed_at FROM section_progress WHERE employee_id = $1 AND course_id = $2`
	var rows []models.SectionProgress
	if err := r.db.SelectContext(ctx, &rows, query, employeeID, courseID); err != nil {
		return nil, fmt.Errorf("list section progress: %w", err)
	}
	return rows, nil
}
