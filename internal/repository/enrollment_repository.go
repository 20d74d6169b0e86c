package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/novasec/secaware-api/internal/models"
)

// EnrollmentRepository persists course enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByEmployeeAndCourse returns the enrollment for the pair.
func (r *EnrollmentRepository) FindByEmployeeAndCourse(ctx context.Context, employeeID, courseID string) (*models.CourseEnrollment, error) {
	const query = `SELECT id, employee_id, course_id, status, progress_percentage, started_at, completed_at, created_at
        FROM course_enrollments WHERE employee_id = $1 AND course_id = $2`
	var enrollment models.CourseEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, employeeID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create inserts an ASSIGNED enrollment. Duplicate assignments are absorbed
// by the (employee_id, course_id) unique constraint.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.CourseEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusAssigned
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_enrollments (id, employee_id, course_id, status, progress_percentage, started_at, completed_at, created_at)
        VALUES (:id, :employee_id, :course_id, :status, :progress_percentage, :started_at, :completed_at, :created_at)
        ON CONFLICT (employee_id, course_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateProgress writes the recomputed percentage and lifecycle fields.
func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, id string, status models.EnrollmentStatus, percentage int, startedAt, completedAt *time.Time) error {
	const query = `UPDATE course_enrollments
        SET status = $2, progress_percentage = $3,
            started_at = COALESCE(started_at, $4),
            completed_at = COALESCE(completed_at, $5)
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, percentage, startedAt, completedAt); err != nil {
		return fmt.Errorf("update enrollment progress: %w", err)
	}
	return nil
}

// ListByEmployee returns the employee's courses with enrollment state.
func (r *EnrollmentRepository) ListByEmployee(ctx context.Context, employeeID string) ([]models.EnrolledCourse, error) {
	const query = `SELECT c.id, c.title, c.description, c.duration_minutes, c.published, c.created_at,
        e.status, e.progress_percentage
        FROM course_enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.employee_id = $1
        ORDER BY e.created_at DESC`
	var courses []models.EnrolledCourse
	if err := r.db.SelectContext(ctx, &courses, query, employeeID); err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	return courses, nil
}
