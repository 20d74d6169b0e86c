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

// AssignmentRepository persists exam assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByID returns an assignment by its ID.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.ExamAssignment, error) {
	const query = `SELECT id, exam_id, employee_id, department_id, max_attempts, due_date, is_mandatory, created_at
        FROM exam_assignments WHERE id = $1`
	var assignment models.ExamAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindForEmployee resolves the assignment granting the employee access to the
// exam. A direct employee assignment wins over a department-scoped one.
func (r *AssignmentRepository) FindForEmployee(ctx context.Context, employeeID string, departmentID *string, examID string) (*models.ExamAssignment, error) {
	const direct = `SELECT id, exam_id, employee_id, department_id, max_attempts, due_date, is_mandatory, created_at
        FROM exam_assignments WHERE exam_id = $1 AND employee_id = $2 LIMIT 1`
	var assignment models.ExamAssignment
	err := r.db.GetContext(ctx, &assignment, direct, examID, employeeID)
	if err == nil {
		return &assignment, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("find direct assignment: %w", err)
	}
	if departmentID == nil {
		return nil, sql.ErrNoRows
	}
	const byDepartment = `SELECT id, exam_id, employee_id, department_id, max_attempts, due_date, is_mandatory, created_at
        FROM exam_assignments WHERE exam_id = $1 AND department_id = $2 LIMIT 1`
	if err := r.db.GetContext(ctx, &assignment, byDepartment, examID, *departmentID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Create persists a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.ExamAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO exam_assignments (id, exam_id, employee_id, department_id, max_attempts, due_date, is_mandatory, created_at)
        VALUES (:id, :exam_id, :employee_id, :department_id, :max_attempts, :due_date, :is_mandatory, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// ListForEmployee merges direct and department-scoped assignments.
func (r *AssignmentRepository) ListForEmployee(ctx context.Context, employeeID string, departmentID *string) ([]models.ExamAssignment, error) {
	query := `SELECT id, exam_id, employee_id, department_id, max_attempts, due_date, is_mandatory, created_at
        FROM exam_assignments WHERE employee_id = $1`
	args := []interface{}{employeeID}
	if departmentID != nil {
		query += ` OR department_id = $2`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY created_at DESC`
	var assignments []models.ExamAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}
