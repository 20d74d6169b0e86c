package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/novasec/secaware-api/internal/models"
)

// CertificateRepository persists completion certificates. Uniqueness per
// (employee_id, course_id) is enforced by the store, not in-process locking,
// because issuance can be triggered from distributed callers.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// FindByEmployeeAndCourse returns the certificate for the pair if any.
func (r *CertificateRepository) FindByEmployeeAndCourse(ctx context.Context, employeeID, courseID string) (*models.Certificate, error) {
	const query = `SELECT id, certificate_number, employee_id, course_id, score, completion_date, issued_at
        FROM certificates WHERE employee_id = $1 AND course_id = $2`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, employeeID, courseID); err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindByNumber returns a certificate with context by its public number.
func (r *CertificateRepository) FindByNumber(ctx context.Context, number string) (*models.CertificateDetail, error) {
	const query = `SELECT c.id, c.certificate_number, c.employee_id, c.course_id, c.score, c.completion_date, c.issued_at,
        co.title AS course_title, u.full_name AS employee_name
        FROM certificates c
        JOIN courses co ON co.id = c.course_id
        JOIN users u ON u.id = c.employee_id
        WHERE c.certificate_number = $1`
	var detail models.CertificateDetail
	if err := r.db.GetContext(ctx, &detail, query, number); err != nil {
		return nil, err
	}
	return &detail, nil
}

// NumberExists checks a candidate certificate number for collisions.
func (r *CertificateRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	const query = `SELECT 1 FROM certificates WHERE certificate_number = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, number); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check certificate number: %w", err)
	}
	return true, nil
}

// Create inserts the certificate if none exists for the (employee, course)
// pair. Returns false when a concurrent issuer won the race.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) (bool, error) {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	const query = `INSERT INTO certificates (id, certificate_number, employee_id, course_id, score, completion_date, issued_at)
        VALUES (:id, :certificate_number, :employee_id, :course_id, :score, :completion_date, :issued_at)
        ON CONFLICT (employee_id, course_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, cert)
	if err != nil {
		return false, fmt.Errorf("create certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create certificate result: %w", err)
	}
	return affected == 1, nil
}

// ListByEmployee returns the employee's certificates with course context.
func (r *CertificateRepository) ListByEmployee(ctx context.Context, employeeID string) ([]models.CertificateDetail, error) {
	const query = `SELECT c.id, c.certificate_number, c.employee_id, c.course_id, c.score, c.completion_date, c.issued_at,
        co.title AS course_title, u.full_name AS employee_name
        FROM certificates c
        JOIN courses co ON co.id = c.course_id
        JOIN users u ON u.id = c.employee_id
        WHERE c.employee_id = $1
        ORDER BY c.issued_at DESC`
	var certs []models.CertificateDetail
	if err := r.db.SelectContext(ctx, &certs, query, employeeID); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}
