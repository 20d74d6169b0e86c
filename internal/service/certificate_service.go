package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/novasec/secaware-api/internal/models"
	appErrors "github.com/novasec/secaware-api/pkg/errors"
)

type certificateStore interface {
	FindByEmployeeAndCourse(ctx context.Context, employeeID, courseID string) (*models.Certificate, error)
	FindByNumber(ctx context.Context, number string) (*models.CertificateDetail, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	Create(ctx context.Context, cert *models.Certificate) (bool, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]models.CertificateDetail, error)
}

type certificateNotifier interface {
	CertificateIssued(cert *models.Certificate)
}

// CertificateConfig tunes certificate numbering.
type CertificateConfig struct {
	NumberPrefix string
}

// CertificateService mints completion certificates exactly once per
// (employee, course). Uniqueness rests on the store's conflict handling, so
// concurrent and distributed callers converge on a single row.
type CertificateService struct {
	store    certificateStore
	notifier certificateNotifier
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      CertificateConfig
}

// NewCertificateService constructs a CertificateService.
func NewCertificateService(store certificateStore, notifier certificateNotifier, metrics *MetricsService, cfg CertificateConfig, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "CERT"
	}
	return &CertificateService{store: store, notifier: notifier, metrics: metrics, logger: logger, cfg: cfg}
}

// Issue returns the certificate for (employee, course), minting it on first
// call. Callers never need to pre-check; repeat and concurrent invocations
// return the same record.
func (s *CertificateService) Issue(ctx context.Context, employeeID, courseID string, score *int) (*models.Certificate, error) {
	existing, err := s.store.FindByEmployeeAndCourse(ctx, employeeID, courseID)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up certificate")
	}

	number, err := s.generateNumber(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate certificate number")
	}

	now := time.Now().UTC()
	cert := &models.Certificate{
		CertificateNumber: number,
		EmployeeID:        employeeID,
		CourseID:          courseID,
		Score:             score,
		CompletionDate:    now,
		IssuedAt:          now,
	}

	created, err := s.store.Create(ctx, cert)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to persist certificate")
	}
	if !created {
		// A concurrent issuer won the insert race; return its row.
		winner, err := s.store.FindByEmployeeAndCourse(ctx, employeeID, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
		}
		return winner, nil
	}

	s.metrics.ObserveCertificateIssued()
	if s.notifier != nil {
		s.notifier.CertificateIssued(cert)
	}
	s.logger.Info("certificate issued",
		zap.String("employee_id", employeeID),
		zap.String("course_id", courseID),
		zap.String("number", number),
	)
	return cert, nil
}

// Verify resolves a certificate by its public number.
func (s *CertificateService) Verify(ctx context.Context, number string) (*models.CertificateDetail, error) {
	detail, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return detail, nil
}

// ListForEmployee returns the employee's certificates, newest first.
func (s *CertificateService) ListForEmployee(ctx context.Context, employeeID string) ([]models.CertificateDetail, error) {
	certs, err := s.store.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, nil
}

// generateNumber produces CERT-<year>-<6 digits>, collision-checked against
// the store. The unique index on certificate_number backstops the check.
func (s *CertificateService) generateNumber(ctx context.Context) (string, error) {
	const maxTries = 5
	year := time.Now().UTC().Year()
	for i := 0; i < maxTries; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
		if err != nil {
			return "", fmt.Errorf("random certificate number: %w", err)
		}
		candidate := fmt.Sprintf("%s-%d-%06d", s.cfg.NumberPrefix, year, n.Int64())
		exists, err := s.store.NumberExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("exhausted certificate number attempts")
}
