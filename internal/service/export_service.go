package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/novasec/secaware-api/internal/repository"
	appErrors "github.com/novasec/secaware-api/pkg/errors"
	"github.com/novasec/secaware-api/pkg/export"
)

// ExportFormat selects the rendered output.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type attemptLister interface {
	ListByExam(ctx context.Context, examID string, limit int) ([]repository.AttemptDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig caps export volume.
type ExportConfig struct {
	MaxRows int
}

// ExportService renders an exam's attempt list for admin download. Raw rows
// only; aggregation stays out of this service.
type ExportService struct {
	exams    examLookup
	attempts attemptLister
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(exams examLookup, attempts attemptLister, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{exams: exams, attempts: attempts, csv: csv, pdf: pdf, logger: logger, cfg: cfg}
}

// AttemptsExport renders all attempts for an exam. Returns the payload and a
// suggested filename.
func (s *ExportService) AttemptsExport(ctx context.Context, examID string, format ExportFormat) ([]byte, string, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	attempts, err := s.attempts.ListByExam(ctx, examID, s.cfg.MaxRows)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attempts")
	}

	dataset := export.Dataset{
		Headers: []string{"Employee", "Email", "Score %", "Passed", "Auto Submitted", "Started", "Completed"},
	}
	for _, a := range attempts {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Employee":       a.EmployeeName,
			"Email":          a.EmployeeEmail,
			"Score %":        strconv.Itoa(a.Percentage),
			"Passed":         strconv.FormatBool(a.Passed),
			"Auto Submitted": strconv.FormatBool(a.AutoSubmitted),
			"Started":        a.StartedAt.UTC().Format(time.RFC3339),
			"Completed":      a.CompletedAt.UTC().Format(time.RFC3339),
		})
	}

	var payload []byte
	switch format {
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("%s attempts", exam.Title))
	case ExportFormatCSV, "":
		format = ExportFormatCSV
		payload, err = s.csv.Render(dataset)
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("exam-%s-attempts.%s", examID, format)
	s.logger.Info("attempts exported", zap.String("exam_id", examID), zap.String("format", string(format)), zap.Int("rows", len(dataset.Rows)))
	return payload, filename, nil
}
