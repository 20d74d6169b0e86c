package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/novasec/secaware-api/internal/models"
	"github.com/novasec/secaware-api/pkg/jobs"
)

// Notification job types.
const (
	JobCertificateIssued  = "certificate_issued"
	JobExamResultRecorded = "exam_result_recorded"
)

// CertificateIssuedPayload is dispatched when a certificate is minted.
type CertificateIssuedPayload struct {
	EmployeeID        string `json:"employee_id"`
	CourseID          string `json:"course_id"`
	CertificateNumber string `json:"certificate_number"`
}

// ExamResultPayload is dispatched when an attempt is recorded.
type ExamResultPayload struct {
	EmployeeID string `json:"employee_id"`
	ExamID     string `json:"exam_id"`
	Percentage int    `json:"percentage"`
	Passed     bool   `json:"passed"`
}

// NotificationService decouples the engine from notification delivery: it
// enqueues events onto a background queue and hands them to a deliverer.
// Delivery itself (mail, chat) lives outside this service.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService builds the dispatcher and its queue. The returned
// service is usable before Start; enqueues simply fail over to a log line.
func NewNotificationService(cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{logger: logger}
	s.queue = jobs.NewQueue("notifications", s.deliver, cfg)
	return s
}

// Start begins background dispatch.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// CertificateIssued enqueues a certificate notification.
func (s *NotificationService) CertificateIssued(cert *models.Certificate) {
	s.enqueue(JobCertificateIssued, CertificateIssuedPayload{
		EmployeeID:        cert.EmployeeID,
		CourseID:          cert.CourseID,
		CertificateNumber: cert.CertificateNumber,
	})
}

// ExamResultRecorded enqueues an exam result notification.
func (s *NotificationService) ExamResultRecorded(attempt *models.ExamAttempt) {
	s.enqueue(JobExamResultRecorded, ExamResultPayload{
		EmployeeID: attempt.EmployeeID,
		ExamID:     attempt.ExamID,
		Percentage: attempt.Percentage,
		Passed:     attempt.Passed,
	})
}

func (s *NotificationService) enqueue(jobType string, payload interface{}) {
	err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: payload})
	if err != nil {
		s.logger.Warn("notification dropped", zap.String("type", jobType), zap.Error(err))
	}
}

// deliver is the queue handler. The log line is the collaborator seam; a real
// deployment swaps this for a mail or chat integration.
func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobCertificateIssued, JobExamResultRecorded:
		s.logger.Info("notification dispatched",
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Any("payload", job.Payload),
		)
		return nil
	default:
		return fmt.Errorf("unknown notification type %q", job.Type)
	}
}
