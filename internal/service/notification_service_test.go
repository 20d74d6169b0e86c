package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/novasec/secaware-api/internal/models"
	"github.com/novasec/secaware-api/pkg/jobs"
)

func TestNotificationDeliverKnownTypes(t *testing.T) {
	svc := NewNotificationService(jobs.QueueConfig{}, zap.NewNop())

	err := svc.deliver(context.Background(), jobs.Job{ID: "j1", Type: JobCertificateIssued})
	assert.NoError(t, err)
	err = svc.deliver(context.Background(), jobs.Job{ID: "j2", Type: JobExamResultRecorded})
	assert.NoError(t, err)
}

func TestNotificationDeliverUnknownType(t *testing.T) {
	svc := NewNotificationService(jobs.QueueConfig{}, zap.NewNop())

	err := svc.deliver(context.Background(), jobs.Job{ID: "j1", Type: "mystery"})
	require.Error(t, err)
}

func TestNotificationLifecycle(t *testing.T) {
	svc := NewNotificationService(jobs.QueueConfig{Workers: 1, BufferSize: 4, RetryDelay: time.Millisecond}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Start(ctx)
	svc.CertificateIssued(&models.Certificate{CertificateNumber: "CERT-2026-000001", EmployeeID: "e1", CourseID: "c1"})
	svc.ExamResultRecorded(&models.ExamAttempt{EmployeeID: "e1", ExamID: "x1", Percentage: 80, Passed: true})
	svc.Stop()
}
