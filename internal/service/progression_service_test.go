package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/novasec/secaware-api/internal/models"
	appErrors "github.com/novasec/secaware-api/pkg/errors"
)

type mockCourseReader struct {
	courses   map[string]*models.Course
	sections  map[string][]models.Section
	questions map[string][]models.SectionQuestion
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := m.courses[id]; ok {
		cp := *course
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseReader) SectionsByCourse(ctx context.Context, courseID string) ([]models.Section, error) {
	return m.sections[courseID], nil
}

func (m *mockCourseReader) FindSectionByID(ctx context.Context, sectionID string) (*models.Section, error) {
	for _, list := range m.sections {
		for i := range list {
			if list[i].ID == sectionID {
				cp := list[i]
				return &cp, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseReader) CountSections(ctx context.Context, courseID string) (int, error) {
	return len(m.sections[courseID]), nil
}

func (m *mockCourseReader) QuestionsBySection(ctx context.Context, sectionID string) ([]models.SectionQuestion, error) {
	return m.questions[sectionID], nil
}

type mockProgressStore struct {
	completed map[string]bool
	marks     []models.SectionProgress
}

func progressKey(employeeID, sectionID string) string { return employeeID + "/" + sectionID }

func (m *mockProgressStore) IsCompleted(ctx context.Context, employeeID, sectionID string) (bool, error) {
	return m.completed[progressKey(employeeID, sectionID)], nil
}

func (m *mockProgressStore) MarkCompleted(ctx context.Context, progress *models.SectionProgress) error {
	if m.completed == nil {
		m.completed = make(map[string]bool)
	}
	key := progressKey(progress.EmployeeID, progress.SectionID)
	// Mirrors the repository's ON CONFLICT DO NOTHING: a re-mark is a no-op.
	if m.completed[key] {
		return nil
	}
	m.completed[key] = true
	m.marks = append(m.marks, *progress)
	return nil
}

func (m *mockProgressStore) CountCompleted(ctx context.Context, employeeID, courseID string) (int, error) {
	count := 0
	for key, done := range m.completed {
		if done && len(key) > len(employeeID) && key[:len(employeeID)] == employeeID {
			count++
		}
	}
	return count, nil
}

type mockEnrollmentStore struct {
	enrollments map[string]*models.CourseEnrollment
	updates     []models.EnrollmentStatus
}

func enrollmentKey(employeeID, courseID string) string { return employeeID + "/" + courseID }

func (m *mockEnrollmentStore) FindByEmployeeAndCourse(ctx context.Context, employeeID, courseID string) (*models.CourseEnrollment, error) {
	if enrollment, ok := m.enrollments[enrollmentKey(employeeID, courseID)]; ok {
		cp := *enrollment
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) UpdateProgress(ctx context.Context, id string, status models.EnrollmentStatus, percentage int, startedAt, completedAt *time.Time) error {
	for _, enrollment := range m.enrollments {
		if enrollment.ID == id {
			enrollment.Status = status
			enrollment.ProgressPercentage = percentage
			if startedAt != nil {
				enrollment.StartedAt = startedAt
			}
			if completedAt != nil {
				enrollment.CompletedAt = completedAt
			}
		}
	}
	m.updates = append(m.updates, status)
	return nil
}

type mockCertIssuer struct {
	issued   []string
	number   string
	failures int
}

func (m *mockCertIssuer) Issue(ctx context.Context, employeeID, courseID string, score *int) (*models.Certificate, error) {
	if m.failures > 0 {
		m.failures--
		return nil, appErrors.Clone(appErrors.ErrStorageFailure, "certificate store unavailable")
	}
	m.issued = append(m.issued, employeeID+"/"+courseID)
	number := m.number
	if number == "" {
		number = "CERT-2026-000001"
	}
	return &models.Certificate{CertificateNumber: number, EmployeeID: employeeID, CourseID: courseID, Score: score}, nil
}

func threeSectionCourse() *mockCourseReader {
	return &mockCourseReader{
		courses: map[string]*models.Course{
			"c1": {ID: "c1", Title: "Phishing Basics", Published: true},
		},
		sections: map[string][]models.Section{
			"c1": {
				{ID: "s1", CourseID: "c1", Title: "Intro", Type: models.SectionTypeVideo, OrderIndex: 1},
				{ID: "s2", CourseID: "c1", Title: "Spotting Red Flags", Type: models.SectionTypeArticle, OrderIndex: 2},
				{ID: "s3", CourseID: "c1", Title: "Checkpoint", Type: models.SectionTypeQuiz, OrderIndex: 3},
			},
		},
		questions: map[string][]models.SectionQuestion{
			"s3": {
				{ID: "q1", SectionID: "s3", OrderIndex: 1, Prompt: "Q1", Options: pq.StringArray{"a", "b"}, CorrectOption: "a"},
				{ID: "q2", SectionID: "s3", OrderIndex: 2, Prompt: "Q2", Options: pq.StringArray{"a", "b"}, CorrectOption: "b"},
			},
		},
	}
}

func newProgressionFixture() (*ProgressionService, *mockProgressStore, *mockEnrollmentStore, *mockCertIssuer) {
	progress := &mockProgressStore{completed: map[string]bool{}}
	enrollments := &mockEnrollmentStore{enrollments: map[string]*models.CourseEnrollment{
		"e1/c1": {ID: "en1", EmployeeID: "e1", CourseID: "c1", Status: models.EnrollmentStatusAssigned},
	}}
	certs := &mockCertIssuer{}
	svc := NewProgressionService(threeSectionCourse(), progress, enrollments, certs, nil, nil, ProgressionConfig{}, zap.NewNop())
	return svc, progress, enrollments, certs
}

func TestCanAccessSectionFirstAlwaysOpen(t *testing.T) {
	svc, _, _, _ := newProgressionFixture()

	ok, err := svc.CanAccessSection(context.Background(), "e1", "c1", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanAccessSectionLockedUntilPredecessorDone(t *testing.T) {
	svc, progress, _, _ := newProgressionFixture()

	ok, err := svc.CanAccessSection(context.Background(), "e1", "c1", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	progress.completed[progressKey("e1", "s1")] = true

	ok, err = svc.CanAccessSection(context.Background(), "e1", "c1", 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanAccessSectionOutOfRange(t *testing.T) {
	svc, _, _, _ := newProgressionFixture()

	_, err := svc.CanAccessSection(context.Background(), "e1", "c1", 7)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCompleteSectionRejectsSkippingAhead(t *testing.T) {
	svc, _, _, _ := newProgressionFixture()

	_, err := svc.CompleteSection(context.Background(), "e1", "c1", "s2")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAccessDenied.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Intro")
}

func TestCompleteSectionRejectsQuizType(t *testing.T) {
	svc, progress, _, _ := newProgressionFixture()
	progress.completed[progressKey("e1", "s1")] = true
	progress.completed[progressKey("e1", "s2")] = true

	_, err := svc.CompleteSection(context.Background(), "e1", "c1", "s3")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCompleteSectionWithoutEnrollment(t *testing.T) {
	svc, _, _, _ := newProgressionFixture()

	_, err := svc.CompleteSection(context.Background(), "stranger", "c1", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCompleteSectionMovesToInProgress(t *testing.T) {
	svc, _, enrollments, certs := newProgressionFixture()

	snapshot, err := svc.CompleteSection(context.Background(), "e1", "c1", "s1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusInProgress, snapshot.Status)
	assert.Equal(t, 33, snapshot.ProgressPercentage)
	assert.Equal(t, 1, snapshot.CompletedSections)
	assert.Equal(t, 3, snapshot.TotalSections)
	assert.NotNil(t, snapshot.StartedAt)
	assert.Empty(t, certs.issued)
	assert.Equal(t, []models.EnrollmentStatus{models.EnrollmentStatusInProgress}, enrollments.updates)
}

func TestQuizSubmissionBelowThresholdLeavesSectionIncomplete(t *testing.T) {
	svc, progress, _, _ := newProgressionFixture()
	progress.completed[progressKey("e1", "s1")] = true
	progress.completed[progressKey("e1", "s2")] = true

	result, err := svc.SubmitQuizSection(context.Background(), "e1", "c1", "s3", map[int]string{1: "b", 2: "a"})
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, 0, result.Score)
	assert.Nil(t, result.Enrollment)
	assert.False(t, progress.completed[progressKey("e1", "s3")])
}

func TestQuizSubmissionGatedByPredecessor(t *testing.T) {
	svc, _, _, _ := newProgressionFixture()

	_, err := svc.SubmitQuizSection(context.Background(), "e1", "c1", "s3", map[int]string{1: "a", 2: "b"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAccessDenied.Code, appErrors.FromError(err).Code)
}

func TestQuizPassCompletesCourseAndIssuesCertificate(t *testing.T) {
	svc, _, _, certs := newProgressionFixture()

	_, err := svc.CompleteSection(context.Background(), "e1", "c1", "s1")
	require.NoError(t, err)
	_, err = svc.CompleteSection(context.Background(), "e1", "c1", "s2")
	require.NoError(t, err)

	result, err := svc.SubmitQuizSection(context.Background(), "e1", "c1", "s3", map[int]string{1: "a", 2: "b"})
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, 100, result.Score)
	require.NotNil(t, result.Enrollment)
	assert.Equal(t, models.EnrollmentStatusCompleted, result.Enrollment.Status)
	assert.Equal(t, 100, result.Enrollment.ProgressPercentage)
	assert.Equal(t, "CERT-2026-000001", result.Enrollment.CertificateNumber)
	assert.Equal(t, []string{"e1/c1"}, certs.issued)
}

func TestQuizPassAtExactThreshold(t *testing.T) {
	progress := &mockProgressStore{completed: map[string]bool{
		progressKey("e1", "s1"): true,
		progressKey("e1", "s2"): true,
	}}
	enrollments := &mockEnrollmentStore{enrollments: map[string]*models.CourseEnrollment{
		"e1/c1": {ID: "en1", EmployeeID: "e1", CourseID: "c1", Status: models.EnrollmentStatusInProgress},
	}}
	courses := threeSectionCourse()
	courses.questions["s3"] = []models.SectionQuestion{
		{SectionID: "s3", OrderIndex: 1, CorrectOption: "a"},
		{SectionID: "s3", OrderIndex: 2, CorrectOption: "a"},
	}
	svc := NewProgressionService(courses, progress, enrollments, &mockCertIssuer{}, nil, nil,
		ProgressionConfig{QuizPassThreshold: 50}, zap.NewNop())

	result, err := svc.SubmitQuizSection(context.Background(), "e1", "c1", "s3", map[int]string{1: "a", 2: "b"})
	require.NoError(t, err)
	assert.Equal(t, 50, result.Score)
	assert.True(t, result.Passed)
}

func TestCompletedEnrollmentIsTerminal(t *testing.T) {
	svc, progress, enrollments, certs := newProgressionFixture()
	progress.completed[progressKey("e1", "s1")] = true
	progress.completed[progressKey("e1", "s2")] = true
	progress.completed[progressKey("e1", "s3")] = true
	now := time.Now().UTC()
	enrollments.enrollments["e1/c1"].Status = models.EnrollmentStatusCompleted
	enrollments.enrollments["e1/c1"].ProgressPercentage = 100
	enrollments.enrollments["e1/c1"].CompletedAt = &now

	snapshot, err := svc.CompleteSection(context.Background(), "e1", "c1", "s1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, snapshot.Status)
	assert.Equal(t, 100, snapshot.ProgressPercentage)
	assert.Empty(t, enrollments.updates)
	assert.Equal(t, "CERT-2026-000001", snapshot.CertificateNumber)
	assert.Len(t, certs.issued, 1, "idempotent issue resolves the existing certificate")
}

func TestCertificateMintedOnRetryAfterIssueFailure(t *testing.T) {
	svc, progress, _, certs := newProgressionFixture()
	progress.completed[progressKey("e1", "s1")] = true
	progress.completed[progressKey("e1", "s2")] = true
	certs.failures = 1

	_, err := svc.SubmitQuizSection(context.Background(), "e1", "c1", "s3", map[int]string{1: "a", 2: "b"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStorageFailure.Code, appErrors.FromError(err).Code)
	assert.Empty(t, certs.issued)

	// The enrollment already flipped to COMPLETED; the next call must still
	// mint the certificate once the store recovers.
	snapshot, err := svc.CompleteSection(context.Background(), "e1", "c1", "s1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, snapshot.Status)
	assert.Equal(t, "CERT-2026-000001", snapshot.CertificateNumber)
	assert.Equal(t, []string{"e1/c1"}, certs.issued)
}

func TestCompleteSectionTwiceMidCourseIsIdempotent(t *testing.T) {
	svc, progress, enrollments, _ := newProgressionFixture()

	first, err := svc.CompleteSection(context.Background(), "e1", "c1", "s1")
	require.NoError(t, err)
	again, err := svc.CompleteSection(context.Background(), "e1", "c1", "s1")
	require.NoError(t, err)

	assert.Equal(t, first.ProgressPercentage, again.ProgressPercentage)
	assert.Equal(t, 1, again.CompletedSections)
	count := 0
	for _, mark := range progress.marks {
		if mark.SectionID == "s1" {
			count++
		}
	}
	assert.Equal(t, 1, count, "re-completion records no duplicate progress row")
	assert.Equal(t, models.EnrollmentStatusInProgress, enrollments.enrollments["e1/c1"].Status)
}

func TestEnrollmentStatusRecountsFromStore(t *testing.T) {
	svc, progress, _, _ := newProgressionFixture()
	progress.completed[progressKey("e1", "s1")] = true

	snapshot, err := svc.EnrollmentStatus(context.Background(), "e1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.CompletedSections)
	assert.Equal(t, 3, snapshot.TotalSections)
}

func TestEnrollmentStatusNotAssigned(t *testing.T) {
	svc, _, _, _ := newProgressionFixture()

	_, err := svc.EnrollmentStatus(context.Background(), "stranger", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRoundPercentage(t *testing.T) {
	assert.Equal(t, 33, roundPercentage(1, 3))
	assert.Equal(t, 67, roundPercentage(2, 3))
	assert.Equal(t, 100, roundPercentage(3, 3))
	assert.Equal(t, 0, roundPercentage(0, 3))
	assert.Equal(t, 0, roundPercentage(1, 0))
}
