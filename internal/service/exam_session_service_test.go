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

type mockExamReader struct {
	exams     map[string]*models.Exam
	questions map[string][]models.ExamQuestion
}

func (m *mockExamReader) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	if exam, ok := m.exams[id]; ok {
		cp := *exam
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExamReader) QuestionsByExam(ctx context.Context, examID string) ([]models.ExamQuestion, error) {
	return m.questions[examID], nil
}

type mockAssignmentReader struct {
	byEmployee  map[string]*models.ExamAssignment
	byID        map[string]*models.ExamAssignment
	findByIDErr error
}

func (m *mockAssignmentReader) FindForEmployee(ctx context.Context, employeeID string, departmentID *string, examID string) (*models.ExamAssignment, error) {
	if assignment, ok := m.byEmployee[employeeID+"/"+examID]; ok {
		cp := *assignment
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentReader) FindByID(ctx context.Context, id string) (*models.ExamAssignment, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if assignment, ok := m.byID[id]; ok {
		cp := *assignment
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockAttemptStore struct {
	attempts []models.ExamAttempt
}

func (m *mockAttemptStore) Create(ctx context.Context, attempt *models.ExamAttempt) error {
	m.attempts = append(m.attempts, *attempt)
	return nil
}

func (m *mockAttemptStore) CountByAssignment(ctx context.Context, employeeID, assignmentID string) (int, error) {
	count := 0
	for _, a := range m.attempts {
		if a.EmployeeID == employeeID && a.AssignmentID == assignmentID {
			count++
		}
	}
	return count, nil
}

func (m *mockAttemptStore) HasPassed(ctx context.Context, employeeID, examID string) (bool, error) {
	for _, a := range m.attempts {
		if a.EmployeeID == employeeID && a.ExamID == examID && a.Passed {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAttemptStore) ListByEmployeeAndExam(ctx context.Context, employeeID, examID string) ([]models.ExamAttempt, error) {
	var out []models.ExamAttempt
	for _, a := range m.attempts {
		if a.EmployeeID == employeeID && a.ExamID == examID {
			out = append(out, a)
		}
	}
	return out, nil
}

type mockSessionStore struct {
	sessions map[string]*models.ExamSession
	ttls     map[string]time.Duration
}

func sessionKey(employeeID, examID string) string { return employeeID + "/" + examID }

func (m *mockSessionStore) Save(ctx context.Context, session *models.ExamSession, ttl time.Duration) error {
	if m.sessions == nil {
		m.sessions = make(map[string]*models.ExamSession)
		m.ttls = make(map[string]time.Duration)
	}
	cp := *session
	m.sessions[sessionKey(session.EmployeeID, session.ExamID)] = &cp
	m.ttls[sessionKey(session.EmployeeID, session.ExamID)] = ttl
	return nil
}

func (m *mockSessionStore) Consume(ctx context.Context, employeeID, examID string) (*models.ExamSession, error) {
	key := sessionKey(employeeID, examID)
	session, ok := m.sessions[key]
	if !ok {
		return nil, nil
	}
	delete(m.sessions, key)
	return session, nil
}

type mockPrerequisiteReader struct {
	enrollments map[string]*models.CourseEnrollment
}

func (m *mockPrerequisiteReader) FindByEmployeeAndCourse(ctx context.Context, employeeID, courseID string) (*models.CourseEnrollment, error) {
	if enrollment, ok := m.enrollments[employeeID+"/"+courseID]; ok {
		cp := *enrollment
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockResultNotifier struct {
	recorded []models.ExamAttempt
}

func (m *mockResultNotifier) ExamResultRecorded(attempt *models.ExamAttempt) {
	m.recorded = append(m.recorded, *attempt)
}

type examFixture struct {
	svc         *ExamSessionService
	exams       *mockExamReader
	assignments *mockAssignmentReader
	attempts    *mockAttemptStore
	sessions    *mockSessionStore
	enrollments *mockPrerequisiteReader
	notifier    *mockResultNotifier
}

func newExamFixture() *examFixture {
	exams := &mockExamReader{
		exams: map[string]*models.Exam{
			"x1": {ID: "x1", Title: "Annual Assessment", TimeLimitMinutes: 30, PassingScore: 70, MaxAttempts: 3, Active: true},
		},
		questions: map[string][]models.ExamQuestion{
			"x1": {
				{ExamID: "x1", OrderIndex: 1, Prompt: "Q1", Options: pq.StringArray{"a", "b"}, CorrectOption: "a"},
				{ExamID: "x1", OrderIndex: 2, Prompt: "Q2", Options: pq.StringArray{"a", "b"}, CorrectOption: "b"},
				{ExamID: "x1", OrderIndex: 3, Prompt: "Q3", Options: pq.StringArray{"a", "b"}, CorrectOption: "a"},
			},
		},
	}
	employee := "e1"
	assignments := &mockAssignmentReader{
		byEmployee: map[string]*models.ExamAssignment{
			"e1/x1": {ID: "as1", ExamID: "x1", EmployeeID: &employee},
		},
		byID: map[string]*models.ExamAssignment{
			"as1": {ID: "as1", ExamID: "x1", EmployeeID: &employee},
		},
	}
	attempts := &mockAttemptStore{}
	sessions := &mockSessionStore{}
	enrollments := &mockPrerequisiteReader{enrollments: map[string]*models.CourseEnrollment{}}
	notifier := &mockResultNotifier{}
	svc := NewExamSessionService(exams, assignments, attempts, sessions, enrollments, notifier, nil,
		ExamSessionConfig{SessionGrace: 5 * time.Minute}, zap.NewNop())
	return &examFixture{svc: svc, exams: exams, assignments: assignments, attempts: attempts, sessions: sessions, enrollments: enrollments, notifier: notifier}
}

func TestEligibilityNotAssigned(t *testing.T) {
	f := newExamFixture()

	eligibility, err := f.svc.CheckEligibility(context.Background(), "stranger", nil, "x1")
	require.NoError(t, err)
	assert.False(t, eligibility.CanTake)
	assert.Equal(t, models.ReasonNotAssigned, eligibility.Reason)
}

func TestEligibilityInactiveExamHidden(t *testing.T) {
	f := newExamFixture()
	f.exams.exams["x1"].Active = false

	_, err := f.svc.CheckEligibility(context.Background(), "e1", nil, "x1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEligibilityPrerequisiteIncomplete(t *testing.T) {
	f := newExamFixture()
	course := "c1"
	f.exams.exams["x1"].PrerequisiteCourseID = &course

	eligibility, err := f.svc.CheckEligibility(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)
	assert.False(t, eligibility.CanTake)
	assert.Equal(t, models.ReasonPrerequisiteIncomplete, eligibility.Reason)

	f.enrollments.enrollments["e1/c1"] = &models.CourseEnrollment{
		EmployeeID: "e1", CourseID: "c1", Status: models.EnrollmentStatusCompleted,
	}

	eligibility, err = f.svc.CheckEligibility(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)
	assert.True(t, eligibility.CanTake)
}

func TestEligibilityAlreadyPassedBeatsQuota(t *testing.T) {
	f := newExamFixture()
	for i := 0; i < 3; i++ {
		f.attempts.attempts = append(f.attempts.attempts, models.ExamAttempt{
			EmployeeID: "e1", ExamID: "x1", AssignmentID: "as1", Passed: i == 2,
		})
	}

	eligibility, err := f.svc.CheckEligibility(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)
	assert.False(t, eligibility.CanTake)
	assert.Equal(t, models.ReasonAlreadyPassed, eligibility.Reason)
	assert.Equal(t, 3, eligibility.AttemptsUsed)
}

func TestEligibilityQuotaBoundary(t *testing.T) {
	f := newExamFixture()
	for i := 0; i < 2; i++ {
		f.attempts.attempts = append(f.attempts.attempts, models.ExamAttempt{
			EmployeeID: "e1", ExamID: "x1", AssignmentID: "as1",
		})
	}

	eligibility, err := f.svc.CheckEligibility(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)
	assert.True(t, eligibility.CanTake, "third of three attempts is still allowed")

	f.attempts.attempts = append(f.attempts.attempts, models.ExamAttempt{
		EmployeeID: "e1", ExamID: "x1", AssignmentID: "as1",
	})

	eligibility, err = f.svc.CheckEligibility(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)
	assert.False(t, eligibility.CanTake)
	assert.Equal(t, models.ReasonNoAttemptsRemaining, eligibility.Reason)
}

func TestEligibilityAssignmentOverridesExamQuota(t *testing.T) {
	f := newExamFixture()
	f.assignments.byEmployee["e1/x1"].MaxAttempts = 1
	f.attempts.attempts = append(f.attempts.attempts, models.ExamAttempt{
		EmployeeID: "e1", ExamID: "x1", AssignmentID: "as1",
	})

	eligibility, err := f.svc.CheckEligibility(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)
	assert.False(t, eligibility.CanTake)
	assert.Equal(t, 1, eligibility.MaxAttempts)
}

func TestStartAttemptOpensSessionWithoutAnswers(t *testing.T) {
	f := newExamFixture()

	session, err := f.svc.StartAttempt(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "as1", session.AssignmentID)
	assert.Equal(t, session.StartedAt.Add(30*time.Minute), session.Deadline)
	require.Len(t, session.Questions, 3)
	assert.Equal(t, 35*time.Minute, f.sessions.ttls[sessionKey("e1", "x1")])
	assert.Empty(t, f.attempts.attempts, "starting never consumes a quota slot")
}

func TestStartAttemptIneligible(t *testing.T) {
	f := newExamFixture()

	_, err := f.svc.StartAttempt(context.Background(), "stranger", nil, "x1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrIneligible.Code, appErr.Code)
	assert.Equal(t, "exam not assigned", appErr.Message)
}

func TestSubmitAttemptScoresAndRecords(t *testing.T) {
	f := newExamFixture()
	_, err := f.svc.StartAttempt(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)

	attempt, err := f.svc.SubmitAttempt(context.Background(), "e1", "x1", SubmitAttemptRequest{
		Answers: map[int]string{1: "a", 2: "b", 3: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempt.CorrectCount)
	assert.Equal(t, 3, attempt.TotalCount)
	assert.Equal(t, 67, attempt.Percentage)
	assert.False(t, attempt.Passed, "67 is below the 70 passing score")
	assert.False(t, attempt.AutoSubmitted)
	require.Len(t, f.attempts.attempts, 1)
	require.Len(t, f.notifier.recorded, 1)
}

func TestSubmitAttemptPassingScoreInclusive(t *testing.T) {
	f := newExamFixture()
	f.exams.exams["x1"].PassingScore = 67
	_, err := f.svc.StartAttempt(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)

	attempt, err := f.svc.SubmitAttempt(context.Background(), "e1", "x1", SubmitAttemptRequest{
		Answers: map[int]string{1: "a", 2: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 67, attempt.Percentage)
	assert.True(t, attempt.Passed)
}

func TestSubmitAttemptWithoutSessionIsDuplicate(t *testing.T) {
	f := newExamFixture()

	_, err := f.svc.SubmitAttempt(context.Background(), "e1", "x1", SubmitAttemptRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateSubmission.Code, appErrors.FromError(err).Code)
}

func TestSubmitAttemptTwiceRejectsSecond(t *testing.T) {
	f := newExamFixture()
	_, err := f.svc.StartAttempt(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)

	_, err = f.svc.SubmitAttempt(context.Background(), "e1", "x1", SubmitAttemptRequest{
		Answers: map[int]string{1: "a"},
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitAttempt(context.Background(), "e1", "x1", SubmitAttemptRequest{
		Answers: map[int]string{1: "a"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateSubmission.Code, appErrors.FromError(err).Code)
	assert.Len(t, f.attempts.attempts, 1)
}

func TestSubmitAttemptAfterDeadlineFlagsAutoSubmitted(t *testing.T) {
	f := newExamFixture()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return base }

	_, err := f.svc.StartAttempt(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return base.Add(31 * time.Minute) }

	attempt, err := f.svc.SubmitAttempt(context.Background(), "e1", "x1", SubmitAttemptRequest{
		Answers: map[int]string{1: "a", 2: "b", 3: "a"},
	})
	require.NoError(t, err)
	assert.True(t, attempt.AutoSubmitted)
	assert.True(t, attempt.Passed, "a late submission is still scored")
}

func TestSubmitAttemptQuotaRecheckedAtSubmit(t *testing.T) {
	f := newExamFixture()
	_, err := f.svc.StartAttempt(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		f.attempts.attempts = append(f.attempts.attempts, models.ExamAttempt{
			EmployeeID: "e1", ExamID: "x1", AssignmentID: "as1",
		})
	}

	_, err = f.svc.SubmitAttempt(context.Background(), "e1", "x1", SubmitAttemptRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIneligible.Code, appErrors.FromError(err).Code)
	assert.Len(t, f.attempts.attempts, 3)
}

func TestSubmitAttemptAssignmentLookupFailureSurfaces(t *testing.T) {
	f := newExamFixture()
	_, err := f.svc.StartAttempt(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)
	f.assignments.findByIDErr = sql.ErrConnDone

	_, err = f.svc.SubmitAttempt(context.Background(), "e1", "x1", SubmitAttemptRequest{
		Answers: map[int]string{1: "a", 2: "b", 3: "a"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStorageFailure.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.attempts.attempts, "no attempt row without a quota verdict")
}

func TestSubmitAttemptUnansweredCountIncorrect(t *testing.T) {
	f := newExamFixture()
	_, err := f.svc.StartAttempt(context.Background(), "e1", nil, "x1")
	require.NoError(t, err)

	attempt, err := f.svc.SubmitAttempt(context.Background(), "e1", "x1", SubmitAttemptRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, attempt.CorrectCount)
	assert.Equal(t, 0, attempt.Percentage)
	assert.NotNil(t, attempt.Answers)
}

func TestListAttempts(t *testing.T) {
	f := newExamFixture()
	f.attempts.attempts = append(f.attempts.attempts,
		models.ExamAttempt{EmployeeID: "e1", ExamID: "x1", Percentage: 40},
		models.ExamAttempt{EmployeeID: "e2", ExamID: "x1", Percentage: 90},
	)

	attempts, err := f.svc.ListAttempts(context.Background(), "e1", "x1")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, 40, attempts[0].Percentage)
}
