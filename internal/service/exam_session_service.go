package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/novasec/secaware-api/internal/models"
	appErrors "github.com/novasec/secaware-api/pkg/errors"
)

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	QuestionsByExam(ctx context.Context, examID string) ([]models.ExamQuestion, error)
}

type assignmentReader interface {
	FindForEmployee(ctx context.Context, employeeID string, departmentID *string, examID string) (*models.ExamAssignment, error)
	FindByID(ctx context.Context, id string) (*models.ExamAssignment, error)
}

type attemptStore interface {
	Create(ctx context.Context, attempt *models.ExamAttempt) error
	CountByAssignment(ctx context.Context, employeeID, assignmentID string) (int, error)
	HasPassed(ctx context.Context, employeeID, examID string) (bool, error)
	ListByEmployeeAndExam(ctx context.Context, employeeID, examID string) ([]models.ExamAttempt, error)
}

type sessionStore interface {
	Save(ctx context.Context, session *models.ExamSession, ttl time.Duration) error
	Consume(ctx context.Context, employeeID, examID string) (*models.ExamSession, error)
}

type prerequisiteReader interface {
	FindByEmployeeAndCourse(ctx context.Context, employeeID, courseID string) (*models.CourseEnrollment, error)
}

type resultNotifier interface {
	ExamResultRecorded(attempt *models.ExamAttempt)
}

// ExamSessionConfig tunes session behaviour.
type ExamSessionConfig struct {
	// SessionGrace extends the session TTL past the exam time limit so a
	// slightly late submission still finds its session and is recorded.
	SessionGrace time.Duration
}

// ExamSessionService validates exam eligibility, runs time-boxed attempts,
// scores submissions, and records results.
type ExamSessionService struct {
	exams       examReader
	assignments assignmentReader
	attempts    attemptStore
	sessions    sessionStore
	enrollments prerequisiteReader
	notifier    resultNotifier
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         ExamSessionConfig

	now func() time.Time
}

// NewExamSessionService constructs an ExamSessionService.
func NewExamSessionService(exams examReader, assignments assignmentReader, attempts attemptStore, sessions sessionStore, enrollments prerequisiteReader, notifier resultNotifier, metrics *MetricsService, cfg ExamSessionConfig, logger *zap.Logger) *ExamSessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionGrace <= 0 {
		cfg.SessionGrace = 5 * time.Minute
	}
	return &ExamSessionService{
		exams:       exams,
		assignments: assignments,
		attempts:    attempts,
		sessions:    sessions,
		enrollments: enrollments,
		notifier:    notifier,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CheckEligibility resolves whether the employee may take the exam, with the
// specific reason when not. Not being eligible is a result, not an error.
func (s *ExamSessionService) CheckEligibility(ctx context.Context, employeeID string, departmentID *string, examID string) (*models.Eligibility, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if !exam.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}

	assignment, err := s.assignments.FindForEmployee(ctx, employeeID, departmentID, examID)
	if err != nil {
		if err == sql.ErrNoRows {
			return &models.Eligibility{CanTake: false, Reason: models.ReasonNotAssigned}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	maxAttempts := assignment.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = exam.MaxAttempts
	}

	eligibility := &models.Eligibility{
		AssignmentID: assignment.ID,
		MaxAttempts:  maxAttempts,
	}

	if exam.PrerequisiteCourseID != nil {
		enrollment, err := s.enrollments.FindByEmployeeAndCourse(ctx, employeeID, *exam.PrerequisiteCourseID)
		if err != nil && err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite enrollment")
		}
		if err == sql.ErrNoRows || enrollment.Status != models.EnrollmentStatusCompleted {
			eligibility.Reason = models.ReasonPrerequisiteIncomplete
			return eligibility, nil
		}
	}

	passed, err := s.attempts.HasPassed(ctx, employeeID, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check passing attempts")
	}
	eligibility.HasPassed = passed

	used, err := s.attempts.CountByAssignment(ctx, employeeID, assignment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attempts")
	}
	eligibility.AttemptsUsed = used

	// Passing is terminal for the exam, checked before the quota so the UI
	// reports "already passed" rather than "no attempts remaining".
	if passed {
		eligibility.Reason = models.ReasonAlreadyPassed
		return eligibility, nil
	}
	if used >= maxAttempts {
		eligibility.Reason = models.ReasonNoAttemptsRemaining
		return eligibility, nil
	}

	eligibility.CanTake = true
	return eligibility, nil
}

// StartAttempt opens a time-boxed session and returns the questions in their
// stable authoring order. Starting never consumes a quota slot; an abandoned
// session simply expires.
func (s *ExamSessionService) StartAttempt(ctx context.Context, employeeID string, departmentID *string, examID string) (*models.ExamSession, error) {
	eligibility, err := s.CheckEligibility(ctx, employeeID, departmentID, examID)
	if err != nil {
		return nil, err
	}
	if !eligibility.CanTake {
		return nil, ineligibleError(eligibility.Reason)
	}

	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	questions, err := s.exams.QuestionsByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam questions")
	}
	if len(questions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam has no questions")
	}

	views := make([]models.ExamQuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, models.ExamQuestionView{
			OrderIndex: q.OrderIndex,
			Prompt:     q.Prompt,
			Options:    []string(q.Options),
		})
	}

	startedAt := s.now()
	limit := time.Duration(exam.TimeLimitMinutes) * time.Minute
	session := &models.ExamSession{
		Token:        uuid.NewString(),
		EmployeeID:   employeeID,
		ExamID:       examID,
		AssignmentID: eligibility.AssignmentID,
		StartedAt:    startedAt,
		Deadline:     startedAt.Add(limit),
		Questions:    views,
	}

	if err := s.sessions.Save(ctx, session, limit+s.cfg.SessionGrace); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to open exam session")
	}

	s.metrics.ObserveSessionStarted()
	s.logger.Info("exam session started",
		zap.String("employee_id", employeeID),
		zap.String("exam_id", examID),
		zap.String("session", session.Token),
		zap.Time("deadline", session.Deadline),
	)
	return session, nil
}

// SubmitAttemptRequest carries the submitted answers keyed by question
// order_index.
type SubmitAttemptRequest struct {
	Answers map[int]string `json:"answers"`
}

// SubmitAttempt consumes the live session, scores the answers, and persists
// exactly one immutable attempt row. A submission after the deadline is still
// accepted but flagged auto_submitted; losing learner work is worse than a
// late result.
func (s *ExamSessionService) SubmitAttempt(ctx context.Context, employeeID, examID string, req SubmitAttemptRequest) (*models.ExamAttempt, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	session, err := s.sessions.Consume(ctx, employeeID, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to resolve exam session")
	}
	if session == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateSubmission, "no live session; attempt already submitted or never started")
	}

	// Quota and pass state are re-checked at submit: the session may have
	// outlived an attempt submitted through another session.
	passedBefore, err := s.attempts.HasPassed(ctx, employeeID, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check passing attempts")
	}
	if passedBefore {
		return nil, ineligibleError(models.ReasonAlreadyPassed)
	}
	used, err := s.attempts.CountByAssignment(ctx, employeeID, session.AssignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attempts")
	}
	maxAttempts := exam.MaxAttempts
	assignment, err := s.assignments.FindByID(ctx, session.AssignmentID)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to load assignment")
	}
	if assignment != nil && assignment.MaxAttempts > 0 {
		maxAttempts = assignment.MaxAttempts
	}
	if used >= maxAttempts {
		return nil, ineligibleError(models.ReasonNoAttemptsRemaining)
	}

	questions, err := s.exams.QuestionsByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam questions")
	}

	// Exact string match against the designated correct option; unanswered
	// questions count as incorrect.
	correct := 0
	for _, q := range questions {
		if req.Answers[q.OrderIndex] == q.CorrectOption {
			correct++
		}
	}
	percentage := roundPercentage(correct, len(questions))
	passed := percentage >= exam.PassingScore

	now := s.now()
	attempt := &models.ExamAttempt{
		EmployeeID:    employeeID,
		ExamID:        examID,
		AssignmentID:  session.AssignmentID,
		Answers:       req.Answers,
		CorrectCount:  correct,
		TotalCount:    len(questions),
		Percentage:    percentage,
		Passed:        passed,
		AutoSubmitted: now.After(session.Deadline),
		StartedAt:     session.StartedAt,
		CompletedAt:   now,
	}
	if attempt.Answers == nil {
		attempt.Answers = models.AnswerMap{}
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to record exam attempt")
	}

	s.metrics.ObserveAttemptSubmitted(passed)
	if s.notifier != nil {
		s.notifier.ExamResultRecorded(attempt)
	}
	s.logger.Info("exam attempt submitted",
		zap.String("employee_id", employeeID),
		zap.String("exam_id", examID),
		zap.Int("percentage", percentage),
		zap.Bool("passed", passed),
		zap.Bool("auto_submitted", attempt.AutoSubmitted),
	)
	return attempt, nil
}

// ListAttempts returns the employee's attempt history for an exam.
func (s *ExamSessionService) ListAttempts(ctx context.Context, employeeID, examID string) ([]models.ExamAttempt, error) {
	attempts, err := s.attempts.ListByEmployeeAndExam(ctx, employeeID, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attempts")
	}
	return attempts, nil
}

func ineligibleError(reason models.EligibilityReason) error {
	switch reason {
	case models.ReasonAlreadyPassed:
		return appErrors.Clone(appErrors.ErrIneligible, "exam already passed")
	case models.ReasonNoAttemptsRemaining:
		return appErrors.Clone(appErrors.ErrIneligible, "no attempts remaining")
	case models.ReasonPrerequisiteIncomplete:
		return appErrors.Clone(appErrors.ErrIneligible, "prerequisite course not completed")
	case models.ReasonNotAssigned:
		return appErrors.Clone(appErrors.ErrIneligible, "exam not assigned")
	default:
		return appErrors.ErrIneligible
	}
}
