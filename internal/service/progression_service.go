package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/novasec/secaware-api/internal/models"
	appErrors "github.com/novasec/secaware-api/pkg/errors"
)

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	SectionsByCourse(ctx context.Context, courseID string) ([]models.Section, error)
	FindSectionByID(ctx context.Context, sectionID string) (*models.Section, error)
	CountSections(ctx context.Context, courseID string) (int, error)
	QuestionsBySection(ctx context.Context, sectionID string) ([]models.SectionQuestion, error)
}

type progressStore interface {
	IsCompleted(ctx context.Context, employeeID, sectionID string) (bool, error)
	MarkCompleted(ctx context.Context, progress *models.SectionProgress) error
	CountCompleted(ctx context.Context, employeeID, courseID string) (int, error)
}

type enrollmentStore interface {
	FindByEmployeeAndCourse(ctx context.Context, employeeID, courseID string) (*models.CourseEnrollment, error)
	UpdateProgress(ctx context.Context, id string, status models.EnrollmentStatus, percentage int, startedAt, completedAt *time.Time) error
}

type certificateIssuer interface {
	Issue(ctx context.Context, employeeID, courseID string, score *int) (*models.Certificate, error)
}

type snapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ProgressionConfig tunes progression policy.
type ProgressionConfig struct {
	// QuizPassThreshold is the fixed pass mark for in-course quizzes. It is
	// deliberately independent of exam passing scores.
	QuizPassThreshold int
	SnapshotCacheTTL  time.Duration
}

// ProgressionService gates sequential section access, records completion,
// recomputes enrollment state, and cascades certificate issuance.
type ProgressionService struct {
	courses      courseReader
	progress     progressStore
	enrollments  enrollmentStore
	certificates certificateIssuer
	cache        snapshotCache
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          ProgressionConfig
}

// NewProgressionService constructs a ProgressionService.
func NewProgressionService(courses courseReader, progress progressStore, enrollments enrollmentStore, certificates certificateIssuer, cache snapshotCache, metrics *MetricsService, cfg ProgressionConfig, logger *zap.Logger) *ProgressionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QuizPassThreshold <= 0 || cfg.QuizPassThreshold > 100 {
		cfg.QuizPassThreshold = 60
	}
	if cfg.SnapshotCacheTTL <= 0 {
		cfg.SnapshotCacheTTL = 5 * time.Minute
	}
	return &ProgressionService{
		courses:      courses,
		progress:     progress,
		enrollments:  enrollments,
		certificates: certificates,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
	}
}

func snapshotCacheKey(employeeID, courseID string) string {
	return fmt.Sprintf("enrollment_snapshot:%s:%s", employeeID, courseID)
}

// CanAccessSection reports whether the section at the given zero-based
// position is unlocked for the employee. Pure read, no side effects.
func (s *ProgressionService) CanAccessSection(ctx context.Context, employeeID, courseID string, sectionIndex int) (bool, error) {
	sections, err := s.courses.SectionsByCourse(ctx, courseID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	if sectionIndex < 0 || sectionIndex >= len(sections) {
		return false, appErrors.Clone(appErrors.ErrNotFound, "section not found")
	}
	if sectionIndex == 0 {
		return true, nil
	}
	completed, err := s.progress.IsCompleted(ctx, employeeID, sections[sectionIndex-1].ID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check progress")
	}
	return completed, nil
}

// CompleteSection records completion of a VIDEO or ARTICLE section. Quiz
// sections complete only through SubmitQuizSection, which grades first.
func (s *ProgressionService) CompleteSection(ctx context.Context, employeeID, courseID, sectionID string) (*models.EnrollmentSnapshot, error) {
	section, err := s.loadSection(ctx, courseID, sectionID)
	if err != nil {
		return nil, err
	}
	if section.Type == models.SectionTypeQuiz {
		return nil, appErrors.Clone(appErrors.ErrValidation, "quiz sections are completed by submitting answers")
	}
	return s.completeSection(ctx, employeeID, courseID, section, nil)
}

// SubmitQuizSection grades an in-course quiz. Answers are keyed by question
// order_index. A pass completes the section; a fail leaves it incomplete and
// the employee may retry without limit.
func (s *ProgressionService) SubmitQuizSection(ctx context.Context, employeeID, courseID, sectionID string, answers map[int]string) (*models.QuizResult, error) {
	section, err := s.loadSection(ctx, courseID, sectionID)
	if err != nil {
		return nil, err
	}
	if section.Type != models.SectionTypeQuiz {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section is not a quiz")
	}

	// Gating applies to taking the quiz, not only to completing it.
	if err := s.checkGate(ctx, employeeID, courseID, section); err != nil {
		return nil, err
	}

	questions, err := s.courses.QuestionsBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz questions")
	}
	if len(questions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz has no questions")
	}

	correct := 0
	for _, q := range questions {
		if answers[q.OrderIndex] == q.CorrectOption {
			correct++
		}
	}
	score := roundPercentage(correct, len(questions))
	passed := score >= s.cfg.QuizPassThreshold

	result := &models.QuizResult{
		SectionID: sectionID,
		Score:     score,
		Passed:    passed,
		Correct:   correct,
		Total:     len(questions),
	}
	s.metrics.ObserveQuizSubmission(passed)

	if !passed {
		return result, nil
	}

	snapshot, err := s.completeSection(ctx, employeeID, courseID, section, &score)
	if err != nil {
		return nil, err
	}
	result.Enrollment = snapshot
	return result, nil
}

// EnrollmentStatus returns the employee's current snapshot for a course.
func (s *ProgressionService) EnrollmentStatus(ctx context.Context, employeeID, courseID string) (*models.EnrollmentSnapshot, error) {
	if s.cache != nil {
		var cached models.EnrollmentSnapshot
		if err := s.cache.Get(ctx, snapshotCacheKey(employeeID, courseID), &cached); err == nil {
			s.metrics.ObserveCacheLookup(true)
			return &cached, nil
		}
		s.metrics.ObserveCacheLookup(false)
	}

	enrollment, err := s.enrollments.FindByEmployeeAndCourse(ctx, employeeID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not assigned to employee")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	snapshot, err := s.buildSnapshot(ctx, enrollment)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, snapshotCacheKey(employeeID, courseID), snapshot, s.cfg.SnapshotCacheTTL); err != nil {
			s.logger.Warn("failed to cache enrollment snapshot", zap.Error(err))
		}
	}
	return snapshot, nil
}

func (s *ProgressionService) loadSection(ctx context.Context, courseID, sectionID string) (*models.Section, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	section, err := s.courses.FindSectionByID(ctx, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if section.CourseID != courseID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section does not belong to course")
	}
	return section, nil
}

// checkGate enforces strict ordering: a section is locked until its direct
// predecessor by order_index is complete.
func (s *ProgressionService) checkGate(ctx context.Context, employeeID, courseID string, section *models.Section) error {
	sections, err := s.courses.SectionsByCourse(ctx, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	var predecessor *models.Section
	for i := range sections {
		if sections[i].ID == section.ID {
			if i == 0 {
				return nil
			}
			predecessor = &sections[i-1]
			break
		}
	}
	if predecessor == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "section not found in course ordering")
	}
	completed, err := s.progress.IsCompleted(ctx, employeeID, predecessor.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check progress")
	}
	if !completed {
		return appErrors.Clone(appErrors.ErrAccessDenied, fmt.Sprintf("section %q must be completed first", predecessor.Title))
	}
	return nil
}

func (s *ProgressionService) completeSection(ctx context.Context, employeeID, courseID string, section *models.Section, score *int) (*models.EnrollmentSnapshot, error) {
	enrollment, err := s.enrollments.FindByEmployeeAndCourse(ctx, employeeID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not assigned to employee")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	// COMPLETED is terminal; repeating the call returns the existing state.
	// Issuance is re-driven here so a certificate lost to a storage failure
	// after the status flip is minted on the next call.
	if enrollment.Status == models.EnrollmentStatusCompleted {
		snapshot, err := s.buildSnapshot(ctx, enrollment)
		if err != nil {
			return nil, err
		}
		cert, err := s.certificates.Issue(ctx, employeeID, courseID, score)
		if err != nil {
			return nil, err
		}
		snapshot.CertificateNumber = cert.CertificateNumber
		return snapshot, nil
	}

	if err := s.checkGate(ctx, employeeID, courseID, section); err != nil {
		return nil, err
	}

	progress := &models.SectionProgress{
		EmployeeID:  employeeID,
		CourseID:    courseID,
		SectionID:   section.ID,
		CompletedAt: time.Now().UTC(),
	}
	if err := s.progress.MarkCompleted(ctx, progress); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to record section completion")
	}
	s.metrics.ObserveSectionCompleted()

	completed, err := s.progress.CountCompleted(ctx, employeeID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count progress")
	}
	total, err := s.courses.CountSections(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sections")
	}
	if total == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course has no sections")
	}

	percentage := roundPercentage(completed, total)
	status := enrollment.Status
	now := time.Now().UTC()
	var startedAt, completedAt *time.Time

	switch {
	case completed >= total:
		status = models.EnrollmentStatusCompleted
		completedAt = &now
		if enrollment.StartedAt == nil {
			startedAt = &now
		}
	case completed > 0 && status == models.EnrollmentStatusAssigned:
		status = models.EnrollmentStatusInProgress
		startedAt = &now
	}

	if err := s.enrollments.UpdateProgress(ctx, enrollment.ID, status, percentage, startedAt, completedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to update enrollment")
	}

	snapshot := &models.EnrollmentSnapshot{
		EmployeeID:         employeeID,
		CourseID:           courseID,
		Status:             status,
		ProgressPercentage: percentage,
		CompletedSections:  completed,
		TotalSections:      total,
		StartedAt:          enrollment.StartedAt,
		CompletedAt:        completedAt,
	}
	if snapshot.StartedAt == nil {
		snapshot.StartedAt = startedAt
	}

	if status == models.EnrollmentStatusCompleted {
		cert, err := s.certificates.Issue(ctx, employeeID, courseID, score)
		if err != nil {
			// Issuance is idempotent; a retry of this call will mint it.
			return nil, err
		}
		snapshot.CertificateNumber = cert.CertificateNumber
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, snapshotCacheKey(employeeID, courseID)); err != nil {
			s.logger.Warn("failed to invalidate snapshot cache", zap.Error(err))
		}
	}

	s.logger.Info("section completed",
		zap.String("employee_id", employeeID),
		zap.String("course_id", courseID),
		zap.String("section_id", section.ID),
		zap.Int("progress", percentage),
		zap.String("status", string(status)),
	)
	return snapshot, nil
}

func (s *ProgressionService) buildSnapshot(ctx context.Context, enrollment *models.CourseEnrollment) (*models.EnrollmentSnapshot, error) {
	completed, err := s.progress.CountCompleted(ctx, enrollment.EmployeeID, enrollment.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count progress")
	}
	total, err := s.courses.CountSections(ctx, enrollment.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sections")
	}
	return &models.EnrollmentSnapshot{
		EmployeeID:         enrollment.EmployeeID,
		CourseID:           enrollment.CourseID,
		Status:             enrollment.Status,
		ProgressPercentage: enrollment.ProgressPercentage,
		CompletedSections:  completed,
		TotalSections:      total,
		StartedAt:          enrollment.StartedAt,
		CompletedAt:        enrollment.CompletedAt,
	}, nil
}

func roundPercentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
