package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/novasec/secaware-api/internal/models"
	appErrors "github.com/novasec/secaware-api/pkg/errors"
)

type courseCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	SectionsByCourse(ctx context.Context, courseID string) ([]models.Section, error)
}

type enrollmentLister interface {
	ListByEmployee(ctx context.Context, employeeID string) ([]models.EnrolledCourse, error)
}

// CourseService serves catalog reads. Quiz answer keys never pass through
// here; questions are only exposed via the grading endpoints.
type CourseService struct {
	courses     courseCatalog
	enrollments enrollmentLister
	logger      *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(courses courseCatalog, enrollments enrollmentLister, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, enrollments: enrollments, logger: logger}
}

// List returns the published catalog with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Detail returns a course with its ordered sections.
func (s *CourseService) Detail(ctx context.Context, courseID string) (*models.CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	sections, err := s.courses.SectionsByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	return &models.CourseDetail{Course: *course, Sections: sections}, nil
}

// ListForEmployee returns the employee's assigned courses with progress.
func (s *CourseService) ListForEmployee(ctx context.Context, employeeID string) ([]models.EnrolledCourse, error) {
	courses, err := s.enrollments.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled courses")
	}
	return courses, nil
}
