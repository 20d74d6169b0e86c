package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/novasec/secaware-api/internal/models"
	appErrors "github.com/novasec/secaware-api/pkg/errors"
)

type assignmentStore interface {
	Create(ctx context.Context, assignment *models.ExamAssignment) error
	ListForEmployee(ctx context.Context, employeeID string, departmentID *string) ([]models.ExamAssignment, error)
}

type enrollmentCreator interface {
	Create(ctx context.Context, enrollment *models.CourseEnrollment) error
	ListByEmployee(ctx context.Context, employeeID string) ([]models.EnrolledCourse, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]models.User, error)
}

type examLookup interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

type courseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// AssignExamRequest grants exam access to one employee or a department.
type AssignExamRequest struct {
	ExamID       string     `json:"exam_id" validate:"required"`
	EmployeeID   string     `json:"employee_id,omitempty"`
	DepartmentID string     `json:"department_id,omitempty"`
	MaxAttempts  int        `json:"max_attempts,omitempty" validate:"omitempty,min=1"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	IsMandatory  bool       `json:"is_mandatory"`
}

// EnrollCourseRequest assigns a course to one employee or a department.
type EnrollCourseRequest struct {
	CourseID     string `json:"course_id" validate:"required"`
	EmployeeID   string `json:"employee_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
}

// AssignmentService handles admin-side distribution of exams and courses.
type AssignmentService struct {
	assignments assignmentStore
	enrollments enrollmentCreator
	users       userReader
	exams       examLookup
	courses     courseLookup
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(assignments assignmentStore, enrollments enrollmentCreator, users userReader, exams examLookup, courses courseLookup, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: assignments,
		enrollments: enrollments,
		users:       users,
		exams:       exams,
		courses:     courses,
		validator:   validate,
		logger:      logger,
	}
}

// AssignExam creates an exam assignment scoped to an employee or department.
func (s *AssignmentService) AssignExam(ctx context.Context, req AssignExamRequest) (*models.ExamAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if (req.EmployeeID == "") == (req.DepartmentID == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of employee_id or department_id is required")
	}

	exam, err := s.exams.FindByID(ctx, req.ExamID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	if req.EmployeeID != "" {
		if _, err := s.users.FindByID(ctx, req.EmployeeID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
		}
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = exam.MaxAttempts
	}
	assignment := &models.ExamAssignment{
		ExamID:      req.ExamID,
		MaxAttempts: maxAttempts,
		DueDate:     req.DueDate,
		IsMandatory: req.IsMandatory,
	}
	if req.EmployeeID != "" {
		assignment.EmployeeID = &req.EmployeeID
	}
	if req.DepartmentID != "" {
		assignment.DepartmentID = &req.DepartmentID
	}

	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to create assignment")
	}
	s.logger.Info("exam assigned",
		zap.String("exam_id", req.ExamID),
		zap.String("employee_id", req.EmployeeID),
		zap.String("department_id", req.DepartmentID),
	)
	return assignment, nil
}

// ListForEmployee merges direct and department assignments for the caller.
func (s *AssignmentService) ListForEmployee(ctx context.Context, employeeID string, departmentID *string) ([]models.ExamAssignment, error) {
	assignments, err := s.assignments.ListForEmployee(ctx, employeeID, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// EnrollCourse assigns a course to an employee or a whole department.
// Existing enrollments are left untouched.
func (s *AssignmentService) EnrollCourse(ctx context.Context, req EnrollCourseRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if (req.EmployeeID == "") == (req.DepartmentID == "") {
		return 0, appErrors.Clone(appErrors.ErrValidation, "exactly one of employee_id or department_id is required")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Published {
		return 0, appErrors.Clone(appErrors.ErrValidation, "course is not published")
	}

	var employeeIDs []string
	if req.EmployeeID != "" {
		if _, err := s.users.FindByID(ctx, req.EmployeeID); err != nil {
			if err == sql.ErrNoRows {
				return 0, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
			}
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
		}
		employeeIDs = []string{req.EmployeeID}
	} else {
		users, err := s.users.ListByDepartment(ctx, req.DepartmentID)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list department employees")
		}
		for _, u := range users {
			employeeIDs = append(employeeIDs, u.ID)
		}
	}

	enrolled := 0
	for _, employeeID := range employeeIDs {
		enrollment := &models.CourseEnrollment{
			EmployeeID: employeeID,
			CourseID:   req.CourseID,
			Status:     models.EnrollmentStatusAssigned,
		}
		if err := s.enrollments.Create(ctx, enrollment); err != nil {
			return enrolled, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "failed to create enrollment")
		}
		enrolled++
	}
	s.logger.Info("course assigned", zap.String("course_id", req.CourseID), zap.Int("employees", enrolled))
	return enrolled, nil
}
