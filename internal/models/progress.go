package models

import "time"

// EnrollmentStatus represents the lifecycle of a course enrollment.
// Transitions are monotonic: ASSIGNED -> IN_PROGRESS -> COMPLETED.
type EnrollmentStatus string

const (
	EnrollmentStatusAssigned   EnrollmentStatus = "ASSIGNED"
	EnrollmentStatusInProgress EnrollmentStatus = "IN_PROGRESS"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
)

// SectionProgress records a completed section for one employee. Rows are
// created lazily on first completion; absence means not completed.
type SectionProgress struct {
	ID          string    `db:"id" json:"id"`
	EmployeeID  string    `db:"employee_id" json:"employee_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	SectionID   string    `db:"section_id" json:"section_id"`
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
}

// CourseEnrollment is the per-employee record of progress through a course.
type CourseEnrollment struct {
	ID                 string           `db:"id" json:"id"`
	EmployeeID         string           `db:"employee_id" json:"employee_id"`
	CourseID           string           `db:"course_id" json:"course_id"`
	Status             EnrollmentStatus `db:"status" json:"status"`
	ProgressPercentage int              `db:"progress_percentage" json:"progress_percentage"`
	StartedAt          *time.Time       `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
}

// EnrollmentSnapshot is the state returned to callers after progression
// operations. Counts are always re-derived from stored progress rows.
type EnrollmentSnapshot struct {
	EmployeeID         string           `json:"employee_id"`
	CourseID           string           `json:"course_id"`
	Status             EnrollmentStatus `json:"status"`
	ProgressPercentage int              `json:"progress_percentage"`
	CompletedSections  int              `json:"completed_sections"`
	TotalSections      int              `json:"total_sections"`
	StartedAt          *time.Time       `json:"started_at,omitempty"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	CertificateNumber  string           `json:"certificate_number,omitempty"`
}

// QuizResult is the outcome of grading an in-course quiz section.
type QuizResult struct {
	SectionID  string              `json:"section_id"`
	Score      int                 `json:"score"`
	Passed     bool                `json:"passed"`
	Correct    int                 `json:"correct"`
	Total      int                 `json:"total"`
	Enrollment *EnrollmentSnapshot `json:"enrollment,omitempty"`
}

// EnrolledCourse joins a course with the employee's enrollment for listings.
type EnrolledCourse struct {
	Course
	Status             EnrollmentStatus `db:"status" json:"status"`
	ProgressPercentage int              `db:"progress_percentage" json:"progress_percentage"`
}
