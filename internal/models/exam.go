package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ExamType classifies timed knowledge assessments.
type ExamType string

const (
	ExamTypeGeneral        ExamType = "GENERAL"
	ExamTypePreAssessment  ExamType = "PRE_ASSESSMENT"
	ExamTypePostAssessment ExamType = "POST_ASSESSMENT"
	ExamTypeCustom         ExamType = "CUSTOM"
)

// Exam is a timed, whole-course assessment with its own pass mark and
// per-assignment attempt policy.
type Exam struct {
	ID                   string    `db:"id" json:"id"`
	Title                string    `db:"title" json:"title"`
	Type                 ExamType  `db:"type" json:"type"`
	TimeLimitMinutes     int       `db:"time_limit_minutes" json:"time_limit_minutes"`
	PassingScore         int       `db:"passing_score" json:"passing_score"`
	MaxAttempts          int       `db:"max_attempts" json:"max_attempts"`
	PrerequisiteCourseID *string   `db:"prerequisite_course_id" json:"prerequisite_course_id,omitempty"`
	Active               bool      `db:"active" json:"active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// ExamQuestion is one question of an exam, kept in stable order_index order.
type ExamQuestion struct {
	ID            string         `db:"id" json:"id"`
	ExamID        string         `db:"exam_id" json:"exam_id"`
	OrderIndex    int            `db:"order_index" json:"order_index"`
	Prompt        string         `db:"prompt" json:"prompt"`
	Options       pq.StringArray `db:"options" json:"options"`
	CorrectOption string         `db:"correct_option" json:"-"`
}

// ExamAssignment grants an employee or a whole department access to an exam.
// The attempt quota is scoped to the assignment, not the exam globally.
type ExamAssignment struct {
	ID           string     `db:"id" json:"id"`
	ExamID       string     `db:"exam_id" json:"exam_id"`
	EmployeeID   *string    `db:"employee_id" json:"employee_id,omitempty"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	MaxAttempts  int        `db:"max_attempts" json:"max_attempts"`
	DueDate      *time.Time `db:"due_date" json:"due_date,omitempty"`
	IsMandatory  bool       `db:"is_mandatory" json:"is_mandatory"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// AnswerMap maps a question order index to the submitted option value. Stored
// as JSONB on the attempt row.
type AnswerMap map[int]string

// Value implements driver.Valuer.
func (a AnswerMap) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *AnswerMap) Scan(src interface{}) error {
	if src == nil {
		*a = AnswerMap{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported answer map source %T", src)
	}
	return json.Unmarshal(raw, a)
}

// ExamAttempt is the immutable record of one submitted attempt. Quota is the
// count of these rows per assignment; abandoned sessions never produce one.
type ExamAttempt struct {
	ID            string    `db:"id" json:"id"`
	EmployeeID    string    `db:"employee_id" json:"employee_id"`
	ExamID        string    `db:"exam_id" json:"exam_id"`
	AssignmentID  string    `db:"assignment_id" json:"assignment_id"`
	Answers       AnswerMap `db:"answers" json:"answers"`
	CorrectCount  int       `db:"correct_count" json:"correct_count"`
	TotalCount    int       `db:"total_count" json:"total_count"`
	Percentage    int       `db:"percentage" json:"percentage"`
	Passed        bool      `db:"passed" json:"passed"`
	AutoSubmitted bool      `db:"auto_submitted" json:"auto_submitted"`
	StartedAt     time.Time `db:"started_at" json:"started_at"`
	CompletedAt   time.Time `db:"completed_at" json:"completed_at"`
}

// EligibilityReason explains why an exam cannot be taken. The UI presents
// distinct guidance per reason, so these are never collapsed.
type EligibilityReason string

const (
	ReasonEligible              EligibilityReason = ""
	ReasonNotAssigned           EligibilityReason = "NOT_ASSIGNED"
	ReasonAlreadyPassed         EligibilityReason = "ALREADY_PASSED"
	ReasonNoAttemptsRemaining   EligibilityReason = "NO_ATTEMPTS_REMAINING"
	ReasonPrerequisiteIncomplete EligibilityReason = "PREREQUISITE_INCOMPLETE"
)

// Eligibility is the outcome of an exam access check.
type Eligibility struct {
	CanTake      bool              `json:"can_take"`
	Reason       EligibilityReason `json:"reason,omitempty"`
	AssignmentID string            `json:"assignment_id,omitempty"`
	MaxAttempts  int               `json:"max_attempts"`
	AttemptsUsed int               `json:"attempts_used"`
	HasPassed    bool              `json:"has_passed"`
}

// ExamQuestionView is a question as shown to the candidate: the correct
// option never leaves the server.
type ExamQuestionView struct {
	OrderIndex int      `json:"order_index"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
}

// ExamSession describes a live, time-boxed attempt. The deadline is advisory
// to the client; the authoritative check happens at submit time.
type ExamSession struct {
	Token        string             `json:"token"`
	EmployeeID   string             `json:"employee_id"`
	ExamID       string             `json:"exam_id"`
	AssignmentID string             `json:"assignment_id"`
	StartedAt    time.Time          `json:"started_at"`
	Deadline     time.Time          `json:"deadline"`
	Questions    []ExamQuestionView `json:"questions,omitempty"`
}
