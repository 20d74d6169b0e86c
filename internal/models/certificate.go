package models

import "time"

// Certificate proves completion of a course. At most one exists per
// (employee, course); rows are never mutated after creation.
type Certificate struct {
	ID                string    `db:"id" json:"id"`
	CertificateNumber string    `db:"certificate_number" json:"certificate_number"`
	EmployeeID        string    `db:"employee_id" json:"employee_id"`
	CourseID          string    `db:"course_id" json:"course_id"`
	Score             *int      `db:"score" json:"score,omitempty"`
	CompletionDate    time.Time `db:"completion_date" json:"completion_date"`
	IssuedAt          time.Time `db:"issued_at" json:"issued_at"`
}

// CertificateDetail enriches a certificate with course and employee context
// for listings and verification responses.
type CertificateDetail struct {
	Certificate
	CourseTitle  string `db:"course_title" json:"course_title"`
	EmployeeName string `db:"employee_name" json:"employee_name"`
}
