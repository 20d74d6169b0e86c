package models

import (
	"time"

	"github.com/lib/pq"
)

// SectionType distinguishes the kinds of learning units in a course.
type SectionType string

const (
	SectionTypeVideo   SectionType = "VIDEO"
	SectionTypeArticle SectionType = "ARTICLE"
	SectionTypeQuiz    SectionType = "QUIZ"
)

// Course is a published training course. Content is immutable once published;
// authoring happens outside this service.
type Course struct {
	ID              string    `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Published       bool      `db:"published" json:"published"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Section is one learning unit within a course. OrderIndex values are dense
// and one-based per course; gating relies on that ordering.
type Section struct {
	ID         string      `db:"id" json:"id"`
	CourseID   string      `db:"course_id" json:"course_id"`
	Title      string      `db:"title" json:"title"`
	Type       SectionType `db:"type" json:"type"`
	OrderIndex int         `db:"order_index" json:"order_index"`
	Content    string      `db:"content" json:"content,omitempty"`
}

// SectionQuestion belongs to a QUIZ section. Options keep authoring order;
// CorrectOption holds the exact option value counted as correct.
type SectionQuestion struct {
	ID            string         `db:"id" json:"id"`
	SectionID     string         `db:"section_id" json:"section_id"`
	OrderIndex    int            `db:"order_index" json:"order_index"`
	Prompt        string         `db:"prompt" json:"prompt"`
	Options       pq.StringArray `db:"options" json:"options"`
	CorrectOption string         `db:"correct_option" json:"-"`
}

// CourseDetail pairs a course with its ordered sections.
type CourseDetail struct {
	Course
	Sections []Section `json:"sections"`
}

// CourseFilter captures criteria for listing courses.
type CourseFilter struct {
	Search   string
	Page     int
	PageSize int
}
