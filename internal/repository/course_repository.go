package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/novasec/secaware-api/internal/models"
)

// CourseRepository handles persistence of courses and their sections.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a published course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, description, duration_minutes, published, created_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns published courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := `FROM courses WHERE published = TRUE`
	var args []interface{}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND LOWER(title) LIKE $%d", len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, title, description, duration_minutes, published, created_at %s ORDER BY title ASC LIMIT %d OFFSET %d`, base, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// SectionsByCourse returns the course sections in order_index order.
func (r *CourseRepository) SectionsByCourse(ctx context.Context, courseID string) ([]models.Section, error) {
	const query = `SELECT id, course_id, title, type, order_index, content FROM sections WHERE course_id = $1 ORDER BY order_index ASC`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, courseID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// FindSectionByID returns a single section.
func (r *CourseRepository) FindSectionByID(ctx context.Context, sectionID string) (*models.Section, error) {
	const query = `SELECT id, course_id, title, type, order_index, content FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, sectionID); err != nil {
		return nil, err
	}
	return &section, nil
}

// CountSections returns the total section count for a course.
func (r *CourseRepository) CountSections(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM sections WHERE course_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, courseID); err != nil {
		return 0, fmt.Errorf("count sections: %w", err)
	}
	return total, nil
}

// QuestionsBySection returns quiz questions in authoring order.
func (r *CourseRepository) QuestionsBySection(ctx context.Context, sectionID string) ([]models.SectionQuestion, error) {
	const query = `SELECT id, section_id, order_index, prompt, options, correct_option FROM section_questions WHERE section_id = $1 ORDER BY order_index ASC`
	var questions []models.SectionQuestion
	if err := r.db.SelectContext(ctx, &questions, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section questions: %w", err)
	}
	return questions, nil
}
