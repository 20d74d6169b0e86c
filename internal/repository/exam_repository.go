package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/novasec/secaware-api/internal/models"
)

// ExamRepository handles persistence of exams and their questions.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByID returns an exam by its ID.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	const query = `SELECT id, title, type, time_limit_minutes, passing_score, max_attempts, prerequisite_course_id, active, created_at
        FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// QuestionsByExam returns exam questions in stable order_index order. Order
// must be reproducible so replayed sessions see identical question lists.
func (r *ExamRepository) QuestionsByExam(ctx context.Context, examID string) ([]models.ExamQuestion, error) {
	const query = `SELECT id, exam_id, order_index, prompt, options, correct_option FROM exam_questions WHERE exam_id = $1 ORDER BY order_index ASC`
	var questions []models.ExamQuestion
	if err := r.db.SelectContext(ctx, &questions, query, examID); err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}
	return questions, nil
}

// ListActive returns all active exams.
func (r *ExamRepository) ListActive(ctx context.Context) ([]models.Exam, error) {
	const query = `SELECT id, title, type, time_limit_minutes, passing_score, max_attempts, prerequisite_course_id, active, created_at
        FROM exams WHERE active = TRUE ORDER BY title ASC`
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}
