package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/novasec/secaware-api/internal/models"
)

// SessionRepository keeps live exam sessions in Redis. A session exists from
// startAttempt until it is consumed by submit or its TTL lapses; consuming is
// atomic so a second submit for the same session cannot find it.
type SessionRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(client *redis.Client, logger *zap.Logger) *SessionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRepository{client: client, logger: logger}
}

func sessionKey(employeeID, examID string) string {
	return fmt.Sprintf("exam_session:%s:%s", employeeID, examID)
}

// Save stores the session, replacing any previous live session for the pair.
func (r *SessionRepository) Save(ctx context.Context, session *models.ExamSession, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal exam session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(session.EmployeeID, session.ExamID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save exam session: %w", err)
	}
	return nil
}

// Find returns the live session without consuming it.
func (r *SessionRepository) Find(ctx context.Context, employeeID, examID string) (*models.ExamSession, error) {
	raw, err := r.client.Get(ctx, sessionKey(employeeID, examID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("find exam session: %w", err)
	}
	var session models.ExamSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal exam session: %w", err)
	}
	return &session, nil
}

// Consume removes and returns the live session in one round trip. Returns
// nil when no session exists, which callers treat as a duplicate submission.
func (r *SessionRepository) Consume(ctx context.Context, employeeID, examID string) (*models.ExamSession, error) {
	raw, err := r.client.GetDel(ctx, sessionKey(employeeID, examID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("consume exam session: %w", err)
	}
	var session models.ExamSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal exam session: %w", err)
	}
	return &session, nil
}
