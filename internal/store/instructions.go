package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InstructionsRevision records one saved version of the chatbot system instructions.
type InstructionsRevision struct {
	ID        string    `json:"id"`
	Commit    string    `json:"commit"`
	Message   string    `json:"message"`
	UserID    string    `json:"user_id"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) AddInstructionsHistory(ctx context.Context, r InstructionsRevision) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO system_instructions_history (id, commit_sha, message, user_id, size, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`, r.ID, r.Commit, r.Message, r.UserID, r.Size, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert instructions history: %w", err)
	}
	return nil
}

func (s *Store) ListInstructionsHistory(ctx context.Context, limit int) ([]InstructionsRevision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, commit_sha, message, user_id, size, created_at
FROM system_instructions_history ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query instructions history: %w", err)
	}
	defer rows.Close()
	out := []InstructionsRevision{}
	for rows.Next() {
		var r InstructionsRevision
		if err := rows.Scan(&r.ID, &r.Commit, &r.Message, &r.UserID, &r.Size, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
