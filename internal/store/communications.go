package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Communication statuses.
const (
	StatusNew       = "new"
	StatusDone      = "done"
	StatusDismissed = "dismissed"
)

// ValidStatus reports whether s is one of the three communication statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusDone, StatusDismissed:
		return true
	}
	return false
}

// Communication is a contact-form submission.
type Communication struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CommunicationQuery struct {
	Status string
	Limit  int
}

// CreateCommunication stores a new submission with status "new".
func (s *Store) CreateCommunication(ctx context.Context, name, email, message string) (Communication, error) {
	now := time.Now().UTC()
	c := Communication{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Message:   message,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO communications (id, name, email, message, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.Name, c.Email, c.Message, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return Communication{}, fmt.Errorf("insert communication: %w", err)
	}
	return c, nil
}

// ListCommunications returns records newest first, optionally filtered by status.
func (s *Store) ListCommunications(ctx context.Context, q CommunicationQuery) ([]Communication, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, name, email, message, status, created_at, updated_at FROM communications`
	args := []any{}
	if q.Status != "" {
		args = append(args, q.Status)
		query += " WHERE status = $1"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query communications: %w", err)
	}
	defer rows.Close()
	out := []Communication{}
	for rows.Next() {
		var c Communication
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Message, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCommunicationStatus changes only status and updated_at.
func (s *Store) UpdateCommunicationStatus(ctx context.Context, id, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE communications SET status=$2, updated_at=$3 WHERE id=$1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update communication: %w", err)
	}
	return expectOne(res)
}

func (s *Store) DeleteCommunication(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM communications WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete communication: %w", err)
	}
	return expectOne(res)
}

type rowsAffected interface{ RowsAffected() (int64, error) }

func expectOne(res rowsAffected) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
