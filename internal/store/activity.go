package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Activity is one append-only audit entry for a side-effecting admin action.
type Activity struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	UserID       string         `json:"user_id"`
	ResourceType string         `json:"resource_type"`
	ResourceID   *string        `json:"resource_id"`
	Details      map[string]any `json:"details"`
	Timestamp    time.Time      `json:"timestamp"`
}

// ActivityQuery filters ListActivity. Zero values mean "no filter".
type ActivityQuery struct {
	Limit int
	Type  string
	Since time.Time
	Until time.Time
}

func (s *Store) AddActivity(ctx context.Context, a Activity) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if a.Details == nil {
		a.Details = map[string]any{}
	}
	details, err := json.Marshal(a.Details)
	if err != nil {
		return "", fmt.Errorf("marshal details: %w", err)
	}
	var resourceID sql.NullString
	if a.ResourceID != nil {
		resourceID = sql.NullString{String: *a.ResourceID, Valid: true}
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO activity_log (id, type, user_id, resource_type, resource_id, details, ts)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.Type, a.UserID, a.ResourceType, resourceID, details, a.Timestamp)
	if err != nil {
		return "", fmt.Errorf("insert activity: %w", err)
	}
	return a.ID, nil
}

// ListActivity returns matching entries, newest first.
func (s *Store) ListActivity(ctx context.Context, q ActivityQuery) ([]Activity, error) {
	var (
		where []string
		args  []any
	)
	if q.Type != "" {
		args = append(args, q.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since)
		where = append(where, fmt.Sprintf("ts >= $%d", len(args)))
	}
	if !q.Until.IsZero() {
		args = append(args, q.Until)
		where = append(where, fmt.Sprintf("ts < $%d", len(args)))
	}
	query := `SELECT id, type, user_id, resource_type, resource_id, details, ts FROM activity_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	out := []Activity{}
	for rows.Next() {
		var (
			a          Activity
			resourceID sql.NullString
			details    []byte
		)
		if err := rows.Scan(&a.ID, &a.Type, &a.UserID, &a.ResourceType, &resourceID, &details, &a.Timestamp); err != nil {
			return nil, err
		}
		if resourceID.Valid {
			v := resourceID.String
			a.ResourceID = &v
		}
		a.Details = map[string]any{}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &a.Details); err != nil {
				return nil, fmt.Errorf("decode activity %s details: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
