package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetCounters returns the aggregate counter document; a missing document is empty.
func (s *Store) GetCounters(ctx context.Context, docID string) (map[string]any, error) {
	var raw []byte
	err := s.DB.QueryRowContext(ctx, `SELECT data FROM metric_documents WHERE id=$1`, docID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get counters %s: %w", docID, err)
	}
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode counters %s: %w", docID, err)
		}
	}
	return out, nil
}

// ListWeeklyMetrics returns daily aggregate documents with date >= since
// (YYYY-MM-DD), oldest first. Each document carries its "date".
func (s *Store) ListWeeklyMetrics(ctx context.Context, since string) ([]map[string]any, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT date, data FROM weekly_metrics WHERE date >= $1 ORDER BY date ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("query weekly metrics: %w", err)
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var (
			date string
			raw  []byte
		)
		if err := rows.Scan(&date, &raw); err != nil {
			return nil, err
		}
		doc := map[string]any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("decode weekly metric %s: %w", date, err)
			}
		}
		doc["date"] = date
		out = append(out, doc)
	}
	return out, rows.Err()
}
