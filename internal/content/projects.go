package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Projects is the projects file as stored, one raw JSON object per entry
// so field order and unknown fields survive a round trip.
type Projects struct {
	Items  []json.RawMessage
	Commit *string
}

func (s *Service) GetProjects(ctx context.Context) (Projects, error) {
	f, found, err := s.Files.Get(ctx, ref(s.Paths.Projects))
	if err != nil {
		return Projects{}, err
	}
	if !found || len(bytes.TrimSpace(f.Content)) == 0 {
		return Projects{Items: []json.RawMessage{}}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(f.Content, &items); err != nil {
		return Projects{}, fmt.Errorf("decode projects file: %w", err)
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return Projects{Items: items, Commit: optional(shortSHA(f.Revision))}, nil
}

// SaveProjects replaces the projects file. When old is given, images it
// referenced that items no longer reference are deleted in the background.
func (s *Service) SaveProjects(ctx context.Context, actor string, items, old []json.RawMessage, message string) (string, error) {
	for i, it := range items {
		if !isObject(it) {
			return "", invalid("project %d must be a JSON object", i)
		}
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	body, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", invalid("projects are not valid JSON: %v", err)
	}
	res, err := s.put(ctx, ref(s.Paths.Projects), body, messageOr(message))
	if err != nil {
		return "", err
	}

	if len(old) > 0 && s.Paths.Images.Configured() {
		if orphans := OrphanedImages(old, items); len(orphans) > 0 {
			s.enqueue(s.cleanupTask(orphans))
		}
	}
	s.record(actor, "projects_updated", "projects", nil, map[string]any{"count": len(items)})
	return shortSHA(res.Commit), nil
}

func isObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{' && json.Valid(t)
}
