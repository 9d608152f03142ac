package content

import (
	"context"
	"strings"
)

// Categories are the fixed knowledge-base sections, in display order.
var Categories = []string{"about_me", "tech_stack", "projects", "contact", "misc"}

func validCategory(c string) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// KnowledgeEntry is one category file.
type KnowledgeEntry struct {
	Content string  `json:"content"`
	Exists  bool    `json:"exists"`
	SHA     *string `json:"-"`
}

func (s *Service) knowledgeReady(category string) error {
	if !s.Paths.Knowledge.Configured() {
		return invalid("Knowledge base not configured")
	}
	if category != "" && !validCategory(category) {
		return invalid("Invalid category. Valid: %s", strings.Join(Categories, ", "))
	}
	return nil
}

func (s *Service) GetKnowledge(ctx context.Context, category string) (KnowledgeEntry, error) {
	if err := s.knowledgeReady(category); err != nil {
		return KnowledgeEntry{}, err
	}
	f, found, err := s.Files.Get(ctx, ref(s.Paths.Knowledge, category+".txt"))
	if err != nil {
		return KnowledgeEntry{}, err
	}
	if !found {
		return KnowledgeEntry{}, nil
	}
	return KnowledgeEntry{Content: string(f.Content), Exists: true, SHA: optional(f.Revision)}, nil
}

// GetAllKnowledge reads every category; missing files are reported with Exists=false.
func (s *Service) GetAllKnowledge(ctx context.Context) (map[string]KnowledgeEntry, error) {
	if err := s.knowledgeReady(""); err != nil {
		return nil, err
	}
	out := make(map[string]KnowledgeEntry, len(Categories))
	for _, c := range Categories {
		e, err := s.GetKnowledge(ctx, c)
		if err != nil {
			return nil, err
		}
		out[c] = e
	}
	return out, nil
}

func (s *Service) SaveKnowledge(ctx context.Context, actor, category, text, message string) (string, error) {
	if err := s.knowledgeReady(category); err != nil {
		return "", err
	}
	if limit := s.Limits.KnowledgeMaxContent; limit > 0 && len(text) > limit {
		return "", invalid("content exceeds %d characters", limit)
	}
	res, err := s.put(ctx, ref(s.Paths.Knowledge, category+".txt"), []byte(text), messageOr(message))
	if err != nil {
		return "", err
	}
	s.record(actor, "knowledge_updated", "knowledge", optional(category), map[string]any{"size": len(text)})
	return shortSHA(res.Commit), nil
}
