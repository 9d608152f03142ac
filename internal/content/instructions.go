package content

import (
	"context"

	"github.com/mohammad-safakhou/folio/internal/store"
	"github.com/mohammad-safakhou/folio/internal/tasks"
)

type Instructions struct {
	Content string
	SHA     *string
}

func (s *Service) instructionsReady() error {
	if !s.Paths.Instructions.Configured() {
		return invalid("System instructions not configured")
	}
	return nil
}

func (s *Service) GetInstructions(ctx context.Context) (Instructions, error) {
	if err := s.instructionsReady(); err != nil {
		return Instructions{}, err
	}
	f, found, err := s.Files.Get(ctx, ref(s.Paths.Instructions))
	if err != nil || !found {
		return Instructions{}, err
	}
	return Instructions{Content: string(f.Content), SHA: optional(f.Revision)}, nil
}

// SaveInstructions writes the instructions and records the revision in history.
func (s *Service) SaveInstructions(ctx context.Context, actor, text, message string) (string, error) {
	if err := s.instructionsReady(); err != nil {
		return "", err
	}
	if limit := s.Limits.SysInsMaxContent; limit > 0 && len(text) > limit {
		return "", invalid("content exceeds %d characters", limit)
	}
	if limit := s.Limits.SysInsMaxMessage; limit > 0 && len(message) > limit {
		return "", invalid("message exceeds %d characters", limit)
	}
	msg := messageOr(message)
	res, err := s.put(ctx, ref(s.Paths.Instructions), []byte(text), msg)
	if err != nil {
		return "", err
	}
	commit := shortSHA(res.Commit)
	if s.History != nil {
		rev := store.InstructionsRevision{Commit: commit, Message: msg, UserID: actor, Size: len(text)}
		s.enqueue(tasks.Task{Name: "instructions_history", Run: func(ctx context.Context) error {
			return s.History.AddInstructionsHistory(ctx, rev)
		}})
	}
	s.record(actor, "system_instructions_updated", "system_instructions", nil, map[string]any{"size": len(text)})
	return commit, nil
}

func (s *Service) InstructionsHistory(ctx context.Context, limit int) ([]store.InstructionsRevision, error) {
	if err := s.instructionsReady(); err != nil {
		return nil, err
	}
	if s.History == nil {
		return []store.InstructionsRevision{}, nil
	}
	return s.History.ListInstructionsHistory(ctx, limit)
}
