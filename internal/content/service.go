// Package content edits the portfolio's repository-hosted files: the
// projects list and its images, the contact card, the chatbot knowledge
// categories and the system instructions. Every write is conditioned on
// the revision read just before it; follow-up work goes to a dispatcher.
package content

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/folio/config"
	"github.com/mohammad-safakhou/folio/internal/github"
	"github.com/mohammad-safakhou/folio/internal/imaging"
	"github.com/mohammad-safakhou/folio/internal/store"
	"github.com/mohammad-safakhou/folio/internal/tasks"
	"github.com/sirupsen/logrus"
)

const defaultMessage = "Updated by portfolio manager"

// ValidationError is returned before any remote call when input is unusable.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ActivityLog persists audit entries.
type ActivityLog interface {
	AddActivity(ctx context.Context, a store.Activity) (string, error)
}

// HistoryLog persists system-instructions revisions.
type HistoryLog interface {
	AddInstructionsHistory(ctx context.Context, r store.InstructionsRevision) error
	ListInstructionsHistory(ctx context.Context, limit int) ([]store.InstructionsRevision, error)
}

// Paths locates each content type in the repositories.
type Paths struct {
	Projects     config.RepoPath
	Contacts     config.RepoPath
	Images       config.RepoPath
	Knowledge    config.RepoPath
	Instructions config.RepoPath
	PublicPrefix string
}

// PathsFromConfig resolves the configured owner/repo/path values.
func PathsFromConfig(g config.GitHubConfig) Paths {
	return Paths{
		Projects:     config.MustRepoPath(g.ProjectsDirectory),
		Contacts:     config.MustRepoPath(g.ContactsDirectory),
		Images:       config.MustRepoPath(g.ImagesDirectory),
		Knowledge:    config.MustRepoPath(g.KnowledgeDirectory),
		Instructions: config.MustRepoPath(g.SystemInstructionsPath),
		PublicPrefix: g.ImagesPublicPrefix,
	}
}

type Limits struct {
	KnowledgeMaxContent int
	SysInsMaxContent    int
	SysInsMaxMessage    int
}

func LimitsFromConfig(l config.LimitsConfig) Limits {
	return Limits{
		KnowledgeMaxContent: l.KnowledgeMaxContent,
		SysInsMaxContent:    l.SysInsMaxContent,
		SysInsMaxMessage:    l.SysInsMaxMessage,
	}
}

// Service is safe for concurrent use; it holds no mutable state.
type Service struct {
	Files    github.Contents
	Tasks    tasks.Dispatcher
	Images   *imaging.Pipeline
	Activity ActivityLog
	History  HistoryLog
	Paths    Paths
	Limits   Limits
	Log      logrus.FieldLogger
}

func ref(rp config.RepoPath, elem ...string) github.Ref {
	p := rp.Path
	for _, e := range elem {
		p += "/" + e
	}
	return github.Ref{Repo: rp.Repo, Path: p}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func messageOr(msg string) string {
	if msg == "" {
		return defaultMessage
	}
	return msg
}

// put writes content over whatever revision is current right now.
func (s *Service) put(ctx context.Context, r github.Ref, content []byte, message string) (github.WriteResult, error) {
	cur, _, err := s.Files.Get(ctx, r)
	if err != nil {
		return github.WriteResult{}, err
	}
	return s.Files.Put(ctx, r, content, message, cur.Revision)
}

func (s *Service) logger() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// RecordActivity queues an audit entry. Losing it never affects the caller.
func RecordActivity(d tasks.Dispatcher, log ActivityLog, a store.Activity) {
	if d == nil || log == nil {
		return
	}
	d.Enqueue(tasks.Task{Name: "activity:" + a.Type, Run: func(ctx context.Context) error {
		_, err := log.AddActivity(ctx, a)
		return err
	}})
}

func (s *Service) record(actor, typ, resourceType string, resourceID *string, details map[string]any) {
	RecordActivity(s.Tasks, s.Activity, store.Activity{
		Type:         typ,
		UserID:       actor,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
	})
}

func (s *Service) enqueue(t tasks.Task) {
	if s.Tasks == nil {
		return
	}
	s.Tasks.Enqueue(t)
}
