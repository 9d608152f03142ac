// Package githubtest provides an in-memory github.Contents with the same
// revision semantics as the remote host.
package githubtest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/folio/internal/github"
)

// Memory stores files keyed by repo and path.
type Memory struct {
	mu      sync.Mutex
	files   map[string]github.File
	commits int

	// Hook, when set, runs before every call and can inject failures.
	Hook func(op string, ref github.Ref) error
	// Deleted records paths removed through Delete, in order.
	Deleted []string
}

var _ github.Contents = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{files: map[string]github.File{}} }

func key(ref github.Ref) string { return ref.Repo + ":" + strings.Trim(ref.Path, "/") }

func revision(b []byte) string {
	h := sha1.Sum(b)
	return hex.EncodeToString(h[:])
}

// Seed stores content without revision checks and returns its revision.
func (m *Memory) Seed(ref github.Ref, content []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rev := revision(content)
	m.files[key(ref)] = github.File{Content: append([]byte(nil), content...), Revision: rev}
	return rev
}

// Has reports whether a file exists.
func (m *Memory) Has(ref github.Ref) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key(ref)]
	return ok
}

func (m *Memory) hook(op string, ref github.Ref) error {
	if m.Hook != nil {
		return m.Hook(op, ref)
	}
	return nil
}

func (m *Memory) Get(_ context.Context, ref github.Ref) (github.File, bool, error) {
	if err := m.hook("get", ref); err != nil {
		return github.File{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[key(ref)]
	if !ok {
		return github.File{}, false, nil
	}
	return github.File{Content: append([]byte(nil), f.Content...), Revision: f.Revision}, true, nil
}

func (m *Memory) Put(_ context.Context, ref github.Ref, content []byte, message, expected string) (github.WriteResult, error) {
	if err := m.hook("put", ref); err != nil {
		return github.WriteResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.files[key(ref)]
	switch {
	case exists && expected == "":
		return github.WriteResult{}, &github.Error{Kind: github.KindConflict, Status: 422, Message: `"sha" wasn't supplied`}
	case exists && expected != cur.Revision:
		return github.WriteResult{}, &github.Error{Kind: github.KindConflict, Status: 409, Message: fmt.Sprintf("%s does not match %s", path.Base(ref.Path), expected)}
	case !exists && expected != "":
		return github.WriteResult{}, &github.Error{Kind: github.KindConflict, Status: 409, Message: "file no longer exists"}
	}
	rev := revision(content)
	m.files[key(ref)] = github.File{Content: append([]byte(nil), content...), Revision: rev}
	m.commits++
	return github.WriteResult{Revision: rev, Commit: fmt.Sprintf("%040x", m.commits)}, nil
}

func (m *Memory) Delete(_ context.Context, ref github.Ref, message, rev string) error {
	if err := m.hook("delete", ref); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.files[key(ref)]
	if !ok {
		return nil
	}
	if rev != cur.Revision {
		return &github.Error{Kind: github.KindConflict, Status: 409, Message: "sha mismatch"}
	}
	delete(m.files, key(ref))
	m.Deleted = append(m.Deleted, strings.Trim(ref.Path, "/"))
	m.commits++
	return nil
}

func (m *Memory) List(_ context.Context, ref github.Ref) ([]github.Entry, error) {
	if err := m.hook("list", ref); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := key(ref) + "/"
	var out []github.Entry
	for k, f := range m.files {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if strings.Contains(rest, "/") {
			continue
		}
		p := strings.Trim(ref.Path, "/") + "/" + rest
		out = append(out, github.Entry{Name: rest, Path: p, Revision: f.Revision, Type: "file", Size: int64(len(f.Content))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
